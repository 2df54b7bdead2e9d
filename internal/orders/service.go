package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/orderstate"
	"github.com/angelmondragon/orderengine/internal/pricing"
	"github.com/angelmondragon/orderengine/internal/repo"
	dbpkg "github.com/angelmondragon/orderengine/pkg/db"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/metrics"
	"github.com/angelmondragon/orderengine/pkg/outbox"
	"github.com/angelmondragon/orderengine/pkg/outbox/payloads"
	"github.com/angelmondragon/orderengine/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs checkout, cancellation and status changes as single units of work.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderConfirmation, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*CancelResult, error)
	UpdateStatus(ctx context.Context, orderID int64, next enums.OrderStatus) (*models.Order, error)
	GetOrder(ctx context.Context, orderID int64, requester Requester) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string, requester Requester) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error)
}

// ServiceParams bundles the collaborators of the order service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Stock      StockLedger
	Numbers    NumberAllocator
	Users      UserDirectory
	Pricing    pricing.Rules
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	stock   StockLedger
	numbers NumberAllocator
	users   UserDirectory
	pricing pricing.Rules
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("order number allocator required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	rules := params.Pricing
	if rules == (pricing.Rules{}) {
		rules = pricing.DefaultRules()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repository,
		tx:      params.Tx,
		outbox:  params.Outbox,
		stock:   params.Stock,
		numbers: params.Numbers,
		users:   params.Users,
		pricing: rules,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

type customer struct {
	firstName string
	lastName  string
	email     string
	phone     string
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderConfirmation, error) {
	if input.UserID != nil {
		ctx = s.logg.WithUserID(ctx, *input.UserID)
	}
	confirmation, err := s.createOrder(ctx, input)
	if err != nil {
		s.recordFailure(ctx, "checkout failed", err)
		return nil, err
	}
	s.metrics.IncOrderCreated()
	ctx = s.logg.WithOrder(ctx, confirmation.Order.ID, confirmation.OrderNumber)
	s.logg.Info(s.logg.WithField(ctx, "total", confirmation.Total.StringFixed(2)), "order created")
	return confirmation, nil
}

func (s *service) createOrder(ctx context.Context, input CreateOrderInput) (*OrderConfirmation, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "order must contain at least one line")
	}
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}
	buyer, err := s.resolveCustomer(ctx, input)
	if err != nil {
		return nil, err
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		number, err := s.numbers.NextOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(input.Lines))
		subtotal := decimal.Zero
		for _, line := range input.Lines {
			snap, err := s.stock.Reserve(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			lineTotal := pricing.LineTotal(line.UnitPrice, line.Quantity)
			items = append(items, models.OrderItem{
				ProductID:   line.ProductID,
				ProductName: snap.Name,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice.Round(2),
				LineTotal:   lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}
		totals := s.pricing.Quote(subtotal)

		order := &models.Order{
			OrderNumber:       number,
			UserID:            input.UserID,
			CustomerFirstName: buyer.firstName,
			CustomerLastName:  buyer.lastName,
			CustomerEmail:     buyer.email,
			CustomerPhone:     buyer.phone,
			ShippingAddress:   trimmedOrNil(input.ShippingAddress),
			Notes:             trimmedOrNil(input.Notes),
			Status:            enums.OrderStatusProcessing,
			Subtotal:          totals.Subtotal,
			ShippingCost:      totals.ShippingCost,
			Tax:               totals.Tax,
			TotalAmount:       totals.Total,
			Items:             items,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return dbpkg.WrapStorage(err, "persist order")
		}

		if input.CartID != nil {
			if err := s.consumeCart(ctx, repo, *input.CartID, input); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorFor(input.UserID, input.SessionID, false),
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        order.UserID,
				CustomerEmail: order.CustomerEmail,
				Status:        order.Status,
				TotalAmount:   order.TotalAmount,
				Lines:         eventLines(order.Items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &OrderConfirmation{
		OrderNumber:   created.OrderNumber,
		Date:          created.CreatedAt,
		CustomerEmail: created.CustomerEmail,
		Total:         created.TotalAmount,
		Order:         created,
		StockChanged:  true,
		ProductIDs:    productIDs(created.Items),
	}, nil
}

func validateLines(lines []LineInput) error {
	for i, line := range lines {
		if line.ProductID <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: product id must be positive", i+1)
		}
		if line.Quantity <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity must be positive", i+1).
				WithDetails(map[string]any{"product_id": line.ProductID, "quantity": line.Quantity})
		}
		if line.UnitPrice.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: unit price cannot be negative", i+1).
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if !pricing.IsWholeCents(line.UnitPrice) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: unit price must not go below cents", i+1).
				WithDetails(map[string]any{"product_id": line.ProductID, "unit_price": line.UnitPrice.String()})
		}
	}
	return nil
}

func (s *service) resolveCustomer(ctx context.Context, input CreateOrderInput) (customer, error) {
	if input.UserID != nil {
		if *input.UserID <= 0 {
			return customer{}, pkgerrors.New(pkgerrors.CodeValidation, "user id must be positive")
		}
		user, err := s.users.GetUser(ctx, *input.UserID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return customer{}, pkgerrors.Newf(pkgerrors.CodeUserNotFound, "user %d not found", *input.UserID)
			}
			return customer{}, dbpkg.WrapStorage(err, "load customer")
		}
		if user == nil {
			return customer{}, pkgerrors.Newf(pkgerrors.CodeUserNotFound, "user %d not found", *input.UserID)
		}
		return customer{
			firstName: user.FirstName,
			lastName:  user.LastName,
			email:     user.Email,
			phone:     user.Phone,
		}, nil
	}

	guest := customer{
		firstName: strings.TrimSpace(input.Guest.FirstName),
		lastName:  strings.TrimSpace(input.Guest.LastName),
		email:     strings.TrimSpace(input.Guest.Email),
		phone:     strings.TrimSpace(input.Guest.Phone),
	}
	var missing []string
	if guest.firstName == "" {
		missing = append(missing, "first_name")
	}
	if guest.lastName == "" {
		missing = append(missing, "last_name")
	}
	if guest.email == "" {
		missing = append(missing, "email")
	}
	if guest.phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return customer{}, pkgerrors.New(pkgerrors.CodeValidation, "guest checkout requires first name, last name, email and phone").
			WithDetails(map[string]any{"missing": missing})
	}
	return guest, nil
}

// consumeCart clears the checked-out cart after verifying the caller owns it.
func (s *service) consumeCart(ctx context.Context, repo Repository, cartID int64, input CreateOrderInput) error {
	cart, err := repo.FindCart(ctx, cartID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return pkgerrors.Newf(pkgerrors.CodeCartNotFound, "cart %d not found", cartID)
		}
		return dbpkg.WrapStorage(err, "load cart")
	}
	if !ownsCart(cart, input.UserID, input.SessionID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another owner")
	}
	if err := repo.ClearCart(ctx, cartID, s.now()); err != nil {
		return dbpkg.WrapStorage(err, "clear cart")
	}
	return nil
}

func ownsCart(cart *models.Cart, userID *int64, sessionID *string) bool {
	if cart.UserID != nil {
		return userID != nil && *cart.UserID == *userID
	}
	if cart.SessionID != nil {
		return sessionID != nil && *cart.SessionID == *sessionID
	}
	return false
}

func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*CancelResult, error) {
	ctx = s.logg.WithOrderID(ctx, input.OrderID)
	if input.OrderID <= 0 {
		err := pkgerrors.New(pkgerrors.CodeValidation, "order id required")
		s.recordFailure(ctx, "order cancel rejected", err)
		return nil, err
	}

	var (
		order    *models.Order
		previous enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, previous, err = s.cancelInTx(ctx, tx, input.OrderID, input.Requester)
		return err
	})
	if err != nil {
		s.recordFailure(ctx, "order cancel failed", err)
		return nil, err
	}

	s.metrics.IncOrderCancelled()
	s.metrics.IncTransition(string(previous), string(enums.OrderStatusCancelled))
	s.logg.Info(s.logg.WithField(ctx, "previous_status", previous), "order cancelled")
	return &CancelResult{
		Order:        order,
		StockChanged: len(order.Items) > 0,
		ProductIDs:   productIDs(order.Items),
	}, nil
}

// cancelInTx restores stock for every line and marks the order cancelled.
func (s *service) cancelInTx(ctx context.Context, tx *gorm.DB, orderID int64, requester Requester) (*models.Order, enums.OrderStatus, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, "", orderLookupError(err, orderID)
	}
	if err := authorize(order, requester); err != nil {
		return nil, "", err
	}
	previous := order.Status
	if err := orderstate.Transition(previous, enums.OrderStatusCancelled); err != nil {
		return nil, "", err
	}

	for _, item := range order.Items {
		if err := s.stock.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, "", err
		}
	}

	now := s.now().UTC()
	if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusCancelled, now); err != nil {
		return nil, "", dbpkg.WrapStorage(err, "mark order cancelled")
	}
	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCanceled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorFor(requester.UserID, nil, requester.IsAdmin),
		OccurredAt:    now,
		Data: payloads.OrderCanceledEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			PreviousStatus: previous,
			CanceledBy:     requester.UserID,
			ByAdmin:        requester.IsAdmin,
			CanceledAt:     now,
			Lines:          eventLines(order.Items),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order canceled event")
	}
	return order, previous, nil
}

// UpdateStatus moves an order along its lifecycle. Moving to cancelled takes
// the cancellation path so stock is restored no matter the entry point.
func (s *service) UpdateStatus(ctx context.Context, orderID int64, next enums.OrderStatus) (*models.Order, error) {
	ctx = s.logg.WithOrderID(ctx, orderID)
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", next)
	}
	if next == enums.OrderStatusCancelled {
		result, err := s.CancelOrder(ctx, CancelOrderInput{
			OrderID:   orderID,
			Requester: Requester{IsAdmin: true},
		})
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	}

	var (
		order    *models.Order
		previous enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			return orderLookupError(err, orderID)
		}
		previous = current.Status
		if err := orderstate.Transition(previous, next); err != nil {
			return err
		}
		if err := repo.UpdateOrderStatus(ctx, orderID, next, s.now()); err != nil {
			return dbpkg.WrapStorage(err, "update order status")
		}
		current.Status = next

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actorFor(nil, nil, true),
			OccurredAt:    s.now().UTC(),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     orderID,
				OrderNumber: current.OrderNumber,
				From:        previous,
				To:          next,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
		}
		order = current
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, "order status update failed", err)
		return nil, err
	}

	s.metrics.IncTransition(string(previous), string(next))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"from": previous, "to": next}), "order status updated")
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID int64, requester Requester) (*models.Order, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID, repo.ActiveOnly)
	if err != nil {
		return nil, orderLookupError(err, orderID)
	}
	if err := authorize(order, requester); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) GetOrderByNumber(ctx context.Context, orderNumber string, requester Requester) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindOrderByNumber(ctx, orderNumber)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeOrderNotFound, "order %s not found", orderNumber)
		}
		return nil, dbpkg.WrapStorage(err, "load order")
	}
	if err := authorize(order, requester); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id must be positive")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.ListUserOrders(ctx, userID, params)
	if err != nil {
		return nil, dbpkg.WrapStorage(err, "list orders")
	}
	return list, nil
}

func (s *service) recordFailure(ctx context.Context, msg string, err error) {
	s.metrics.IncOrderFailure(string(pkgerrors.CodeOf(err)))
	s.logg.Failure(ctx, msg, err)
}

func authorize(order *models.Order, requester Requester) error {
	if requester.IsAdmin {
		return nil
	}
	if requester.UserID == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to manage orders")
	}
	if order.UserID == nil || *order.UserID != *requester.UserID {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "order belongs to another customer")
	}
	return nil
}

func orderLookupError(err error, orderID int64) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.Newf(pkgerrors.CodeOrderNotFound, "order %d not found", orderID)
	}
	return dbpkg.WrapStorage(err, "load order")
}

func actorFor(userID *int64, sessionID *string, admin bool) *outbox.ActorRef {
	actor := &outbox.ActorRef{UserID: userID, Role: "customer"}
	if sessionID != nil {
		actor.SessionID = *sessionID
	}
	switch {
	case admin:
		actor.Role = "admin"
	case userID == nil:
		actor.Role = "guest"
	}
	return actor
}

func eventLines(items []models.OrderItem) []payloads.OrderLine {
	lines := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, payloads.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return lines
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
