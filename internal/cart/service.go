package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/stock"
	dbpkg "github.com/angelmondragon/orderengine/pkg/db"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/metrics"
	"github.com/angelmondragon/orderengine/pkg/outbox"
	"github.com/angelmondragon/orderengine/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes cart access and the guest-to-user merge.
type Service interface {
	MergeGuestCart(ctx context.Context, sessionID string, userID int64) (*MergeResult, error)
	GetOrCreateCart(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, productID int64, qty int) (*models.Cart, error)
	GetCart(ctx context.Context, owner Owner) (*models.Cart, error)
}

// Owner identifies a cart by exactly one of a user id or a session id.
type Owner struct {
	UserID    *int64
	SessionID *string
}

// QuantityAdjustment reports a merged line that was reduced to fit stock.
// Clamped is zero when the line was dropped entirely.
type QuantityAdjustment struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Clamped   int   `json:"clamped"`
}

// MergeResult is the user's cart after a merge plus any stock adjustments.
type MergeResult struct {
	Cart        *models.Cart         `json:"cart"`
	Mode        enums.CartMergeMode  `json:"mode"`
	Adjustments []QuantityAdjustment `json:"adjustments"`
}

// ServiceParams bundles the collaborators of the cart service.
type ServiceParams struct {
	Repository CartRepository
	Tx         txRunner
	Outbox     outboxPublisher
	Stock      StockReader
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo    CartRepository
	tx      txRunner
	outbox  outboxPublisher
	stock   StockReader
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
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
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// MergeGuestCart folds the session's guest cart into the user's cart inside
// one transaction. Lines over the available stock are clamped, never failed.
func (s *service) MergeGuestCart(ctx context.Context, sessionID string, userID int64) (*MergeResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "session id is required")
	}
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "user id must be positive")
	}
	ctx = s.logg.WithUserID(s.logg.WithSessionID(ctx, sessionID), userID)

	var result *MergeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		guest, err := optionalCart(repo.FindActiveBySession(ctx, sessionID, true))
		if err != nil {
			return err
		}
		userCart, err := optionalCart(repo.FindActiveByUser(ctx, userID, true))
		if err != nil {
			return err
		}

		if guest == nil || len(guest.Items) == 0 {
			if userCart == nil {
				userCart = &models.Cart{UserID: &userID}
				if err := repo.Create(ctx, userCart); err != nil {
					return dbpkg.WrapStorage(err, "create user cart")
				}
			}
			result = &MergeResult{Cart: userCart, Mode: enums.CartMergeModeNoop, Adjustments: []QuantityAdjustment{}}
			return nil
		}

		if userCart == nil {
			if err := repo.Reown(ctx, guest.ID, userID, s.now()); err != nil {
				return dbpkg.WrapStorage(err, "reown guest cart")
			}
			reowned, err := repo.FindActiveByUser(ctx, userID, false)
			if err != nil {
				return dbpkg.WrapStorage(err, "reload cart")
			}
			result = &MergeResult{Cart: reowned, Mode: enums.CartMergeModeReown, Adjustments: []QuantityAdjustment{}}
			return s.emitMerged(ctx, tx, guest, reowned, sessionID, userID, result)
		}

		adjustments, err := s.mergeLines(ctx, tx, repo, guest, userCart)
		if err != nil {
			return err
		}
		if err := repo.DeleteItems(ctx, guest.ID, s.now()); err != nil {
			return dbpkg.WrapStorage(err, "clear guest cart")
		}
		if _, err := repo.SoftDeleteCart(ctx, guest.ID, s.now()); err != nil {
			return dbpkg.WrapStorage(err, "delete guest cart")
		}
		merged, err := repo.FindActiveByUser(ctx, userID, false)
		if err != nil {
			return dbpkg.WrapStorage(err, "reload cart")
		}
		result = &MergeResult{Cart: merged, Mode: enums.CartMergeModeMerged, Adjustments: adjustments}
		return s.emitMerged(ctx, tx, guest, merged, sessionID, userID, result)
	})
	if err != nil {
		s.logg.Failure(ctx, "cart merge failed", err)
		return nil, err
	}

	s.metrics.IncCartMerge(string(result.Mode))
	s.metrics.AddMergeClamps(len(result.Adjustments))
	s.logg.Info(s.logg.WithFields(s.logg.WithCartID(ctx, result.Cart.ID), map[string]any{
		"mode":        result.Mode,
		"adjustments": len(result.Adjustments),
	}), "guest cart merged")
	return result, nil
}

// mergeLines applies every guest line onto the user cart in guest line order.
func (s *service) mergeLines(ctx context.Context, tx *gorm.DB, repo CartRepository, guest, userCart *models.Cart) ([]QuantityAdjustment, error) {
	existing := make(map[int64]models.CartItem, len(userCart.Items))
	for _, item := range userCart.Items {
		existing[item.ProductID] = item
	}

	adjustments := []QuantityAdjustment{}
	for _, line := range guest.Items {
		available, err := s.stock.Available(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}

		current, inUserCart := existing[line.ProductID]
		requested := line.Quantity
		if inUserCart {
			requested += current.Quantity
		}
		final := min(requested, max(available, 0))
		if final < requested {
			adjustments = append(adjustments, QuantityAdjustment{
				ProductID: line.ProductID,
				Requested: requested,
				Clamped:   final,
			})
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"product_id": line.ProductID,
				"requested":  requested,
				"clamped":    final,
			}), "merged cart line clamped to available stock")
		}

		switch {
		case final == 0 && inUserCart:
			if err := repo.DeleteItem(ctx, current.ID, s.now()); err != nil {
				return nil, dbpkg.WrapStorage(err, "drop cart line")
			}
		case final == 0:
			// nothing to carry over; the guest line goes with the guest cart
		case inUserCart:
			if err := repo.UpdateItem(ctx, current.ID, final, line.UnitPrice, s.now()); err != nil {
				return nil, dbpkg.WrapStorage(err, "update cart line")
			}
		default:
			if err := repo.MoveItem(ctx, line.ID, userCart.ID, final, s.now()); err != nil {
				return nil, dbpkg.WrapStorage(err, "move cart line")
			}
		}
	}
	return adjustments, nil
}

func (s *service) emitMerged(ctx context.Context, tx *gorm.DB, guest, target *models.Cart, sessionID string, userID int64, result *MergeResult) error {
	adjustments := make([]payloads.CartQuantityAdjustment, 0, len(result.Adjustments))
	for _, adj := range result.Adjustments {
		adjustments = append(adjustments, payloads.CartQuantityAdjustment{
			ProductID: adj.ProductID,
			Requested: adj.Requested,
			Clamped:   adj.Clamped,
		})
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventCartMerged,
		AggregateType: enums.AggregateCart,
		AggregateID:   target.ID,
		Actor:         &outbox.ActorRef{UserID: &userID, SessionID: sessionID, Role: "customer"},
		OccurredAt:    s.now().UTC(),
		Data: payloads.CartMergedEvent{
			CartID:      target.ID,
			GuestCartID: guest.ID,
			UserID:      userID,
			SessionID:   sessionID,
			Mode:        result.Mode,
			MovedLines:  len(guest.Items),
			Adjustments: adjustments,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit cart merged event")
	}
	return nil
}

// GetOrCreateCart returns the owner's active cart, creating an empty one on
// first access.
func (s *service) GetOrCreateCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	var cart *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		cart, err = s.getOrCreate(ctx, s.repo.WithTx(tx), owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) getOrCreate(ctx context.Context, repo CartRepository, owner Owner) (*models.Cart, error) {
	cart, err := optionalCart(findByOwner(ctx, repo, owner))
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	cart = &models.Cart{UserID: owner.UserID}
	if owner.UserID == nil {
		sessionID := strings.TrimSpace(*owner.SessionID)
		cart.SessionID = &sessionID
	}
	if err := repo.Create(ctx, cart); err != nil {
		return nil, dbpkg.WrapStorage(err, "create cart")
	}
	cart.Items = []models.CartItem{}
	return cart, nil
}

// AddItem adds qty units of a product, increasing the existing line when the
// product is already in the cart. The line keeps the price it was first added at.
func (s *service) AddItem(ctx context.Context, owner Owner, productID int64, qty int) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	if qty <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidQuantity, "quantity must be positive, got %d", qty)
	}

	var cart *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.getOrCreate(ctx, repo, owner)
		if err != nil {
			return err
		}

		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.Newf(pkgerrors.CodeProductNotFound, "product %d not found", productID)
			}
			return dbpkg.WrapStorage(err, "load product")
		}
		if !product.IsAvailable {
			return pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "product %q is not available", product.Name).
				WithDetails(map[string]any{"product_id": productID})
		}

		var line *models.CartItem
		for i := range current.Items {
			if current.Items[i].ProductID == productID {
				line = &current.Items[i]
				break
			}
		}
		wanted := qty
		if line != nil {
			wanted += line.Quantity
		}
		if product.StockQuantity < wanted {
			return pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
				"insufficient stock for %q: requested %d, only %d available", product.Name, wanted, product.StockQuantity).
				WithDetails(stock.InsufficientStockDetails{
					ProductID: productID,
					Requested: wanted,
					Available: product.StockQuantity,
				})
		}

		if line != nil {
			if err := repo.UpdateItem(ctx, line.ID, wanted, line.UnitPrice, s.now()); err != nil {
				return dbpkg.WrapStorage(err, "update cart line")
			}
		} else {
			item := &models.CartItem{
				CartID:    current.ID,
				ProductID: productID,
				Quantity:  qty,
				UnitPrice: product.Price,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return dbpkg.WrapStorage(err, "add cart line")
			}
		}

		cart, err = findByOwner(ctx, repo, owner)
		if err != nil {
			return dbpkg.WrapStorage(err, "reload cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) GetCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := findByOwner(ctx, s.repo, owner)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeCartNotFound, "cart not found")
		}
		return nil, dbpkg.WrapStorage(err, "load cart")
	}
	return cart, nil
}

func (o Owner) validate() error {
	hasUser := o.UserID != nil
	hasSession := o.SessionID != nil && strings.TrimSpace(*o.SessionID) != ""
	switch {
	case hasUser && hasSession:
		return pkgerrors.New(pkgerrors.CodeBadRequest, "cart owner must be a user or a session, not both")
	case hasUser:
		if *o.UserID <= 0 {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "user id must be positive")
		}
		return nil
	case hasSession:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeBadRequest, "cart owner required")
	}
}

func findByOwner(ctx context.Context, repo CartRepository, owner Owner) (*models.Cart, error) {
	if owner.UserID != nil {
		return repo.FindActiveByUser(ctx, *owner.UserID, false)
	}
	return repo.FindActiveBySession(ctx, strings.TrimSpace(*owner.SessionID), false)
}

// optionalCart turns a not-found lookup into a nil cart.
func optionalCart(cart *models.Cart, err error) (*models.Cart, error) {
	if err == nil {
		return cart, nil
	}
	if dbpkg.IsNotFound(err) {
		return nil, nil
	}
	return nil, dbpkg.WrapStorage(err, "load cart")
}
