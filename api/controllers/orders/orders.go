package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/orderengine/api/middleware"
	"github.com/angelmondragon/orderengine/api/responses"
	"github.com/angelmondragon/orderengine/api/validators"
	internalorders "github.com/angelmondragon/orderengine/internal/orders"
	"github.com/angelmondragon/orderengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/pagination"
)

// catalogInvalidator drops cached catalog entries whose stock moved.
type catalogInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...int64) error
}

// Create runs a checkout for the signed-in user or the guest session.
func Create(svc internalorders.Service, catalog catalogInvalidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, sessionID := callerIdentity(r.Context())
		confirmation, err := svc.CreateOrder(r.Context(), payload.toInput(userID, sessionID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if confirmation.StockChanged {
			invalidateCatalog(r.Context(), catalog, logg, confirmation.ProductIDs)
		}

		responses.WriteCreated(w, newConfirmationResponse(confirmation))
	}
}

// Detail returns one order to its owner or an admin.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID, requesterFrom(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func DetailByNumber(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.GetOrderByNumber(r.Context(), number, requesterFrom(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// List pages through the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, err := svc.ListUserOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(list))
	}
}

// Cancel cancels an order and restores its stock.
func Cancel(svc internalorders.Service, catalog catalogInvalidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CancelOrder(r.Context(), internalorders.CancelOrderInput{
			OrderID:   orderID,
			Requester: requesterFrom(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.StockChanged {
			invalidateCatalog(r.Context(), catalog, logg, result.ProductIDs)
		}

		responses.WriteSuccess(w, newOrderResponse(result.Order))
	}
}

// UpdateStatus is the admin transition endpoint. Moving an order to
// cancelled goes through the cancel path so stock is restored.
func UpdateStatus(svc internalorders.Service, catalog catalogInvalidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"allowed": enums.OrderStatuses()}))
			return
		}

		if next == enums.OrderStatusCancelled {
			result, err := svc.CancelOrder(r.Context(), internalorders.CancelOrderInput{
				OrderID:   orderID,
				Requester: requesterFrom(r.Context()),
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if result.StockChanged {
				invalidateCatalog(r.Context(), catalog, logg, result.ProductIDs)
			}
			responses.WriteSuccess(w, newOrderResponse(result.Order))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orderID, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func callerIdentity(ctx context.Context) (*int64, *string) {
	var userID *int64
	if id, ok := middleware.UserIDFromContext(ctx); ok {
		userID = &id
	}
	var sessionID *string
	if sid := middleware.SessionIDFromContext(ctx); sid != "" {
		sessionID = &sid
	}
	return userID, sessionID
}

func requesterFrom(ctx context.Context) internalorders.Requester {
	userID, _ := callerIdentity(ctx)
	return internalorders.Requester{
		UserID:  userID,
		IsAdmin: middleware.IsAdmin(ctx),
	}
}

// invalidateCatalog runs after commit; a cache failure only leaves entries
// to expire on their TTL.
func invalidateCatalog(ctx context.Context, catalog catalogInvalidator, logg *logger.Logger, ids []int64) {
	if catalog == nil || len(ids) == 0 {
		return
	}
	if err := catalog.InvalidateProducts(ctx, ids...); err != nil && logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"product_ids": ids,
			"error":       err.Error(),
		}), "catalog invalidation failed")
	}
}
