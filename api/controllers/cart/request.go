package cart

import (
	"context"

	"github.com/angelmondragon/orderengine/api/middleware"
	cartsvc "github.com/angelmondragon/orderengine/internal/cart"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

// ownerFrom prefers the signed-in user; guests are keyed by session.
func ownerFrom(ctx context.Context) (cartsvc.Owner, bool) {
	if userID, ok := middleware.UserIDFromContext(ctx); ok {
		return cartsvc.Owner{UserID: &userID}, true
	}
	if sessionID := middleware.SessionIDFromContext(ctx); sessionID != "" {
		return cartsvc.Owner{SessionID: &sessionID}, true
	}
	return cartsvc.Owner{}, false
}
