package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByUser(ctx context.Context, userID int64, forUpdate bool) (*models.Cart, error)
	FindActiveBySession(ctx context.Context, sessionID string, forUpdate bool) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Reown(ctx context.Context, cartID, userID int64, at time.Time) error
	SoftDeleteCart(ctx context.Context, cartID int64, at time.Time) (bool, error)
	ListStaleGuestCarts(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)

	FindProduct(ctx context.Context, productID int64) (*models.Product, error)

	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItem(ctx context.Context, itemID int64, quantity int, unitPrice decimal.Decimal, at time.Time) error
	MoveItem(ctx context.Context, itemID, toCartID int64, quantity int, at time.Time) error
	DeleteItem(ctx context.Context, itemID int64, at time.Time) error
	DeleteItems(ctx context.Context, cartID int64, at time.Time) error
}

// StockReader reports the current stock counter for merge clamping.
type StockReader interface {
	Available(ctx context.Context, tx *gorm.DB, productID int64) (int, error)
}
