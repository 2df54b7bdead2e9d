package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/repo"
	"github.com/angelmondragon/orderengine/internal/stock"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	"github.com/angelmondragon/orderengine/pkg/pagination"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID int64, visibility repo.Visibility) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status enums.OrderStatus, at time.Time) error
	FindCart(ctx context.Context, cartID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, cartID int64, at time.Time) error
}

// StockLedger reserves and restores product stock on the caller's transaction.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID int64, qty int) (stock.Snapshot, error)
	Restore(ctx context.Context, tx *gorm.DB, productID int64, qty int) error
}

// NumberAllocator hands out order numbers inside the checkout transaction.
type NumberAllocator interface {
	NextOrderNumber(ctx context.Context, tx *gorm.DB, date time.Time) (string, error)
}

// UserDirectory resolves contact details for authenticated checkouts.
type UserDirectory interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}
