package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem snapshots the unit price at the moment the line was added. A cart
// holds at most one live line per product; removed lines keep deleted_at.
type CartItem struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	CartID    int64           `gorm:"column:cart_id;not null;uniqueIndex:idx_cart_items_cart_product,where:deleted_at IS NULL"`
	ProductID int64           `gorm:"column:product_id;not null;uniqueIndex:idx_cart_items_cart_product,where:deleted_at IS NULL"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time      `gorm:"column:deleted_at;index"`
}
