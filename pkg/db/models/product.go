package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry whose stock counter is mutated only by the stock ledger.
type Product struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SKU           string          `gorm:"column:sku;not null;uniqueIndex"`
	Name          string          `gorm:"column:name;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0;check:stock_quantity >= 0"`
	IsAvailable   bool            `gorm:"column:is_available;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     *time.Time      `gorm:"column:deleted_at;index"`
}
