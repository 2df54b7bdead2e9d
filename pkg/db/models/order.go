package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderengine/pkg/enums"
)

// Order is the durable result of a checkout. Monetary fields are fixed at
// creation and never recomputed.
type Order struct {
	ID                int64             `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber       string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            *int64            `gorm:"column:user_id;index"`
	CustomerFirstName string            `gorm:"column:customer_first_name;not null"`
	CustomerLastName  string            `gorm:"column:customer_last_name;not null"`
	CustomerEmail     string            `gorm:"column:customer_email;not null"`
	CustomerPhone     string            `gorm:"column:customer_phone;not null"`
	ShippingAddress   *string           `gorm:"column:shipping_address"`
	Notes             *string           `gorm:"column:notes"`
	Status            enums.OrderStatus `gorm:"column:status;not null;default:'processing'"`
	Subtotal          decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingCost      decimal.Decimal   `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Tax               decimal.Decimal   `gorm:"column:tax;type:numeric(12,2);not null"`
	TotalAmount       decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         *time.Time        `gorm:"column:deleted_at;index"`
}

// OrderItem is an immutable order line with its price snapshot.
type OrderItem struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"column:order_id;not null;index"`
	ProductID   int64           `gorm:"column:product_id;not null;index"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   *time.Time      `gorm:"column:deleted_at;index"`
}
