package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderengine/pkg/enums"
)

// OrderLine is the per-line slice of order events.
type OrderLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is emitted once a checkout commits.
type OrderCreatedEvent struct {
	OrderID       int64             `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	UserID        *int64            `json:"user_id,omitempty"`
	CustomerEmail string            `json:"customer_email"`
	Status        enums.OrderStatus `json:"status"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	Lines         []OrderLine       `json:"lines"`
}

// OrderCanceledEvent is emitted after stock for every line was restored.
type OrderCanceledEvent struct {
	OrderID        int64             `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	CanceledBy     *int64            `json:"canceled_by,omitempty"`
	ByAdmin        bool              `json:"by_admin"`
	CanceledAt     time.Time         `json:"canceled_at"`
	Lines          []OrderLine       `json:"lines"`
}

// OrderStatusChangedEvent records a non-cancellation lifecycle move.
type OrderStatusChangedEvent struct {
	OrderID     int64             `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
}

// CartQuantityAdjustment reports a merged line reduced to fit stock.
type CartQuantityAdjustment struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Clamped   int   `json:"clamped"`
}

// CartMergedEvent is emitted when a guest cart is folded into a user cart.
type CartMergedEvent struct {
	CartID      int64                    `json:"cart_id"`
	GuestCartID int64                    `json:"guest_cart_id"`
	UserID      int64                    `json:"user_id"`
	SessionID   string                   `json:"session_id"`
	Mode        enums.CartMergeMode      `json:"mode"`
	MovedLines  int                      `json:"moved_lines"`
	Adjustments []CartQuantityAdjustment `json:"adjustments,omitempty"`
}
