package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderengine/pkg/db/models"
)

// LineInput is one requested order line. UnitPrice is the price the client
// was quoted when the line was added to the cart.
type LineInput struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// GuestContact carries the customer fields required when no user is signed in.
type GuestContact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// CreateOrderInput describes a checkout request.
type CreateOrderInput struct {
	UserID          *int64
	SessionID       *string
	Guest           GuestContact
	Lines           []LineInput
	ShippingAddress *string
	Notes           *string
	// CartID, when set, names the cart consumed by this checkout. Its lines
	// are cleared in the same transaction as the order insert.
	CartID *int64
}

// OrderConfirmation is returned after a checkout commits.
type OrderConfirmation struct {
	OrderNumber   string          `json:"order_number"`
	Date          time.Time       `json:"date"`
	CustomerEmail string          `json:"customer_email"`
	Total         decimal.Decimal `json:"total"`
	Order         *models.Order   `json:"order"`
	// StockChanged and ProductIDs tell callers which cached catalog views
	// went stale.
	StockChanged bool    `json:"-"`
	ProductIDs   []int64 `json:"-"`
}

// Requester identifies who asks for an order read or mutation. A nil UserID
// means an anonymous caller.
type Requester struct {
	UserID  *int64
	IsAdmin bool
}

// CancelOrderInput names the order to cancel and who asks for it.
type CancelOrderInput struct {
	OrderID   int64
	Requester Requester
}

// CancelResult reports the cancelled order and the restored products.
type CancelResult struct {
	Order        *models.Order
	StockChanged bool
	ProductIDs   []int64
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func productIDs(items []models.OrderItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
