package orders

import (
	"time"

	"github.com/shopspring/decimal"

	internalorders "github.com/angelmondragon/orderengine/internal/orders"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
)

type orderItemResponse struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          *int64              `json:"user_id,omitempty"`
	FirstName       string              `json:"customer_first_name"`
	LastName        string              `json:"customer_last_name"`
	Email           string              `json:"customer_email"`
	Phone           string              `json:"customer_phone"`
	ShippingAddress *string             `json:"shipping_address,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	ShippingCost    decimal.Decimal     `json:"shipping_cost"`
	Tax             decimal.Decimal     `json:"tax"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []orderItemResponse `json:"items"`
}

type confirmationResponse struct {
	OrderNumber   string          `json:"order_number"`
	Date          time.Time       `json:"date"`
	CustomerEmail string          `json:"customer_email"`
	Total         decimal.Decimal `json:"total"`
	Order         orderResponse   `json:"order"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{Items: []orderItemResponse{}}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		FirstName:       order.CustomerFirstName,
		LastName:        order.CustomerLastName,
		Email:           order.CustomerEmail,
		Phone:           order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		Status:          order.Status,
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		Tax:             order.Tax,
		TotalAmount:     order.TotalAmount,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		Items:           items,
	}
}

func newConfirmationResponse(c *internalorders.OrderConfirmation) confirmationResponse {
	return confirmationResponse{
		OrderNumber:   c.OrderNumber,
		Date:          c.Date,
		CustomerEmail: c.CustomerEmail,
		Total:         c.Total,
		Order:         newOrderResponse(c.Order),
	}
}

func newOrderListResponse(list *internalorders.OrderList) orderListResponse {
	out := orderListResponse{Orders: []orderResponse{}}
	if list == nil {
		return out
	}
	for i := range list.Orders {
		out.Orders = append(out.Orders, newOrderResponse(&list.Orders[i]))
	}
	out.NextCursor = list.NextCursor
	return out
}
