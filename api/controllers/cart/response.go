package cart

import (
	"time"

	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/orderengine/internal/cart"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
)

type cartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type cartResponse struct {
	ID        int64              `json:"id"`
	UserID    *int64             `json:"user_id,omitempty"`
	SessionID *string            `json:"session_id,omitempty"`
	Items     []cartItemResponse `json:"items"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type mergeResponse struct {
	Cart        cartResponse                 `json:"cart"`
	Mode        enums.CartMergeMode          `json:"mode"`
	Adjustments []cartsvc.QuantityAdjustment `json:"adjustments"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	out := cartResponse{Items: []cartItemResponse{}, Subtotal: decimal.Zero}
	if cart == nil {
		return out
	}
	out.ID = cart.ID
	out.UserID = cart.UserID
	out.SessionID = cart.SessionID
	out.UpdatedAt = cart.UpdatedAt
	for _, item := range cart.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		out.Items = append(out.Items, cartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: lineTotal,
		})
		out.Subtotal = out.Subtotal.Add(lineTotal)
	}
	return out
}

func newMergeResponse(result *cartsvc.MergeResult) mergeResponse {
	adjustments := result.Adjustments
	if adjustments == nil {
		adjustments = []cartsvc.QuantityAdjustment{}
	}
	return mergeResponse{
		Cart:        newCartResponse(result.Cart),
		Mode:        result.Mode,
		Adjustments: adjustments,
	}
}
