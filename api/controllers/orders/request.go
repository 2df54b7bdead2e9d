package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderengine/api/validators"
	internalorders "github.com/angelmondragon/orderengine/internal/orders"
)

const (
	maxNameLen    = 100
	maxPhoneLen   = 32
	maxAddressLen = 500
	maxNotesLen   = 2000
)

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// createOrderRequest carries guest contact fields; signed-in callers may omit
// them and the customer record is used instead.
type createOrderRequest struct {
	FirstName       string        `json:"first_name" validate:"max=100"`
	LastName        string        `json:"last_name" validate:"max=100"`
	Email           string        `json:"email" validate:"omitempty,email,max=254"`
	Phone           string        `json:"phone" validate:"max=32"`
	ShippingAddress *string       `json:"shipping_address,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	CartID          *int64        `json:"cart_id,omitempty" validate:"omitempty,gt=0"`
	Lines           []lineRequest `json:"lines" validate:"dive"`
}

func (p createOrderRequest) toInput(userID *int64, sessionID *string) internalorders.CreateOrderInput {
	lines := make([]internalorders.LineInput, 0, len(p.Lines))
	for _, line := range p.Lines {
		lines = append(lines, internalorders.LineInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return internalorders.CreateOrderInput{
		UserID:    userID,
		SessionID: sessionID,
		Guest: internalorders.GuestContact{
			FirstName: validators.SanitizeString(p.FirstName, maxNameLen),
			LastName:  validators.SanitizeString(p.LastName, maxNameLen),
			Email:     validators.NormalizeEmail(p.Email),
			Phone:     validators.SanitizeString(p.Phone, maxPhoneLen),
		},
		Lines:           lines,
		ShippingAddress: validators.SanitizeOptional(p.ShippingAddress, maxAddressLen),
		Notes:           validators.SanitizeOptional(p.Notes, maxNotesLen),
		CartID:          p.CartID,
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}
