package product

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderengine/pkg/db/models"
)

// ProductDTO is the catalog view served to shoppers.
type ProductDTO struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsAvailable   bool            `json:"is_available"`
	InStock       bool            `json:"in_stock"`
}

// FromModel maps a product row into its catalog view.
func FromModel(m *models.Product) ProductDTO {
	if m == nil {
		return ProductDTO{}
	}
	return ProductDTO{
		ID:            m.ID,
		SKU:           m.SKU,
		Name:          m.Name,
		Price:         m.Price,
		StockQuantity: m.StockQuantity,
		IsAvailable:   m.IsAvailable,
		InStock:       m.IsAvailable && m.StockQuantity > 0,
	}
}
