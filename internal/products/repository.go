package product

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/repo"
	"github.com/angelmondragon/orderengine/pkg/db/models"
)

// Repository reads catalog rows. Stock is never written here; the stock
// ledger owns the counter.
type Repository struct {
	base repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{base: repo.NewBase(tx)}
}

// FindByID loads a live product.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := r.base.Query(ctx, repo.ActiveOnly, &models.Product{}).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListAvailable returns sellable products ordered by name.
func (r *Repository) ListAvailable(ctx context.Context, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.base.Query(ctx, repo.ActiveOnly, &models.Product{}).
		Where("is_available = ? AND stock_quantity > 0", true).
		Order("name ASC").
		Order("id ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Create inserts a catalog row. Used by seeding and tests.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Create(product).Error
}
