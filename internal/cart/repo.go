package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderengine/internal/repo"
	"github.com/angelmondragon/orderengine/pkg/db/models"
)

// Repository persists carts and their lines.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{base: repo.NewBase(tx)}
}

// FindActiveByUser returns the user's live cart with its lines.
func (r *Repository) FindActiveByUser(ctx context.Context, userID int64, forUpdate bool) (*models.Cart, error) {
	return r.findActive(ctx, forUpdate, "user_id = ?", userID)
}

// FindActiveBySession returns the guest cart keyed by sessionID. Carts that
// already belong to a user never match.
func (r *Repository) FindActiveBySession(ctx context.Context, sessionID string, forUpdate bool) (*models.Cart, error) {
	return r.findActive(ctx, forUpdate, "session_id = ? AND user_id IS NULL", sessionID)
}

func (r *Repository) findActive(ctx context.Context, forUpdate bool, where string, args ...any) (*models.Cart, error) {
	query := r.base.Query(ctx, repo.ActiveOnly, &models.Cart{}).
		Where(where, args...).
		Where("is_active = ?", true)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var cart models.Cart
	err := query.
		Order("id DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}

	var items []models.CartItem
	err = r.base.Query(ctx, repo.ActiveOnly, &models.CartItem{}).
		Where("cart_id = ?", cart.ID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

// Create inserts the provided cart. New carts are always active.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	cart.IsActive = true
	return r.base.DB(ctx).Omit("Items").Create(cart).Error
}

// Reown hands a guest cart to userID and drops its session key.
func (r *Repository) Reown(ctx context.Context, cartID, userID int64, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND deleted_at IS NULL", cartID).
		Updates(map[string]any{
			"user_id":    userID,
			"session_id": nil,
			"updated_at": at.UTC(),
		}).Error
}

// SoftDeleteCart deactivates the cart and stamps deleted_at. It reports
// whether a live cart was actually removed.
func (r *Repository) SoftDeleteCart(ctx context.Context, cartID int64, at time.Time) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND deleted_at IS NULL", cartID).
		Updates(map[string]any{
			"is_active":  false,
			"deleted_at": at.UTC(),
			"updated_at": at.UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// ListStaleGuestCarts returns live carts eligible for cleanup: guest carts
// untouched since cutoff and carts already deactivated.
func (r *Repository) ListStaleGuestCarts(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.base.Query(ctx, repo.ActiveOnly, &models.Cart{}).
		Where("(user_id IS NULL AND session_id IS NOT NULL AND updated_at < ?) OR is_active = ?", cutoff.UTC(), false).
		Order("id ASC").
		Limit(limit).
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// FindProduct loads a live catalog entry for add-to-cart.
func (r *Repository) FindProduct(ctx context.Context, productID int64) (*models.Product, error) {
	var product models.Product
	err := r.base.Query(ctx, repo.ActiveOnly, &models.Product{}).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.base.DB(ctx).Create(item).Error
}

func (r *Repository) UpdateItem(ctx context.Context, itemID int64, quantity int, unitPrice decimal.Decimal, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND deleted_at IS NULL", itemID).
		Updates(map[string]any{
			"quantity":   quantity,
			"unit_price": unitPrice,
			"updated_at": at.UTC(),
		}).Error
}

// MoveItem re-parents a line onto another cart with the given quantity.
func (r *Repository) MoveItem(ctx context.Context, itemID, toCartID int64, quantity int, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND deleted_at IS NULL", itemID).
		Updates(map[string]any{
			"cart_id":    toCartID,
			"quantity":   quantity,
			"updated_at": at.UTC(),
		}).Error
}

// DeleteItem soft-deletes a single line.
func (r *Repository) DeleteItem(ctx context.Context, itemID int64, at time.Time) error {
	_, err := r.base.SoftDelete(ctx, &models.CartItem{}, itemID, at)
	return err
}

// DeleteItems soft-deletes every live line of cartID.
func (r *Repository) DeleteItems(ctx context.Context, cartID int64, at time.Time) error {
	return repo.SoftDeleteWhere(r.base.DB(ctx).Model(&models.CartItem{}), at, "cart_id = ?", cartID)
}
