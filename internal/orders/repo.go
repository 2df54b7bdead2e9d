package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderengine/internal/repo"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	"github.com/angelmondragon/orderengine/pkg/pagination"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

// CreateOrder inserts the order together with its items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID int64, visibility repo.Visibility) (*models.Order, error) {
	var order models.Order
	err := r.base.Query(ctx, visibility, &models.Order{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return repo.Scoped(db, visibility).Order("id ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOrderForUpdate locks the order row so concurrent cancels and status
// updates serialize.
func (r *repository) FindOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.base.Query(ctx, repo.ActiveOnly, &models.Order{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	var items []models.OrderItem
	err = r.base.Query(ctx, repo.ActiveOnly, &models.OrderItem{}).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *repository) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.base.Query(ctx, repo.ActiveOnly, &models.Order{}).
		Preload("Items", liveItems).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListUserOrders pages through a user's orders, newest first.
func (r *repository) ListUserOrders(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, fmt.Errorf("parse cursor: %w", err)
	}
	pageSize := pagination.NormalizeLimit(params.Limit)

	query := r.base.Query(ctx, repo.ActiveOnly, &models.Order{}).
		Preload("Items", liveItems).
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &OrderList{}
	if len(rows) > pageSize {
		last := rows[pageSize-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:pageSize]
	}
	list.Orders = rows
	return list, nil
}

// UpdateOrderStatus stamps at as updated_at, and as cancelled_at when the
// order is being cancelled.
func (r *repository) UpdateOrderStatus(ctx context.Context, orderID int64, status enums.OrderStatus, at time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": at.UTC(),
	}
	if status == enums.OrderStatusCancelled {
		updates["cancelled_at"] = at.UTC()
	}
	res := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND deleted_at IS NULL", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindCart(ctx context.Context, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	err := r.base.Query(ctx, repo.ActiveOnly, &models.Cart{}).
		Where("id = ?", cartID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ClearCart soft-deletes every line of a cart consumed by checkout.
func (r *repository) ClearCart(ctx context.Context, cartID int64, at time.Time) error {
	return repo.SoftDeleteWhere(r.base.DB(ctx).Model(&models.CartItem{}), at, "cart_id = ?", cartID)
}

func liveItems(db *gorm.DB) *gorm.DB {
	return repo.Scoped(db, repo.ActiveOnly).Order("id ASC")
}
