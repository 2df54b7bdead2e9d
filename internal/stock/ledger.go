package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderengine/internal/repo"
	dbpkg "github.com/angelmondragon/orderengine/pkg/db"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
)

// Snapshot describes a product right after a successful reservation.
type Snapshot struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Before    int
	After     int
}

// InsufficientStockDetails is attached to INSUFFICIENT_STOCK errors.
type InsufficientStockDetails struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

// Ledger is the only writer of products.stock_quantity. It never opens or
// commits a transaction; every call runs on the caller's unit of work.
type Ledger struct {
	now func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Reserve locks the product row, checks it can satisfy qty and decrements
// the counter. The decrement is guarded by stock_quantity >= qty so a
// concurrent writer that slipped past the lock still cannot oversell.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID int64, qty int) (Snapshot, error) {
	if tx == nil {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}
	if qty <= 0 {
		return Snapshot{}, pkgerrors.Newf(pkgerrors.CodeInvalidQuantity, "reservation quantity must be positive, got %d", qty).
			WithDetails(map[string]any{"product_id": productID, "quantity": qty})
	}

	product, err := l.lockProduct(ctx, tx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	if !product.IsAvailable {
		return Snapshot{}, pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "product %q is not available", product.Name).
			WithDetails(map[string]any{"product_id": productID})
	}
	if product.StockQuantity < qty {
		return Snapshot{}, insufficient(product, qty, product.StockQuantity)
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"updated_at":     l.now().UTC(),
		})
	if res.Error != nil {
		return Snapshot{}, dbpkg.WrapStorage(res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		available, err := l.Available(ctx, tx, productID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{}, insufficient(product, qty, available)
	}

	return Snapshot{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Before:    product.StockQuantity,
		After:     product.StockQuantity - qty,
	}, nil
}

// Restore returns qty units to the product. Soft-deleted products are still
// restored since historical orders keep referencing them.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, productID int64, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}
	if qty < 0 {
		return pkgerrors.Newf(pkgerrors.CodeInvalidQuantity, "restore quantity must not be negative, got %d", qty).
			WithDetails(map[string]any{"product_id": productID, "quantity": qty})
	}
	if qty == 0 {
		return nil
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"updated_at":     l.now().UTC(),
		})
	if res.Error != nil {
		return dbpkg.WrapStorage(res.Error, "restore stock")
	}
	if res.RowsAffected == 0 {
		return productNotFound(productID)
	}
	return nil
}

// Available reads the current counter without locking, including soft-deleted
// products.
func (l *Ledger) Available(ctx context.Context, tx *gorm.DB, productID int64) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock lookup")
	}
	var product models.Product
	err := repo.Scoped(tx.WithContext(ctx), repo.IncludeDeleted).
		Select("id", "stock_quantity").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return 0, productNotFound(productID)
		}
		return 0, dbpkg.WrapStorage(err, "load stock")
	}
	return product.StockQuantity, nil
}

func (l *Ledger) lockProduct(ctx context.Context, tx *gorm.DB, productID int64) (*models.Product, error) {
	var product models.Product
	err := repo.Scoped(tx.WithContext(ctx), repo.ActiveOnly).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, productNotFound(productID)
		}
		return nil, dbpkg.WrapStorage(err, "lock product")
	}
	return &product, nil
}

func productNotFound(productID int64) error {
	return pkgerrors.Newf(pkgerrors.CodeProductNotFound, "product %d not found", productID).
		WithDetails(map[string]any{"product_id": productID})
}

func insufficient(product *models.Product, requested, available int) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
		"insufficient stock for %q: requested %d, only %d available", product.Name, requested, available).
		WithDetails(InsufficientStockDetails{
			ProductID: product.ID,
			Requested: requested,
			Available: available,
		})
}
