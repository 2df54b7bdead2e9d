package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Visibility selects whether soft-deleted rows take part in a query. Every
// read states it explicitly instead of relying on a global scope.
type Visibility int

const (
	// ActiveOnly hides rows whose deleted_at is set.
	ActiveOnly Visibility = iota
	// IncludeDeleted returns soft-deleted rows as well.
	IncludeDeleted
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Query starts a statement on model's table with the visibility filter applied.
func (b Base) Query(ctx context.Context, visibility Visibility, model any) *gorm.DB {
	return Scoped(b.DB(ctx).Model(model), visibility)
}

// Scoped applies the soft-delete filter to an existing statement.
func Scoped(db *gorm.DB, visibility Visibility) *gorm.DB {
	if visibility == IncludeDeleted {
		return db
	}
	return db.Where("deleted_at IS NULL")
}

// SoftDeleteWhere stamps deleted_at and updated_at on every live row of the
// statement's model matching the condition.
func SoftDeleteWhere(db *gorm.DB, at time.Time, query string, args ...any) error {
	return db.
		Where(query, args...).
		Where("deleted_at IS NULL").
		Updates(map[string]any{
			"deleted_at": at.UTC(),
			"updated_at": at.UTC(),
		}).Error
}

// SoftDelete stamps deleted_at on the rows matching id. Already deleted rows
// keep their original timestamp.
func (b Base) SoftDelete(ctx context.Context, model any, id int64, at time.Time) (int64, error) {
	res := b.DB(ctx).Model(model).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at.UTC())
	return res.RowsAffected, res.Error
}
