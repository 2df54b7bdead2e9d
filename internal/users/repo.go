package users

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/repo"
	"github.com/angelmondragon/orderengine/pkg/db/models"
)

// Repository exposes the read-only customer directory.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// Create inserts a directory entry. Used by seeding and tests.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.base.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser loads an active user by id. Missing or soft-deleted users yield
// gorm.ErrRecordNotFound.
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.base.Query(ctx, repo.ActiveOnly, &models.User{}).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail retrieves the active user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.base.Query(ctx, repo.ActiveOnly, &models.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
