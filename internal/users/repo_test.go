package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/pkg/db/models"
)

func TestRepositoryGetUserSkipsDeleted(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:     "  Ada@Example.com ",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "555-0100",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}

	got, err := repo.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.FirstName != "Ada" || got.Phone != "555-0100" {
		t.Fatalf("unexpected user %+v", got)
	}
	if byEmail, err := repo.FindByEmail(ctx, "ADA@example.com"); err != nil || byEmail.ID != user.ID {
		t.Fatalf("find by email: %+v %v", byEmail, err)
	}

	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("deleted_at", time.Now()).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := repo.GetUser(ctx, user.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for deleted user, got %v", err)
	}
}

func TestFromModelNil(t *testing.T) {
	if dto := FromModel(nil); dto.ID != 0 {
		t.Fatalf("expected zero dto, got %+v", dto)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	return db
}
