package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/cart"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/logger"
)

func TestGuestCartCleanupJobRemovesStaleCarts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := openCleanupDB(t, now)
	userID := int64(4)
	old := now.Add(-45 * 24 * time.Hour)

	staleGuest := seedCleanupCart(t, db, nil, ptrTo("stale"), true, old)
	freshGuest := seedCleanupCart(t, db, nil, ptrTo("fresh"), true, now.Add(-time.Hour))
	oldUserCart := seedCleanupCart(t, db, &userID, nil, true, old)
	mergedGuest := seedCleanupCart(t, db, nil, ptrTo("merged"), false, now.Add(-time.Hour))

	job := newCleanupJob(t, cart.NewRepository(db), 30*24*time.Hour, 1)
	job.now = func() time.Time { return now }

	sweep, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweep.Removed != 2 || sweep.Failed != 0 {
		t.Fatalf("expected 2 carts removed and none failed, got %+v", sweep)
	}

	for _, tc := range []struct {
		id      int64
		deleted bool
	}{
		{staleGuest, true},
		{freshGuest, false},
		{oldUserCart, false},
		{mergedGuest, true},
	} {
		var row models.Cart
		if err := db.First(&row, "id = ?", tc.id).Error; err != nil {
			t.Fatalf("load cart %d: %v", tc.id, err)
		}
		if (row.DeletedAt != nil) != tc.deleted {
			t.Fatalf("cart %d: expected deleted=%v, got %+v", tc.id, tc.deleted, row)
		}
	}
}

func TestGuestCartCleanupJobAggregatesFailures(t *testing.T) {
	repo := &fakeStaleCarts{
		carts: []models.Cart{{ID: 1}, {ID: 2}, {ID: 3}},
		fail:  map[int64]error{2: errors.New("lock timeout")},
	}
	job := newCleanupJob(t, repo, time.Hour, 10)

	sweep, err := job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if sweep.Removed != 2 || sweep.Failed != 1 {
		t.Fatalf("expected 2 removed and 1 failed, got %+v", sweep)
	}
	if got := len(multierr.Errors(err)); got != 1 {
		t.Fatalf("expected one failure, got %d: %v", got, err)
	}
	if len(repo.deleted) != 2 {
		t.Fatalf("expected remaining carts still removed, got %v", repo.deleted)
	}
}

func TestGuestCartCleanupJobStopsWithoutProgress(t *testing.T) {
	repo := &fakeStaleCarts{
		carts: []models.Cart{{ID: 1}, {ID: 2}},
		fail:  map[int64]error{1: errors.New("boom"), 2: errors.New("boom")},
	}
	job := newCleanupJob(t, repo, time.Hour, 2)

	sweep, err := job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected failures reported")
	}
	if sweep.Removed != 0 || sweep.Failed != 2 {
		t.Fatalf("expected nothing removed and 2 failed, got %+v", sweep)
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected a single pass when nothing can be removed, got %d", repo.listCalls)
	}
}

func newCleanupJob(t *testing.T, repo staleCartRepository, ttl time.Duration, batch int) *guestCartCleanupJob {
	t.Helper()
	jobIface, err := NewGuestCartCleanupJob(GuestCartCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Repository: repo,
		TTL:        ttl,
		BatchSize:  batch,
	})
	if err != nil {
		t.Fatalf("NewGuestCartCleanupJob: %v", err)
	}
	if jobIface.Name() != JobGuestCartCleanup {
		t.Fatalf("unexpected job name %q", jobIface.Name())
	}
	return jobIface.(*guestCartCleanupJob)
}

func openCleanupDB(t *testing.T, now time.Time) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCleanupCart(t *testing.T, db *gorm.DB, userID *int64, sessionID *string, active bool, updatedAt time.Time) int64 {
	t.Helper()
	row := &models.Cart{UserID: userID, SessionID: sessionID, IsActive: true}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	err := db.Model(&models.Cart{}).Where("id = ?", row.ID).
		UpdateColumns(map[string]any{"is_active": active, "updated_at": updatedAt.UTC()}).Error
	if err != nil {
		t.Fatalf("age cart: %v", err)
	}
	return row.ID
}

func ptrTo[T any](v T) *T {
	return &v
}

type fakeStaleCarts struct {
	carts     []models.Cart
	fail      map[int64]error
	deleted   []int64
	listCalls int
}

func (f *fakeStaleCarts) ListStaleGuestCarts(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	f.listCalls++
	var out []models.Cart
	for _, c := range f.carts {
		if c.DeletedAt == nil {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStaleCarts) SoftDeleteCart(ctx context.Context, cartID int64, at time.Time) (bool, error) {
	if err := f.fail[cartID]; err != nil {
		return false, err
	}
	for i := range f.carts {
		if f.carts[i].ID == cartID {
			f.carts[i].DeletedAt = &at
		}
	}
	f.deleted = append(f.deleted, cartID)
	return true, nil
}
