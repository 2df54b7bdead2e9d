package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/logger"
)

const (
	defaultGuestCartTTL   = 30 * 24 * time.Hour
	defaultCleanupBatch   = 200
	maxCleanupBatchesTick = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleCartRepository interface {
	ListStaleGuestCarts(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
	SoftDeleteCart(ctx context.Context, cartID int64, at time.Time) (bool, error)
}

// GuestCartCleanupJobParams configure the guest cart sweeper.
type GuestCartCleanupJobParams struct {
	Logger     *logger.Logger
	Repository staleCartRepository
	TTL        time.Duration
	BatchSize  int
}

// NewGuestCartCleanupJob builds the job that soft-deletes abandoned guest
// carts and carts already deactivated by a merge.
func NewGuestCartCleanupJob(params GuestCartCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultGuestCartTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCleanupBatch
	}
	return &guestCartCleanupJob{
		logg:  params.Logger,
		repo:  params.Repository,
		ttl:   ttl,
		batch: batch,
		now:   time.Now,
	}, nil
}

type guestCartCleanupJob struct {
	logg  *logger.Logger
	repo  staleCartRepository
	ttl   time.Duration
	batch int
	now   func() time.Time
}

func (j *guestCartCleanupJob) Name() string { return JobGuestCartCleanup }

// Run sweeps in batches. A batch in which nothing could be removed ends the
// run so failing carts are not retried in a tight loop.
func (j *guestCartCleanupJob) Run(ctx context.Context) (Sweep, error) {
	now := j.now().UTC()
	cutoff := now.Add(-j.ttl)

	var (
		errs  error
		sweep Sweep
	)
	for range maxCleanupBatchesTick {
		carts, err := j.repo.ListStaleGuestCarts(ctx, cutoff, j.batch)
		if err != nil {
			return sweep, multierr.Append(errs, fmt.Errorf("list stale carts: %w", err))
		}
		var progress int64
		for _, cart := range carts {
			ok, err := j.repo.SoftDeleteCart(ctx, cart.ID, now)
			if err != nil {
				sweep.Failed++
				errs = multierr.Append(errs, fmt.Errorf("cart %d: %w", cart.ID, err))
				continue
			}
			if ok {
				progress++
			}
		}
		sweep.Removed += progress
		if len(carts) < j.batch || progress == 0 {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_removed": sweep.Removed,
		"carts_failed":  sweep.Failed,
	})
	j.logg.Info(logCtx, "guest cart cleanup complete")
	return sweep, errs
}
