package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	"github.com/angelmondragon/orderengine/pkg/logger"
)

func TestEmitWritesEnvelopeInTransaction(t *testing.T) {
	db := newTestDB(t)
	buf := &bytes.Buffer{}
	repo := NewRepository(db)
	svc := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: buf}))
	userID := int64(12)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   99,
			Actor:         &ActorRef{UserID: &userID},
			Data:          map[string]any{"order_number": "ORD-20260101-00001"},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	rows, err := repo.ListByAggregate(nil, enums.AggregateOrder, 99)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	envelope, err := DecodeEnvelope(rows[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.EventID != rows[0].EventID || envelope.Version != 1 {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	var data map[string]string
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["order_number"] != "ORD-20260101-00001" {
		t.Fatalf("unexpected data %v", data)
	}
	if !bytes.Contains(buf.Bytes(), []byte("outbox event queued")) {
		t.Fatalf("expected queue log line, got %s", buf.String())
	}
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	_ = db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventCartMerged,
			AggregateType: enums.AggregateCart,
			AggregateID:   5,
			Data:          map[string]any{},
		}); err != nil {
			t.Fatalf("emit: %v", err)
		}
		return gorm.ErrInvalidTransaction
	})

	rows, err := repo.ListByAggregate(nil, enums.AggregateCart, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rollback to discard event, got %d rows", len(rows))
	}
}

func TestEmitValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)

	if err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder}); err == nil {
		t.Fatal("expected transaction required error")
	}
	if err := svc.Emit(context.Background(), db, DomainEvent{EventType: "bogus", AggregateType: enums.AggregateOrder}); err == nil {
		t.Fatal("expected unknown event type error")
	}
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := svc.Emit(ctx, db, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: i, Data: map[string]int64{"order_id": i}}); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	if err := repo.MarkPublishedTx(db, rows[0].ID); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := repo.MarkFailedTx(db, rows[1].ID, gorm.ErrInvalidData); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkTerminalTx(db, rows[2].ID, gorm.ErrInvalidData, 3); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}

	remaining, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	if err != nil {
		t.Fatalf("fetch remaining: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != rows[1].ID {
		t.Fatalf("expected only the retryable row, got %+v", remaining)
	}
	if remaining[0].AttemptCount != 1 || remaining[0].LastError == nil {
		t.Fatalf("expected failure bookkeeping, got %+v", remaining[0])
	}
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		if err := svc.Emit(ctx, db, DomainEvent{EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder, AggregateID: i, Data: map[string]int64{"order_id": i}}); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}
	rows, err := repo.FetchUnpublishedForPublish(db, 10, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)

	// published long ago, published recently, parked long ago, pending long ago
	mustUpdate(t, db, rows[0].ID, map[string]any{"published_at": old, "created_at": old})
	mustUpdate(t, db, rows[1].ID, map[string]any{"published_at": time.Now().UTC()})
	mustUpdate(t, db, rows[2].ID, map[string]any{"attempt_count": 10, "created_at": old})
	mustUpdate(t, db, rows[3].ID, map[string]any{"attempt_count": 2, "created_at": old})

	deleted, err := repo.DeletePublishedBefore(ctx, nil, cutoff, 10)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 rows removed, got %d", deleted)
	}
	var left []models.OutboxEvent
	if err := db.Order("id ASC").Find(&left).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 2 || left[0].ID != rows[1].ID || left[1].ID != rows[3].ID {
		t.Fatalf("unexpected surviving rows %+v", left)
	}
}

func mustUpdate(t *testing.T, db *gorm.DB, id int64, values map[string]any) {
	t.Helper()
	if err := db.Model(&models.OutboxEvent{}).Where("id = ?", id).UpdateColumns(values).Error; err != nil {
		t.Fatalf("update %d: %v", id, err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
