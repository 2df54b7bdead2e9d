package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/pkg/config"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/outbox"
	"github.com/angelmondragon/orderengine/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderCreatedRow(t, 1, "event-one", 0),
			orderCreatedRow(t, 2, "event-two", 0),
		},
	}
	streams := &fakeStreams{errs: []error{errors.New("connection reset"), nil}}
	service := newTestService(t, repo, streams, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != 1 {
		t.Fatalf("expected row 1 marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != 2 {
		t.Fatalf("expected row 2 published, got %v", repo.published)
	}
}

func TestServiceProcessBatchWritesStreamEntry(t *testing.T) {
	row := orderCreatedRow(t, 7, "evt-7", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	streams := &fakeStreams{}
	service := newTestService(t, repo, streams, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(streams.entries) != 1 {
		t.Fatalf("expected one stream entry, got %d", len(streams.entries))
	}
	entry := streams.entries[0]
	if entry.stream != "shop:events:orders" {
		t.Fatalf("unexpected stream %q", entry.stream)
	}
	if entry.values["event_id"] != "evt-7" || entry.values["event_type"] != "order_created" {
		t.Fatalf("unexpected entry values %+v", entry.values)
	}
	if entry.values["aggregate_id"] != "70" {
		t.Fatalf("expected aggregate id 70, got %v", entry.values["aggregate_id"])
	}
	if entry.values["payload"] != row.Payload {
		t.Fatalf("payload must be forwarded untouched")
	}
}

func TestServiceProcessBatchParksUnknownEvents(t *testing.T) {
	row := orderCreatedRow(t, 3, "evt-3", 0)
	row.EventType = enums.OutboxEventType("inventory_synced")
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	streams := &fakeStreams{}
	service := newTestService(t, repo, streams, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(streams.entries) != 0 {
		t.Fatalf("unknown events must not reach a stream")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != 3 {
		t.Fatalf("expected row parked as terminal, got %v", repo.terminal)
	}
}

func TestServiceProcessBatchParksAfterMaxAttempts(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderCreatedRow(t, 4, "evt-4", 1)}}
	streams := &fakeStreams{errs: []error{errors.New("timeout")}}
	service := newTestService(t, repo, streams, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal rows must not also be marked failed")
	}
}

func TestServiceProcessBatchPropagatesBookkeepingErrors(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{orderCreatedRow(t, 5, "evt-5", 0)},
		publishErr: errors.New("deadlock detected"),
	}
	service := newTestService(t, repo, &fakeStreams{}, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected mark published error to abort the batch")
	}
}

func TestServiceProcessBatchIdle(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeStreams{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle batch, got processed=%v err=%v", processed, err)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap %s, got %s", maxBackoff, got)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
	if _, err := NewService(ServiceParams{Config: &config.Config{}, Logger: logg, DB: &fakeDB{}}); err == nil {
		t.Fatalf("expected missing stream client error")
	}
}

func newTestService(t *testing.T, repo outboxRepository, streams streamClient, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	eventRegistry, err := registry.NewEventRegistry("shop")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: outboxCfg},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         &fakeDB{},
		Streams:    streams,
		Repository: repo,
		Registry:   eventRegistry,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderCreatedRow(tb testing.TB, id int64, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(`{"order_id":70,"order_number":"ORD-20260301-0001"}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventID:       eventID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   id * 10,
		Payload:       string(payload),
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []int64
	failed     []int64
	terminal   []int64
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id int64) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id int64, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id int64, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type streamEntry struct {
	stream string
	values map[string]any
}

type fakeStreams struct {
	errs    []error
	entries []streamEntry
}

func (f *fakeStreams) Ping(context.Context) error {
	return nil
}

func (f *fakeStreams) XAdd(_ context.Context, stream string, values map[string]any) (string, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	f.entries = append(f.entries, streamEntry{stream: stream, values: values})
	return "1-0", nil
}
