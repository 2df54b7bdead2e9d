package product

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/repo"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/redis"
)

func TestServiceGetProduct(t *testing.T) {
	db := openTestDB(t)
	r := NewRepository(db)
	svc, err := NewService(r)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	product := seedProduct(t, r, "Grinder", "24.90", 3, true)

	got, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "Grinder" || !got.Price.Equal(decimal.RequireFromString("24.90")) || !got.InStock {
		t.Fatalf("unexpected product %+v", got)
	}

	if _, err := svc.GetProduct(ctx, 9999); pkgerrors.CodeOf(err) != pkgerrors.CodeProductNotFound {
		t.Fatalf("expected PRODUCT_NOT_FOUND, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, 0); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	if _, err := repo.NewBase(db).SoftDelete(ctx, &models.Product{}, product.ID, time.Now()); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := svc.GetProduct(ctx, product.ID); pkgerrors.CodeOf(err) != pkgerrors.CodeProductNotFound {
		t.Fatalf("expected deleted product hidden, got %v", err)
	}
}

func TestServiceListAvailableSkipsUnsellable(t *testing.T) {
	db := openTestDB(t)
	r := NewRepository(db)
	svc, err := NewService(r)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	seedProduct(t, r, "Beta", "1.00", 2, true)
	seedProduct(t, r, "Alpha", "1.00", 1, true)
	seedProduct(t, r, "Empty", "1.00", 0, true)
	seedProduct(t, r, "Hidden", "1.00", 5, false)

	list, err := svc.ListAvailable(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Alpha" || list[1].Name != "Beta" {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestCachedReaderServesFromCache(t *testing.T) {
	inner := &countingReader{products: map[int64]ProductDTO{
		7: {ID: 7, Name: "Scale", Price: decimal.RequireFromString("15.00"), StockQuantity: 4, IsAvailable: true, InStock: true},
	}}
	store := newFakeCache()
	cached := newCachedReader(t, inner, store)
	ctx := context.Background()

	for range 3 {
		got, err := cached.GetProduct(ctx, 7)
		if err != nil {
			t.Fatalf("get product: %v", err)
		}
		if got.Name != "Scale" || !got.Price.Equal(decimal.RequireFromString("15.00")) {
			t.Fatalf("unexpected product %+v", got)
		}
	}
	if inner.getCalls != 1 {
		t.Fatalf("expected one backend read, got %d", inner.getCalls)
	}
	if _, ok := store.data["shop:catalog:product:7"]; !ok {
		t.Fatalf("expected product cached under catalog key, got %v", store.keys())
	}

	if _, err := cached.ListAvailable(ctx, 10); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := cached.ListAvailable(ctx, 10); err != nil {
		t.Fatalf("list: %v", err)
	}
	if inner.listCalls != 1 {
		t.Fatalf("expected one backend listing, got %d", inner.listCalls)
	}
}

func TestCachedReaderInvalidateProducts(t *testing.T) {
	inner := &countingReader{products: map[int64]ProductDTO{
		1:  {ID: 1, Name: "One"},
		2:  {ID: 2, Name: "Two"},
		10: {ID: 10, Name: "Ten"},
	}}
	store := newFakeCache()
	cached := newCachedReader(t, inner, store)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 10} {
		if _, err := cached.GetProduct(ctx, id); err != nil {
			t.Fatalf("warm %d: %v", id, err)
		}
	}
	if _, err := cached.ListAvailable(ctx, 5); err != nil {
		t.Fatalf("warm list: %v", err)
	}
	if _, err := cached.ListAvailable(ctx, 50); err != nil {
		t.Fatalf("warm list: %v", err)
	}

	if err := cached.InvalidateProducts(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	for _, key := range store.keys() {
		if key == "shop:catalog:product:1" || strings.HasPrefix(key, "shop:catalog:list:") {
			t.Fatalf("expected %s evicted", key)
		}
	}
	if _, ok := store.data["shop:catalog:product:10"]; !ok {
		t.Fatalf("unrelated product evicted")
	}

	if _, err := cached.GetProduct(ctx, 1); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if inner.getCalls != 4 {
		t.Fatalf("expected evicted product to be reloaded, got %d backend reads", inner.getCalls)
	}
}

func TestCachedReaderFallsBackWhenCacheFails(t *testing.T) {
	inner := &countingReader{products: map[int64]ProductDTO{3: {ID: 3, Name: "Tin"}}}
	store := newFakeCache()
	store.failGet = errors.New("connection refused")
	store.failSet = errors.New("connection refused")
	cached := newCachedReader(t, inner, store)

	got, err := cached.GetProduct(context.Background(), 3)
	if err != nil || got.Name != "Tin" {
		t.Fatalf("expected backend read, got %+v %v", got, err)
	}

	store.failGet = nil
	store.failSet = nil
	store.data["shop:catalog:product:3"] = "{not json"
	got, err = cached.GetProduct(context.Background(), 3)
	if err != nil || got.Name != "Tin" {
		t.Fatalf("expected corrupt entry to be ignored, got %+v %v", got, err)
	}

	if _, err := cached.GetProduct(context.Background(), 404); pkgerrors.CodeOf(err) != pkgerrors.CodeProductNotFound {
		t.Fatalf("expected backend error passed through, got %v", err)
	}
	if _, ok := store.data["shop:catalog:product:404"]; ok {
		t.Fatalf("misses must not be cached")
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, r *Repository, name, price string, qty int, available bool) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:           "SKU-" + uuid.NewString(),
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: qty,
		IsAvailable:   available,
	}
	if err := r.Create(context.Background(), product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func newCachedReader(t *testing.T, inner Reader, store *fakeCache) *CachedReader {
	t.Helper()
	cached, err := NewCachedReader(CachedReaderParams{
		Reader:    inner,
		Cache:     store,
		Logger:    logger.New(logger.Options{ServiceName: "products-test", Output: io.Discard}),
		KeyPrefix: "shop:",
		TTL:       time.Minute,
	})
	if err != nil {
		t.Fatalf("new cached reader: %v", err)
	}
	return cached
}

type countingReader struct {
	products  map[int64]ProductDTO
	getCalls  int
	listCalls int
}

func (r *countingReader) GetProduct(ctx context.Context, id int64) (*ProductDTO, error) {
	r.getCalls++
	product, ok := r.products[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeProductNotFound, "product %d not found", id)
	}
	return &product, nil
}

func (r *countingReader) ListAvailable(ctx context.Context, limit int) ([]ProductDTO, error) {
	r.listCalls++
	out := make([]ProductDTO, 0, len(r.products))
	for _, product := range r.products {
		out = append(out, product)
	}
	return out, nil
}

type fakeCache struct {
	data    map[string]string
	failGet error
	failSet error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	if f.failGet != nil {
		return "", f.failGet
	}
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if f.failSet != nil {
		return f.failSet
	}
	f.data[key] = value.(string)
	return nil
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	for key := range f.data {
		if strings.HasPrefix(key, prefix) {
			delete(f.data, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeCache) keys() []string {
	out := make([]string, 0, len(f.data))
	for key := range f.data {
		out = append(out, key)
	}
	return out
}
