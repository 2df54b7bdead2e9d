package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderengine/api/middleware"
	cartsvc "github.com/angelmondragon/orderengine/internal/cart"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
)

type stubCartService struct {
	cart        *models.Cart
	merge       *cartsvc.MergeResult
	err         error
	lastOwner   cartsvc.Owner
	lastProduct int64
	lastQty     int
	mergeArgs   [2]any
}

func (s *stubCartService) MergeGuestCart(ctx context.Context, sessionID string, userID int64) (*cartsvc.MergeResult, error) {
	s.mergeArgs = [2]any{sessionID, userID}
	return s.merge, s.err
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, owner cartsvc.Owner) (*models.Cart, error) {
	s.lastOwner = owner
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, owner cartsvc.Owner, productID int64, qty int) (*models.Cart, error) {
	s.lastOwner = owner
	s.lastProduct = productID
	s.lastQty = qty
	return s.cart, s.err
}

func (s *stubCartService) GetCart(ctx context.Context, owner cartsvc.Owner) (*models.Cart, error) {
	s.lastOwner = owner
	return s.cart, s.err
}

func sampleCart() *models.Cart {
	userID := int64(4)
	return &models.Cart{
		ID:     11,
		UserID: &userID,
		Items: []models.CartItem{
			{ID: 1, ProductID: 3, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ID: 2, ProductID: 5, Quantity: 1, UnitPrice: decimal.RequireFromString("4.50")},
		},
	}
}

func TestCartFetchComputesSubtotal(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartFetch(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), 4))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Subtotal.Equal(decimal.RequireFromString("24.50")) {
		t.Fatalf("unexpected subtotal %s", envelope.Data.Subtotal)
	}
	if svc.lastOwner.UserID == nil || svc.lastOwner.SessionID != nil {
		t.Fatalf("expected user owner, got %+v", svc.lastOwner)
	}
}

func TestCartFetchUserWinsOverSession(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	ctx := middleware.WithSessionID(req.Context(), "sess-1")
	ctx = middleware.WithUserID(ctx, 4)
	CartFetch(svc, nil).ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	if svc.lastOwner.SessionID != nil {
		t.Fatalf("signed-in caller must resolve to the user cart")
	}
}

func TestCartFetchAnonymous(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemGuest(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartAddItem(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":3,"quantity":2}`))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastOwner.SessionID == nil || *svc.lastOwner.SessionID != "sess-1" {
		t.Fatalf("expected session owner")
	}
	if svc.lastProduct != 3 || svc.lastQty != 2 {
		t.Fatalf("unexpected add args %d x%d", svc.lastProduct, svc.lastQty)
	}
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "only 1 left")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":3,"quantity":9}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), 4))
	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartMerge(t *testing.T) {
	t.Run("requires session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), 4))
		resp := httptest.NewRecorder()
		CartMerge(&stubCartService{}, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", resp.Code)
		}
	})

	t.Run("requires user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
		req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-1"))
		resp := httptest.NewRecorder()
		CartMerge(&stubCartService{}, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", resp.Code)
		}
	})

	t.Run("reports adjustments", func(t *testing.T) {
		svc := &stubCartService{merge: &cartsvc.MergeResult{
			Cart: sampleCart(),
			Mode: enums.CartMergeModeMerged,
			Adjustments: []cartsvc.QuantityAdjustment{
				{ProductID: 3, Requested: 5, Clamped: 2},
			},
		}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
		ctx := middleware.WithSessionID(req.Context(), "sess-1")
		ctx = middleware.WithUserID(ctx, 4)
		resp := httptest.NewRecorder()
		CartMerge(svc, nil).ServeHTTP(resp, req.WithContext(ctx))

		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
		if svc.mergeArgs[0] != "sess-1" || svc.mergeArgs[1] != int64(4) {
			t.Fatalf("unexpected merge args %v", svc.mergeArgs)
		}
		var envelope struct {
			Data mergeResponse `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if envelope.Data.Mode != enums.CartMergeModeMerged || len(envelope.Data.Adjustments) != 1 {
			t.Fatalf("unexpected merge response %+v", envelope.Data)
		}
	})
}
