package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderengine/internal/repo"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	"github.com/angelmondragon/orderengine/pkg/enums"
	"github.com/angelmondragon/orderengine/pkg/pagination"
)

func TestRepositoryHidesSoftDeletedOrders(t *testing.T) {
	env := newTestEnv(t)
	r := NewRepository(env.db)
	ctx := context.Background()
	userID := int64(5)

	order := &models.Order{
		OrderNumber:       "ORD-20240309-00042",
		UserID:            &userID,
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CustomerEmail:     "ada@example.com",
		CustomerPhone:     "555-0100",
		Status:            enums.OrderStatusProcessing,
		Subtotal:          decimal.RequireFromString("10.00"),
		ShippingCost:      decimal.RequireFromString("5.00"),
		Tax:               decimal.RequireFromString("2.20"),
		TotalAmount:       decimal.RequireFromString("17.20"),
		Items: []models.OrderItem{{
			ProductID:   1,
			ProductName: "Beans",
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString("10.00"),
			LineTotal:   decimal.RequireFromString("10.00"),
		}},
	}
	if err := r.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Items[0].OrderID != order.ID {
		t.Fatalf("expected item linked to order %d, got %d", order.ID, order.Items[0].OrderID)
	}

	if _, err := repo.NewBase(env.db).SoftDelete(ctx, &models.Order{}, order.ID, time.Now()); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := r.FindOrder(ctx, order.ID, repo.ActiveOnly); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected deleted order hidden, got %v", err)
	}
	found, err := r.FindOrder(ctx, order.ID, repo.IncludeDeleted)
	if err != nil {
		t.Fatalf("find including deleted: %v", err)
	}
	if found.DeletedAt == nil || len(found.Items) != 1 {
		t.Fatalf("expected deleted order with items, got %+v", found)
	}
	if _, err := r.FindOrderByNumber(ctx, order.OrderNumber); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected deleted order hidden by number, got %v", err)
	}
	list, err := r.ListUserOrders(ctx, userID, pagination.Params{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(list.Orders) != 0 {
		t.Fatalf("expected no visible orders, got %d", len(list.Orders))
	}
	if err := r.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusShipped, time.Now()); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected status update on deleted order to miss, got %v", err)
	}
}

func TestRepositoryWithTxNilKeepsReceiver(t *testing.T) {
	r := NewRepository(nil)
	if r.WithTx(nil) != r {
		t.Fatalf("expected WithTx(nil) to return the same repository")
	}
}
