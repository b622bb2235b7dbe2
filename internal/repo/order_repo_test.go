package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/whatsorder/go-orders-backend/internal/domain"
)

func orderModels() []any {
	return []any{&domain.Order{}, &domain.OrderItem{}}
}

func TestCreateOrder_PersistsOrderAndItems(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	ctx := context.Background()

	items := []domain.OrderItem{
		{ProductID: "p1", ProductName: "Apples", Quantity: 2, UnitPrice: 30, LineTotal: 60},
		{ProductID: "p2", ProductName: "Milk", Quantity: 1, UnitPrice: 25, LineTotal: 25},
	}
	o, err := CreateOrder(ctx, db, "whatsapp-bot", "919876543210", "Asha", 85, items)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.ID == "" || o.Status != domain.StatusPending || o.TotalAmount != 85 {
		t.Fatalf("unexpected order: %+v", o)
	}

	got, err := GetOrder(ctx, db, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	for _, it := range got.Items {
		if it.OrderID != o.ID || it.ID == "" {
			t.Fatalf("item not linked to order: %+v", it)
		}
	}
	if got.CustomerPhone != "919876543210" || got.CustomerName != "Asha" {
		t.Fatalf("customer fields lost: %+v", got)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	if _, err := GetOrder(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersPage_NewestFirst(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	ctx := context.Background()

	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{t1, t1.Add(time.Hour), t1.Add(2 * time.Hour)} {
		o := domain.Order{
			ID: []string{"o1", "o2", "o3"}[i], UserID: "u1",
			Status: domain.StatusPending, CreatedAt: at,
		}
		if err := db.Create(&o).Error; err != nil {
			t.Fatalf("seed %s: %v", o.ID, err)
		}
	}

	page, err := ListOrdersPage(ctx, db, 0, 2)
	if err != nil {
		t.Fatalf("ListOrdersPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "o3" || page[1].ID != "o2" {
		t.Fatalf("unexpected page: %#v", page)
	}

	total, err := CountOrders(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("CountOrders = (%d, %v), want 3", total, err)
	}
}

func TestMarkPhotoCaptured_SingleCombinedUpdate(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	ctx := context.Background()

	o, err := CreateOrder(ctx, db, "u1", "1555", "", 10, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	at := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	if err := MarkPhotoCaptured(ctx, db, o.ID, at, domain.StatusInProgress); err != nil {
		t.Fatalf("MarkPhotoCaptured: %v", err)
	}

	got, err := GetOrder(ctx, db, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !got.PhotoCaptured || got.PhotoCapturedAt == nil || !got.PhotoCapturedAt.Equal(at) {
		t.Fatalf("photo flag/timestamp not persisted: %+v", got)
	}
	// The status lands in the same update as the flag.
	if got.Status != domain.StatusInProgress {
		t.Fatalf("status = %q, want in_progress", got.Status)
	}
}

func TestMarkSignatureCaptured_StoresCustomerName(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	ctx := context.Background()

	o, err := CreateOrder(ctx, db, "u1", "1555", "", 10, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	at := time.Now().UTC().Truncate(time.Second)
	if err := MarkSignatureCaptured(ctx, db, o.ID, at, "R. Sharma", domain.StatusInProgress); err != nil {
		t.Fatalf("MarkSignatureCaptured: %v", err)
	}
	got, _ := GetOrder(ctx, db, o.ID)
	if !got.SignatureCaptured || got.CustomerName != "R. Sharma" {
		t.Fatalf("signature fields not persisted: %+v", got)
	}
}

func TestMarkKYCCompleted_StoresPayload(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	ctx := context.Background()

	o, err := CreateOrder(ctx, db, "u1", "1555", "", 10, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	at := time.Now().UTC()
	if err := MarkKYCCompleted(ctx, db, o.ID, at, `{"fullName":"Asha"}`, domain.StatusInProgress); err != nil {
		t.Fatalf("MarkKYCCompleted: %v", err)
	}
	got, _ := GetOrder(ctx, db, o.ID)
	if !got.KYCCompleted || got.KYCData == "" {
		t.Fatalf("kyc fields not persisted: %+v", got)
	}
}

func TestAgentActionWriters_MissingOrder(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	ctx := context.Background()
	at := time.Now().UTC()

	if err := MarkPhotoCaptured(ctx, db, "missing", at, domain.StatusInProgress); !errors.Is(err, ErrNotFound) {
		t.Fatalf("photo: expected ErrNotFound, got %v", err)
	}
	if err := UpdateOrderStatus(ctx, db, "missing", domain.StatusConfirmed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("status: expected ErrNotFound, got %v", err)
	}
}

func TestGetAgentActions_ReflectsPersistedFlags(t *testing.T) {
	db := newTestDB(t, orderModels()...)
	ctx := context.Background()

	o, err := CreateOrder(ctx, db, "u1", "1555", "", 10, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	a, err := GetAgentActions(ctx, db, o.ID)
	if err != nil || a.Any() {
		t.Fatalf("fresh order should have no actions: %+v err=%v", a, err)
	}

	at := time.Now().UTC()
	if err := MarkPhotoCaptured(ctx, db, o.ID, at, domain.StatusInProgress); err != nil {
		t.Fatalf("mark: %v", err)
	}
	a, err = GetAgentActions(ctx, db, o.ID)
	if err != nil {
		t.Fatalf("GetAgentActions: %v", err)
	}
	if !a.PhotoCaptured || a.SignatureCaptured || a.KYCCompleted {
		t.Fatalf("unexpected actions: %+v", a)
	}
}
