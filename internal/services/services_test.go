package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whatsorder/go-orders-backend/internal/crm"
	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/repo"
)

// newTestDB opens a throwaway SQLite database under t.TempDir and migrates
// the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	models := []any{
		&domain.User{}, &domain.Product{}, &domain.Order{},
		&domain.OrderItem{}, &domain.InboundMessage{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// orderRepoShim adapts the repo free functions to the OrderRepo interface.
type orderRepoShim struct{}

func (orderRepoShim) CreateOrder(ctx context.Context, db *gorm.DB, userID, customerPhone, customerName string, total float64, items []domain.OrderItem) (*domain.Order, error) {
	return repo.CreateOrder(ctx, db, userID, customerPhone, customerName, total, items)
}
func (orderRepoShim) GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	return repo.GetOrder(ctx, db, id)
}
func (orderRepoShim) CountOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountOrders(ctx, db)
}
func (orderRepoShim) ListOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	return repo.ListOrdersPage(ctx, db, offset, limit)
}
func (orderRepoShim) GetAgentActions(ctx context.Context, db *gorm.DB, id string) (domain.AgentActions, error) {
	return repo.GetAgentActions(ctx, db, id)
}
func (orderRepoShim) MarkPhotoCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, status domain.Status) error {
	return repo.MarkPhotoCaptured(ctx, db, id, at, status)
}
func (orderRepoShim) MarkSignatureCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, customerName string, status domain.Status) error {
	return repo.MarkSignatureCaptured(ctx, db, id, at, customerName, status)
}
func (orderRepoShim) MarkKYCCompleted(ctx context.Context, db *gorm.DB, id string, at time.Time, kycJSON string, status domain.Status) error {
	return repo.MarkKYCCompleted(ctx, db, id, at, kycJSON, status)
}
func (orderRepoShim) UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, status domain.Status) error {
	return repo.UpdateOrderStatus(ctx, db, id, status)
}

// productRepoShim adapts the repo free functions to the ProductRepo
// interface.
type productRepoShim struct{}

func (productRepoShim) CreateProduct(ctx context.Context, db *gorm.DB, name, description string, price float64, stock int) (*domain.Product, error) {
	return repo.CreateProduct(ctx, db, name, description, price, stock)
}
func (productRepoShim) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db)
}
func (productRepoShim) GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	return repo.GetProduct(ctx, db, id)
}
func (productRepoShim) FindProductByName(ctx context.Context, db *gorm.DB, name string) (*domain.Product, error) {
	return repo.FindProductByName(ctx, db, name)
}

// messageArchiveShim adapts repo.SaveInboundMessage to the MessageArchive
// interface.
type messageArchiveShim struct{}

func (messageArchiveShim) SaveInboundMessage(ctx context.Context, db *gorm.DB, userName, message string) error {
	return repo.SaveInboundMessage(ctx, db, userName, message)
}

// fakeEffects records dispatched side effects.
type fakeEffects struct {
	created []crm.OrderSummary
	changed []crm.OrderSummary
}

func (f *fakeEffects) OrderCreated(o crm.OrderSummary)  { f.created = append(f.created, o) }
func (f *fakeEffects) StatusChanged(o crm.OrderSummary) { f.changed = append(f.changed, o) }

// fakeNotifier records customer notifications.
type fakeNotifier struct {
	photo     []string
	delivered []string
	kyc       []string
	status    []string
}

func (f *fakeNotifier) PhotoCaptured(_ context.Context, _, orderID string) {
	f.photo = append(f.photo, orderID)
}
func (f *fakeNotifier) DeliveryCompleted(_ context.Context, _, orderID, _ string) {
	f.delivered = append(f.delivered, orderID)
}
func (f *fakeNotifier) KYCCompleted(_ context.Context, _, orderID, _ string) {
	f.kyc = append(f.kyc, orderID)
}
func (f *fakeNotifier) StatusChanged(_ context.Context, _, orderID, _, newStatus string) {
	f.status = append(f.status, orderID+":"+newStatus)
}

// seedCatalog inserts the standard test products and returns them by name.
func seedCatalog(t *testing.T, db *gorm.DB) map[string]*domain.Product {
	t.Helper()
	out := map[string]*domain.Product{}
	for _, p := range []struct {
		name  string
		price float64
	}{
		{"Apples", 30}, {"Milk", 25}, {"Bananas", 40}, {"Rice", 60},
	} {
		created, err := repo.CreateProduct(context.Background(), db, p.name, "", p.price, 100)
		if err != nil {
			t.Fatalf("seed %s: %v", p.name, err)
		}
		out[p.name] = created
	}
	return out
}
