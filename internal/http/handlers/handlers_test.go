package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

//
// Function-field fakes for the service interfaces.
//

type fakeOrderSvc struct {
	createFn    func(ctx context.Context, userID, phone, name string, items []services.ItemInput) (*domain.Order, error)
	getFn       func(ctx context.Context, id string) (*domain.Order, error)
	listFn      func(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error)
	photoFn     func(ctx context.Context, orderID, photoData string) (*domain.Order, error)
	signatureFn func(ctx context.Context, orderID, signatureData, customerName string) (*domain.Order, error)
	kycFn       func(ctx context.Context, orderID, kycJSON string) (*domain.Order, error)
	statusFn    func(ctx context.Context, orderID string, status domain.Status) (*domain.Order, error)
}

func (f *fakeOrderSvc) Create(ctx context.Context, userID, phone, name string, items []services.ItemInput) (*domain.Order, error) {
	return f.createFn(ctx, userID, phone, name, items)
}
func (f *fakeOrderSvc) Get(ctx context.Context, id string) (*domain.Order, error) {
	return f.getFn(ctx, id)
}
func (f *fakeOrderSvc) List(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error) {
	return f.listFn(ctx, page, pageSize)
}
func (f *fakeOrderSvc) RecordPhoto(ctx context.Context, orderID, photoData string) (*domain.Order, error) {
	return f.photoFn(ctx, orderID, photoData)
}
func (f *fakeOrderSvc) RecordSignature(ctx context.Context, orderID, signatureData, customerName string) (*domain.Order, error) {
	return f.signatureFn(ctx, orderID, signatureData, customerName)
}
func (f *fakeOrderSvc) RecordKYC(ctx context.Context, orderID, kycJSON string) (*domain.Order, error) {
	return f.kycFn(ctx, orderID, kycJSON)
}
func (f *fakeOrderSvc) UpdateStatus(ctx context.Context, orderID string, status domain.Status) (*domain.Order, error) {
	return f.statusFn(ctx, orderID, status)
}

type fakeProductSvc struct {
	createFn func(ctx context.Context, name, description string, price float64, stock int) (*domain.Product, error)
	listFn   func(ctx context.Context) ([]domain.Product, error)
	getFn    func(ctx context.Context, id string) (*domain.Product, error)
}

func (f *fakeProductSvc) Create(ctx context.Context, name, description string, price float64, stock int) (*domain.Product, error) {
	return f.createFn(ctx, name, description, price, stock)
}
func (f *fakeProductSvc) List(ctx context.Context) ([]domain.Product, error) { return f.listFn(ctx) }
func (f *fakeProductSvc) Get(ctx context.Context, id string) (*domain.Product, error) {
	return f.getFn(ctx, id)
}

type fakeAccountSvc struct {
	registerFn func(ctx context.Context, name, email, password string) (*domain.User, string, error)
	loginFn    func(ctx context.Context, email, password string) (*domain.User, string, error)
}

func (f *fakeAccountSvc) Register(ctx context.Context, name, email, password string) (*domain.User, string, error) {
	return f.registerFn(ctx, name, email, password)
}
func (f *fakeAccountSvc) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	return f.loginFn(ctx, email, password)
}

type fakeConvoSvc struct {
	calls []convoCall
	reply string
}

type convoCall struct {
	from, profileName, text string
}

func (f *fakeConvoSvc) HandleMessage(ctx context.Context, from, profileName, text string) string {
	f.calls = append(f.calls, convoCall{from, profileName, text})
	return f.reply
}

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) MarkProcessed(ctx context.Context, source, eventID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := source + "/" + eventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

//
// Test harness
//

type fixture struct {
	orders   *fakeOrderSvc
	products *fakeProductSvc
	accounts *fakeAccountSvc
	convo    *fakeConvoSvc
	dedupe   *fakeDeduper
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		orders:   &fakeOrderSvc{},
		products: &fakeProductSvc{},
		accounts: &fakeAccountSvc{},
		convo:    &fakeConvoSvc{reply: "ok"},
		dedupe:   &fakeDeduper{},
	}
	h := New(f.orders, f.products, f.accounts, f.convo, f.dedupe, "vtok")

	r := gin.New()
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", h.ReceiveWebhook)
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)
	r.GET("/api/v1/products", h.ListProducts)
	r.GET("/api/v1/products/:id", h.GetProduct)
	r.POST("/api/v1/products", h.CreateProduct)
	r.POST("/api/v1/orders", h.CreateOrder)
	r.GET("/api/v1/orders", h.ListOrders)
	r.GET("/api/v1/orders/:id", h.GetOrder)
	r.POST("/api/v1/orders/:id/photo", h.CapturePhoto)
	r.POST("/api/v1/orders/:id/signature", h.CaptureSignature)
	r.POST("/api/v1/orders/:id/kyc", h.CaptureKYC)
	r.PATCH("/api/v1/orders/:id/status", h.UpdateStatus)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:          "ord-1",
		UserID:      services.ConversationUserID,
		TotalAmount: 145,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		Items: []domain.OrderItem{
			{ID: "it-1", OrderID: "ord-1", ProductID: "p-1", ProductName: "Bananas", Quantity: 3, UnitPrice: 40, LineTotal: 120},
			{ID: "it-2", OrderID: "ord-1", ProductID: "p-2", ProductName: "Milk", Quantity: 1, UnitPrice: 25, LineTotal: 25},
		},
	}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}
