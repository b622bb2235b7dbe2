package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whatsorder/go-orders-backend/internal/config"
	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/repo"
	"github.com/whatsorder/go-orders-backend/internal/session"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		EventTTL:    time.Hour,
		JWT:         config.JWTConfig{Secret: "router-test-secret", TokenTTL: time.Hour},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func testDeps() Deps {
	return Deps{
		Sessions: session.NewMemory(),
		Log:      zerolog.Nop(),
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testDeps(), testConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (DELETE /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	RegisterRoutes(r, newTestDB(t), testDeps(), cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_AuthGatedEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testDeps(), testConfig())

	// Order listing requires a token.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /api/v1/orders without token = %d, want 401", w.Code)
	}

	// Catalog read does not.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/products = %d, want 200", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses otel + logging + ratelimit + security headers.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	RegisterRoutes(r, newTestDB(t), testDeps(), cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func Test_repoShims_Proxy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Catalog shim roundtrip.
	pShim := productRepoShim{}
	p, err := pShim.CreateProduct(ctx, db, "Apples", "fresh", 30, 100)
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if got, err := pShim.FindProductByName(ctx, db, "apple"); err != nil || got.ID != p.ID {
		t.Fatalf("FindProductByName: got=%+v err=%v", got, err)
	}

	// Order shim roundtrip: create, mark photo, re-read flags.
	oShim := orderRepoShim{}
	o, err := oShim.CreateOrder(ctx, db, "u1", "919876543210", "Asha", 60, []domain.OrderItem{
		{ProductID: p.ID, ProductName: p.Name, Quantity: 2, UnitPrice: 30, LineTotal: 60},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := oShim.MarkPhotoCaptured(ctx, db, o.ID, time.Now().UTC(), domain.StatusInProgress); err != nil {
		t.Fatalf("MarkPhotoCaptured: %v", err)
	}
	actions, err := oShim.GetAgentActions(ctx, db, o.ID)
	if err != nil || !actions.PhotoCaptured {
		t.Fatalf("GetAgentActions: actions=%+v err=%v", actions, err)
	}
	if n, err := oShim.CountOrders(ctx, db); err != nil || n != 1 {
		t.Fatalf("CountOrders: n=%d err=%v", n, err)
	}

	// Account shim roundtrip.
	aShim := accountRepoShim{}
	if _, err := aShim.CreateUser(ctx, db, "Agent", "agent@example.com", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u, err := aShim.GetUserByEmail(ctx, db, "agent@example.com"); err != nil || u.Name != "Agent" {
		t.Fatalf("GetUserByEmail: u=%+v err=%v", u, err)
	}

	// Archive shim.
	if err := (messageArchiveShim{}).SaveInboundMessage(ctx, db, "919876543210", "hi"); err != nil {
		t.Fatalf("SaveInboundMessage: %v", err)
	}
}

func Test_eventDeduper_FirstDeliveryWins(t *testing.T) {
	db := newTestDB(t)
	d := eventDeduper{db: db, ttl: time.Hour}
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "whatsapp", "wamid.1")
	if err != nil || !first {
		t.Fatalf("first delivery: first=%v err=%v", first, err)
	}
	again, err := d.MarkProcessed(ctx, "whatsapp", "wamid.1")
	if err != nil || again {
		t.Fatalf("redelivery: first=%v err=%v", again, err)
	}
	// Same id under a different source is a distinct event.
	other, err := d.MarkProcessed(ctx, "sms", "wamid.1")
	if err != nil || !other {
		t.Fatalf("other source: first=%v err=%v", other, err)
	}
}
