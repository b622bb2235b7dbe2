// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/config"
	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/http/handlers"
	"github.com/whatsorder/go-orders-backend/internal/http/middleware"
	"github.com/whatsorder/go-orders-backend/internal/messaging"
	"github.com/whatsorder/go-orders-backend/internal/repo"
	"github.com/whatsorder/go-orders-backend/internal/services"
	"github.com/whatsorder/go-orders-backend/internal/session"
)

// Agent action endpoints carry base64 photo and signature payloads, so the
// body cap is far above a typical JSON API's.
const maxBodyBytes = 50 << 20

// orderRepoShim adapts the repository free functions to the
// services.OrderRepo interface expected by the OrderService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type orderRepoShim struct{}

// CreateOrder proxies repo.CreateOrder.
func (orderRepoShim) CreateOrder(ctx context.Context, db *gorm.DB, userID, customerPhone, customerName string, total float64, items []domain.OrderItem) (*domain.Order, error) {
	return repo.CreateOrder(ctx, db, userID, customerPhone, customerName, total, items)
}

// GetOrder proxies repo.GetOrder.
func (orderRepoShim) GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	return repo.GetOrder(ctx, db, id)
}

// CountOrders proxies repo.CountOrders (pagination support).
func (orderRepoShim) CountOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountOrders(ctx, db)
}

// ListOrdersPage proxies repo.ListOrdersPage (pagination support).
func (orderRepoShim) ListOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	return repo.ListOrdersPage(ctx, db, offset, limit)
}

// GetAgentActions proxies repo.GetAgentActions.
func (orderRepoShim) GetAgentActions(ctx context.Context, db *gorm.DB, id string) (domain.AgentActions, error) {
	return repo.GetAgentActions(ctx, db, id)
}

// MarkPhotoCaptured proxies repo.MarkPhotoCaptured.
func (orderRepoShim) MarkPhotoCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, status domain.Status) error {
	return repo.MarkPhotoCaptured(ctx, db, id, at, status)
}

// MarkSignatureCaptured proxies repo.MarkSignatureCaptured.
func (orderRepoShim) MarkSignatureCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, customerName string, status domain.Status) error {
	return repo.MarkSignatureCaptured(ctx, db, id, at, customerName, status)
}

// MarkKYCCompleted proxies repo.MarkKYCCompleted.
func (orderRepoShim) MarkKYCCompleted(ctx context.Context, db *gorm.DB, id string, at time.Time, kycJSON string, status domain.Status) error {
	return repo.MarkKYCCompleted(ctx, db, id, at, kycJSON, status)
}

// UpdateOrderStatus proxies repo.UpdateOrderStatus.
func (orderRepoShim) UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, status domain.Status) error {
	return repo.UpdateOrderStatus(ctx, db, id, status)
}

// productRepoShim adapts the catalog repository free functions to
// services.ProductRepo.
type productRepoShim struct{}

// CreateProduct proxies repo.CreateProduct.
func (productRepoShim) CreateProduct(ctx context.Context, db *gorm.DB, name, description string, price float64, stock int) (*domain.Product, error) {
	return repo.CreateProduct(ctx, db, name, description, price, stock)
}

// ListProducts proxies repo.ListProducts.
func (productRepoShim) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db)
}

// GetProduct proxies repo.GetProduct.
func (productRepoShim) GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	return repo.GetProduct(ctx, db, id)
}

// FindProductByName proxies repo.FindProductByName.
func (productRepoShim) FindProductByName(ctx context.Context, db *gorm.DB, name string) (*domain.Product, error) {
	return repo.FindProductByName(ctx, db, name)
}

// accountRepoShim adapts the user repository free functions to
// services.AccountRepo.
type accountRepoShim struct{}

// CreateUser proxies repo.CreateUser.
func (accountRepoShim) CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, name, email, passwordHash)
}

// GetUserByEmail proxies repo.GetUserByEmail.
func (accountRepoShim) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, db, email)
}

// messageArchiveShim adapts repo.SaveInboundMessage to
// services.MessageArchive.
type messageArchiveShim struct{}

// SaveInboundMessage proxies repo.SaveInboundMessage.
func (messageArchiveShim) SaveInboundMessage(ctx context.Context, db *gorm.DB, userName, message string) error {
	return repo.SaveInboundMessage(ctx, db, userName, message)
}

// eventDeduper adapts repo.MarkEventProcessed to the handlers.EventDeduper
// contract: a duplicate insert means "already handled", everything else is
// a real error.
type eventDeduper struct {
	db  *gorm.DB
	ttl time.Duration
}

// MarkProcessed claims an event id; false means it was already processed.
func (d eventDeduper) MarkProcessed(ctx context.Context, source, eventID string) (bool, error) {
	err := repo.MarkEventProcessed(ctx, d.db, source, eventID, d.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Deps carries the externally constructed dependencies the router wires
// into services. The owner (main) manages their lifecycles.
type Deps struct {
	// Sessions holds conversation state (Redis with memory failover).
	Sessions session.Store
	// Effects is the best-effort CRM/webhook pipeline; nil disables it.
	Effects services.SideEffects
	// Sender delivers outbound WhatsApp messages; nil disables sending.
	Sender messaging.TextSender
	// Log is the base logger services derive theirs from.
	Log zerolog.Logger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, the messaging
// platform webhook, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip response compression
//  7. Metrics
//  8. Rate limiter (per user/IP)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Compress large order listings and catalog responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/pipeline/messaging
	orderSvc := &services.OrderService{
		DB:       db,
		Orders:   orderRepoShim{},
		Products: productRepoShim{},
		Effects:  deps.Effects,
		Log:      deps.Log.With().Str("component", "orders").Logger(),
	}
	if deps.Sender != nil {
		orderSvc.Notify = messaging.NewNotifier(deps.Sender, deps.Log)
	}
	productSvc := &services.ProductService{DB: db, Repo: productRepoShim{}}
	accountSvc := &services.AccountService{
		DB:        db,
		Repo:      accountRepoShim{},
		JWTSecret: []byte(cfg.JWT.Secret),
		TokenTTL:  cfg.JWT.TokenTTL,
	}
	convoSvc := &services.ConversationService{
		DB:         db,
		Sessions:   deps.Sessions,
		Orders:     orderSvc,
		Catalog:    productSvc,
		Sender:     deps.Sender,
		Archive:    messageArchiveShim{},
		SessionTTL: cfg.SessionTTL,
		Log:        deps.Log.With().Str("component", "conversation").Logger(),
	}

	h := handlers.New(orderSvc, productSvc, accountSvc, convoSvc,
		eventDeduper{db: db, ttl: cfg.EventTTL}, cfg.WhatsApp.VerifyToken)

	// Messaging platform webhook (public; verified by token handshake)
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", h.ReceiveWebhook)

	// Public API
	requireAuth := middleware.RequireAuth([]byte(cfg.JWT.Secret))
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Accounts
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)

		// Catalog (read is public for the storefront and chat)
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.POST("/products", requireAuth, h.CreateProduct)

		// Orders. Creation stays public so the chat channel can order;
		// the status endpoint stays public for fulfillment callbacks.
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders", requireAuth, h.ListOrders)
		api.GET("/orders/:id", requireAuth, h.GetOrder)
		api.POST("/orders/:id/photo", requireAuth, h.CapturePhoto)
		api.POST("/orders/:id/signature", requireAuth, h.CaptureSignature)
		api.POST("/orders/:id/kyc", requireAuth, h.CaptureKYC)
		api.PATCH("/orders/:id/status", h.UpdateStatus)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
