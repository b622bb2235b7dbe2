// Command server runs the conversational orders backend: the WhatsApp
// webhook, the order and catalog API, and the background side-effect
// pipeline, all over a SQLite store.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/config"
	"github.com/whatsorder/go-orders-backend/internal/crm"
	httpapi "github.com/whatsorder/go-orders-backend/internal/http"
	"github.com/whatsorder/go-orders-backend/internal/messaging"
	"github.com/whatsorder/go-orders-backend/internal/observability"
	"github.com/whatsorder/go-orders-backend/internal/repo"
	"github.com/whatsorder/go-orders-backend/internal/session"
	"github.com/whatsorder/go-orders-backend/internal/sysutil"
)

// version is stamped via -ldflags at release time.
var version = "dev"

// eventSweepInterval is how often expired webhook dedupe records are purged.
const eventSweepInterval = time.Hour

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	log := newLogger(cfg)
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Conversation sessions: Redis when configured, with an in-process
	// fallback so a Redis outage degrades rather than breaks the bot.
	var sessions session.Store = session.NewMemory()
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		sessions = session.NewFailover(session.NewRedis(rdb), session.NewMemory(), log)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis session store")
	}

	pipeline := crm.NewPipeline(
		crm.NewHubSpot(cfg.HubSpotAPIKey, log),
		crm.NewWebhookNotifier(cfg.ExternalWebhooks, log),
		log,
	)

	deps := httpapi.Deps{
		Sessions: sessions,
		Effects:  pipeline,
		Log:      log,
	}
	if cfg.WhatsApp.AccessToken != "" && cfg.WhatsApp.PhoneNumberID != "" {
		deps.Sender = messaging.NewWhatsApp(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID, log)
	} else {
		log.Warn().Msg("whatsapp send credentials not set, outbound messages disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go sweepExpiredEvents(ctx, db, log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	// Drain queued CRM/webhook jobs before the process exits.
	pipeline.Close()

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown failed")
	}

	log.Info().Msg("server stopped")
}

// newLogger builds the process logger from config: pretty console output for
// development, JSON otherwise, with the global level applied.
func newLogger(cfg config.Config) zerolog.Logger {
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// sweepExpiredEvents periodically removes webhook dedupe rows whose retention
// window has passed, keeping the processed_events table bounded.
func sweepExpiredEvents(ctx context.Context, db *gorm.DB, log zerolog.Logger) {
	ticker := time.NewTicker(eventSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpiredEvents(ctx, db, time.Now().UTC())
			if err != nil {
				log.Warn().Err(err).Msg("expired event sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("expired webhook events purged")
			}
		}
	}
}
