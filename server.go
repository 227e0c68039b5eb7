package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/config"
	"bitbucket.org/mmdatafocus/integrity_backend/handlers"
	"bitbucket.org/mmdatafocus/integrity_backend/middlewares"
	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"bitbucket.org/mmdatafocus/integrity_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("integrity-backend")

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// In-memory core. Every mutation lands in the outbox; the dispatcher
	// drains it into the archive / Pub/Sub once those are connected.
	outbox := workflow.NewOutbox(nil)
	reportStore := models.NewReportStore(nil, outbox)
	detector := models.NewTamperDetector(reportStore, nil, outbox)
	if config.SeedDemoLedger() {
		detector.LoadEntries(models.DefaultLedgerEntries())
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Export-Uri", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	r.Use(cors.New(corsConfig))

	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if config.RateLimitEnabled() && config.RedisConfigured() {
		client := redis.NewClient(&redis.Options{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		r.Use(middlewares.NewRateLimiterFromEnv(client).RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	h := &handlers.Handler{
		Tracer:  tracer,
		Logger:  logger,
		Reports: reportStore,
		Ledger:  detector,
		Outbox:  outbox,
	}
	h.Register(r)
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately; Cloud Run checks startup over TCP.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Optional dependencies connect after the port is open.
	go config.ConnectRedisWithRetry(sigCtx)

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go runDispatcher(dispatcherCtx, outbox, logger)

	log.Printf("Server started successfully on :%s", port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests first so their events still reach the outbox.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	cancelDispatcher()

	if db := config.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	config.ClosePubSub()
}

// runDispatcher wires the configured sinks and then drains the outbox until ctx is done.
// Without any sink the dispatcher still runs so delivered records get pruned.
func runDispatcher(ctx context.Context, outbox *workflow.Outbox, logger *logrus.Logger) {
	var sinks []workflow.Handler

	if config.DatabaseConfigured() {
		config.ConnectDatabaseWithRetry(ctx)
		if db := config.GetDB(); db != nil {
			// AutoMigrate can block tables; allow running it as a separate job instead.
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
				if err := models.MigrateTable(db); err != nil {
					config.LogError(logger, "server.go", "runDispatcher", "migrating archive tables", nil, err)
				}
			} else {
				logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
			}
			sinks = append(sinks, &workflow.ArchiveHandler{Archiver: models.NewArchiver(db)})
		}
	}
	if config.PubSubConfigured() {
		sinks = append(sinks, workflow.NewAlertPublisher(logger))
	}
	if ctx.Err() != nil {
		return
	}
	workflow.NewOutboxDispatcher(outbox, logger, sinks...).Run(ctx)
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}
