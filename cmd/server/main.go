package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinic/pharmacy/internal/bootstrap"
	"github.com/clinic/pharmacy/internal/infrastructure/cache"
	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/clinic/pharmacy/internal/infrastructure/logger"
	"github.com/clinic/pharmacy/internal/infrastructure/scheduler"
	"github.com/clinic/pharmacy/internal/infrastructure/storage"
	"github.com/clinic/pharmacy/internal/infrastructure/telemetry"
	"github.com/clinic/pharmacy/internal/interfaces/http/handler"
	"github.com/clinic/pharmacy/internal/interfaces/http/middleware"
	"github.com/clinic/pharmacy/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.NewForEnvironment(cfg.App.Env, logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(baseLog)
	}()

	ctx := context.Background()
	providers, err := telemetry.Setup(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := providers.BridgeLogger(baseLog)

	log.Info("Starting pharmacy stock service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	db, err := bootstrap.OpenDatabase(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	guard, closeGuard := cache.NewReconcileGuard(ctx, cfg.Redis, cfg.Stock.ReconcileLockTTL, log)
	defer func() {
		if err := closeGuard(); err != nil {
			log.Warn("Error closing redis client", zap.Error(err))
		}
	}()

	documents, err := storage.NewDocumentStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize document storage", zap.Error(err))
	}

	metrics, err := telemetry.NewStockMetrics(
		providers.Meter(telemetry.MeterName),
		telemetry.NewGormStockSnapshotProvider(db.DB),
		log,
	)
	if err != nil {
		log.Fatal("Failed to initialize stock metrics", zap.Error(err))
	}
	defer func() {
		_ = metrics.Close()
	}()

	services := bootstrap.NewServices(db.DB, bootstrap.Options{
		Stock:     cfg.Stock,
		Guard:     guard,
		Documents: documents,
		Recorder:  metrics,
		Logger:    log,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	events := handler.NewStockEventsHandler(services.Broadcaster, handler.WithSSELogger(log.Named("sse")))
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Tracing:        providers.Enabled(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS:           corsConfig(cfg.HTTP),
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, log, router.Handlers{
		Health: handler.NewHealthHandler(telemetry.ServiceVersion, map[string]handler.HealthCheck{
			"database": func(context.Context) error { return db.Ping() },
		}),
		Medications: handler.NewMedicationHandler(services.Medications),
		Stock:       handler.NewStockHandler(services.Ledger, services.Reconciler),
		StockEvents: events,
		Counts:      handler.NewStockCountHandler(services.Counts),
		Suppliers:   handler.NewSupplierHandler(services.Suppliers),
		Orders:      handler.NewSupplierOrderHandler(services.Orders),
		Dashboard:   handler.NewDashboardHandler(services.Dashboard),
		Audit:       handler.NewAuditHandler(services.Trail),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	jobs := scheduler.NewStockJobs(cfg.Scheduler, services.Reconciler, services.Medications, log.Named("scheduler"))
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start background jobs", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// open event streams would otherwise hold Shutdown until the deadline
	events.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		log.Warn("Background jobs did not stop cleanly", zap.Error(err))
	}
	if err := services.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}
	_ = providers.Shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
