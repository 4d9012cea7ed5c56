package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	"github.com/reviewfolio/backend/internal/infrastructure/auth"
	"github.com/reviewfolio/backend/internal/infrastructure/cache"
	"github.com/reviewfolio/backend/internal/infrastructure/config"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/infrastructure/migration"
	"github.com/reviewfolio/backend/internal/infrastructure/ocr"
	"github.com/reviewfolio/backend/internal/infrastructure/persistence"
	"github.com/reviewfolio/backend/internal/infrastructure/storage"
	"github.com/reviewfolio/backend/internal/infrastructure/telemetry"
	"github.com/reviewfolio/backend/internal/interfaces/http/handler"
	"github.com/reviewfolio/backend/internal/interfaces/http/middleware"
	"github.com/reviewfolio/backend/internal/interfaces/http/router"
	"github.com/reviewfolio/backend/migrations"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	log.Info("Starting review ingestion backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// OpenTelemetry pipelines
	providers, err := telemetry.Setup(startCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    version,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if providers.Logs.IsEnabled() {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		log = telemetry.NewBridgedLogger(log, telemetry.NewZapOTELCore(cfg.App.Name, providers.Logs, level))
		log.Info("Logs bridged to OpenTelemetry")
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.App.Name,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles {
		providers.Tracer.EnableSpanProfiles()
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel),
		logger.WithSlowThreshold(cfg.Telemetry.SlowQueryThreshold),
	)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracer := telemetry.NewDBTracer(telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		DBSystem:           "postgresql",
		SlowQueryThreshold: cfg.Telemetry.SlowQueryThreshold,
		WithQueryVariables: cfg.App.Env == "development",
	}, log)
	if err := dbTracer.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := migrate(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	idempotency, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(startCtx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	ingestionMetrics, err := telemetry.NewIngestionMetrics(providers.Meter.Meter(telemetry.IngestionMeterName))
	if err != nil {
		log.Fatal("Failed to register ingestion metrics", zap.Error(err))
	}

	runRepo := persistence.NewGormIngestionRunRepository(db.DB)
	opts, err := reviewapp.ConfigOptions(cfg.Ingestion)
	if err != nil {
		log.Fatal("Invalid ingestion configuration", zap.Error(err))
	}
	opts = append(opts,
		reviewapp.WithLogger(log),
		reviewapp.WithMetrics(ingestionMetrics),
		reviewapp.WithHistory(runRepo),
	)

	if cfg.OCR.Endpoint != "" {
		ocrClient, err := ocr.NewClient(cfg.OCR, ocr.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create OCR client", zap.Error(err))
		}
		opts = append(opts, reviewapp.WithOCR(ocrClient))
		log.Info("Image ingestion enabled", zap.String("ocr_endpoint", cfg.OCR.Endpoint))
	} else {
		log.Info("OCR endpoint not configured, image ingestion disabled")
	}

	images, err := storage.NewImageStore(startCtx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize image storage", zap.Error(err))
	}
	if images != nil {
		opts = append(opts, reviewapp.WithImageStore(images))
	}

	ingestionService := reviewapp.NewIngestionService(persistence.NewGormReviewRepository(db.DB), opts...)
	historyService := reviewapp.NewHistoryService(runRepo)

	jwtService := auth.NewJWTService(cfg.JWT)
	if !jwtService.Enabled() {
		log.Warn("JWT secret not configured, trusting the X-Owner-ID header")
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitRequests > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
	}

	engine := router.NewEngine(router.Dependencies{
		Logger:         log,
		ServiceName:    cfg.App.Name,
		Tracing:        cfg.Telemetry.Enabled,
		CORSOrigins:    cfg.HTTP.CORSAllowOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		JWT:            jwtService,
		RateLimiter:    limiter,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Ingestion.IdempotencyTTL,
		MaxBodyBytes:   cfg.HTTP.MaxBodySize,
		Ingestion:      handler.NewIngestionHandler(ingestionService),
		History:        handler.NewHistoryHandler(historyService),
		System: handler.NewSystemHandler(version, map[string]handler.HealthCheck{
			"database": func(context.Context) error { return db.Ping() },
		}),
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(ctx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Profiler shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrate applies the embedded migrations before serving
func migrate(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared connection pool
	return m.Up()
}
