package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcollection "github.com/ledgerly/backend/internal/application/collection"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/infrastructure/ai"
	"github.com/ledgerly/backend/internal/infrastructure/cache"
	"github.com/ledgerly/backend/internal/infrastructure/config"
	"github.com/ledgerly/backend/internal/infrastructure/logger"
	"github.com/ledgerly/backend/internal/infrastructure/notification"
	"github.com/ledgerly/backend/internal/infrastructure/persistence"
	"github.com/ledgerly/backend/internal/infrastructure/scheduler"
	"github.com/ledgerly/backend/internal/infrastructure/telemetry"
	"github.com/ledgerly/backend/internal/interfaces/http/handler"
	"github.com/ledgerly/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Ledgerly collector",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
		ServiceName:   cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connected")

	// Cache and run lock: Redis when configured, in-memory otherwise
	var reliabilityCache collection.ReliabilityCache
	var runLock collection.RunLock
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory cache and lock", zap.Error(err))
		memCache := cache.NewInMemoryReliabilityCache()
		defer func() { _ = memCache.Close() }()
		reliabilityCache = memCache
		runLock = cache.NewInMemoryRunLock()
	} else {
		defer func() { _ = redisClient.Close() }()
		reliabilityCache = cache.NewRedisReliabilityCache(redisClient)
		runLock = cache.NewRedisRunLock(redisClient)
		log.Info("Redis connected")
	}

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	actionRepo := persistence.NewGormCollectionActionRepository(db.DB)
	planRepo := persistence.NewGormPaymentPlanRepository(db.DB)
	logRepo := persistence.NewGormExecutionLogRepository(db.DB)

	// Outbound adapters
	provider := ai.NewOpenAIProvider(cfg.AI, log)
	var channel collection.NotificationChannel
	if cfg.Mail.DryRun {
		channel = notification.NewDryRunChannel(log)
		log.Info("Mail dry-run enabled, email delivery is logged only")
	} else {
		channel = notification.NewResendChannel(cfg.Mail, log)
	}

	// Application services
	analyzer := appcollection.NewHistoryAnalyzer(invoiceRepo, reliabilityCache, log)
	engine := appcollection.NewDecisionEngine(provider, log).WithTimeout(cfg.Collector.ProviderTimeout)
	executor := appcollection.NewActionExecutor(invoiceRepo, actionRepo, planRepo, channel, log)
	runService := appcollection.NewRunService(logRepo, invoiceRepo, actionRepo, analyzer, engine, executor, runLock, log).
		WithLockTTL(cfg.Collector.RunLockTTL)

	// Daily scheduler
	var cron *scheduler.CollectionCronScheduler
	if cfg.Scheduler.Enabled {
		hour, minute, err := scheduler.ParseCronSchedule(cfg.Scheduler.DailyCronSchedule)
		if err != nil {
			log.Fatal("Invalid cron schedule", zap.Error(err))
		}
		cron = scheduler.NewCollectionCronScheduler(scheduler.CollectionCronSchedulerConfig{
			Enabled:           true,
			CronHour:          hour,
			CronMinute:        minute,
			DailyCronSchedule: cfg.Scheduler.DailyCronSchedule,
			JobTimeout:        cfg.Scheduler.JobTimeout,
		}, runService, invoiceRepo, log)
		if err := cron.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// HTTP
	var schedulerStatus handler.SchedulerStatus
	if cron != nil {
		schedulerStatus = cron
	}
	collectorHandler := handler.NewCollectorHandler(runService, schedulerStatus)

	r := router.New(cfg, log, router.WithHealthChecker(db))
	r.Register(collectorHandler)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        r.Engine(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cron != nil {
		if err := cron.Stop(ctx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	log.Info("Shutdown complete")
}
