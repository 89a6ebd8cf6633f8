package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/clinic-reports/internal/app"
	"github.com/odyssey-erp/clinic-reports/internal/observability"
	"github.com/odyssey-erp/clinic-reports/internal/platform/cache"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
	reportshttp "github.com/odyssey-erp/clinic-reports/internal/reports/http"
	"github.com/odyssey-erp/clinic-reports/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.TestMode {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	logger := app.NewLogger(cfg)

	store, err := app.OpenRecordStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open record store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	checks := map[string]app.ReadinessCheck{store.Kind: store.Check}

	var reportCache *reports.Cache
	redisClient, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, serving reports uncached", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
		if err := reportCache.ListenForInvalidation(ctx, reports.ChangeChannel); err != nil {
			logger.Warn("subscribe cache invalidation", slog.Any("error", err))
		}
		checks["redis"] = cache.Ping(redisClient)
	}

	metrics := observability.NewMetrics()

	var audit *reports.AuditLog
	if cfg.AuditEnabled {
		audit = reports.NewAuditLog(cfg.AuditCapacity)
	}
	aggregator := reports.NewAggregator(audit, metrics)
	service := reports.NewService(store.Source, reportCache, aggregator)

	var bumper reportshttp.CacheBumper
	if reportCache != nil {
		bumper = reportCache
	}
	var auditLog reportshttp.AuditLog
	if audit != nil {
		auditLog = audit
	}
	reportHandler := reportshttp.NewHandler(logger.With(slog.String("component", "reports")), service, auditLog, bumper,
		reportshttp.WithAdminTokenHash(cfg.AdminTokenHash))

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient := jobs.NewClient(cfg.AsynqRedisOpt())
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger.With(slog.String("component", "jobs")), cfg.AdminTokenHash)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
		Checks:        checks,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("records", store.Kind))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
