package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/importprocess"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/products"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian-erp/internal/notify"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/purchaseorder"
	"github.com/meridian-erp/meridian-erp/internal/quotation"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Redis powers the masterdata caches and the notification queue. The
	// server stays up without it; lookups fall through to Postgres.
	var lookupCache *cache.JSONCache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, running without cache", slog.Any("error", err))
	} else {
		lookupCache = cache.NewJSONCache(redisClient, cfg.MasterdataCacheTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var notifier notify.Notifier = notify.Nop{}
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client unavailable, notifications disabled", slog.Any("error", err))
	} else {
		notifier = notify.NewAsynqNotifier(jobsClient, logger)
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
	}

	auditLog := shared.NewAuditLogger(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)

	directory := masterdata.NewDirectory(
		products.NewCachedRepository(products.NewRepository(pool), lookupCache),
		suppliers.NewCachedRepository(suppliers.NewRepository(pool), lookupCache),
	)

	poService := purchaseorder.NewService(
		purchaseorder.NewRepository(pool), directory, auditLog, notifier,
		purchaseorder.Config{DomesticCountry: cfg.DomesticCountry, DefaultCurrency: cfg.DomesticCurrency},
	)
	quotationService := quotation.NewService(
		quotation.NewRepository(pool), directory, poService, approvals, auditLog, idempotency, notifier,
	)
	importService := importprocess.NewService(
		importprocess.NewRepository(pool), poService, auditLog, notifier,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		QuotationHandler:     quotation.NewHandler(logger, quotationService),
		PurchaseOrderHandler: purchaseorder.NewHandler(logger, poService),
		ImportHandler:        importprocess.NewHandler(logger, importService),
		MasterdataHandler:    masterdata.NewHandler(logger, directory),
		Pool:                 pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
