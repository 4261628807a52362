package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/papyrus-erp/papyrus-erp/internal/app"
	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/stores"
	"github.com/papyrus-erp/papyrus-erp/internal/platform/cache"
	platformdb "github.com/papyrus-erp/papyrus-erp/internal/platform/db"
	"github.com/papyrus-erp/papyrus-erp/internal/production"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
	"github.com/papyrus-erp/papyrus-erp/internal/valuation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stock notifications disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	productsSvc := products.NewService(products.NewRepository(pool))
	storesSvc := stores.NewService(stores.NewRepository(pool))

	inventorySvc := inventory.NewService(
		inventory.NewRepository(pool),
		productsSvc,
		storesSvc,
		audit,
		idempotency,
		inventory.ServiceConfig{
			RejectNegativeStock: cfg.RejectNegativeStock,
			RetryAttempts:       cfg.StockRetryAttempts,
		},
	)
	if redisClient != nil {
		inventorySvc.Subscribe(inventory.NewRedisNotifier(redisClient, logger))
		inventorySvc.SetPreviewCache(cache.NewJSONCache(redisClient, "papyrus:preview:", 30*time.Second))
	}

	productionSvc := production.NewService(
		production.NewRepository(pool),
		productsSvc,
		storesSvc,
		inventorySvc,
		audit,
		cfg.StockRetryAttempts,
	)

	valuationSvc := valuation.NewService(valuation.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Products:   products.NewHandler(logger, productsSvc),
		Stores:     stores.NewHandler(logger, storesSvc),
		Inventory:  inventory.NewHandler(logger, inventorySvc),
		Production: production.NewHandler(logger, productionSvc),
		Valuation:  valuation.NewHandler(logger, valuationSvc),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("papyrus listening", slog.String("addr", cfg.AppAddr))
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
