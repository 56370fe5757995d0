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

	"github.com/kirana-labs/kirana-erp/internal/ap"
	"github.com/kirana-labs/kirana-erp/internal/app"
	"github.com/kirana-labs/kirana-erp/internal/handoff"
	"github.com/kirana-labs/kirana-erp/internal/inventory"
	"github.com/kirana-labs/kirana-erp/internal/masterdata/items"
	"github.com/kirana-labs/kirana-erp/internal/masterdata/vendors"
	"github.com/kirana-labs/kirana-erp/internal/observability"
	"github.com/kirana-labs/kirana-erp/internal/platform/cache"
	"github.com/kirana-labs/kirana-erp/internal/platform/db"
	"github.com/kirana-labs/kirana-erp/internal/procurement"
	"github.com/kirana-labs/kirana-erp/internal/shared"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	channel := handoff.NewChannel(redisClient, "")

	vendorRepo := vendors.NewRepository(pool)
	vendorSvc := vendors.NewService(vendorRepo)
	itemSvc := items.NewService(items.NewRepository(pool))
	inventoryRepo := inventory.NewRepository(pool)

	procurementSvc := procurement.NewService(
		procurement.NewRepository(pool), vendorSvc, inventory.NewAllocator(),
		audit, idempotency, metrics, cfg.HomeStateCode)
	paymentSvc := ap.NewService(ap.NewRepository(pool), audit, metrics)

	router := app.NewRouter(
		app.MiddlewareConfig{Logger: logger, Config: cfg, Metrics: metrics},
		app.Handlers{
			Procurement: procurement.NewHandler(procurementSvc, channel),
			Payments:    ap.NewHandler(paymentSvc),
			Inventory:   inventory.NewHandler(inventoryRepo),
			Vendors:     vendors.NewHandler(vendorSvc),
			Items:       items.NewHandler(itemSvc),
		})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
