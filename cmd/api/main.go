package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockflow-backend/api/routes"
	"github.com/angelmondragon/stockflow-backend/internal/carriers"
	"github.com/angelmondragon/stockflow-backend/internal/catalog"
	"github.com/angelmondragon/stockflow-backend/internal/inventory"
	"github.com/angelmondragon/stockflow-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockflow-backend/internal/salesorders"
	"github.com/angelmondragon/stockflow-backend/internal/shipments"
	"github.com/angelmondragon/stockflow-backend/pkg/auth"
	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/migrate"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.ForApp("api", cfg.App)

	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "invalid jwt config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	fulfillmentMetrics := metrics.NewFulfillmentMetrics(prometheus.DefaultRegisterer)
	if err := dbClient.RegisterMetrics(prometheus.DefaultRegisterer, "stockflow"); err != nil {
		logg.Error(ctx, "failed to register db pool metrics", err)
		os.Exit(1)
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, catalogService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create inventory service", err)
		os.Exit(1)
	}

	carrierService, err := carriers.NewService(carriers.NewRepository(dbClient.DB()), dbClient, outboxService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create carrier service", err)
		os.Exit(1)
	}

	planner, err := shipments.NewPlanner(cfg.Logistics)
	if err != nil {
		logg.Error(ctx, "failed to create shipment planner", err)
		os.Exit(1)
	}

	shipmentService, err := shipments.NewService(
		shipments.NewRepository(dbClient.DB()),
		dbClient,
		carrierService,
		outboxService,
		planner,
		fulfillmentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create shipment service", err)
		os.Exit(1)
	}

	salesOrderService, err := salesorders.NewService(
		salesorders.NewRepository(dbClient.DB()),
		dbClient,
		catalogService,
		inventoryService,
		shipmentService,
		outboxService,
		fulfillmentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create sales order service", err)
		os.Exit(1)
	}

	purchaseOrderService, err := purchaseorders.NewService(
		purchaseorders.NewRepository(dbClient.DB()),
		dbClient,
		catalogService,
		inventoryService,
		outboxService,
		fulfillmentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create purchase order service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			tokens,
			dbClient,
			redisClient,
			promhttp.Handler(),
			metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			catalogService,
			inventoryService,
			carrierService,
			shipmentService,
			salesOrderService,
			purchaseOrderService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}
