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
	"go.uber.org/multierr"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/migrate"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/registry"
	"github.com/angelmondragon/stockflow-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() (err error) {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if loadErr := godotenv.Load(); loadErr != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return err
	}
	cfg.Service.Kind = serviceKind
	logg = logger.ForApp(serviceKind, cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceKind})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return err
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		_ = dbClient.Close()
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		_ = dbClient.Close()
		return err
	}
	sink := newGCPSink(pubsubClient, cfg.PubSub.OrderingEnabled)
	defer func() {
		sink.Stop()
		if closeErr := multierr.Combine(pubsubClient.Close(), dbClient.Close()); closeErr != nil {
			logg.Error(context.Background(), "error closing outbox publisher dependencies", closeErr)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "failed to build event registry", err)
		return err
	}
	relay, err := NewRelay(RelayParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Sink:       sink,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox relay", err)
		return err
	}

	metricsServer := &http.Server{Addr: ":" + cfg.App.Port, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", serveErr)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting outbox relay")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox relay stopped unexpectedly", err)
		return err
	}
	logg.Info(ctx, "outbox relay shut down gracefully")
	return nil
}
