package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	ClaimPending(tx *gorm.DB, limit int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Park(tx *gorm.DB, id uuid.UUID, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error
	Backlog(ctx context.Context) (outbox.Backlog, error)
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type RelayParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Sink       sink
	Repository outboxRepository
	Registry   registryResolver
	Metrics    *metrics.OutboxMetrics
}

// Relay drains outbox_events onto Pub/Sub. Each batch is claimed with
// FOR UPDATE SKIP LOCKED so several relays can run side by side.
type Relay struct {
	logg     *logger.Logger
	db       dbClient
	sink     sink
	repo     outboxRepository
	registry registryResolver
	metrics  *metrics.OutboxMetrics

	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
	ordering       bool
	jitter         *rand.Rand
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Sink == nil:
		return nil, errors.New("publish sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	cfg := params.Config.Outbox
	r := &Relay{
		logg:           params.Logger,
		db:             params.DB,
		sink:           params.Sink,
		repo:           params.Repository,
		registry:       params.Registry,
		metrics:        params.Metrics,
		batchSize:      orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts:    orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:   time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		publishTimeout: cfg.PublishTimeout,
		ordering:       params.Config.PubSub.OrderingEnabled,
		jitter:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.publishTimeout <= 0 {
		r.publishTimeout = defaultPublishTimeout
	}
	return r, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// another; errors back off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.sink.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	backoff := r.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		claimed, err := r.processBatch(ctx)
		if claimed < r.batchSize {
			r.reportBacklog(ctx)
		}
		wait := r.pollInterval
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			backoff = nextBackoff(backoff, r.pollInterval, maxBackoff)
			wait = backoff
		case claimed == r.batchSize:
			backoff = r.pollInterval
			continue
		default:
			backoff = r.pollInterval
		}
		if err := sleep(ctx, wait+r.jitterFor()); err != nil {
			return err
		}
	}
}

// processBatch claims one batch and settles every row in it. It returns how many rows were claimed.
func (r *Relay) processBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.ClaimPending(tx, r.batchSize)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events)
		r.metrics.ObserveBatch(claimed)
		for _, event := range events {
			if err := r.settle(ctx, tx, event, r.dispatch(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (r *Relay) reportBacklog(ctx context.Context) {
	backlog, err := r.repo.Backlog(ctx)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox backlog query failed")
		return
	}
	r.metrics.SetBacklog(backlog.Pending, backlog.Parked)
}

func (r *Relay) jitterFor() time.Duration {
	return time.Duration(r.jitter.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < ceiling {
		return next
	}
	return ceiling
}
