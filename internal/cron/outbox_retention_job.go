package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

const (
	defaultRetentionDays   = 30
	defaultRetentionBatch  = 5000
	outboxRetentionJobName = "outbox-retention"
)

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository publishedPurger
	// Retention is in days; published rows older than that are removed.
	Retention int
	BatchSize int
}

// outboxRetentionJob deletes old published rows in bounded batches so a large
// backlog never holds one long-running delete.
type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      publishedPurger
	retention time.Duration
	batch     int
	now       func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	days := params.Retention
	if days <= 0 {
		days = defaultRetentionDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetentionBatch
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: time.Duration(days) * 24 * time.Hour,
		batch:     batch,
		now:       time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.repo.DeletePublishedBefore(ctx, cutoff, j.batch)
		if err != nil {
			return err
		}
		total += n
		batches++
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
		"batches":      batches,
	}), "outbox retention cleanup complete")
	return nil
}
