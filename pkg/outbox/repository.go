package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

const maxLastErrorLen = 1024

var errTxRequired = errors.New("transaction required")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Backlog counts rows the relay has not finished with.
type Backlog struct {
	Pending int64
	Parked  int64
}

func pending(tx *gorm.DB) *gorm.DB {
	return tx.Where("published_at IS NULL AND parked_at IS NULL")
}

func (r *Repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(event).Error
}

// ClaimPending locks up to limit of the oldest pending rows. Rows held by another
// relay are skipped rather than waited on.
func (r *Repository) ClaimPending(tx *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	var rows []models.OutboxEvent
	err := pending(tx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.settle(tx, id, map[string]any{"published_at": at.UTC()})
}

// RecordFailure bumps the attempt counter and keeps the latest error for operators.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.settle(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    truncateError(cause),
	})
}

// Park takes a row out of rotation for good.
func (r *Repository) Park(tx *gorm.DB, id uuid.UUID, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error {
	return r.settle(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    truncateError(cause),
		"parked_at":     at.UTC(),
		"park_reason":   reason,
	})
}

func (r *Repository) settle(tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	res := pending(tx.Model(&models.OutboxEvent{}).Where("id = ?", id)).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("outbox row " + id.String() + " is no longer pending")
	}
	return nil
}

func (r *Repository) Backlog(ctx context.Context) (Backlog, error) {
	var b Backlog
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Select(
			"COUNT(*) FILTER (WHERE published_at IS NULL AND parked_at IS NULL) AS pending, " +
				"COUNT(*) FILTER (WHERE parked_at IS NOT NULL) AS parked",
		).
		Scan(&b).Error
	return b, err
}

// DeletePublishedBefore removes up to limit published rows older than cutoff,
// oldest first. Parked rows are kept.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, errors.New("delete limit must be positive")
	}
	db := r.db.WithContext(ctx)
	oldest := db.Model(&models.OutboxEvent{}).
		Select("id").
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Order("published_at ASC").
		Limit(limit)
	res := db.Where("id IN (?)", oldest).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func truncateError(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxLastErrorLen {
		msg = msg[:maxLastErrorLen]
	}
	return &msg
}
