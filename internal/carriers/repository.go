package carriers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// Repository persists carriers. Counter changes are conditional single statements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, carrier *models.Carrier) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Carrier, error)
	List(ctx context.Context) ([]models.Carrier, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CarrierStatus) error
	Increment(ctx context.Context, id uuid.UUID, n int) (bool, error)
	Decrement(ctx context.Context, id uuid.UUID) (bool, error)
	ResetAll(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a carrier repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, carrier *models.Carrier) error {
	return r.db.WithContext(ctx).Create(carrier).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Carrier, error) {
	var carrier models.Carrier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&carrier).Error; err != nil {
		return nil, err
	}
	return &carrier, nil
}

func (r *repository) List(ctx context.Context) ([]models.Carrier, error) {
	var rows []models.Carrier
	err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CarrierStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Carrier{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) Increment(ctx context.Context, id uuid.UUID, n int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE carriers
		SET current_daily_shipments = current_daily_shipments + ?,
			updated_at = ?
		WHERE id = ? AND status = ? AND current_daily_shipments + ? <= max_daily_capacity
	`, n, time.Now().UTC(), id, enums.CarrierStatusActive, n)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) Decrement(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE carriers
		SET current_daily_shipments = current_daily_shipments - 1,
			updated_at = ?
		WHERE id = ? AND current_daily_shipments > 0
	`, time.Now().UTC(), id)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ResetAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE carriers
		SET current_daily_shipments = 0,
			updated_at = ?
		WHERE current_daily_shipments <> 0
	`, time.Now().UTC())
	return res.RowsAffected, res.Error
}
