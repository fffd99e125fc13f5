package shipments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// Repository persists shipments. Status changes are conditional on the expected prior status.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Shipment, error)
	SetCarrier(ctx context.Context, id, carrierID uuid.UUID) (bool, error)
	SetCarrierBatch(ctx context.Context, ids []uuid.UUID, carrierID uuid.UUID) (int64, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.ShipmentStatus, updates map[string]any) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shipment).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&shipment).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Shipment, error) {
	var rows []models.Shipment
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *repository) SetCarrier(ctx context.Context, id, carrierID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", id, enums.ShipmentStatusPlanned).
		Updates(map[string]any{"carrier_id": carrierID, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SetCarrierBatch(ctx context.Context, ids []uuid.UUID, carrierID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id IN ? AND status = ? AND carrier_id IS NULL", ids, enums.ShipmentStatusPlanned).
		Updates(map[string]any{"carrier_id": carrierID, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.ShipmentStatus, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.ShipmentStatusPlanned).
		Delete(&models.Shipment{})
	return res.RowsAffected == 1, res.Error
}
