package purchaseorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/pagination"
)

// Repository persists purchase orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.PurchaseOrderStatus, updates map[string]any) (bool, error)
	ReplaceLines(ctx context.Context, id uuid.UUID, lines []models.PurchaseOrderLine) error
	TouchIfOpen(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, query ListQuery) ([]models.PurchaseOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchase order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.PurchaseOrderStatus, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// ReplaceLines swaps the full line set of an order.
func (r *repository) ReplaceLines(ctx context.Context, id uuid.UUID, lines []models.PurchaseOrderLine) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("purchase_order_id = ?", id).Delete(&models.PurchaseOrderLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].PurchaseOrderID = id
	}
	return db.Create(&lines).Error
}

// TouchIfOpen bumps updated_at while the order is still editable, claiming the row for
// the rest of the transaction.
func (r *repository) TouchIfOpen(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND status IN ?", id, []enums.PurchaseOrderStatus{
			enums.PurchaseOrderStatusCreated,
			enums.PurchaseOrderStatusApproved,
		}).
		Update("updated_at", time.Now().UTC())
	return res.RowsAffected == 1, res.Error
}

// ListQuery is a resolved page request; Limit already carries the look-ahead row.
type ListQuery struct {
	Status *enums.PurchaseOrderStatus
	Cursor *pagination.Cursor
	Limit  int
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.PurchaseOrder, error) {
	q := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	var rows []models.PurchaseOrder
	err := q.Scopes(pagination.Newest(query.Cursor)).Limit(query.Limit).Find(&rows).Error
	return rows, err
}
