package salesorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/pagination"
)

// ListQuery filters a cursor page of orders, newest first.
type ListQuery struct {
	ClientID *uuid.UUID
	Status   *enums.SalesOrderStatus
	Cursor   *pagination.Cursor
	Limit    int
}

// Repository persists sales orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.SalesOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.SalesOrderStatus, updates map[string]any) (bool, error)
	List(ctx context.Context, query ListQuery) ([]models.SalesOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its lines.
func (r *repository) Create(ctx context.Context, order *models.SalesOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	err := r.db.WithContext(ctx).
		Preload("Lines", orderLines).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.SalesOrderStatus, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.SalesOrder, error) {
	q := r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Preload("Lines", orderLines)
	if query.ClientID != nil {
		q = q.Where("client_id = ?", *query.ClientID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	var rows []models.SalesOrder
	err := q.Scopes(pagination.Newest(query.Cursor)).Limit(query.Limit).Find(&rows).Error
	return rows, err
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
