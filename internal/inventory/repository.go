package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
)

// Repository defines persistence for inventory rows and the movement log. Every quantity
// mutation is a single conditional statement; a false result means the guard did not hold.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.Inventory) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Inventory, error)
	FindByWarehouseProduct(ctx context.Context, warehouseID, productID uuid.UUID) (*models.Inventory, error)
	ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]models.Inventory, error)
	Reserve(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)
	Consume(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)
	Credit(ctx context.Context, warehouseID, productID uuid.UUID, qty int) error
	CompareAndSwap(ctx context.Context, id uuid.UUID, from, to Quantities) (bool, error)
	InsertMovement(ctx context.Context, movement *models.InventoryMovement) error
	ListMovements(ctx context.Context, inventoryID uuid.UUID, limit int) ([]models.InventoryMovement, error)
}

// Quantities is an (on-hand, reserved) pair.
type Quantities struct {
	OnHand   int
	Reserved int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.Inventory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Inventory, error) {
	var row models.Inventory
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByWarehouseProduct(ctx context.Context, warehouseID, productID uuid.UUID) (*models.Inventory, error) {
	var row models.Inventory
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]models.Inventory, error) {
	var rows []models.Inventory
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Reserve(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventories
		SET qty_reserved = qty_reserved + ?,
			updated_at = ?
		WHERE warehouse_id = ? AND product_id = ? AND qty_on_hand - qty_reserved >= ?
	`, qty, time.Now().UTC(), warehouseID, productID, qty)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) Release(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventories
		SET qty_reserved = qty_reserved - ?,
			updated_at = ?
		WHERE warehouse_id = ? AND product_id = ? AND qty_reserved >= ?
	`, qty, time.Now().UTC(), warehouseID, productID, qty)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) Consume(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventories
		SET qty_on_hand = qty_on_hand - ?,
			qty_reserved = qty_reserved - ?,
			updated_at = ?
		WHERE warehouse_id = ? AND product_id = ? AND qty_reserved >= ? AND qty_on_hand >= ?
	`, qty, qty, time.Now().UTC(), warehouseID, productID, qty, qty)
	return res.RowsAffected == 1, res.Error
}

// Credit creates the row with the credited on-hand when absent, otherwise adds to it.
func (r *repository) Credit(ctx context.Context, warehouseID, productID uuid.UUID, qty int) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO inventories (id, warehouse_id, product_id, qty_on_hand, qty_reserved, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (warehouse_id, product_id)
		DO UPDATE SET qty_on_hand = inventories.qty_on_hand + excluded.qty_on_hand,
			updated_at = excluded.updated_at
	`, uuid.New(), warehouseID, productID, qty, now, now).Error
}

func (r *repository) CompareAndSwap(ctx context.Context, id uuid.UUID, from, to Quantities) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventories
		SET qty_on_hand = ?,
			qty_reserved = ?,
			updated_at = ?
		WHERE id = ? AND qty_on_hand = ? AND qty_reserved = ?
	`, to.OnHand, to.Reserved, time.Now().UTC(), id, from.OnHand, from.Reserved)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) InsertMovement(ctx context.Context, movement *models.InventoryMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, inventoryID uuid.UUID, limit int) ([]models.InventoryMovement, error) {
	var rows []models.InventoryMovement
	query := r.db.WithContext(ctx).
		Where("inventory_id = ?", inventoryID).
		Order("occurred_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}
