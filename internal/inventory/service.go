package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

const defaultMovementLimit = 100

var tracer = otel.Tracer("github.com/angelmondragon/stockflow-backend/internal/inventory")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// catalogReader resolves the warehouse and product a ledger row points at.
type catalogReader interface {
	GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Ledger is the quantity surface other components drive from inside their own
// transaction. A nil tx runs the call in a fresh transaction.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int, reference string) (*models.InventoryMovement, error)
	Credit(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int, reference string) (*models.InventoryMovement, error)
}

// Service is the full inventory surface, including administrative operations.
type Service interface {
	Ledger
	Create(ctx context.Context, input CreateInput) (*models.Inventory, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Inventory, error)
	Find(ctx context.Context, warehouseID, productID uuid.UUID) (*models.Inventory, error)
	ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]models.Inventory, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.Inventory, error)
	ListMovements(ctx context.Context, inventoryID uuid.UUID, limit int) ([]models.InventoryMovement, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	catalog catalogReader
	logg    *logger.Logger
}

// NewService builds the inventory ledger service.
func NewService(repo Repository, tx txRunner, catalog catalogReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, catalog: catalog, logg: logg}, nil
}

func (s *service) within(ctx context.Context, tx *gorm.DB, fn func(repo Repository) error) error {
	if tx != nil {
		return fn(s.repo.WithTx(tx))
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int) (err error) {
	ctx, span := startSpan(ctx, "inventory.Reserve", warehouseID, productID, qty)
	defer func() { endSpan(span, err) }()

	if err := validateQty(qty); err != nil {
		return err
	}
	return s.within(ctx, tx, func(repo Repository) error {
		ok, err := repo.Reserve(ctx, warehouseID, productID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve inventory")
		}
		if ok {
			return nil
		}
		row, err := s.load(ctx, repo, warehouseID, productID)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			// never stocked here: nothing is available
			return pkgerrors.InsufficientStock(warehouseID, productID, qty, 0)
		}
		if err != nil {
			return err
		}
		return pkgerrors.InsufficientStock(warehouseID, productID, qty, row.Available())
	})
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int) (err error) {
	ctx, span := startSpan(ctx, "inventory.Release", warehouseID, productID, qty)
	defer func() { endSpan(span, err) }()

	if err := validateQty(qty); err != nil {
		return err
	}
	return s.within(ctx, tx, func(repo Repository) error {
		ok, err := repo.Release(ctx, warehouseID, productID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release inventory")
		}
		if ok {
			return nil
		}
		row, err := s.load(ctx, repo, warehouseID, productID)
		if err != nil {
			return err
		}
		return pkgerrors.InvalidOperation("cannot release %d units, only %d reserved", qty, row.QtyReserved)
	})
}

func (s *service) Consume(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int, reference string) (movement *models.InventoryMovement, err error) {
	ctx, span := startSpan(ctx, "inventory.Consume", warehouseID, productID, qty)
	defer func() { endSpan(span, err) }()

	if err := validateQty(qty); err != nil {
		return nil, err
	}
	err = s.within(ctx, tx, func(repo Repository) error {
		ok, err := repo.Consume(ctx, warehouseID, productID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume inventory")
		}
		row, err := s.load(ctx, repo, warehouseID, productID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.InvalidOperation("cannot consume %d units, only %d reserved", qty, row.QtyReserved)
		}
		movement, err = s.appendMovement(ctx, repo, row, enums.MovementTypeOutbound, qty, reference, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int, reference string) (movement *models.InventoryMovement, err error) {
	ctx, span := startSpan(ctx, "inventory.Credit", warehouseID, productID, qty)
	defer func() { endSpan(span, err) }()

	if err := validateQty(qty); err != nil {
		return nil, err
	}
	err = s.within(ctx, tx, func(repo Repository) error {
		if err := repo.Credit(ctx, warehouseID, productID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit inventory")
		}
		row, err := s.load(ctx, repo, warehouseID, productID)
		if err != nil {
			return err
		}
		movement, err = s.appendMovement(ctx, repo, row, enums.MovementTypeInbound, qty, reference, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Inventory, error) {
	if input.WarehouseID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse_id and product_id are required")
	}
	if err := validateQuantities(Quantities{OnHand: input.QtyOnHand, Reserved: input.QtyReserved}); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetWarehouse(ctx, input.WarehouseID); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	row := &models.Inventory{
		WarehouseID: input.WarehouseID,
		ProductID:   input.ProductID,
		QtyOnHand:   input.QtyOnHand,
		QtyReserved: input.QtyReserved,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "inventory already exists for warehouse and product").
					WithDetails(map[string]any{"warehouse_id": input.WarehouseID.String(), "product_id": input.ProductID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory")
		}
		if row.QtyOnHand == 0 {
			return nil
		}
		_, err := s.appendMovement(ctx, repo, row, enums.MovementTypeInbound, row.QtyOnHand, "", "opening balance")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"inventory_id": row.ID.String(), "qty_on_hand": row.QtyOnHand}), "inventory.created")
	return row, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Inventory, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, id)
	}
	return row, nil
}

func (s *service) Find(ctx context.Context, warehouseID, productID uuid.UUID) (*models.Inventory, error) {
	return s.load(ctx, s.repo, warehouseID, productID)
}

func (s *service) ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]models.Inventory, error) {
	rows, err := s.repo.ListByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return rows, nil
}

// Adjust overwrites quantities only if the row still holds the values it was read with.
// A concurrent change surfaces as a conflict rather than being retried.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.Inventory, error) {
	if input.InventoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory id required")
	}
	if input.QtyOnHand == nil && input.QtyReserved == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty_on_hand or qty_reserved required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	var updated *models.Inventory
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, input.InventoryID)
		if err != nil {
			return mapLookupError(err, input.InventoryID)
		}

		from := Quantities{OnHand: row.QtyOnHand, Reserved: row.QtyReserved}
		to := from
		if input.QtyOnHand != nil {
			to.OnHand = *input.QtyOnHand
		}
		if input.QtyReserved != nil {
			to.Reserved = *input.QtyReserved
		}
		if err := validateQuantities(to); err != nil {
			return err
		}

		ok, err := repo.CompareAndSwap(ctx, row.ID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust inventory")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "inventory changed concurrently, reload and retry")
		}

		row.QtyOnHand, row.QtyReserved = to.OnHand, to.Reserved
		if _, err := s.appendMovement(ctx, repo, row, enums.MovementTypeAdjustment, to.OnHand-from.OnHand, "", reason); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"inventory_id": updated.ID.String(),
		"qty_on_hand":  updated.QtyOnHand,
		"qty_reserved": updated.QtyReserved,
	}), "inventory.adjusted")
	return updated, nil
}

func (s *service) ListMovements(ctx context.Context, inventoryID uuid.UUID, limit int) ([]models.InventoryMovement, error) {
	if _, err := s.Get(ctx, inventoryID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	rows, err := s.repo.ListMovements(ctx, inventoryID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return rows, nil
}

func (s *service) load(ctx context.Context, repo Repository, warehouseID, productID uuid.UUID) (*models.Inventory, error) {
	row, err := repo.FindByWarehouseProduct(ctx, warehouseID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found").
				WithDetails(map[string]any{"warehouse_id": warehouseID.String(), "product_id": productID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return row, nil
}

// appendMovement logs one on-hand change against the row's post-change balance.
func (s *service) appendMovement(ctx context.Context, repo Repository, row *models.Inventory, kind enums.MovementType, qty int, reference, description string) (*models.InventoryMovement, error) {
	movement := &models.InventoryMovement{
		InventoryID:  row.ID,
		Type:         kind,
		Quantity:     qty,
		BalanceAfter: row.QtyOnHand,
	}
	if reference != "" {
		movement.ReferenceDocument = &reference
	}
	if description != "" {
		movement.Description = &description
	}
	if err := repo.InsertMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record inventory movement")
	}
	return movement, nil
}

func validateQty(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	return nil
}

func validateQuantities(q Quantities) error {
	if q.OnHand < 0 || q.Reserved < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantities must be non-negative")
	}
	if q.Reserved > q.OnHand {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserved quantity cannot exceed on-hand quantity").
			WithDetails(map[string]any{"qty_on_hand": q.OnHand, "qty_reserved": q.Reserved})
	}
	return nil
}

func mapLookupError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("inventory", id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
}

func startSpan(ctx context.Context, name string, warehouseID, productID uuid.UUID, qty int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("warehouse.id", warehouseID.String()),
		attribute.String("product.id", productID.String()),
		attribute.Int("quantity", qty),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(pkgerrors.As(err).Code()))
	}
	span.End()
}
