package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockflow-backend/pkg/pagination"
)

const metricsKind = "purchase_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type catalogReader interface {
	GetSupplier(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type stockCrediter interface {
	Credit(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int, reference string) (*models.InventoryMovement, error)
}

// Service replenishes stock: CREATED, APPROVED and RECEIVED, or CANCELED.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.PurchaseOrder, error)
	UpdateLines(ctx context.Context, id uuid.UUID, lines []LineInput) (*models.PurchaseOrder, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	Receive(ctx context.Context, id, warehouseID uuid.UUID) (*models.PurchaseOrder, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	catalog catalogReader
	stock   stockCrediter
	outbox  outboxPublisher
	metrics *metrics.FulfillmentMetrics
	logg    *logger.Logger
}

// NewService builds the purchase order workflow. metrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	catalog catalogReader,
	stock stockCrediter,
	publisher outboxPublisher,
	fulfillment *metrics.FulfillmentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		stock:   stock,
		outbox:  publisher,
		metrics: fulfillment,
		logg:    logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PurchaseOrder, error) {
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetSupplier(ctx, input.SupplierID); err != nil {
		return nil, err
	}

	order := &models.PurchaseOrder{
		SupplierID:       input.SupplierID,
		Status:           enums.PurchaseOrderStatusCreated,
		ExpectedDelivery: input.ExpectedDelivery,
		Lines:            lines,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
	}
	s.metrics.IncTransition(metricsKind, order.Status.String())
	s.logg.Info(s.orderCtx(ctx, order), "purchase_order.created")
	return order, nil
}

// UpdateLines replaces the lines of an order that has not been received or canceled.
func (s *service) UpdateLines(ctx context.Context, id uuid.UUID, input []LineInput) (*models.PurchaseOrder, error) {
	lines, err := s.buildLines(ctx, input)
	if err != nil {
		return nil, err
	}
	var order *models.PurchaseOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.Status.IsClosed() {
			return pkgerrors.InvalidOperation("cannot update lines of purchase order in status %s", current.Status)
		}
		ok, err := repo.TouchIfOpen(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock purchase order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "purchase order changed concurrently")
		}
		if err := repo.ReplaceLines(ctx, id, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace purchase order lines")
		}
		current.Lines = lines
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(s.orderCtx(ctx, order), "lines", len(order.Lines)), "purchase_order.lines_updated")
	return order, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.load(ctx, s.repo.WithTx(tx), id)
		if err != nil {
			return err
		}
		if current.Status != enums.PurchaseOrderStatusCreated {
			return pkgerrors.InvalidOperation("cannot approve purchase order in status %s", current.Status)
		}
		now := time.Now().UTC()
		if err := s.transition(ctx, tx, current, enums.PurchaseOrderStatusApproved, map[string]any{"approved_at": now}); err != nil {
			return err
		}
		current.ApprovedAt = &now
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(metricsKind, order.Status.String())
	s.logg.Info(s.orderCtx(ctx, order), "purchase_order.approved")
	return order, nil
}

// Receive credits every line into the warehouse, creating inventory rows as needed.
func (s *service) Receive(ctx context.Context, id, warehouseID uuid.UUID) (*models.PurchaseOrder, error) {
	if warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	var order *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.load(ctx, s.repo.WithTx(tx), id)
		if err != nil {
			return err
		}
		if current.Status != enums.PurchaseOrderStatusApproved {
			return pkgerrors.InvalidOperation("cannot receive purchase order in status %s", current.Status)
		}
		if _, err := s.catalog.GetWarehouse(ctx, warehouseID); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.transition(ctx, tx, current, enums.PurchaseOrderStatusReceived, map[string]any{
			"received_at":           now,
			"received_warehouse_id": warehouseID,
		}); err != nil {
			return err
		}
		current.ReceivedAt = &now
		current.ReceivedWarehouseID = &warehouseID

		reference := "PO-" + current.ID.String()
		received := make([]payloads.PurchaseOrderLineInfo, 0, len(current.Lines))
		for _, line := range current.Lines {
			if _, err := s.stock.Credit(ctx, tx, warehouseID, line.ProductID, line.Quantity, reference); err != nil {
				return err
			}
			received = append(received, payloads.PurchaseOrderLineInfo{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		order = current
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderReceived,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   current.ID,
			OccurredAt:    now,
			Data: payloads.PurchaseOrderReceivedEvent{
				PurchaseOrderID: current.ID,
				SupplierID:      current.SupplierID,
				WarehouseID:     warehouseID,
				Lines:           received,
				ReceivedAt:      now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(metricsKind, order.Status.String())
	s.logg.Info(s.logg.WithField(s.orderCtx(ctx, order), "warehouse_id", warehouseID.String()), "purchase_order.received")
	return order, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.load(ctx, s.repo.WithTx(tx), id)
		if err != nil {
			return err
		}
		if current.Status.IsClosed() {
			return pkgerrors.InvalidOperation("cannot cancel purchase order in status %s", current.Status)
		}
		now := time.Now().UTC()
		if err := s.transition(ctx, tx, current, enums.PurchaseOrderStatusCanceled, map[string]any{"canceled_at": now}); err != nil {
			return err
		}
		current.CanceledAt = &now
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(metricsKind, order.Status.String())
	s.logg.Info(s.orderCtx(ctx, order), "purchase_order.canceled")
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	return s.load(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *params.Status)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListQuery{
		Status: params.Status,
		Cursor: cursor,
		Limit:  pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.PurchaseOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &ListResult{Orders: page, NextCursor: next}, nil
}

func (s *service) buildLines(ctx context.Context, input []LineInput) ([]models.PurchaseOrderLine, error) {
	if len(input) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	ids := make([]uuid.UUID, 0, len(input))
	seen := make(map[uuid.UUID]struct{}, len(input))
	for i, line := range input {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: product is required", i)
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity must be greater than zero", i)
		}
		if line.UnitPrice.IsNegative() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: unit price cannot be negative", i)
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: duplicate product", i)
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	if _, err := s.catalog.GetProducts(ctx, ids); err != nil {
		return nil, err
	}
	lines := make([]models.PurchaseOrderLine, 0, len(input))
	for _, line := range input {
		lines = append(lines, models.PurchaseOrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return lines, nil
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.PurchaseOrder, to enums.PurchaseOrderStatus, updates map[string]any) error {
	updates["status"] = to
	ok, err := s.repo.WithTx(tx).Transition(ctx, order.ID, order.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "purchase order changed concurrently")
	}
	order.Status = to
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.PurchaseOrder, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("purchase order", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
	}
	return order, nil
}

func (s *service) orderCtx(ctx context.Context, order *models.PurchaseOrder) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"purchase_order_id": order.ID.String(),
		"supplier_id":       order.SupplierID.String(),
		"status":            order.Status,
	})
}
