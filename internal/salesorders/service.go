package salesorders

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

const metricsKind = "sales_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type catalogReader interface {
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// stockLedger moves reserved and on-hand quantities inside the order's transaction.
type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, warehouseID, productID uuid.UUID, qty int, reference string) (*models.InventoryMovement, error)
}

type dispatcher interface {
	AutoCreateShipment(ctx context.Context, tx *gorm.DB, order *models.SalesOrder) (*models.Shipment, error)
	DeliverForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Shipment, error)
}

// Service drives a sales order through CREATED, RESERVED, SHIPPED and DELIVERED, or CANCELED.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*CreateResult, error)
	ReserveStock(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error)
	ShipOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*ShipResult, error)
	DeliverOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error)
	CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error)
	List(ctx context.Context, actor Actor, params ListParams) (*ListResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	catalog   catalogReader
	ledger    stockLedger
	shipments dispatcher
	outbox    outboxPublisher
	metrics   *metrics.FulfillmentMetrics
	logg      *logger.Logger
}

// NewService builds the sales order state machine. metrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	catalog catalogReader,
	ledger stockLedger,
	shipments dispatcher,
	publisher outboxPublisher,
	fulfillment *metrics.FulfillmentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if shipments == nil {
		return nil, fmt.Errorf("shipment dispatcher required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		catalog:   catalog,
		ledger:    ledger,
		shipments: shipments,
		outbox:    publisher,
		metrics:   fulfillment,
		logg:      logg,
	}, nil
}

// Create persists the order and tries to reserve it straight away. A shortage leaves the
// order CREATED and is reported in the result rather than as an error.
func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*CreateResult, error) {
	clientID, err := s.resolveClient(actor, input.ClientID)
	if err != nil {
		return nil, err
	}
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	products, err := s.catalog.GetProducts(ctx, productIDs(input.Lines))
	if err != nil {
		return nil, err
	}
	checked := map[uuid.UUID]bool{}
	for _, line := range input.Lines {
		if checked[line.WarehouseID] {
			continue
		}
		if _, err := s.catalog.GetWarehouse(ctx, line.WarehouseID); err != nil {
			return nil, err
		}
		checked[line.WarehouseID] = true
	}

	order := &models.SalesOrder{
		ClientID: clientID,
		Status:   enums.SalesOrderStatusCreated,
		Lines:    make([]models.SalesOrderLine, 0, len(input.Lines)),
	}
	for _, line := range input.Lines {
		order.Lines = append(order.Lines, models.SalesOrderLine{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
			UnitPrice:   products[line.ProductID].UnitPrice,
		})
	}

	result := &CreateResult{Order: order}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sales order")
		}

		reserveErr := tx.Transaction(func(sp *gorm.DB) error {
			return s.reserve(ctx, sp, order)
		})
		switch {
		case reserveErr == nil:
			result.Reservation = ReservationOutcome{Reserved: true}
		case pkgerrors.IsCode(reserveErr, pkgerrors.CodeInsufficientStock):
			typed := pkgerrors.As(reserveErr)
			result.Reservation = ReservationOutcome{Reserved: false, Reason: typed.Message(), Details: typed.Details()}
		default:
			return reserveErr
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSalesOrderCreated,
			AggregateType: enums.AggregateSalesOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data: payloads.SalesOrderCreatedEvent{
				OrderID:  order.ID,
				ClientID: order.ClientID,
				Status:   order.Status.String(),
				Reserved: result.Reservation.Reserved,
				Lines:    lineSnapshots(order.Lines),
			},
		}); err != nil {
			return err
		}
		if result.Reservation.Reserved {
			return s.emitStatus(ctx, tx, actor, enums.EventSalesOrderReserved, order, *order.ReservedAt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(metricsKind, enums.SalesOrderStatusCreated.String())
	if result.Reservation.Reserved {
		s.metrics.IncReservation(metrics.ReservationReserved)
		s.metrics.IncTransition(metricsKind, enums.SalesOrderStatusReserved.String())
	} else {
		s.metrics.IncReservation(metrics.ReservationInsufficient)
	}
	s.logg.Info(s.orderCtx(ctx, order), "sales_order.created")
	return result, nil
}

func (s *service) ReserveStock(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error) {
	var order *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.load(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		if current.Status != enums.SalesOrderStatusCreated {
			return pkgerrors.InvalidOperation("cannot reserve order in status %s", current.Status)
		}
		if err := s.reserve(ctx, tx, current); err != nil {
			return err
		}
		order = current
		return s.emitStatus(ctx, tx, actor, enums.EventSalesOrderReserved, current, *current.ReservedAt)
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			s.metrics.IncReservation(metrics.ReservationInsufficient)
		}
		return nil, err
	}
	s.metrics.IncReservation(metrics.ReservationReserved)
	s.metrics.IncTransition(metricsKind, order.Status.String())
	s.logg.Info(s.orderCtx(ctx, order), "sales_order.reserved")
	return order, nil
}

// reserve claims every line and moves the order to RESERVED. Any shortage fails the whole
// call; the caller's transaction or savepoint discards the partial claims.
func (s *service) reserve(ctx context.Context, tx *gorm.DB, order *models.SalesOrder) error {
	now := time.Now().UTC()
	if err := s.transition(ctx, tx, order, enums.SalesOrderStatusReserved, map[string]any{"reserved_at": now}); err != nil {
		return err
	}
	for _, line := range order.Lines {
		if err := s.ledger.Reserve(ctx, tx, line.WarehouseID, line.ProductID, line.Quantity); err != nil {
			order.Status = enums.SalesOrderStatusCreated
			return err
		}
	}
	order.ReservedAt = &now
	return nil
}

func (s *service) ShipOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*ShipResult, error) {
	result := &ShipResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.load(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.SalesOrderStatusReserved {
			return pkgerrors.InvalidOperation("cannot ship order in status %s", order.Status)
		}
		now := time.Now().UTC()
		if err := s.transition(ctx, tx, order, enums.SalesOrderStatusShipped, map[string]any{"shipped_at": now}); err != nil {
			return err
		}
		order.ShippedAt = &now

		reference := "SO-" + order.ID.String()
		for _, line := range order.Lines {
			if _, err := s.ledger.Consume(ctx, tx, line.WarehouseID, line.ProductID, line.Quantity, reference); err != nil {
				return err
			}
		}
		shipment, err := s.shipments.AutoCreateShipment(ctx, tx, order)
		if err != nil {
			return err
		}
		result.Order = order
		result.Shipment = shipment
		return s.emitStatus(ctx, tx, actor, enums.EventSalesOrderShipped, order, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(metricsKind, result.Order.Status.String())
	s.logg.Info(s.logg.WithField(s.orderCtx(ctx, result.Order), "tracking_number", result.Shipment.TrackingNumber), "sales_order.shipped")
	return result, nil
}

func (s *service) DeliverOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error) {
	var order *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.load(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		if current.Status != enums.SalesOrderStatusShipped {
			return pkgerrors.InvalidOperation("cannot deliver order in status %s", current.Status)
		}
		now := time.Now().UTC()
		if err := s.transition(ctx, tx, current, enums.SalesOrderStatusDelivered, map[string]any{"delivered_at": now}); err != nil {
			return err
		}
		current.DeliveredAt = &now
		if _, err := s.shipments.DeliverForOrder(ctx, tx, current.ID); err != nil {
			return err
		}
		order = current
		return s.emitStatus(ctx, tx, actor, enums.EventSalesOrderDelivered, current, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(metricsKind, order.Status.String())
	s.logg.Info(s.orderCtx(ctx, order), "sales_order.delivered")
	return order, nil
}

func (s *service) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error) {
	var order *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.load(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		if !actor.owns(current) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to client")
		}
		previous := current.Status
		if previous != enums.SalesOrderStatusCreated && previous != enums.SalesOrderStatusReserved {
			return pkgerrors.InvalidOperation("cannot cancel order in status %s", previous)
		}
		now := time.Now().UTC()
		if err := s.transition(ctx, tx, current, enums.SalesOrderStatusCanceled, map[string]any{"canceled_at": now}); err != nil {
			return err
		}
		current.CanceledAt = &now
		if previous == enums.SalesOrderStatusReserved {
			for _, line := range current.Lines {
				if err := s.ledger.Release(ctx, tx, line.WarehouseID, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}
		}
		order = current
		return s.emitStatus(ctx, tx, actor, enums.EventSalesOrderCanceled, current, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(metricsKind, order.Status.String())
	s.logg.Info(s.orderCtx(ctx, order), "sales_order.canceled")
	return order, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.SalesOrder, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.owns(order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to client")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, actor Actor, params ListParams) (*ListResult, error) {
	query := ListQuery{
		ClientID: params.ClientID,
		Status:   params.Status,
		Limit:    pagination.LimitWithBuffer(params.Limit),
	}
	if actor.Role == enums.RoleClient {
		if actor.ClientID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "client context missing")
		}
		query.ClientID = actor.ClientID
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *params.Status)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.SalesOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &ListResult{Orders: page, NextCursor: next}, nil
}

func (s *service) resolveClient(actor Actor, requested uuid.UUID) (uuid.UUID, error) {
	if actor.Role != enums.RoleClient {
		if requested == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "client id required")
		}
		return requested, nil
	}
	if actor.ClientID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "client context missing")
	}
	if requested != uuid.Nil && requested != *actor.ClientID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot place orders for another client")
	}
	return *actor.ClientID, nil
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.SalesOrder, to enums.SalesOrderStatus, updates map[string]any) error {
	updates["status"] = to
	ok, err := s.repo.WithTx(tx).Transition(ctx, order.ID, order.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sales order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "sales order changed concurrently")
	}
	order.Status = to
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.SalesOrder, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("sales order", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales order")
	}
	return order, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, actor Actor, eventType enums.OutboxEventType, order *models.SalesOrder, at time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSalesOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		OccurredAt:    at,
		Data: payloads.SalesOrderStatusEvent{
			OrderID:    order.ID,
			ClientID:   order.ClientID,
			Status:     order.Status.String(),
			OccurredAt: at,
		},
	})
}

func (s *service) orderCtx(ctx context.Context, order *models.SalesOrder) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID.String(),
		"client_id": order.ClientID.String(),
		"status":    order.Status,
	})
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	type key struct{ product, warehouse uuid.UUID }
	seen := make(map[key]struct{}, len(lines))
	for i, line := range lines {
		if line.ProductID == uuid.Nil || line.WarehouseID == uuid.Nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: product and warehouse are required", i)
		}
		if line.Quantity <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity must be greater than zero", i)
		}
		k := key{line.ProductID, line.WarehouseID}
		if _, dup := seen[k]; dup {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: duplicate product and warehouse", i)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func productIDs(lines []LineInput) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func lineSnapshots(lines []models.SalesOrderLine) []payloads.SalesOrderLine {
	out := make([]payloads.SalesOrderLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, payloads.SalesOrderLine{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
		})
	}
	return out
}
