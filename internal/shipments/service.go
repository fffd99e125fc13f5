package shipments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/payloads"
)

const (
	maxTrackingAttempts = 3
	trackingConstraint  = "idx_shipments_tracking_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// carrierAllocator is the slice of the carrier service the dispatcher drives.
type carrierAllocator interface {
	GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Carrier, error)
	Increment(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID, n int) error
	Decrement(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID) error
}

// Service dispatches shipments and keeps carrier slots in step with them.
type Service interface {
	AutoCreateShipment(ctx context.Context, tx *gorm.DB, order *models.SalesOrder) (*models.Shipment, error)
	AssignCarrier(ctx context.Context, shipmentID, carrierID uuid.UUID) (*models.Shipment, error)
	AssignMultipleShipments(ctx context.Context, carrierID uuid.UUID, shipmentIDs []uuid.UUID) ([]models.Shipment, error)
	MarkAsInTransit(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	MarkAsDelivered(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	DeliverForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Shipment, error)
	DeleteShipment(ctx context.Context, shipmentID uuid.UUID) error
	Get(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	carriers carrierAllocator
	outbox   outboxPublisher
	planner  *Planner
	metrics  *metrics.FulfillmentMetrics
	logg     *logger.Logger
}

// NewService builds the shipment dispatcher. metrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	carriers carrierAllocator,
	publisher outboxPublisher,
	planner *Planner,
	fulfillment *metrics.FulfillmentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carriers == nil {
		return nil, fmt.Errorf("carrier allocator required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if planner == nil {
		return nil, fmt.Errorf("planner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		carriers: carriers,
		outbox:   publisher,
		planner:  planner,
		metrics:  fulfillment,
		logg:     logg,
	}, nil
}

func (s *service) within(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.tx.WithTx(ctx, fn)
}

// AutoCreateShipment returns the order's shipment, creating a PLANNED one the first time.
func (s *service) AutoCreateShipment(ctx context.Context, tx *gorm.DB, order *models.SalesOrder) (*models.Shipment, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	var shipment *models.Shipment
	created := false
	err := s.within(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByOrder(ctx, order.ID)
		if err == nil {
			shipment = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order shipment")
		}

		planned := s.planner.PlannedDate(order.CreatedAt)
		for attempt := 1; attempt <= maxTrackingAttempts; attempt++ {
			candidate := &models.Shipment{
				OrderID:        order.ID,
				TrackingNumber: s.planner.TrackingNumber(),
				Status:         enums.ShipmentStatusPlanned,
				PlannedDate:    planned,
			}
			err = tx.Transaction(func(sp *gorm.DB) error {
				return s.repo.WithTx(sp).Create(ctx, candidate)
			})
			if err == nil {
				shipment = candidate
				created = true
				break
			}
			if !db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
			}
			if !isTrackingCollision(err) {
				// another request created the shipment first
				existing, findErr := repo.FindByOrder(ctx, order.ID)
				if findErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load order shipment")
				}
				shipment = existing
				return nil
			}
		}
		if shipment == nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique tracking number")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentPlanned,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Data: payloads.ShipmentPlannedEvent{
				ShipmentID:     shipment.ID,
				OrderID:        order.ID,
				TrackingNumber: shipment.TrackingNumber,
				PlannedDate:    shipment.PlannedDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.IncShipmentCreated()
		s.logg.Info(s.shipmentCtx(ctx, shipment), "shipment.planned")
	}
	return shipment, nil
}

func (s *service) AssignCarrier(ctx context.Context, shipmentID, carrierID uuid.UUID) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, shipmentID)
		if err != nil {
			return err
		}
		if current.Status != enums.ShipmentStatusPlanned {
			return pkgerrors.InvalidOperation("cannot assign carrier to shipment in status %s", current.Status)
		}
		if current.CarrierID != nil && *current.CarrierID == carrierID {
			shipment = current
			return nil
		}

		carrier, err := s.carriers.GetTx(ctx, tx, carrierID)
		if err != nil {
			return err
		}
		if carrier.Status != enums.CarrierStatusActive {
			return pkgerrors.InvalidOperation("carrier %s is not active", carrier.Code)
		}
		if carrier.CurrentDailyShipments >= carrier.MaxDailyCapacity {
			s.metrics.IncCapacityRejected("single")
			return pkgerrors.InvalidOperation("max daily capacity reached")
		}
		if err := s.carriers.Increment(ctx, tx, carrierID, 1); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidOperation) {
				s.metrics.IncCapacityRejected("single")
			}
			return err
		}
		if current.CarrierID != nil {
			if err := s.carriers.Decrement(ctx, tx, *current.CarrierID); err != nil {
				return err
			}
		}

		ok, err := repo.SetCarrier(ctx, shipmentID, carrierID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign carrier")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "shipment changed while assigning carrier")
		}
		current.CarrierID = &carrierID
		shipment = current
		return s.emitAssigned(ctx, tx, current, carrierID)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.shipmentCtx(ctx, shipment), "shipment.carrier_assigned")
	return shipment, nil
}

// AssignMultipleShipments assigns every shipment to the carrier or none of them.
func (s *service) AssignMultipleShipments(ctx context.Context, carrierID uuid.UUID, shipmentIDs []uuid.UUID) ([]models.Shipment, error) {
	if len(shipmentIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one shipment is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(shipmentIDs))
	for _, id := range shipmentIDs {
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "shipment %s listed more than once", id)
		}
		seen[id] = struct{}{}
	}

	var assigned []models.Shipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carrier, err := s.carriers.GetTx(ctx, tx, carrierID)
		if err != nil {
			return err
		}
		if carrier.Status != enums.CarrierStatusActive {
			return pkgerrors.InvalidOperation("carrier %s is not active", carrier.Code)
		}
		if available := carrier.AvailableCapacity(); len(shipmentIDs) > available {
			s.metrics.IncCapacityRejected("batch")
			return pkgerrors.InvalidOperation("available capacity exceeded").WithDetails(map[string]any{
				"carrier_id": carrierID.String(),
				"available":  available,
				"requested":  len(shipmentIDs),
			})
		}

		repo := s.repo.WithTx(tx)
		rows, err := repo.FindByIDs(ctx, shipmentIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipments")
		}
		byID := make(map[uuid.UUID]models.Shipment, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}
		for _, id := range shipmentIDs {
			row, ok := byID[id]
			if !ok {
				return pkgerrors.NotFound("shipment", id)
			}
			if row.Status != enums.ShipmentStatusPlanned {
				return pkgerrors.InvalidOperation("shipment %s is in status %s", id, row.Status)
			}
			if row.CarrierID != nil {
				return pkgerrors.InvalidOperation("shipment %s already has a carrier", id)
			}
		}

		if err := s.carriers.Increment(ctx, tx, carrierID, len(shipmentIDs)); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidOperation) {
				s.metrics.IncCapacityRejected("batch")
			}
			return err
		}
		n, err := repo.SetCarrierBatch(ctx, shipmentIDs, carrierID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign carrier batch")
		}
		if n != int64(len(shipmentIDs)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "shipments changed while assigning carrier")
		}

		assigned = make([]models.Shipment, 0, len(shipmentIDs))
		for _, id := range shipmentIDs {
			row := byID[id]
			row.CarrierID = &carrierID
			if err := s.emitAssigned(ctx, tx, &row, carrierID); err != nil {
				return err
			}
			assigned = append(assigned, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"carrier_id": carrierID.String(),
		"shipments":  len(assigned),
	}), "shipment.carrier_batch_assigned")
	return assigned, nil
}

func (s *service) MarkAsInTransit(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, shipmentID)
		if err != nil {
			return err
		}
		if current.Status != enums.ShipmentStatusPlanned {
			return pkgerrors.InvalidOperation("cannot mark shipment in status %s as in transit", current.Status)
		}
		if current.CarrierID == nil {
			return pkgerrors.InvalidOperation("shipment has no carrier assigned")
		}
		now := time.Now().UTC()
		ok, err := repo.Transition(ctx, shipmentID, enums.ShipmentStatusPlanned, map[string]any{
			"status":       enums.ShipmentStatusInTransit,
			"shipped_date": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark shipment in transit")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "shipment changed while updating status")
		}
		current.Status = enums.ShipmentStatusInTransit
		current.ShippedDate = &now
		shipment = current
		return s.emitStatus(ctx, tx, enums.EventShipmentInTransit, current, now)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.shipmentCtx(ctx, shipment), "shipment.in_transit")
	return shipment, nil
}

func (s *service) MarkAsDelivered(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.load(ctx, s.repo.WithTx(tx), shipmentID)
		if err != nil {
			return err
		}
		shipment, err = s.deliver(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.shipmentCtx(ctx, shipment), "shipment.delivered")
	return shipment, nil
}

// DeliverForOrder delivers the order's shipment when it is in transit. A planned
// shipment that already holds a carrier slot blocks delivery; it has to go in transit
// or lose its carrier first. Any other state, including no shipment at all, is left
// untouched and returned as is.
func (s *service) DeliverForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.within(ctx, tx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindByOrder(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order shipment")
		}
		if current.Status == enums.ShipmentStatusPlanned && current.CarrierID != nil {
			return pkgerrors.InvalidOperation("shipment %s has a carrier assigned and is not in transit", current.TrackingNumber)
		}
		if current.Status != enums.ShipmentStatusInTransit {
			shipment = current
			return nil
		}
		shipment, err = s.deliver(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

func (s *service) deliver(ctx context.Context, tx *gorm.DB, current *models.Shipment) (*models.Shipment, error) {
	if current.Status != enums.ShipmentStatusInTransit {
		return nil, pkgerrors.InvalidOperation("cannot deliver shipment in status %s", current.Status)
	}
	now := time.Now().UTC()
	ok, err := s.repo.WithTx(tx).Transition(ctx, current.ID, enums.ShipmentStatusInTransit, map[string]any{
		"status":         enums.ShipmentStatusDelivered,
		"delivered_date": now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark shipment delivered")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipment changed while updating status")
	}
	if current.CarrierID != nil {
		if err := s.carriers.Decrement(ctx, tx, *current.CarrierID); err != nil {
			return nil, err
		}
	}
	current.Status = enums.ShipmentStatusDelivered
	current.DeliveredDate = &now
	if err := s.emitStatus(ctx, tx, enums.EventShipmentDelivered, current, now); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *service) DeleteShipment(ctx context.Context, shipmentID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, shipmentID)
		if err != nil {
			return err
		}
		if current.Status != enums.ShipmentStatusPlanned {
			return pkgerrors.InvalidOperation("cannot delete shipment in status %s", current.Status)
		}
		ok, err := repo.Delete(ctx, shipmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete shipment")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "shipment changed while deleting")
		}
		if current.CarrierID != nil {
			return s.carriers.Decrement(ctx, tx, *current.CarrierID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "shipment_id", shipmentID.String()), "shipment.deleted")
	return nil
}

func (s *service) Get(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	return s.load(ctx, s.repo, shipmentID)
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("shipment", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order shipment")
	}
	return shipment, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Shipment, error) {
	shipment, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("shipment", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	return shipment, nil
}

func (s *service) emitAssigned(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, carrierID uuid.UUID) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventShipmentCarrierAssigned,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipment.ID,
		Data: payloads.ShipmentCarrierAssignedEvent{
			ShipmentID:     shipment.ID,
			OrderID:        shipment.OrderID,
			CarrierID:      carrierID,
			TrackingNumber: shipment.TrackingNumber,
		},
	})
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, shipment *models.Shipment, at time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipment.ID,
		OccurredAt:    at,
		Data: payloads.ShipmentStatusEvent{
			ShipmentID:     shipment.ID,
			OrderID:        shipment.OrderID,
			CarrierID:      shipment.CarrierID,
			TrackingNumber: shipment.TrackingNumber,
			Status:         shipment.Status.String(),
			OccurredAt:     at,
		},
	})
}

// isTrackingCollision distinguishes a duplicate tracking number from a duplicate order.
func isTrackingCollision(err error) bool {
	return db.IsUniqueViolation(err, trackingConstraint) || strings.Contains(err.Error(), "shipments.tracking_number")
}

func (s *service) shipmentCtx(ctx context.Context, shipment *models.Shipment) context.Context {
	fields := map[string]any{
		"shipment_id":     shipment.ID.String(),
		"order_id":        shipment.OrderID.String(),
		"tracking_number": shipment.TrackingNumber,
		"status":          shipment.Status,
	}
	if shipment.CarrierID != nil {
		fields["carrier_id"] = shipment.CarrierID.String()
	}
	return s.logg.WithFields(ctx, fields)
}
