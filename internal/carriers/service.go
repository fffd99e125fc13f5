package carriers

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
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/payloads"
)

// resetAggregateID keys every capacity reset event to one stable aggregate.
var resetAggregateID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("stockflow.carrier-capacity-reset"))

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Allocator guards each carrier's daily shipment counter. Calls with a non-nil tx join
// the caller's transaction.
type Allocator interface {
	Increment(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID, n int) error
	Decrement(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID) error
	ResetAll(ctx context.Context) (int64, error)
}

// Service adds carrier administration on top of the allocator.
type Service interface {
	Allocator
	Create(ctx context.Context, input CreateInput) (*models.Carrier, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Carrier, error)
	GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Carrier, error)
	List(ctx context.Context) ([]models.Carrier, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.CarrierStatus) (*models.Carrier, error)
}

// CreateInput registers a carrier.
type CreateInput struct {
	Code             string
	Name             string
	MaxDailyCapacity int
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds the carrier capacity allocator.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("carriers repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, logg: logg}, nil
}

func (s *service) within(ctx context.Context, tx *gorm.DB, fn func(repo Repository) error) error {
	if tx != nil {
		return fn(s.repo.WithTx(tx))
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

// Increment takes n slots only when the carrier is active and has room for all of them.
func (s *service) Increment(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID, n int) error {
	if n <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "increment must be greater than zero")
	}
	return s.within(ctx, tx, func(repo Repository) error {
		ok, err := repo.Increment(ctx, carrierID, n)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment carrier capacity")
		}
		if ok {
			return nil
		}
		carrier, err := repo.FindByID(ctx, carrierID)
		if err != nil {
			return mapLookupError(err, carrierID)
		}
		if carrier.Status != enums.CarrierStatusActive {
			return pkgerrors.InvalidOperation("carrier %s is not active", carrier.Code)
		}
		if n == 1 {
			return pkgerrors.InvalidOperation("max daily capacity reached").
				WithDetails(capacityDetails(carrier, n))
		}
		return pkgerrors.InvalidOperation("available capacity exceeded").
			WithDetails(capacityDetails(carrier, n))
	})
}

// Decrement frees one slot, never going below zero.
func (s *service) Decrement(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID) error {
	return s.within(ctx, tx, func(repo Repository) error {
		ok, err := repo.Decrement(ctx, carrierID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement carrier capacity")
		}
		if ok {
			return nil
		}
		if _, err := repo.FindByID(ctx, carrierID); err != nil {
			return mapLookupError(err, carrierID)
		}
		s.logg.Warn(s.logg.WithField(ctx, "carrier_id", carrierID.String()), "carrier.decrement_at_zero")
		return nil
	})
}

// ResetAll zeroes every carrier's daily counter.
func (s *service) ResetAll(ctx context.Context) (int64, error) {
	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).ResetAll(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset carrier capacity")
		}
		affected = n
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCarrierCapacityReset,
			AggregateType: enums.AggregateCarrier,
			AggregateID:   resetAggregateID,
			Data:          payloads.CarrierCapacityResetEvent{CarriersReset: n, ResetAt: time.Now().UTC()},
		})
	})
	if err != nil {
		return 0, err
	}
	s.logg.Info(s.logg.WithField(ctx, "carriers_reset", affected), "carrier.capacity_reset")
	return affected, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Carrier, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if input.MaxDailyCapacity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max daily capacity must be greater than zero")
	}
	carrier := &models.Carrier{
		Code:             code,
		Name:             name,
		MaxDailyCapacity: input.MaxDailyCapacity,
		Status:           enums.CarrierStatusActive,
	}
	if err := s.repo.Create(ctx, carrier); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "carrier with code %s already exists", code)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create carrier")
	}
	return carrier, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Carrier, error) {
	return s.GetTx(ctx, nil, id)
}

func (s *service) GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Carrier, error) {
	carrier, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, id)
	}
	return carrier, nil
}

func (s *service) List(ctx context.Context) ([]models.Carrier, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list carriers")
	}
	return rows, nil
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.CarrierStatus) (*models.Carrier, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid carrier status %q", status)
	}
	var carrier *models.Carrier
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err, id)
		}
		carrier = current
		if current.Status == status {
			return nil
		}
		if err := repo.UpdateStatus(ctx, id, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update carrier status")
		}
		from := current.Status
		current.Status = status
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCarrierStatusChanged,
			AggregateType: enums.AggregateCarrier,
			AggregateID:   current.ID,
			Data: payloads.CarrierStatusChangedEvent{
				CarrierID: current.ID,
				Code:      current.Code,
				From:      from.String(),
				To:        status.String(),
				ChangedAt: time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"carrier_id": id.String(), "status": status}), "carrier.status_changed")
	return carrier, nil
}

func capacityDetails(carrier *models.Carrier, requested int) map[string]any {
	return map[string]any{
		"carrier_id":         carrier.ID.String(),
		"max_daily_capacity": carrier.MaxDailyCapacity,
		"current":            carrier.CurrentDailyShipments,
		"available":          carrier.AvailableCapacity(),
		"requested":          requested,
	}
}

func mapLookupError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("carrier", id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load carrier")
}
