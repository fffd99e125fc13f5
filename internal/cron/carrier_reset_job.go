package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

// CarrierResetJobParams wires the daily carrier capacity reset.
type CarrierResetJobParams struct {
	Logger    *logger.Logger
	Allocator capacityResetter
}

type capacityResetter interface {
	ResetAll(ctx context.Context) (int64, error)
}

// NewCarrierResetJob zeroes every carrier's daily shipment counter once per cycle.
func NewCarrierResetJob(params CarrierResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Allocator == nil {
		return nil, fmt.Errorf("carrier allocator required")
	}
	return &carrierResetJob{logg: params.Logger, allocator: params.Allocator}, nil
}

type carrierResetJob struct {
	logg      *logger.Logger
	allocator capacityResetter
}

func (j *carrierResetJob) Name() string { return "carrier-capacity-reset" }

func (j *carrierResetJob) Run(ctx context.Context) error {
	reset, err := j.allocator.ResetAll(ctx)
	if err != nil {
		return fmt.Errorf("carrier capacity reset: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "carriers_reset", reset), "carrier capacity reset complete")
	return nil
}
