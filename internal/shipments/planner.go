package shipments

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
)

const (
	trackingPrefix       = "TRK"
	trackingSuffixLength = 10
)

// Planner decides dispatch dates and mints tracking numbers.
type Planner struct {
	cutoffHour   int
	cutoffMinute int
	loc          *time.Location
	now          func() time.Time
}

// NewPlanner reads the cut-off and timezone from the logistics config.
func NewPlanner(cfg config.LogisticsConfig) (*Planner, error) {
	hour, minute, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Planner{cutoffHour: hour, cutoffMinute: minute, loc: loc, now: time.Now}, nil
}

// PlannedDate returns the dispatch day for an order placed at placedAt: the same day
// before the cut-off, the next day at or after it.
func (p *Planner) PlannedDate(placedAt time.Time) time.Time {
	local := placedAt.In(p.loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), p.cutoffHour, p.cutoffMinute, 0, 0, p.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
	if !local.Before(cutoff) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// TrackingNumber formats TRK-YYYYMMDD-XXXXXXXXXX using the current local date.
func (p *Planner) TrackingNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:trackingSuffixLength]
	return trackingPrefix + "-" + p.Now().Format("20060102") + "-" + suffix
}

// Now is the planner's clock in its configured timezone.
func (p *Planner) Now() time.Time {
	return p.now().In(p.loc)
}
