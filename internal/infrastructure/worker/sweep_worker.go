package worker

import (
	"context"
	"time"

	"github.com/garyjia/order-workflow/internal/application/service"
	"go.uber.org/zap"
)

// InactivityConfig configures the inactivity sweep
type InactivityConfig struct {
	Interval       time.Duration
	InactivityDays int
}

// DefaultInactivityConfig sweeps hourly with the default threshold
func DefaultInactivityConfig() InactivityConfig {
	return InactivityConfig{
		Interval:       time.Hour,
		InactivityDays: service.DefaultInactivityDays,
	}
}

// InactivityWorker periodically flags inactive users and reclaims their orders
type InactivityWorker struct {
	loop
}

// NewInactivityWorker creates the periodic inactivity sweep
func NewInactivityWorker(cfg InactivityConfig, sweeps service.SweepService, logger *zap.Logger) *InactivityWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInactivityConfig().Interval
	}
	w := &InactivityWorker{}
	w.loop = loop{
		name:   "InactivityWorker",
		next:   func(time.Time) time.Duration { return cfg.Interval },
		now:    time.Now,
		logger: logger,
		job: func(ctx context.Context) error {
			result, err := sweeps.FlagInactive(ctx, cfg.InactivityDays)
			if err != nil {
				return err
			}
			if len(result.Flagged) > 0 {
				logger.Info("Inactivity sweep finished",
					zap.Int("flagged", len(result.Flagged)),
					zap.Int("reclaimed", result.Reclaimed))
			}
			return nil
		},
	}
	return w
}

// DailyResetWorker zeroes the daily completion counters at midnight UTC
type DailyResetWorker struct {
	loop
}

// NewDailyResetWorker creates the midnight counter reset
func NewDailyResetWorker(sweeps service.SweepService, logger *zap.Logger) *DailyResetWorker {
	w := &DailyResetWorker{}
	w.loop = loop{
		name:   "DailyResetWorker",
		next:   untilMidnightUTC,
		now:    time.Now,
		logger: logger,
		job: func(ctx context.Context) error {
			_, err := sweeps.ResetDailyCounters(ctx)
			return err
		},
	}
	return w
}

// untilMidnightUTC returns the wait until the next UTC day boundary
func untilMidnightUTC(now time.Time) time.Duration {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return midnight.Sub(now)
}
