package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// dailyResetCron fires at midnight UTC.
const dailyResetCron = "0 0 * * *"

// LossResetter is the breaker surface the daily boundary needs.
type LossResetter interface {
	ResetDailyLoss()
}

// DailyReset clears the breaker's daily loss accumulator at the accounting
// boundary. The breaker itself never resets losses on the clock; this loop is
// the single place the boundary is defined.
type DailyReset struct {
	breaker LossResetter
	onReset func(ctx context.Context)
	logger  *slog.Logger
}

// NewDailyReset creates a DailyReset. onReset may be nil; when set it runs
// after each reset (audit log, operator notification).
func NewDailyReset(breaker LossResetter, onReset func(ctx context.Context), logger *slog.Logger) *DailyReset {
	return &DailyReset{
		breaker: breaker,
		onReset: onReset,
		logger:  logger.With(slog.String("component", "daily_reset")),
	}
}

// Run blocks until ctx is cancelled, resetting the daily loss at every
// midnight UTC boundary.
func (d *DailyReset) Run(ctx context.Context) error {
	for {
		next, err := nextCronTime(dailyResetCron, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: daily reset schedule: %w", err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			d.breaker.ResetDailyLoss()
			d.logger.Info("daily loss boundary reset", slog.Time("boundary", next))
			if d.onReset != nil {
				d.onReset(ctx)
			}
		}
	}
}
