// Package jobs contains the background jobs executed by the scheduler.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/retry"
)

// PromotePeriodsJob sweeps for academic periods whose scheduled opening
// time has passed and promotes them to ACTIVE. The sweep is idempotent:
// a period another process already promoted is skipped, and a sweep that
// finds nothing due is a no-op.
type PromotePeriodsJob struct {
	periods PeriodPromoter
	retry   retry.Config
	logger  *slog.Logger
}

// PeriodPromoter is the slice of the period service the sweep needs.
type PeriodPromoter interface {
	ListDue(ctx context.Context) ([]*period.AcademicPeriod, error)
	PromoteNow(ctx context.Context, periodID int64) error
}

// NewPromotePeriodsJob creates the job.
func NewPromotePeriodsJob(periods PeriodPromoter, logger *slog.Logger) *PromotePeriodsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromotePeriodsJob{
		periods: periods,
		retry:   retry.DefaultConfig(),
		logger:  logger,
	}
}

func (j *PromotePeriodsJob) Name() string { return "promote_periods" }

func (j *PromotePeriodsJob) Description() string {
	return "Promotes academic periods whose scheduled opening time has arrived"
}

// Run lists due periods and promotes each one. Listing is retried on
// transient store errors; individual promotion failures do not abort
// the rest of the sweep.
func (j *PromotePeriodsJob) Run(ctx context.Context) error {
	var due []int64
	err := retry.Do(ctx, j.retry, func(ctx context.Context) error {
		periods, err := j.periods.ListDue(ctx)
		if err != nil {
			return err
		}
		due = due[:0]
		for _, p := range periods {
			due = append(due, p.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list due periods: %w", err)
	}

	if len(due) == 0 {
		j.logger.Debug("no periods due for opening")
		return nil
	}

	var promoted, skipped, failed int
	for _, id := range due {
		switch err := j.periods.PromoteNow(ctx, id); {
		case err == nil:
			promoted++
			j.logger.Info("period promoted", "period_id", id)

		// Lost the race to a concurrent promotion, or the period
		// changed state between the sweep and this call.
		case errors.Is(err, shared.ErrConflict) || errors.Is(err, shared.ErrInvalidState):
			skipped++
			j.logger.Debug("period promotion skipped", "period_id", id, "reason", err)

		default:
			failed++
			j.logger.Error("period promotion failed", "period_id", id, "error", err)
		}
	}

	j.logger.Info("promotion sweep finished",
		"due", len(due),
		"promoted", promoted,
		"skipped", skipped,
		"failed", failed,
	)

	if failed > 0 {
		return fmt.Errorf("%d of %d promotions failed", failed, len(due))
	}
	return nil
}
