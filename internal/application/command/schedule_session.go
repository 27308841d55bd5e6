// Package command contains the write-side handlers. Every state change runs
// inside a unit of work; conflict decisions taken by advisory queries are
// repeated here, inside the transaction, so two racing writers cannot both
// win the same slot.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/application/query"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/audit"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/schedule"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/uow"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSessionCommand creates a mentoring session. Date may be nil: the
// session is then created empty, to be scheduled later, but still burns the
// next sequence number.
type ScheduleSessionCommand struct {
	ProjectID int64
	ActorID   int64 // the advisor acting; must supervise the project

	Date      *time.Time
	StartTime string
	EndTime   string
}

// Validate checks field syntax. Time strings are validated strictly at this
// boundary; the lenient parser is for reads only.
func (c ScheduleSessionCommand) Validate() error {
	if c.ProjectID <= 0 || c.ActorID <= 0 {
		return shared.NewDomainError("session", "Schedule", shared.ErrInvalidInput,
			"project and actor are required")
	}
	if c.Date == nil {
		return nil
	}
	start, ok := timeutil.ParseClockStrict(c.StartTime)
	if !ok {
		return shared.NewDomainError("session", "Schedule", shared.ErrInvalidInput,
			"start time must be HH:MM")
	}
	if c.EndTime != "" {
		end, ok := timeutil.ParseClockStrict(c.EndTime)
		if !ok || end <= start {
			return shared.NewDomainError("session", "Schedule", shared.ErrInvalidInput,
				"end time must be HH:MM after the start")
		}
	}
	return nil
}

// ScheduleSessionResult reports the created session and its sequence number.
type ScheduleSessionResult struct {
	SessionID  int64
	SequenceNo int
}

// ScheduleSessionHandler creates sessions. Inside one transaction it checks
// the actor's supervisory role, requires an active period, re-runs the
// conflict check against current data, and assigns sequence number count+1.
type ScheduleSessionHandler struct {
	uowf      uow.Factory
	publisher shared.EventPublisher
	audits    audit.Sink
	clock     timeutil.Clock
	logger    *slog.Logger
}

func NewScheduleSessionHandler(uowf uow.Factory, publisher shared.EventPublisher, audits audit.Sink, clock timeutil.Clock, logger *slog.Logger) *ScheduleSessionHandler {
	return &ScheduleSessionHandler{uowf: uowf, publisher: publisher, audits: audits, clock: clock, logger: logger}
}

func (h *ScheduleSessionHandler) Handle(ctx context.Context, cmd ScheduleSessionCommand) (*ScheduleSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	var created *session.Session

	err := uow.Within(ctx, h.uowf, func(tx uow.UnitOfWork) error {
		if _, err := tx.Periods().GetActive(ctx); err != nil {
			if errors.Is(err, shared.ErrPeriodNotFound) {
				return shared.ErrPeriodNotActive
			}
			return err
		}

		if _, err := tx.Assignments().GetRole(ctx, cmd.ProjectID, cmd.ActorID); err != nil {
			return err
		}

		if cmd.Date != nil {
			if err := ensureFree(ctx, tx, cmd.ActorID, *cmd.Date, cmd.StartTime, cmd.EndTime, nil); err != nil {
				return err
			}
		}

		count, err := tx.Sessions().CountByProject(ctx, cmd.ProjectID)
		if err != nil {
			return err
		}

		if cmd.Date != nil {
			created = session.NewScheduled(cmd.ProjectID, cmd.ActorID, count+1,
				*cmd.Date, cmd.StartTime, cmd.EndTime, now)
		} else {
			created = session.New(cmd.ProjectID, cmd.ActorID, count+1, now)
		}
		return tx.Sessions().Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	h.audits.Record(ctx, audit.Entry{
		ActorID:    cmd.ActorID,
		Action:     audit.ActionSessionScheduled,
		EntityType: "session",
		EntityID:   created.ID,
		CreatedAt:  now,
	})
	evt := shared.NewSessionEvent(shared.EventSessionScheduled, created.ID, created.ProjectID, created.AdvisorID, created.SequenceNo)
	if created.HasSchedule() {
		evt = evt.WithSchedule(timeutil.FormatDate(*created.Date), created.StartTime, created.EndTime)
	}
	if err := h.publisher.Publish(evt); err != nil {
		h.logger.Warn("publish failed", "event", evt.EventType(), "error", err)
	}

	return &ScheduleSessionResult{SessionID: created.ID, SequenceNo: created.SequenceNo}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transactional conflict re-check
// ─────────────────────────────────────────────────────────────────────────────

// ensureFree re-runs the busy-interval overlap test against the transaction's
// view of the data. It first serializes on the advisor's calendar day, so the
// losing writer of a race only reads after the winner has committed and fails
// here with ErrConflict naming the clashing window.
func ensureFree(ctx context.Context, tx uow.UnitOfWork, advisorID int64, date time.Time, startTime, endTime string, excludeSessionID *int64) error {
	if err := tx.Sessions().LockAdvisorDay(ctx, advisorID, date); err != nil {
		return err
	}

	busy, err := query.GatherBusy(ctx, tx.Sessions(), tx.Commitments(), advisorID, date, excludeSessionID)
	if err != nil {
		return err
	}

	start := timeutil.ParseClock(startTime)
	end := start + schedule.DefaultSessionMinutes
	if v, ok := timeutil.ParseClockStrict(endTime); ok && v > start {
		end = v
	}

	for _, iv := range busy {
		if schedule.Overlaps(start, end, iv.Start, iv.End) {
			return shared.NewDomainError("session", "Schedule", shared.ErrConflict,
				fmt.Sprintf("advisor already has a commitment %s-%s",
					timeutil.FormatClock(iv.Start), timeutil.FormatClock(iv.End)))
		}
	}
	return nil
}
