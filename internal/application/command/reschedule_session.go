package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/audit"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/uow"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESCHEDULE SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RescheduleSessionCommand moves a session to a new date and window, keeping
// an immutable history record of the old schedule.
type RescheduleSessionCommand struct {
	SessionID int64
	ActorID   int64

	NewDate   time.Time
	StartTime string
	EndTime   string
	Reason    string
}

func (c RescheduleSessionCommand) Validate() error {
	if c.SessionID <= 0 || c.ActorID <= 0 {
		return shared.NewDomainError("session", "Reschedule", shared.ErrInvalidInput,
			"session and actor are required")
	}
	start, ok := timeutil.ParseClockStrict(c.StartTime)
	if !ok {
		return shared.NewDomainError("session", "Reschedule", shared.ErrInvalidInput,
			"start time must be HH:MM")
	}
	if c.EndTime != "" {
		end, ok := timeutil.ParseClockStrict(c.EndTime)
		if !ok || end <= start {
			return shared.NewDomainError("session", "Reschedule", shared.ErrInvalidInput,
				"end time must be HH:MM after the start")
		}
	}
	return nil
}

// RescheduleSessionHandler moves sessions. The new window goes through the
// same transactional conflict check as creation, ignoring the session being
// moved so it never conflicts with itself.
type RescheduleSessionHandler struct {
	uowf      uow.Factory
	publisher shared.EventPublisher
	audits    audit.Sink
	clock     timeutil.Clock
	logger    *slog.Logger
}

func NewRescheduleSessionHandler(uowf uow.Factory, publisher shared.EventPublisher, audits audit.Sink, clock timeutil.Clock, logger *slog.Logger) *RescheduleSessionHandler {
	return &RescheduleSessionHandler{uowf: uowf, publisher: publisher, audits: audits, clock: clock, logger: logger}
}

func (h *RescheduleSessionHandler) Handle(ctx context.Context, cmd RescheduleSessionCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	var moved *session.Session

	err := uow.Within(ctx, h.uowf, func(tx uow.UnitOfWork) error {
		s, err := tx.Sessions().GetByID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if s.AdvisorID != cmd.ActorID {
			return shared.ErrNotSessionAdvisor
		}

		if err := ensureFree(ctx, tx, s.AdvisorID, cmd.NewDate, cmd.StartTime, cmd.EndTime, &s.ID); err != nil {
			return err
		}

		record := &session.Reschedule{
			SessionID:   s.ID,
			RequestedBy: cmd.ActorID,
			OldDate:     s.Date,
			OldStart:    s.StartTime,
			OldEnd:      s.EndTime,
			NewDate:     timeutil.StartOfDay(cmd.NewDate),
			NewStart:    cmd.StartTime,
			NewEnd:      cmd.EndTime,
			Reason:      cmd.Reason,
			CreatedAt:   now,
		}

		if err := s.SetSchedule(cmd.NewDate, cmd.StartTime, cmd.EndTime, now); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, s); err != nil {
			return err
		}
		if err := tx.Sessions().AddReschedule(ctx, record); err != nil {
			return err
		}
		moved = s
		return nil
	})
	if err != nil {
		return err
	}

	h.audits.Record(ctx, audit.Entry{
		ActorID:    cmd.ActorID,
		Action:     audit.ActionSessionRescheduled,
		EntityType: "session",
		EntityID:   moved.ID,
		Detail:     map[string]any{"reason": cmd.Reason},
		CreatedAt:  now,
	})
	evt := shared.NewSessionEvent(shared.EventSessionRescheduled, moved.ID, moved.ProjectID, moved.AdvisorID, moved.SequenceNo).
		WithSchedule(timeutil.FormatDate(*moved.Date), moved.StartTime, moved.EndTime)
	if err := h.publisher.Publish(evt); err != nil {
		h.logger.Warn("publish failed", "event", evt.EventType(), "error", err)
	}
	return nil
}
