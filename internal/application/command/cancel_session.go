package command

import (
	"context"
	"log/slog"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/audit"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/uow"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANCEL SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CancelSessionCommand terminally cancels a session. The sequence number is
// not reused; later sessions keep their ordinals.
type CancelSessionCommand struct {
	SessionID int64
	ActorID   int64
	Reason    string
}

type CancelSessionHandler struct {
	uowf      uow.Factory
	publisher shared.EventPublisher
	audits    audit.Sink
	clock     timeutil.Clock
	logger    *slog.Logger
}

func NewCancelSessionHandler(uowf uow.Factory, publisher shared.EventPublisher, audits audit.Sink, clock timeutil.Clock, logger *slog.Logger) *CancelSessionHandler {
	return &CancelSessionHandler{uowf: uowf, publisher: publisher, audits: audits, clock: clock, logger: logger}
}

func (h *CancelSessionHandler) Handle(ctx context.Context, cmd CancelSessionCommand) error {
	now := h.clock.Now()
	var cancelled *session.Session

	err := uow.Within(ctx, h.uowf, func(tx uow.UnitOfWork) error {
		s, err := tx.Sessions().GetByID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if s.AdvisorID != cmd.ActorID {
			return shared.ErrNotSessionAdvisor
		}
		if err := s.Cancel(now); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, s); err != nil {
			return err
		}
		cancelled = s
		return nil
	})
	if err != nil {
		return err
	}

	h.audits.Record(ctx, audit.Entry{
		ActorID:    cmd.ActorID,
		Action:     audit.ActionSessionCancelled,
		EntityType: "session",
		EntityID:   cancelled.ID,
		Detail:     map[string]any{"reason": cmd.Reason},
		CreatedAt:  now,
	})
	evt := shared.NewSessionEvent(shared.EventSessionCancelled, cancelled.ID, cancelled.ProjectID, cancelled.AdvisorID, cancelled.SequenceNo)
	if err := h.publisher.Publish(evt); err != nil {
		h.logger.Warn("publish failed", "event", evt.EventType(), "error", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIRM SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmSessionCommand records the student's attendance confirmation. The
// student confirms their own project's session, so the role check is against
// the project's student rather than the advisor.
type ConfirmSessionCommand struct {
	SessionID int64
	StudentID int64
}

type ConfirmSessionHandler struct {
	uowf      uow.Factory
	publisher shared.EventPublisher
	audits    audit.Sink
	clock     timeutil.Clock
	logger    *slog.Logger
}

func NewConfirmSessionHandler(uowf uow.Factory, publisher shared.EventPublisher, audits audit.Sink, clock timeutil.Clock, logger *slog.Logger) *ConfirmSessionHandler {
	return &ConfirmSessionHandler{uowf: uowf, publisher: publisher, audits: audits, clock: clock, logger: logger}
}

func (h *ConfirmSessionHandler) Handle(ctx context.Context, cmd ConfirmSessionCommand) error {
	now := h.clock.Now()
	var confirmed *session.Session

	err := uow.Within(ctx, h.uowf, func(tx uow.UnitOfWork) error {
		s, err := tx.Sessions().GetByID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		project, err := tx.Projects().GetByID(ctx, s.ProjectID)
		if err != nil {
			return err
		}
		if project.StudentID != cmd.StudentID {
			return shared.ErrForbidden
		}
		if err := s.Confirm(now); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, s); err != nil {
			return err
		}
		confirmed = s
		return nil
	})
	if err != nil {
		return err
	}

	h.audits.Record(ctx, audit.Entry{
		ActorID:    cmd.StudentID,
		Action:     audit.ActionSessionConfirmed,
		EntityType: "session",
		EntityID:   confirmed.ID,
		CreatedAt:  now,
	})
	evt := shared.NewSessionEvent(shared.EventSessionConfirmed, confirmed.ID, confirmed.ProjectID, confirmed.AdvisorID, confirmed.SequenceNo)
	if err := h.publisher.Publish(evt); err != nil {
		h.logger.Warn("publish failed", "event", evt.EventType(), "error", err)
	}
	return nil
}
