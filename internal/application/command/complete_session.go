package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/audit"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/thesis"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/uow"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CompleteSessionCommand marks a session as held. If the session has a
// document revision attached, the acting advisor's supervisory role signs
// it off in the same transaction; the revision becomes approved once both
// the first and the second supervisor have signed.
type CompleteSessionCommand struct {
	SessionID int64
	ActorID   int64
}

// CompleteSessionHandler flips a session to completed and signs off the
// latest attached revision.
type CompleteSessionHandler struct {
	uowf      uow.Factory
	publisher shared.EventPublisher
	audits    audit.Sink
	clock     timeutil.Clock
	logger    *slog.Logger
}

func NewCompleteSessionHandler(uowf uow.Factory, publisher shared.EventPublisher, audits audit.Sink, clock timeutil.Clock, logger *slog.Logger) *CompleteSessionHandler {
	return &CompleteSessionHandler{uowf: uowf, publisher: publisher, audits: audits, clock: clock, logger: logger}
}

func (h *CompleteSessionHandler) Handle(ctx context.Context, cmd CompleteSessionCommand) error {
	now := h.clock.Now()
	var done *session.Session
	var approved *thesis.DocumentRevision

	err := uow.Within(ctx, h.uowf, func(tx uow.UnitOfWork) error {
		s, err := tx.Sessions().GetByID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if s.AdvisorID != cmd.ActorID {
			return shared.ErrNotSessionAdvisor
		}

		if err := s.Complete(now); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, s); err != nil {
			return err
		}

		rev, err := tx.Revisions().GetLatestBySession(ctx, s.ID)
		switch {
		case err == nil:
			role, err := tx.Assignments().GetRole(ctx, s.ProjectID, cmd.ActorID)
			if err != nil {
				return err
			}
			if !rev.SignedOff(role) {
				if err := rev.SignOff(role, cmd.ActorID, now); err != nil {
					return err
				}
				if err := tx.Revisions().Update(ctx, rev); err != nil {
					return err
				}
				if rev.Approved() {
					approved = rev
				}
			}
		case errors.Is(err, shared.ErrRevisionNotFound):
			// Sessions without an uploaded draft complete without sign-off.
		default:
			return err
		}

		done = s
		return nil
	})
	if err != nil {
		return err
	}

	h.audits.Record(ctx, audit.Entry{
		ActorID:    cmd.ActorID,
		Action:     audit.ActionSessionCompleted,
		EntityType: "session",
		EntityID:   done.ID,
		CreatedAt:  now,
	})
	evt := shared.NewSessionEvent(shared.EventSessionCompleted, done.ID, done.ProjectID, done.AdvisorID, done.SequenceNo)
	if err := h.publisher.Publish(evt); err != nil {
		h.logger.Warn("publish failed", "event", evt.EventType(), "error", err)
	}
	if approved != nil {
		revEvt := shared.NewRevisionApprovedEvent(approved.ID, approved.ProjectID)
		if err := h.publisher.Publish(revEvt); err != nil {
			h.logger.Warn("publish failed", "event", revEvt.EventType(), "error", err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REVERT COMPLETION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RevertCompletionCommand is the explicit escape hatch for a session
// completed by mistake. The document sign-off, if any, stays in place.
type RevertCompletionCommand struct {
	SessionID int64
	ActorID   int64
	Reason    string
}

type RevertCompletionHandler struct {
	uowf      uow.Factory
	publisher shared.EventPublisher
	audits    audit.Sink
	clock     timeutil.Clock
	logger    *slog.Logger
}

func NewRevertCompletionHandler(uowf uow.Factory, publisher shared.EventPublisher, audits audit.Sink, clock timeutil.Clock, logger *slog.Logger) *RevertCompletionHandler {
	return &RevertCompletionHandler{uowf: uowf, publisher: publisher, audits: audits, clock: clock, logger: logger}
}

func (h *RevertCompletionHandler) Handle(ctx context.Context, cmd RevertCompletionCommand) error {
	now := h.clock.Now()
	var reverted *session.Session

	err := uow.Within(ctx, h.uowf, func(tx uow.UnitOfWork) error {
		s, err := tx.Sessions().GetByID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if s.AdvisorID != cmd.ActorID {
			return shared.ErrNotSessionAdvisor
		}
		if err := s.RevertCompletion(now); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, s); err != nil {
			return err
		}
		reverted = s
		return nil
	})
	if err != nil {
		return err
	}

	h.audits.Record(ctx, audit.Entry{
		ActorID:    cmd.ActorID,
		Action:     audit.ActionSessionReverted,
		EntityType: "session",
		EntityID:   reverted.ID,
		Detail:     map[string]any{"reason": cmd.Reason},
		CreatedAt:  now,
	})
	evt := shared.NewSessionEvent(shared.EventSessionReverted, reverted.ID, reverted.ProjectID, reverted.AdvisorID, reverted.SequenceNo)
	if err := h.publisher.Publish(evt); err != nil {
		h.logger.Warn("publish failed", "event", evt.EventType(), "error", err)
	}
	return nil
}
