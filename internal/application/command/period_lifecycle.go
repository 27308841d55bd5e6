package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/audit"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/uow"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD LIFECYCLE SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// PeriodService drives the academic-period state machine. Every transition
// runs in its own transaction, and the at-most-one-ACTIVE invariant is
// enforced by re-reading the active period inside that transaction. The
// active-period cache is invalidated before any method returns, so callers
// never read their own write as stale.
type PeriodService struct {
	uowf      uow.Factory
	cache     period.Cache
	settings  period.SettingsReader
	publisher shared.EventPublisher
	audits    audit.Sink
	clock     timeutil.Clock
	logger    *slog.Logger
}

func NewPeriodService(uowf uow.Factory, cache period.Cache, settings period.SettingsReader, publisher shared.EventPublisher, audits audit.Sink, clock timeutil.Clock, logger *slog.Logger) *PeriodService {
	return &PeriodService{
		uowf:      uowf,
		cache:     cache,
		settings:  settings,
		publisher: publisher,
		audits:    audits,
		clock:     clock,
		logger:    logger,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Open / promote
// ─────────────────────────────────────────────────────────────────────────────

// OpenPeriodCommand describes the period an operator is opening or
// scheduling for opening.
type OpenPeriodCommand struct {
	AcademicYear string
	Label        string
	StartDate    time.Time
	EndDate      *time.Time
	ActorID      int64
}

// OpenImmediately creates a new period for the year directly in ACTIVE,
// freezing the current scheduling defaults into it. The academic year is
// unique (shared.ErrYearAlreadyExists) and at most one period may be
// ACTIVE (shared.ErrPeriodAlreadyActive).
func (s *PeriodService) OpenImmediately(ctx context.Context, cmd OpenPeriodCommand) (*period.AcademicPeriod, error) {
	now := s.clock.Now()

	defaults, err := s.settings.SchedulingDefaults(ctx)
	if err != nil {
		s.logger.Warn("reading scheduling defaults failed, using built-ins", "error", err)
		defaults = period.DefaultSettings()
	}

	p, err := period.New(cmd.AcademicYear, cmd.Label, cmd.StartDate, now)
	if err != nil {
		return nil, err
	}
	p.EndDate = cmd.EndDate
	if err := p.Open(cmd.ActorID, defaults, now); err != nil {
		return nil, err
	}

	err = uow.Within(ctx, s.uowf, func(tx uow.UnitOfWork) error {
		if _, err := tx.Periods().GetActive(ctx); err == nil {
			return shared.ErrPeriodAlreadyActive
		} else if !errors.Is(err, shared.ErrPeriodNotFound) {
			return err
		}
		return tx.Periods().Create(ctx, p)
	})

	s.invalidate(ctx)
	if err != nil {
		return nil, err
	}

	s.audits.Record(ctx, audit.Entry{
		ActorID: cmd.ActorID, Action: audit.ActionPeriodOpened,
		EntityType: "period", EntityID: p.ID, CreatedAt: now,
	})
	s.publish(shared.NewPeriodChangedEvent(shared.EventPeriodOpened, p.ID, p.AcademicYear, string(p.Status), cmd.ActorID))
	return p, nil
}

// PromoteNow flips an existing PREPARING period to ACTIVE. It serves both
// the operator's "open now" action on a scheduled period and the sweep;
// the status and the at-most-one-ACTIVE invariant are re-read inside the
// promoting transaction because those two callers race by design. A period
// something else already promoted fails with shared.ErrPeriodAlreadyActive,
// which sweep callers treat as benign.
func (s *PeriodService) PromoteNow(ctx context.Context, periodID int64) error {
	now := s.clock.Now()

	defaults, err := s.settings.SchedulingDefaults(ctx)
	if err != nil {
		s.logger.Warn("reading scheduling defaults failed, using built-ins", "error", err)
		defaults = period.DefaultSettings()
	}

	var promoted *period.AcademicPeriod
	err = uow.Within(ctx, s.uowf, func(tx uow.UnitOfWork) error {
		if active, err := tx.Periods().GetActive(ctx); err == nil {
			if active.ID == periodID {
				return shared.ErrPeriodAlreadyActive
			}
			return shared.NewDomainError("period", "Promote", shared.ErrConflict,
				"another period is already active")
		} else if !errors.Is(err, shared.ErrPeriodNotFound) {
			return err
		}

		p, err := tx.Periods().GetByID(ctx, periodID)
		if err != nil {
			return err
		}
		if err := p.Open(0, defaults, now); err != nil {
			return err
		}
		if err := tx.Periods().Update(ctx, p); err != nil {
			return err
		}
		promoted = p
		return nil
	})

	s.invalidate(ctx)
	if err != nil {
		return err
	}

	s.audits.Record(ctx, audit.Entry{
		Action:     audit.ActionPeriodPromoted,
		EntityType: "period", EntityID: promoted.ID, CreatedAt: now,
	})
	s.publish(shared.NewPeriodChangedEvent(shared.EventPeriodPromoted, promoted.ID, promoted.AcademicYear, string(promoted.Status), 0))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduled opening
// ─────────────────────────────────────────────────────────────────────────────

// OpenScheduled creates a new PREPARING period armed for automatic
// promotion at openAt, which must be strictly in the future. Arming fails
// with shared.ErrOpeningOverlap while any period is ACTIVE or any other
// PREPARING period already has a scheduled opening, in either direction,
// so two armed periods can never fight over the same promotion window.
func (s *PeriodService) OpenScheduled(ctx context.Context, cmd OpenPeriodCommand, openAt time.Time) (*period.AcademicPeriod, error) {
	now := s.clock.Now()

	p, err := period.New(cmd.AcademicYear, cmd.Label, cmd.StartDate, now)
	if err != nil {
		return nil, err
	}
	p.EndDate = cmd.EndDate
	if err := p.ScheduleOpening(openAt, now); err != nil {
		return nil, err
	}

	err = uow.Within(ctx, s.uowf, func(tx uow.UnitOfWork) error {
		if _, err := tx.Periods().GetActive(ctx); err == nil {
			return shared.ErrOpeningOverlap
		} else if !errors.Is(err, shared.ErrPeriodNotFound) {
			return err
		}

		others, err := tx.Periods().List(ctx)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.Status == period.StatusPreparing && o.OpensAt != nil {
				return shared.ErrOpeningOverlap
			}
		}

		return tx.Periods().Create(ctx, p)
	})

	s.invalidate(ctx)
	if err != nil {
		return nil, err
	}

	s.audits.Record(ctx, audit.Entry{
		ActorID: cmd.ActorID, Action: audit.ActionPeriodScheduled,
		EntityType: "period", EntityID: p.ID,
		Detail:    map[string]any{"opens_at": openAt.Format(time.RFC3339)},
		CreatedAt: now,
	})
	s.publish(shared.NewPeriodChangedEvent(shared.EventPeriodOpeningScheduled, p.ID, p.AcademicYear, string(p.Status), cmd.ActorID))
	return p, nil
}

// CancelScheduledOpening removes a PREPARING period whose opening was
// scheduled but has not happened yet. Cancellation is destructive: the
// period record is deleted, not parked.
func (s *PeriodService) CancelScheduledOpening(ctx context.Context, periodID, actorID int64) error {
	now := s.clock.Now()

	var cancelled *period.AcademicPeriod
	err := uow.Within(ctx, s.uowf, func(tx uow.UnitOfWork) error {
		p, err := tx.Periods().GetByID(ctx, periodID)
		if err != nil {
			return err
		}
		if err := p.CancelScheduledOpening(now); err != nil {
			return err
		}
		if err := tx.Periods().Delete(ctx, p.ID); err != nil {
			return err
		}
		cancelled = p
		return nil
	})

	s.invalidate(ctx)
	if err != nil {
		return err
	}

	s.audits.Record(ctx, audit.Entry{
		ActorID: actorID, Action: audit.ActionPeriodUnscheduled,
		EntityType: "period", EntityID: periodID, CreatedAt: now,
	})
	s.publish(shared.NewPeriodChangedEvent(shared.EventPeriodDeleted, cancelled.ID, cancelled.AcademicYear, string(cancelled.Status), actorID))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Close / delete
// ─────────────────────────────────────────────────────────────────────────────

// Close archives the ACTIVE period with the operator's closing remarks. A
// period with still-open thesis projects cannot be closed.
func (s *PeriodService) Close(ctx context.Context, periodID, actorID int64, remarks string) error {
	now := s.clock.Now()

	var closed *period.AcademicPeriod
	err := uow.Within(ctx, s.uowf, func(tx uow.UnitOfWork) error {
		p, err := tx.Periods().GetByID(ctx, periodID)
		if err != nil {
			return err
		}

		open, err := tx.Projects().CountOpenByPeriod(ctx, p.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return shared.ErrPeriodHasOpenWork
		}

		if err := p.Close(actorID, remarks, now); err != nil {
			return err
		}
		if err := tx.Periods().Update(ctx, p); err != nil {
			return err
		}
		closed = p
		return nil
	})

	s.invalidate(ctx)
	if err != nil {
		return err
	}

	s.audits.Record(ctx, audit.Entry{
		ActorID: actorID, Action: audit.ActionPeriodClosed,
		EntityType: "period", EntityID: closed.ID, CreatedAt: now,
	})
	s.publish(shared.NewPeriodChangedEvent(shared.EventPeriodClosed, closed.ID, closed.AcademicYear, string(closed.Status), actorID))
	return nil
}

// Delete removes a non-ACTIVE period that nothing references.
func (s *PeriodService) Delete(ctx context.Context, periodID, actorID int64) error {
	now := s.clock.Now()

	var removed *period.AcademicPeriod
	err := uow.Within(ctx, s.uowf, func(tx uow.UnitOfWork) error {
		p, err := tx.Periods().GetByID(ctx, periodID)
		if err != nil {
			return err
		}
		if !p.CanDelete() {
			return shared.ErrPeriodIsActive
		}

		deps, err := tx.Periods().CountDependents(ctx, p.ID)
		if err != nil {
			return err
		}
		if deps > 0 {
			return shared.ErrPeriodHasDependents
		}

		if err := tx.Periods().Delete(ctx, p.ID); err != nil {
			return err
		}
		removed = p
		return nil
	})

	s.invalidate(ctx)
	if err != nil {
		return err
	}

	s.audits.Record(ctx, audit.Entry{
		ActorID: actorID, Action: audit.ActionPeriodDeleted,
		EntityType: "period", EntityID: removed.ID, CreatedAt: now,
	})
	s.publish(shared.NewPeriodChangedEvent(shared.EventPeriodDeleted, removed.ID, removed.AcademicYear, string(removed.Status), actorID))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sweep support
// ─────────────────────────────────────────────────────────────────────────────

// ListDue returns the periods whose scheduled opening time has passed.
func (s *PeriodService) ListDue(ctx context.Context) ([]*period.AcademicPeriod, error) {
	var due []*period.AcademicPeriod
	err := uow.Within(ctx, s.uowf, func(tx uow.UnitOfWork) error {
		var err error
		due, err = tx.Periods().ListDueForOpening(ctx, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (s *PeriodService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("active period cache invalidation failed", "error", err)
	}
}

func (s *PeriodService) publish(evt shared.Event) {
	if err := s.publisher.Publish(evt); err != nil {
		s.logger.Warn("publish failed", "event", evt.EventType(), "error", err)
	}
}
