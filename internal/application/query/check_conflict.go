// Package query contains the read-side handlers: advisory conflict checks,
// free-slot suggestions, session listings, and the cached active-period
// lookup. Queries never write; the authoritative conflict decision is made
// again inside the scheduling command's transaction.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/exam"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/schedule"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK CONFLICT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// CheckConflictQuery asks whether an advisor is busy during a candidate
// window. EndTime may be empty; the default session duration is assumed.
type CheckConflictQuery struct {
	AdvisorID int64
	Date      time.Time
	StartTime string
	EndTime   string

	// ExcludeSessionID skips one session when gathering busy intervals, so a
	// reschedule does not conflict with the session being moved.
	ExcludeSessionID *int64
}

// ConflictResult reports the outcome and the first busy interval hit, if any.
type ConflictResult struct {
	HasConflict bool
	Busy        []schedule.Interval
}

// CheckConflictHandler gathers an advisor's busy intervals for a date and
// runs the overlap test against them.
type CheckConflictHandler struct {
	sessions session.Repository
	exams    exam.Reader
	logger   *slog.Logger
}

func NewCheckConflictHandler(sessions session.Repository, exams exam.Reader, logger *slog.Logger) *CheckConflictHandler {
	return &CheckConflictHandler{sessions: sessions, exams: exams, logger: logger}
}

// Handle returns whether the candidate window overlaps any existing
// commitment. Abutting windows do not conflict.
func (h *CheckConflictHandler) Handle(ctx context.Context, q CheckConflictQuery) (*ConflictResult, error) {
	busy, err := GatherBusy(ctx, h.sessions, h.exams, q.AdvisorID, q.Date, q.ExcludeSessionID)
	if err != nil {
		return nil, err
	}

	start := timeutil.ParseClock(q.StartTime)
	end := start + schedule.DefaultSessionMinutes
	if v, ok := timeutil.ParseClockStrict(q.EndTime); ok && v > start {
		end = v
	}

	result := &ConflictResult{Busy: busy}
	for _, iv := range busy {
		if schedule.Overlaps(start, end, iv.Start, iv.End) {
			result.HasConflict = true
			break
		}
	}
	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Busy-interval gathering
// ─────────────────────────────────────────────────────────────────────────────

// GatherBusy collects an advisor's busy intervals on a date from scheduled
// mentoring sessions and exam commitments, sorted and merged. It is shared
// by the advisory queries and by the transactional re-check in commands.
func GatherBusy(ctx context.Context, sessions session.Repository, exams exam.Reader, advisorID int64, date time.Time, excludeSessionID *int64) ([]schedule.Interval, error) {
	day := timeutil.StartOfDay(date)

	sess, err := sessions.ListScheduledByAdvisorOnDate(ctx, advisorID, day)
	if err != nil {
		return nil, err
	}

	busy := make([]schedule.Interval, 0, len(sess))
	for _, s := range sess {
		if excludeSessionID != nil && s.ID == *excludeSessionID {
			continue
		}
		if !s.HasSchedule() {
			continue
		}
		busy = append(busy, s.Window())
	}

	commitments, err := exams.ListByAdvisorOnDate(ctx, advisorID, day)
	if err != nil {
		return nil, err
	}
	for _, c := range commitments {
		busy = append(busy, c.Window())
	}

	schedule.SortByStart(busy)
	return schedule.MergeSorted(busy), nil
}
