// Package session contains the mentoring-session aggregate: a single
// advisor-student meeting slot tracked through scheduled, cancelled, and
// completed states.
package session

import (
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/schedule"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle status of a mentoring session.
type Status string

const (
	// StatusScheduled - the session is planned (or created empty, awaiting a date).
	StatusScheduled Status = "scheduled"
	// StatusCancelled - terminally cancelled.
	StatusCancelled Status = "cancelled"
	// StatusCompleted - held and signed off by the advisor.
	StatusCompleted Status = "completed"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transitions
// (completed sessions leave through the explicit revert action only).
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: MENTORING SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session represents one mentoring meeting between an advisor and a student
// within a thesis project.
type Session struct {
	// ID is the store-assigned identifier.
	ID int64

	// ProjectID is the owning thesis project.
	ProjectID int64

	// AdvisorID is the advisor holding the meeting.
	AdvisorID int64

	// SequenceNo is the 1-based, gap-free ordinal of this session within its
	// project, assigned at creation.
	SequenceNo int

	// Date is the scheduled calendar date. Nil for a session created empty,
	// before any time has been set.
	Date *time.Time

	// StartTime and EndTime are "HH:MM" clock strings. EndTime may be empty,
	// in which case a default duration is assumed for conflict purposes.
	StartTime string
	EndTime   string

	// Status is the lifecycle status.
	Status Status

	// Confirmed is set once the student confirms attendance.
	Confirmed   bool
	ConfirmedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an empty session: it has a sequence number but no date yet.
func New(projectID, advisorID int64, sequenceNo int, now time.Time) *Session {
	return &Session{
		ProjectID:  projectID,
		AdvisorID:  advisorID,
		SequenceNo: sequenceNo,
		Status:     StatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewScheduled creates a session directly with a date and time window.
func NewScheduled(projectID, advisorID int64, sequenceNo int, date time.Time, start, end string, now time.Time) *Session {
	s := New(projectID, advisorID, sequenceNo, now)
	d := timeutil.StartOfDay(date)
	s.Date = &d
	s.StartTime = start
	s.EndTime = end
	return s
}

// HasSchedule reports whether a date and start time have been set.
func (s *Session) HasSchedule() bool {
	return s.Date != nil && s.StartTime != ""
}

// Window returns the session's busy interval in minutes since midnight.
// A missing end time is padded to the default session duration; malformed
// time strings degrade to 00:00 rather than failing (stored data is
// boundary-validated, reads must not throw).
func (s *Session) Window() schedule.Interval {
	start := timeutil.ParseClock(s.StartTime)
	end := start + schedule.DefaultSessionMinutes
	if s.EndTime != "" {
		if v, ok := timeutil.ParseClockStrict(s.EndTime); ok && v > start {
			end = v
		}
	}
	return schedule.Interval{Start: start, End: end}
}

// ─────────────────────────────────────────────────────────────────────────────
// State transitions
// ─────────────────────────────────────────────────────────────────────────────

// SetSchedule rewrites the date and time window of a still-scheduled session.
func (s *Session) SetSchedule(date time.Time, start, end string, now time.Time) error {
	if err := s.mutableCheck(); err != nil {
		return err
	}
	d := timeutil.StartOfDay(date)
	s.Date = &d
	s.StartTime = start
	s.EndTime = end
	s.Status = StatusScheduled
	s.UpdatedAt = now
	return nil
}

// Confirm records the student's attendance confirmation.
func (s *Session) Confirm(now time.Time) error {
	if s.Status != StatusScheduled {
		return shared.ErrSessionNotScheduled
	}
	s.Confirmed = true
	at := now
	s.ConfirmedAt = &at
	s.UpdatedAt = now
	return nil
}

// Complete marks the session as held. Terminal except for RevertCompletion.
func (s *Session) Complete(now time.Time) error {
	if s.Status != StatusScheduled {
		return shared.ErrSessionNotScheduled
	}
	s.Status = StatusCompleted
	s.UpdatedAt = now
	return nil
}

// RevertCompletion is the explicit escape hatch from the completed state.
func (s *Session) RevertCompletion(now time.Time) error {
	if s.Status != StatusCompleted {
		return shared.NewDomainError("session", "Revert", shared.ErrStateTransition,
			"only a completed session can be reverted")
	}
	s.Status = StatusScheduled
	s.UpdatedAt = now
	return nil
}

// Cancel terminally cancels the session.
func (s *Session) Cancel(now time.Time) error {
	if err := s.mutableCheck(); err != nil {
		return err
	}
	s.Status = StatusCancelled
	s.UpdatedAt = now
	return nil
}

// mutableCheck rejects writes to sessions in a terminal status.
func (s *Session) mutableCheck() error {
	switch s.Status {
	case StatusCompleted:
		return shared.ErrSessionCompleted
	case StatusCancelled:
		return shared.ErrSessionCancelled
	default:
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESCHEDULE HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// Reschedule is an immutable record of a session's prior schedule, written
// whenever the date or time is rewritten through the reschedule path.
type Reschedule struct {
	ID          int64
	SessionID   int64
	RequestedBy int64
	OldDate     *time.Time
	OldStart    string
	OldEnd      string
	NewDate     time.Time
	NewStart    string
	NewEnd      string
	Reason      string
	CreatedAt   time.Time
}
