// Package period contains the academic-period aggregate and its lifecycle
// state machine: PREPARING -> ACTIVE -> CLOSED, with at most one ACTIVE
// period at any time.
package period

import (
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/schedule"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle status of an academic period.
type Status string

const (
	// StatusPreparing - created, configurable, not yet visible to scheduling.
	StatusPreparing Status = "PREPARING"
	// StatusActive - the single period scheduling currently runs against.
	StatusActive Status = "ACTIVE"
	// StatusClosed - archived; terminal.
	StatusClosed Status = "CLOSED"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPreparing, StatusActive, StatusClosed:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Settings is the scheduling policy frozen into a period when it opens, so
// later changes to system defaults never reshape an already-running period.
type Settings struct {
	WorkStartMinutes  int `json:"work_start_minutes"`
	WorkEndMinutes    int `json:"work_end_minutes"`
	SlotMinutes       int `json:"slot_minutes"`
	SessionMinutes    int `json:"session_minutes"`
	RequiredSessions  int `json:"required_sessions"`
	MaxSessionsPerDay int `json:"max_sessions_per_day"`
}

// DefaultSettings returns the built-in scheduling policy.
func DefaultSettings() Settings {
	return Settings{
		WorkStartMinutes:  schedule.DefaultWorkStart,
		WorkEndMinutes:    schedule.DefaultWorkEnd,
		SlotMinutes:       schedule.DefaultSlotMinutes,
		SessionMinutes:    schedule.DefaultSessionMinutes,
		RequiredSessions:  8,
		MaxSessionsPerDay: 0,
	}
}

// Normalize falls back to defaults for unset or nonsensical fields.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.WorkStartMinutes < 0 || s.WorkStartMinutes >= s.WorkEndMinutes {
		s.WorkStartMinutes = def.WorkStartMinutes
		s.WorkEndMinutes = def.WorkEndMinutes
	}
	if s.WorkEndMinutes > 24*60 {
		s.WorkEndMinutes = def.WorkEndMinutes
	}
	if s.SlotMinutes <= 0 {
		s.SlotMinutes = def.SlotMinutes
	}
	if s.SessionMinutes <= 0 {
		s.SessionMinutes = def.SessionMinutes
	}
	if s.RequiredSessions < 0 {
		s.RequiredSessions = def.RequiredSessions
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ACADEMIC PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// AcademicPeriod is one academic year's scheduling window.
type AcademicPeriod struct {
	// ID is the store-assigned identifier.
	ID int64

	// AcademicYear is the unique human key, e.g. "2026/2027".
	AcademicYear string

	// Label is a display name, e.g. "Odd Semester 2026/2027".
	Label string

	// Status is the lifecycle status.
	Status Status

	// StartDate and EndDate bound the period's calendar span. EndDate may be
	// nil for an open-ended period.
	StartDate time.Time
	EndDate   *time.Time

	// OpensAt, when set on a PREPARING period, is the instant the sweep
	// promotes it to ACTIVE.
	OpensAt *time.Time

	OpenedAt *time.Time
	OpenedBy *int64

	ClosedAt *time.Time
	ClosedBy *int64

	// Settings is the policy snapshot taken at opening time.
	Settings Settings

	Remarks string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a period in the PREPARING state.
func New(academicYear, label string, startDate time.Time, now time.Time) (*AcademicPeriod, error) {
	if academicYear == "" {
		return nil, shared.NewDomainError("period", "New", shared.ErrEmptyValue,
			"academic year is required")
	}
	return &AcademicPeriod{
		AcademicYear: academicYear,
		Label:        label,
		Status:       StatusPreparing,
		StartDate:    startDate,
		Settings:     DefaultSettings(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// State transitions
// ─────────────────────────────────────────────────────────────────────────────

// Open promotes a PREPARING period to ACTIVE and freezes its settings.
// The caller is responsible for ensuring no other period is ACTIVE.
func (p *AcademicPeriod) Open(actorID int64, settings Settings, now time.Time) error {
	if p.Status != StatusPreparing {
		if p.Status == StatusActive {
			return shared.ErrPeriodAlreadyActive
		}
		return shared.ErrPeriodNotPreparing
	}
	settings.Normalize()
	p.Settings = settings
	p.Status = StatusActive
	at := now
	p.OpenedAt = &at
	p.OpenedBy = &actorID
	p.OpensAt = nil
	p.UpdatedAt = now
	return nil
}

// ScheduleOpening arms a PREPARING period for automatic promotion at openAt.
func (p *AcademicPeriod) ScheduleOpening(openAt time.Time, now time.Time) error {
	if p.Status != StatusPreparing {
		return shared.ErrPeriodNotPreparing
	}
	if !openAt.After(now) {
		return shared.NewDomainError("period", "ScheduleOpening", shared.ErrPastDeadline,
			"scheduled opening must be in the future")
	}
	at := openAt
	p.OpensAt = &at
	p.UpdatedAt = now
	return nil
}

// CancelScheduledOpening disarms a pending automatic promotion.
func (p *AcademicPeriod) CancelScheduledOpening(now time.Time) error {
	if p.Status != StatusPreparing {
		return shared.ErrPeriodNotPreparing
	}
	if p.OpensAt == nil {
		return shared.NewDomainError("period", "CancelScheduledOpening", shared.ErrInvalidState,
			"no opening is scheduled")
	}
	p.OpensAt = nil
	p.UpdatedAt = now
	return nil
}

// Close archives an ACTIVE period, recording who closed it and why.
func (p *AcademicPeriod) Close(actorID int64, remarks string, now time.Time) error {
	if p.Status != StatusActive {
		return shared.ErrPeriodNotActive
	}
	p.Status = StatusClosed
	at := now
	p.ClosedAt = &at
	p.ClosedBy = &actorID
	p.Remarks = remarks
	p.UpdatedAt = now
	return nil
}

// IsDue reports whether the sweep should promote this period now.
func (p *AcademicPeriod) IsDue(now time.Time) bool {
	return p.Status == StatusPreparing && p.OpensAt != nil && !p.OpensAt.After(now)
}

// CanDelete reports whether the period may be removed. The ACTIVE period is
// never deletable; PREPARING and CLOSED periods are, subject to the
// dependent-records check at the call site.
func (p *AcademicPeriod) CanDelete() bool {
	return p.Status != StatusActive
}
