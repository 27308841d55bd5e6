package session

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions selects and paginates session listings. The zero value lists
// the first page of everything at the default page size.
type ListOptions struct {
	ProjectID *int64
	AdvisorID *int64
	Status    *Status

	// Page is 1-based. Values below 1 are treated as 1.
	Page int
	// PageSize is clamped to [1, MaxPageSize]; 0 means DefaultPageSize.
	PageSize int
}

// Normalize applies paging defaults and clamps in place.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
}

// Offset returns the row offset for the normalized options.
func (o ListOptions) Offset() int {
	page := o.Page
	if page < 1 {
		page = 1
	}
	size := o.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return (page - 1) * size
}

// Page is one page of sessions with the total matching count.
type Page struct {
	Sessions []*Session
	Total    int
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the persistence port for mentoring sessions.
type Repository interface {
	// Create persists a new session and assigns its ID.
	Create(ctx context.Context, s *Session) error

	// GetByID loads a single session, shared.ErrSessionNotFound when absent.
	GetByID(ctx context.Context, id int64) (*Session, error)

	// Update rewrites a session's mutable fields.
	Update(ctx context.Context, s *Session) error

	// List returns one page of matching sessions ordered by sequence number.
	List(ctx context.Context, opts ListOptions) (*Page, error)

	// CountByProject counts all sessions of a project, cancelled included;
	// sequence numbers are assigned as count+1 and never reused.
	CountByProject(ctx context.Context, projectID int64) (int, error)

	// LockAdvisorDay serializes conflict-checked writes for one advisor and
	// calendar date until the surrounding transaction ends. Must be taken
	// before gathering busy intervals: without it, two transactions can each
	// read a conflict-free snapshot and both insert.
	LockAdvisorDay(ctx context.Context, advisorID int64, date time.Time) error

	// ListScheduledByAdvisorOnDate returns the advisor's non-cancelled,
	// non-completed sessions on the given calendar date, for conflict checks.
	ListScheduledByAdvisorOnDate(ctx context.Context, advisorID int64, date time.Time) ([]*Session, error)

	// AddReschedule appends a reschedule history record.
	AddReschedule(ctx context.Context, r *Reschedule) error

	// ListReschedules returns the history of one session, oldest first.
	ListReschedules(ctx context.Context, sessionID int64) ([]*Reschedule, error)
}
