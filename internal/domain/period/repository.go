package period

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the persistence port for academic periods.
type Repository interface {
	// Create persists a new period and assigns its ID. A duplicate academic
	// year fails with shared.ErrYearAlreadyExists.
	Create(ctx context.Context, p *AcademicPeriod) error

	// GetByID loads one period, shared.ErrPeriodNotFound when absent.
	GetByID(ctx context.Context, id int64) (*AcademicPeriod, error)

	// GetByYear loads the period for an academic year.
	GetByYear(ctx context.Context, academicYear string) (*AcademicPeriod, error)

	// GetActive loads the single ACTIVE period, shared.ErrPeriodNotFound
	// when none is active.
	GetActive(ctx context.Context) (*AcademicPeriod, error)

	// Update rewrites a period's mutable fields.
	Update(ctx context.Context, p *AcademicPeriod) error

	// Delete removes a period. Callers must have verified CanDelete and the
	// absence of dependents first.
	Delete(ctx context.Context, id int64) error

	// List returns all periods, newest academic year first.
	List(ctx context.Context) ([]*AcademicPeriod, error)

	// ListDueForOpening returns PREPARING periods whose scheduled opening
	// time is at or before now, oldest scheduled time first.
	ListDueForOpening(ctx context.Context, now time.Time) ([]*AcademicPeriod, error)

	// CountDependents counts rows in other tables that reference the period
	// and therefore block deletion.
	CountDependents(ctx context.Context, id int64) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVE-PERIOD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cache is a short-TTL cache over the active-period lookup. It caches the
// absence of an active period too, so a quiet system does not hammer the
// store. Implementations must treat every failure as a miss.
type Cache interface {
	// Get returns the cached active period. found distinguishes a cache miss
	// from a cached "no active period" (found true, p nil).
	Get(ctx context.Context) (p *AcademicPeriod, found bool, err error)

	// Set stores the active period, or the absence of one when p is nil.
	Set(ctx context.Context, p *AcademicPeriod) error

	// Invalidate drops the cached value. Called after every lifecycle write.
	Invalidate(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// SettingsReader loads the system-wide scheduling defaults used to seed a
// period's settings snapshot at opening time.
type SettingsReader interface {
	// SchedulingDefaults returns the current defaults. Implementations fall
	// back to DefaultSettings for missing keys.
	SchedulingDefaults(ctx context.Context) (Settings, error)
}
