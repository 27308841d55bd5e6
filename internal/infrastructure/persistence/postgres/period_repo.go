package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PeriodRepository persists academic periods. The settings snapshot is stored
// as JSONB; the single-ACTIVE invariant is additionally backed by a partial
// unique index, so even a bug in the transaction flow cannot produce two.
type PeriodRepository struct {
	db Querier
}

// NewPeriodRepository creates a period repository.
func NewPeriodRepository(db Querier) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = `id, academic_year, label, status, start_date, end_date,
	opens_at, opened_at, opened_by, closed_at, closed_by, settings, remarks,
	created_at, updated_at`

// Create inserts a period and assigns its ID.
func (r *PeriodRepository) Create(ctx context.Context, p *period.AcademicPeriod) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		INSERT INTO academic_periods
			(academic_year, label, status, start_date, end_date, opens_at,
			 opened_at, opened_by, closed_at, closed_by, settings, remarks,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		p.AcademicYear, p.Label, string(p.Status), p.StartDate, p.EndDate, p.OpensAt,
		p.OpenedAt, p.OpenedBy, p.ClosedAt, p.ClosedBy, settings, p.Remarks,
		p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrYearAlreadyExists
		}
		return fmt.Errorf("insert period: %w", err)
	}
	return nil
}

// GetByID loads one period.
func (r *PeriodRepository) GetByID(ctx context.Context, id int64) (*period.AcademicPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_periods WHERE id = $1", periodColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByYear loads the period for an academic year.
func (r *PeriodRepository) GetByYear(ctx context.Context, academicYear string) (*period.AcademicPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_periods WHERE academic_year = $1", periodColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, academicYear))
}

// GetActive loads the single ACTIVE period.
func (r *PeriodRepository) GetActive(ctx context.Context) (*period.AcademicPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_periods WHERE status = 'ACTIVE'", periodColumns)
	return r.scanOne(r.db.QueryRow(ctx, query))
}

// Update rewrites a period's mutable fields.
func (r *PeriodRepository) Update(ctx context.Context, p *period.AcademicPeriod) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		UPDATE academic_periods
		SET label = $2, status = $3, start_date = $4, end_date = $5, opens_at = $6,
		    opened_at = $7, opened_by = $8, closed_at = $9, closed_by = $10,
		    settings = $11, remarks = $12, updated_at = $13
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		p.ID, p.Label, string(p.Status), p.StartDate, p.EndDate, p.OpensAt,
		p.OpenedAt, p.OpenedBy, p.ClosedAt, p.ClosedBy, settings, p.Remarks,
		p.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPeriodAlreadyActive
		}
		return fmt.Errorf("update period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

// Delete removes a period.
func (r *PeriodRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM academic_periods WHERE id = $1", id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrPeriodHasDependents
		}
		return fmt.Errorf("delete period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

// List returns all periods, newest academic year first.
func (r *PeriodRepository) List(ctx context.Context) ([]*period.AcademicPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_periods ORDER BY academic_year DESC", periodColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var out []*period.AcademicPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListDueForOpening returns PREPARING periods whose scheduled opening time
// has passed, oldest first.
func (r *PeriodRepository) ListDueForOpening(ctx context.Context, now time.Time) ([]*period.AcademicPeriod, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM academic_periods
		WHERE status = 'PREPARING' AND opens_at IS NOT NULL AND opens_at <= $1
		ORDER BY opens_at`, periodColumns)

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due periods: %w", err)
	}
	defer rows.Close()

	var out []*period.AcademicPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountDependents counts thesis projects and committees referencing the
// period; any of them blocks deletion.
func (r *PeriodRepository) CountDependents(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM thesis_projects WHERE period_id = $1)
		     + (SELECT COUNT(*) FROM exam_committees WHERE period_id = $1)`, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count period dependents: %w", err)
	}
	return count, nil
}

func (r *PeriodRepository) scanOne(row rowScanner) (*period.AcademicPeriod, error) {
	p, err := scanPeriod(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPeriodNotFound
		}
		return nil, fmt.Errorf("get period: %w", err)
	}
	return p, nil
}

func scanPeriod(row rowScanner) (*period.AcademicPeriod, error) {
	p := &period.AcademicPeriod{}
	var status string
	var settings []byte
	err := row.Scan(&p.ID, &p.AcademicYear, &p.Label, &status, &p.StartDate, &p.EndDate,
		&p.OpensAt, &p.OpenedAt, &p.OpenedBy, &p.ClosedAt, &p.ClosedBy, &settings,
		&p.Remarks, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = period.Status(status)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &p.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	p.Settings.Normalize()
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// Keys in the system_settings table.
const (
	settingWorkStart      = "scheduling.work_start_minutes"
	settingWorkEnd        = "scheduling.work_end_minutes"
	settingSlotMinutes    = "scheduling.slot_minutes"
	settingSessionMinutes = "scheduling.session_minutes"
	settingRequired       = "scheduling.required_sessions"
)

// SettingsStore reads the system-wide scheduling defaults. Missing or
// malformed keys fall back to the base settings.
type SettingsStore struct {
	db   Querier
	base period.Settings
}

// NewSettingsStore creates a settings reader seeded with base, typically
// the deployment's configured policy.
func NewSettingsStore(db Querier, base period.Settings) *SettingsStore {
	return &SettingsStore{db: db, base: base}
}

// SchedulingDefaults implements period.SettingsReader.
func (s *SettingsStore) SchedulingDefaults(ctx context.Context) (period.Settings, error) {
	out := s.base

	rows, err := s.db.Query(ctx,
		"SELECT key, value FROM system_settings WHERE key LIKE 'scheduling.%'")
	if err != nil {
		return out, fmt.Errorf("read system settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return out, fmt.Errorf("scan setting: %w", err)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case settingWorkStart:
			out.WorkStartMinutes = n
		case settingWorkEnd:
			out.WorkEndMinutes = n
		case settingSlotMinutes:
			out.SlotMinutes = n
		case settingSessionMinutes:
			out.SessionMinutes = n
		case settingRequired:
			out.RequiredSessions = n
		}
	}
	out.Normalize()
	return out, rows.Err()
}
