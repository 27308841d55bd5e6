package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository persists mentoring sessions. It runs against any Querier,
// so the same implementation serves both pool reads and unit-of-work writes.
type SessionRepository struct {
	db Querier
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, project_id, advisor_id, sequence_no, session_date,
	start_time, end_time, status, confirmed, confirmed_at, created_at, updated_at`

// Create inserts a session and assigns its ID.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `
		INSERT INTO mentoring_sessions
			(project_id, advisor_id, sequence_no, session_date, start_time, end_time,
			 status, confirmed, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		s.ProjectID, s.AdvisorID, s.SequenceNo, s.Date, s.StartTime, s.EndTime,
		string(s.Status), s.Confirmed, s.ConfirmedAt, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("session", "Create", shared.ErrConflict,
				"sequence number already taken", err)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID loads one session.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*session.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM mentoring_sessions WHERE id = $1", sessionColumns)

	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Update rewrites a session's mutable fields.
func (r *SessionRepository) Update(ctx context.Context, s *session.Session) error {
	query := `
		UPDATE mentoring_sessions
		SET session_date = $2, start_time = $3, end_time = $4, status = $5,
		    confirmed = $6, confirmed_at = $7, updated_at = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		s.ID, s.Date, s.StartTime, s.EndTime, string(s.Status),
		s.Confirmed, s.ConfirmedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}
	return nil
}

// List returns one page of sessions matching the options, ordered by project
// then sequence number.
func (r *SessionRepository) List(ctx context.Context, opts session.ListOptions) (*session.Page, error) {
	opts.Normalize()

	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.ProjectID != nil {
		where = append(where, "project_id = "+arg(*opts.ProjectID))
	}
	if opts.AdvisorID != nil {
		where = append(where, "advisor_id = "+arg(*opts.AdvisorID))
	}
	if opts.Status != nil {
		where = append(where, "status = "+arg(string(*opts.Status)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM mentoring_sessions"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM mentoring_sessions%s ORDER BY project_id, sequence_no LIMIT %s OFFSET %s",
		sessionColumns, clause, arg(opts.PageSize), arg(opts.Offset()))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	page := &session.Page{Total: total}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		page.Sessions = append(page.Sessions, s)
	}
	return page, rows.Err()
}

// CountByProject counts every session of a project regardless of status.
func (r *SessionRepository) CountByProject(ctx context.Context, projectID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM mentoring_sessions WHERE project_id = $1", projectID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count project sessions: %w", err)
	}
	return count, nil
}

// LockAdvisorDay takes a transaction-scoped advisory lock keyed on the
// advisor and calendar date. Two transactions scheduling the same advisor on
// the same day serialize here, so the busy-interval read that follows sees
// the winner's committed insert even at read-committed isolation. Postgres
// releases the lock at commit or rollback.
func (r *SessionRepository) LockAdvisorDay(ctx context.Context, advisorID int64, date time.Time) error {
	if _, err := r.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisorDayLockKey(advisorID, date)); err != nil {
		return fmt.Errorf("lock advisor day: %w", err)
	}
	return nil
}

func advisorDayLockKey(advisorID int64, date time.Time) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", advisorID, date.Format("2006-01-02"))
	return int64(h.Sum64())
}

// ListScheduledByAdvisorOnDate returns the advisor's scheduled sessions on a
// calendar date; this is the busy-interval source for conflict checks.
func (r *SessionRepository) ListScheduledByAdvisorOnDate(ctx context.Context, advisorID int64, date time.Time) ([]*session.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM mentoring_sessions
		WHERE advisor_id = $1 AND session_date = $2 AND status = 'scheduled'
		ORDER BY start_time`, sessionColumns)

	rows, err := r.db.Query(ctx, query, advisorID, date)
	if err != nil {
		return nil, fmt.Errorf("list advisor sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddReschedule appends a reschedule history record.
func (r *SessionRepository) AddReschedule(ctx context.Context, rec *session.Reschedule) error {
	query := `
		INSERT INTO session_reschedules
			(session_id, requested_by, old_date, old_start, old_end,
			 new_date, new_start, new_end, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		rec.SessionID, rec.RequestedBy, rec.OldDate, rec.OldStart, rec.OldEnd,
		rec.NewDate, rec.NewStart, rec.NewEnd, rec.Reason, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert reschedule: %w", err)
	}
	return nil
}

// ListReschedules returns a session's history, oldest first.
func (r *SessionRepository) ListReschedules(ctx context.Context, sessionID int64) ([]*session.Reschedule, error) {
	query := `
		SELECT id, session_id, requested_by, old_date, old_start, old_end,
		       new_date, new_start, new_end, reason, created_at
		FROM session_reschedules
		WHERE session_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list reschedules: %w", err)
	}
	defer rows.Close()

	var out []*session.Reschedule
	for rows.Next() {
		rec := &session.Reschedule{}
		err := rows.Scan(&rec.ID, &rec.SessionID, &rec.RequestedBy,
			&rec.OldDate, &rec.OldStart, &rec.OldEnd,
			&rec.NewDate, &rec.NewStart, &rec.NewEnd, &rec.Reason, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reschedule: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	s := &session.Session{}
	var status string
	err := row.Scan(&s.ID, &s.ProjectID, &s.AdvisorID, &s.SequenceNo, &s.Date,
		&s.StartTime, &s.EndTime, &status, &s.Confirmed, &s.ConfirmedAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = session.Status(status)
	return s, nil
}
