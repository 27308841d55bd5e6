package postgres

import (
	"context"
	"fmt"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/thesis"
)

// ══════════════════════════════════════════════════════════════════════════════
// THESIS REPOSITORIES
// ══════════════════════════════════════════════════════════════════════════════

// ProjectRepository persists thesis projects.
type ProjectRepository struct {
	db Querier
}

// NewProjectRepository creates a project repository.
func NewProjectRepository(db Querier) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID loads one project.
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*thesis.Project, error) {
	p := &thesis.Project{}
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT id, period_id, student_id, title, status, created_at, updated_at
		FROM thesis_projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.PeriodID, &p.StudentID, &p.Title, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.Status = thesis.ProjectStatus(status)
	return p, nil
}

// CountOpenByPeriod counts still-open projects in a period.
func (r *ProjectRepository) CountOpenByPeriod(ctx context.Context, periodID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM thesis_projects WHERE period_id = $1 AND status = 'open'",
		periodID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open projects: %w", err)
	}
	return count, nil
}

// AssignmentRepository resolves supervisory roles.
type AssignmentRepository struct {
	db Querier
}

// NewAssignmentRepository creates an assignment repository.
func NewAssignmentRepository(db Querier) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// GetRole returns the advisor's role on the project.
func (r *AssignmentRepository) GetRole(ctx context.Context, projectID, advisorID int64) (thesis.SupervisoryRole, error) {
	var role string
	err := r.db.QueryRow(ctx, `
		SELECT role FROM supervisory_assignments
		WHERE project_id = $1 AND advisor_id = $2`, projectID, advisorID,
	).Scan(&role)
	if err != nil {
		if IsNoRows(err) {
			return "", shared.ErrNoSupervisoryRole
		}
		return "", fmt.Errorf("get supervisory role: %w", err)
	}
	return thesis.SupervisoryRole(role), nil
}

// ListByProject returns a project's assignments.
func (r *AssignmentRepository) ListByProject(ctx context.Context, projectID int64) ([]*thesis.Assignment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, project_id, advisor_id, role, created_at
		FROM supervisory_assignments
		WHERE project_id = $1
		ORDER BY role`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []*thesis.Assignment
	for rows.Next() {
		a := &thesis.Assignment{}
		var role string
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.AdvisorID, &role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.Role = thesis.SupervisoryRole(role)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RevisionRepository persists document revisions.
type RevisionRepository struct {
	db Querier
}

// NewRevisionRepository creates a revision repository.
func NewRevisionRepository(db Querier) *RevisionRepository {
	return &RevisionRepository{db: db}
}

const revisionColumns = `id, project_id, session_id, version, file_name, note,
	first_signed_by, first_signed_at, second_signed_by, second_signed_at,
	approved_at, created_at`

// GetByID loads one revision.
func (r *RevisionRepository) GetByID(ctx context.Context, id int64) (*thesis.DocumentRevision, error) {
	query := fmt.Sprintf("SELECT %s FROM document_revisions WHERE id = $1", revisionColumns)
	rev, err := scanRevision(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRevisionNotFound
		}
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return rev, nil
}

// GetLatestBySession returns the newest revision attached to a session.
func (r *RevisionRepository) GetLatestBySession(ctx context.Context, sessionID int64) (*thesis.DocumentRevision, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM document_revisions
		WHERE session_id = $1
		ORDER BY version DESC
		LIMIT 1`, revisionColumns)

	rev, err := scanRevision(r.db.QueryRow(ctx, query, sessionID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRevisionNotFound
		}
		return nil, fmt.Errorf("get latest revision: %w", err)
	}
	return rev, nil
}

// Update rewrites a revision's sign-off and approval fields.
func (r *RevisionRepository) Update(ctx context.Context, rev *thesis.DocumentRevision) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE document_revisions
		SET note = $2, first_signed_by = $3, first_signed_at = $4,
		    second_signed_by = $5, second_signed_at = $6, approved_at = $7
		WHERE id = $1`,
		rev.ID, rev.Note, rev.FirstSignedBy, rev.FirstSignedAt,
		rev.SecondSignedBy, rev.SecondSignedAt, rev.ApprovedAt)
	if err != nil {
		return fmt.Errorf("update revision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRevisionNotFound
	}
	return nil
}

func scanRevision(row rowScanner) (*thesis.DocumentRevision, error) {
	rev := &thesis.DocumentRevision{}
	err := row.Scan(&rev.ID, &rev.ProjectID, &rev.SessionID, &rev.Version,
		&rev.FileName, &rev.Note,
		&rev.FirstSignedBy, &rev.FirstSignedAt,
		&rev.SecondSignedBy, &rev.SecondSignedAt,
		&rev.ApprovedAt, &rev.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rev, nil
}
