// Package thesis holds the thesis project, its supervisory assignments, and
// the document revisions produced during mentoring.
package thesis

import (
	"context"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
)

// SupervisoryRole distinguishes the two advisors a project can carry.
type SupervisoryRole string

const (
	RoleFirstSupervisor  SupervisoryRole = "first"
	RoleSecondSupervisor SupervisoryRole = "second"
)

func (r SupervisoryRole) IsValid() bool {
	return r == RoleFirstSupervisor || r == RoleSecondSupervisor
}

// ProjectStatus tracks the coarse project state within a period.
type ProjectStatus string

const (
	ProjectOpen      ProjectStatus = "open"
	ProjectDefended  ProjectStatus = "defended"
	ProjectWithdrawn ProjectStatus = "withdrawn"
)

// Project is one student's thesis work within an academic period.
type Project struct {
	ID        int64
	PeriodID  int64
	StudentID int64
	Title     string
	Status    ProjectStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignment links an advisor to a project in a supervisory role. A project
// has at most one assignment per role.
type Assignment struct {
	ID        int64
	ProjectID int64
	AdvisorID int64
	Role      SupervisoryRole
	CreatedAt time.Time
}

// DocumentRevision is one uploaded draft of the thesis document. Each
// supervisory role signs a revision off when completing the session it was
// discussed in; the revision counts as approved once both roles have signed.
type DocumentRevision struct {
	ID        int64
	ProjectID int64
	SessionID *int64
	Version   int
	FileName  string
	Note      string

	FirstSignedBy  *int64
	FirstSignedAt  *time.Time
	SecondSignedBy *int64
	SecondSignedAt *time.Time
	ApprovedAt     *time.Time
	CreatedAt      time.Time
}

// Approved reports whether both supervisory roles have signed off.
func (r *DocumentRevision) Approved() bool {
	return r.ApprovedAt != nil
}

// SignedOff reports whether the given role has already signed this revision.
func (r *DocumentRevision) SignedOff(role SupervisoryRole) bool {
	switch role {
	case RoleFirstSupervisor:
		return r.FirstSignedAt != nil
	case RoleSecondSupervisor:
		return r.SecondSignedAt != nil
	}
	return false
}

// SignOff records one supervisory role's sign-off. Signing the same role
// twice is rejected; the other role's sign-off always remains possible.
// The second role to sign flips the revision to approved.
func (r *DocumentRevision) SignOff(role SupervisoryRole, advisorID int64, now time.Time) error {
	if !role.IsValid() {
		return shared.NewDomainError("thesis", "SignOff", shared.ErrInvalidInput,
			"unknown supervisory role")
	}
	if r.SignedOff(role) {
		return shared.NewDomainError("thesis", "SignOff", shared.ErrInvalidState,
			string(role)+" supervisor has already signed this revision")
	}

	at := now
	switch role {
	case RoleFirstSupervisor:
		r.FirstSignedBy = &advisorID
		r.FirstSignedAt = &at
	case RoleSecondSupervisor:
		r.SecondSignedBy = &advisorID
		r.SecondSignedAt = &at
	}
	if r.FirstSignedAt != nil && r.SecondSignedAt != nil {
		r.ApprovedAt = &at
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// ProjectRepository is the persistence port for thesis projects.
type ProjectRepository interface {
	GetByID(ctx context.Context, id int64) (*Project, error)

	// CountOpenByPeriod counts still-open projects in a period; a nonzero
	// count blocks closing the period.
	CountOpenByPeriod(ctx context.Context, periodID int64) (int, error)
}

// AssignmentRepository resolves who supervises what.
type AssignmentRepository interface {
	// GetRole returns the advisor's role on the project, or
	// shared.ErrNoSupervisoryRole when the advisor is not assigned to it.
	GetRole(ctx context.Context, projectID, advisorID int64) (SupervisoryRole, error)

	ListByProject(ctx context.Context, projectID int64) ([]*Assignment, error)
}

// RevisionRepository is the persistence port for document revisions.
type RevisionRepository interface {
	GetByID(ctx context.Context, id int64) (*DocumentRevision, error)

	// GetLatestBySession returns the newest revision attached to a session,
	// shared.ErrRevisionNotFound when the session has none.
	GetLatestBySession(ctx context.Context, sessionID int64) (*DocumentRevision, error)

	Update(ctx context.Context, r *DocumentRevision) error
}
