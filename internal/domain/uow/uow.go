// Package uow defines the transactional boundary used by commands that must
// read and write several aggregates atomically, such as the conflict re-check
// inside session scheduling.
package uow

import (
	"context"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/exam"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/thesis"
)

// UnitOfWork exposes repositories bound to one open transaction. Nothing is
// visible to other readers until Commit; Rollback after Commit is a no-op.
type UnitOfWork interface {
	Sessions() session.Repository
	Periods() period.Repository
	Projects() thesis.ProjectRepository
	Assignments() thesis.AssignmentRepository
	Revisions() thesis.RevisionRepository
	Commitments() exam.Reader

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory opens units of work.
type Factory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Within runs fn inside a fresh unit of work, committing on success and
// rolling back on error or panic.
func Within(ctx context.Context, f Factory, fn func(UnitOfWork) error) error {
	tx, err := f.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
