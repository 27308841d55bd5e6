package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/exam"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/thesis"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/uow"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// unitOfWork binds every repository to one pgx transaction.
type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Sessions() session.Repository             { return NewSessionRepository(u.tx) }
func (u *unitOfWork) Periods() period.Repository               { return NewPeriodRepository(u.tx) }
func (u *unitOfWork) Projects() thesis.ProjectRepository       { return NewProjectRepository(u.tx) }
func (u *unitOfWork) Assignments() thesis.AssignmentRepository { return NewAssignmentRepository(u.tx) }
func (u *unitOfWork) Revisions() thesis.RevisionRepository     { return NewRevisionRepository(u.tx) }
func (u *unitOfWork) Commitments() exam.Reader                 { return NewExamRepository(u.tx) }

func (u *unitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// UnitOfWorkFactory opens pgx-backed units of work.
type UnitOfWorkFactory struct {
	conn *Connection
}

// NewUnitOfWorkFactory creates a factory over the connection pool.
func NewUnitOfWorkFactory(conn *Connection) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{conn: conn}
}

// Begin implements uow.Factory.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (uow.UnitOfWork, error) {
	tx, err := f.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx}, nil
}
