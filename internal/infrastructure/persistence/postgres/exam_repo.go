package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/exam"
)

// ExamRepository reads defense-committee commitments. Scheduling only ever
// reads them; they are written by committee management.
type ExamRepository struct {
	db Querier
}

// NewExamRepository creates an exam commitment reader.
func NewExamRepository(db Querier) *ExamRepository {
	return &ExamRepository{db: db}
}

// ListByAdvisorOnDate implements exam.Reader.
func (r *ExamRepository) ListByAdvisorOnDate(ctx context.Context, advisorID int64, date time.Time) ([]*exam.Commitment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, committee_id, advisor_id, exam_date, start_time, end_time, room, created_at
		FROM exam_commitments
		WHERE advisor_id = $1 AND exam_date = $2
		ORDER BY start_time`, advisorID, date)
	if err != nil {
		return nil, fmt.Errorf("list exam commitments: %w", err)
	}
	defer rows.Close()

	var out []*exam.Commitment
	for rows.Next() {
		c := &exam.Commitment{}
		err := rows.Scan(&c.ID, &c.CommitteeID, &c.AdvisorID, &c.Date,
			&c.StartTime, &c.EndTime, &c.Room, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan exam commitment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
