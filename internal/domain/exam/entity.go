// Package exam exposes the committee commitments that make an advisor busy
// outside their own mentoring sessions.
package exam

import (
	"context"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/schedule"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// Commitment is one defense-committee seat occupying an advisor on a date.
type Commitment struct {
	ID          int64
	CommitteeID int64
	AdvisorID   int64
	Date        time.Time
	StartTime   string
	EndTime     string
	Room        string
	CreatedAt   time.Time
}

// Window returns the commitment's busy interval in minutes since midnight.
// Commitments are stored with both endpoints, but a missing or malformed end
// degrades to the default session duration like any other busy source.
func (c *Commitment) Window() schedule.Interval {
	start := timeutil.ParseClock(c.StartTime)
	end := start + schedule.DefaultSessionMinutes
	if v, ok := timeutil.ParseClockStrict(c.EndTime); ok && v > start {
		end = v
	}
	return schedule.Interval{Start: start, End: end}
}

// Reader is the read-only port conflict checks use; commitments are written
// by the committee-management side, not by scheduling.
type Reader interface {
	// ListByAdvisorOnDate returns an advisor's commitments on a calendar date.
	ListByAdvisorOnDate(ctx context.Context, advisorID int64, date time.Time) ([]*Commitment, error)
}
