// Package audit records who did what to scheduling and period state.
// Writes are best effort: a failed audit insert is logged and swallowed,
// never allowed to fail the operation it describes.
package audit

import (
	"context"
	"time"
)

// Entry is one audit-log row.
type Entry struct {
	ID         int64
	ActorID    int64
	Action     string
	EntityType string
	EntityID   int64
	Detail     map[string]any
	CreatedAt  time.Time
}

// Common actions.
const (
	ActionSessionScheduled   = "session.scheduled"
	ActionSessionRescheduled = "session.rescheduled"
	ActionSessionCompleted   = "session.completed"
	ActionSessionReverted    = "session.completion_reverted"
	ActionSessionCancelled   = "session.cancelled"
	ActionSessionConfirmed   = "session.confirmed"
	ActionPeriodOpened       = "period.opened"
	ActionPeriodScheduled    = "period.opening_scheduled"
	ActionPeriodUnscheduled  = "period.opening_cancelled"
	ActionPeriodPromoted     = "period.promoted"
	ActionPeriodClosed       = "period.closed"
	ActionPeriodDeleted      = "period.deleted"
)

// Sink accepts audit entries. Implementations must absorb their own errors.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// NopSink discards everything; used in tests and when auditing is disabled.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) {}
