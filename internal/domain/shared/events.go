// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the domain; scheduling-adjacent UIs react to them.
const (
	// Period events
	EventPeriodOpened           EventType = "period.opened"
	EventPeriodOpeningScheduled EventType = "period.opening_scheduled"
	EventPeriodPromoted         EventType = "period.promoted"
	EventPeriodClosed           EventType = "period.closed"
	EventPeriodDeleted          EventType = "period.deleted"

	// Session events
	EventSessionScheduled   EventType = "session.scheduled"
	EventSessionRescheduled EventType = "session.rescheduled"
	EventSessionConfirmed   EventType = "session.confirmed"
	EventSessionCompleted   EventType = "session.completed"
	EventSessionCancelled   EventType = "session.cancelled"
	EventSessionReverted    EventType = "session.completion_reverted"

	// Document events
	EventRevisionApproved EventType = "document.revision_approved"
)

// PeriodEventTypes lists every event a period mutation can emit. Subscribers
// that only care about "the active period may have changed" subscribe to all
// of these.
func PeriodEventTypes() []EventType {
	return []EventType{
		EventPeriodOpened,
		EventPeriodOpeningScheduled,
		EventPeriodPromoted,
		EventPeriodClosed,
		EventPeriodDeleted,
	}
}

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Period Events
// ═══════════════════════════════════════════════════════════════════════════

// PeriodChangedEvent is emitted on any period state change. The Change field
// distinguishes which transition happened.
type PeriodChangedEvent struct {
	BaseEvent
	PeriodID     int64  `json:"period_id"`
	AcademicYear string `json:"academic_year"`
	Status       string `json:"status"`
	ActorID      int64  `json:"actor_id,omitempty"`
}

// Payload implements Event interface.
func (e PeriodChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"period_id":     e.PeriodID,
		"academic_year": e.AcademicYear,
		"status":        e.Status,
		"actor_id":      e.ActorID,
	}
}

// NewPeriodChangedEvent creates a period change event of the given type.
func NewPeriodChangedEvent(change EventType, periodID int64, year string, status string, actorID int64) PeriodChangedEvent {
	return PeriodChangedEvent{
		BaseEvent:    NewBaseEvent(change, formatID(periodID)),
		PeriodID:     periodID,
		AcademicYear: year,
		Status:       status,
		ActorID:      actorID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionEvent is emitted when a mentoring session changes state.
type SessionEvent struct {
	BaseEvent
	SessionID  int64  `json:"session_id"`
	ProjectID  int64  `json:"project_id"`
	AdvisorID  int64  `json:"advisor_id"`
	SequenceNo int    `json:"sequence_no"`
	Date       string `json:"date,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
}

// Payload implements Event interface.
func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id":  e.SessionID,
		"project_id":  e.ProjectID,
		"advisor_id":  e.AdvisorID,
		"sequence_no": e.SequenceNo,
		"date":        e.Date,
		"start_time":  e.StartTime,
		"end_time":    e.EndTime,
	}
}

// NewSessionEvent creates a session event of the given type.
func NewSessionEvent(change EventType, sessionID, projectID, advisorID int64, sequenceNo int) SessionEvent {
	return SessionEvent{
		BaseEvent:  NewBaseEvent(change, formatID(sessionID)),
		SessionID:  sessionID,
		ProjectID:  projectID,
		AdvisorID:  advisorID,
		SequenceNo: sequenceNo,
	}
}

// WithSchedule attaches the scheduled date and time window to the event.
func (e SessionEvent) WithSchedule(date, start, end string) SessionEvent {
	e.Date = date
	e.StartTime = start
	e.EndTime = end
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Document Events
// ═══════════════════════════════════════════════════════════════════════════

// RevisionApprovedEvent is emitted when both supervisory roles have signed
// off on a project's latest document revision.
type RevisionApprovedEvent struct {
	BaseEvent
	RevisionID int64 `json:"revision_id"`
	ProjectID  int64 `json:"project_id"`
}

// Payload implements Event interface.
func (e RevisionApprovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"revision_id": e.RevisionID,
		"project_id":  e.ProjectID,
	}
}

// NewRevisionApprovedEvent creates a new RevisionApprovedEvent.
func NewRevisionApprovedEvent(revisionID, projectID int64) RevisionApprovedEvent {
	return RevisionApprovedEvent{
		BaseEvent:  NewBaseEvent(EventRevisionApproved, formatID(revisionID)),
		RevisionID: revisionID,
		ProjectID:  projectID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
//
// Publishing is fire-and-forget from the caller's point of view: command
// handlers ignore the returned error beyond logging it, and implementations
// must never panic across the call boundary.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// formatID renders an int64 entity ID as the string aggregate ID used in
// envelopes.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
