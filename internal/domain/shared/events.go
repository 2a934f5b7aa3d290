// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one is published after the state it describes
// has been committed to the store.
const (
	// Student events
	EventStudentOnboarded     EventType = "student.onboarded"
	EventStudentStatusChanged EventType = "student.status_changed"
	EventStudentStatsAdjusted EventType = "student.stats_adjusted"

	// Rating events
	EventRatingChanged EventType = "rating.changed"

	// Achievement events
	EventAchievementGranted EventType = "achievement.granted"

	// Security events
	EventAlertRaised   EventType = "security.alert_raised"
	EventAlertResolved EventType = "security.alert_resolved"
	EventSweepFinished EventType = "security.sweep_finished"

	// Activity events
	EventActivityGenerated EventType = "activity.generated"
)

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

// NewBaseEvent creates a new base event stamped at the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
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
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentOnboardedEvent is emitted when a new student enters the system.
type StudentOnboardedEvent struct {
	BaseEvent
	Ticket   string `json:"ticket"`
	FullName string `json:"full_name"`
	Rating   int    `json:"rating"`
}

// Payload implements Event interface.
func (e StudentOnboardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"ticket":    e.Ticket,
		"full_name": e.FullName,
		"rating":    e.Rating,
	}
}

// NewStudentOnboardedEvent creates a new StudentOnboardedEvent.
func NewStudentOnboardedEvent(studentID, ticket, fullName string, rating int, at time.Time) StudentOnboardedEvent {
	return StudentOnboardedEvent{
		BaseEvent: NewBaseEvent(EventStudentOnboarded, studentID, at),
		Ticket:    ticket,
		FullName:  fullName,
		Rating:    rating,
	}
}

// StudentStatusChangedEvent is emitted on a status transition.
type StudentStatusChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// Payload implements Event interface.
func (e StudentStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from": e.From,
		"to":   e.To,
	}
}

// NewStudentStatusChangedEvent creates a new StudentStatusChangedEvent.
func NewStudentStatusChangedEvent(studentID, from, to string, at time.Time) StudentStatusChangedEvent {
	return StudentStatusChangedEvent{
		BaseEvent: NewBaseEvent(EventStudentStatusChanged, studentID, at),
		From:      from,
		To:        to,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Events
// ═══════════════════════════════════════════════════════════════════════════

// RatingChangedEvent is emitted after the ledger commits a rating change.
type RatingChangedEvent struct {
	BaseEvent
	Kind       string `json:"kind"`
	PrevRating int    `json:"prev_rating"`
	NewRating  int    `json:"new_rating"`
	Delta      int    `json:"delta"`
	Reason     string `json:"reason"`
}

// Payload implements Event interface.
func (e RatingChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":        e.Kind,
		"prev_rating": e.PrevRating,
		"new_rating":  e.NewRating,
		"delta":       e.Delta,
		"reason":      e.Reason,
	}
}

// NewRatingChangedEvent creates a new RatingChangedEvent.
func NewRatingChangedEvent(studentID, kind string, prev, next int, reason string, at time.Time) RatingChangedEvent {
	return RatingChangedEvent{
		BaseEvent:  NewBaseEvent(EventRatingChanged, studentID, at),
		Kind:       kind,
		PrevRating: prev,
		NewRating:  next,
		Delta:      next - prev,
		Reason:     reason,
	}
}

// IsGain returns true if the rating went up.
func (e RatingChangedEvent) IsGain() bool {
	return e.Delta > 0
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementGrantedEvent is emitted once per newly created grant.
type AchievementGrantedEvent struct {
	BaseEvent
	Code  string `json:"code"`
	Title string `json:"title"`
}

// Payload implements Event interface.
func (e AchievementGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"code":  e.Code,
		"title": e.Title,
	}
}

// NewAchievementGrantedEvent creates a new AchievementGrantedEvent.
func NewAchievementGrantedEvent(studentID, code, title string, at time.Time) AchievementGrantedEvent {
	return AchievementGrantedEvent{
		BaseEvent: NewBaseEvent(EventAchievementGranted, studentID, at),
		Code:      code,
		Title:     title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Security Events
// ═══════════════════════════════════════════════════════════════════════════

// AlertRaisedEvent is emitted when a sweep creates a new alert.
type AlertRaisedEvent struct {
	BaseEvent
	AlertID string `json:"alert_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// Payload implements Event interface.
func (e AlertRaisedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id": e.AlertID,
		"level":    e.Level,
		"message":  e.Message,
		"source":   e.Source,
	}
}

// NewAlertRaisedEvent creates a new AlertRaisedEvent. The aggregate is the student.
func NewAlertRaisedEvent(studentID, alertID, level, message, source string, at time.Time) AlertRaisedEvent {
	return AlertRaisedEvent{
		BaseEvent: NewBaseEvent(EventAlertRaised, studentID, at),
		AlertID:   alertID,
		Level:     level,
		Message:   message,
		Source:    source,
	}
}

// AlertResolvedEvent is emitted when an operator resolves an alert.
type AlertResolvedEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e AlertResolvedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id": e.AggregateId,
	}
}

// NewAlertResolvedEvent creates a new AlertResolvedEvent. The aggregate is the alert.
func NewAlertResolvedEvent(alertID string, at time.Time) AlertResolvedEvent {
	return AlertResolvedEvent{BaseEvent: NewBaseEvent(EventAlertResolved, alertID, at)}
}

// SweepFinishedEvent summarizes one security sweep.
type SweepFinishedEvent struct {
	BaseEvent
	StudentsScanned     int           `json:"students_scanned"`
	AlertsCreated       int           `json:"alerts_created"`
	AchievementsGranted int           `json:"achievements_granted"`
	Failures            int           `json:"failures"`
	Duration            time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SweepFinishedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"students_scanned":     e.StudentsScanned,
		"alerts_created":       e.AlertsCreated,
		"achievements_granted": e.AchievementsGranted,
		"failures":             e.Failures,
		"duration_ms":          e.Duration.Milliseconds(),
	}
}

// NewSweepFinishedEvent creates a new SweepFinishedEvent. Sweeps have no
// aggregate, so the aggregate ID is the sweep ID.
func NewSweepFinishedEvent(sweepID string, scanned, alerts, grants, failures int, took time.Duration, at time.Time) SweepFinishedEvent {
	return SweepFinishedEvent{
		BaseEvent:           NewBaseEvent(EventSweepFinished, sweepID, at),
		StudentsScanned:     scanned,
		AlertsCreated:       alerts,
		AchievementsGranted: grants,
		Failures:            failures,
		Duration:            took,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityGeneratedEvent carries one activity feed entry.
type ActivityGeneratedEvent struct {
	BaseEvent
	ActivityID   string `json:"activity_id"`
	ActivityType string `json:"activity_type"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
}

// Payload implements Event interface.
func (e ActivityGeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":       e.ActivityID,
		"type":     e.ActivityType,
		"message":  e.Message,
		"severity": e.Severity,
		"time":     e.Timestamp.Format("15:04:05"),
	}
}

// NewActivityGeneratedEvent creates a new ActivityGeneratedEvent.
func NewActivityGeneratedEvent(studentID, activityID, activityType, message, severity string, at time.Time) ActivityGeneratedEvent {
	return ActivityGeneratedEvent{
		BaseEvent:    NewBaseEvent(EventActivityGenerated, studentID, at),
		ActivityID:   activityID,
		ActivityType: activityType,
		Message:      message,
		Severity:     severity,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
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

// NopPublisher discards events. Used where no bus is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
