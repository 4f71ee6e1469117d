// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Metrics and audit logging subscribe to these.
const (
	// Group events
	EventGroupCreated    EventType = "group.created"
	EventGroupConfigured EventType = "group.configured"
	EventScheduleAdded   EventType = "group.schedule_added"

	// Enrollment events
	EventEnrollmentCreated  EventType = "enrollment.created"
	EventEnrollmentRejected EventType = "enrollment.rejected"
	EventEnrollmentRemoved  EventType = "enrollment.removed"

	// Attendance events
	EventAttendanceMarked EventType = "attendance.marked"
	EventAttendanceClosed EventType = "attendance.closed"
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
// Group Events
// ═══════════════════════════════════════════════════════════════════════════

// GroupCreatedEvent is emitted when a new class group is created.
type GroupCreatedEvent struct {
	BaseEvent
	Name        string `json:"name"`
	SubjectCode string `json:"subject_code,omitempty"`
}

// Payload implements Event interface.
func (e GroupCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":         e.Name,
		"subject_code": e.SubjectCode,
	}
}

// NewGroupCreatedEvent creates a new GroupCreatedEvent.
func NewGroupCreatedEvent(groupID, name, subjectCode string) GroupCreatedEvent {
	return GroupCreatedEvent{
		BaseEvent:   NewBaseEvent(EventGroupCreated, groupID),
		Name:        name,
		SubjectCode: subjectCode,
	}
}

// GroupConfiguredEvent is emitted when tolerance or strategy of a group changes.
type GroupConfiguredEvent struct {
	BaseEvent
	ToleranceMinutes int    `json:"tolerance_minutes"`
	Strategy         string `json:"strategy"`
}

// Payload implements Event interface.
func (e GroupConfiguredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"tolerance_minutes": e.ToleranceMinutes,
		"strategy":          e.Strategy,
	}
}

// NewGroupConfiguredEvent creates a new GroupConfiguredEvent.
func NewGroupConfiguredEvent(groupID string, tolerance int, strategy string) GroupConfiguredEvent {
	return GroupConfiguredEvent{
		BaseEvent:        NewBaseEvent(EventGroupConfigured, groupID),
		ToleranceMinutes: tolerance,
		Strategy:         strategy,
	}
}

// ScheduleAddedEvent is emitted when a weekly slot is attached to a group.
type ScheduleAddedEvent struct {
	BaseEvent
	ScheduleID string `json:"schedule_id"`
	Day        string `json:"day"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// Payload implements Event interface.
func (e ScheduleAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"schedule_id": e.ScheduleID,
		"day":         e.Day,
		"start_time":  e.StartTime,
		"end_time":    e.EndTime,
	}
}

// NewScheduleAddedEvent creates a new ScheduleAddedEvent.
func NewScheduleAddedEvent(groupID, scheduleID, day, start, end string) ScheduleAddedEvent {
	return ScheduleAddedEvent{
		BaseEvent:  NewBaseEvent(EventScheduleAdded, groupID),
		ScheduleID: scheduleID,
		Day:        day,
		StartTime:  start,
		EndTime:    end,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentCreatedEvent is emitted when a student is enrolled in a group.
type EnrollmentCreatedEvent struct {
	BaseEvent
	GroupID   string `json:"group_id"`
	StudentID string `json:"student_id"`
}

// Payload implements Event interface.
func (e EnrollmentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id":   e.GroupID,
		"student_id": e.StudentID,
	}
}

// NewEnrollmentCreatedEvent creates a new EnrollmentCreatedEvent.
func NewEnrollmentCreatedEvent(enrollmentID, groupID, studentID string) EnrollmentCreatedEvent {
	return EnrollmentCreatedEvent{
		BaseEvent: NewBaseEvent(EventEnrollmentCreated, enrollmentID),
		GroupID:   groupID,
		StudentID: studentID,
	}
}

// EnrollmentRejectedEvent is emitted when an enrollment is refused because of a schedule conflict.
type EnrollmentRejectedEvent struct {
	BaseEvent
	StudentID          string `json:"student_id"`
	ConflictingGroupID string `json:"conflicting_group_id,omitempty"`
	Reason             string `json:"reason"`
}

// Payload implements Event interface.
func (e EnrollmentRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":           e.StudentID,
		"conflicting_group_id": e.ConflictingGroupID,
		"reason":               e.Reason,
	}
}

// NewEnrollmentRejectedEvent creates a new EnrollmentRejectedEvent.
func NewEnrollmentRejectedEvent(groupID, studentID, conflictingGroupID, reason string) EnrollmentRejectedEvent {
	return EnrollmentRejectedEvent{
		BaseEvent:          NewBaseEvent(EventEnrollmentRejected, groupID),
		StudentID:          studentID,
		ConflictingGroupID: conflictingGroupID,
		Reason:             reason,
	}
}

// EnrollmentRemovedEvent is emitted when a student leaves a group.
type EnrollmentRemovedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
}

// Payload implements Event interface.
func (e EnrollmentRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
	}
}

// NewEnrollmentRemovedEvent creates a new EnrollmentRemovedEvent.
func NewEnrollmentRemovedEvent(groupID, studentID string) EnrollmentRemovedEvent {
	return EnrollmentRemovedEvent{
		BaseEvent: NewBaseEvent(EventEnrollmentRemoved, groupID),
		StudentID: studentID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceMarkedEvent is emitted for every persisted attendance record.
type AttendanceMarkedEvent struct {
	BaseEvent
	GroupID      string `json:"group_id"`
	ScheduleID   string `json:"schedule_id"`
	StudentID    string `json:"student_id"`
	State        string `json:"state"`
	Strategy     string `json:"strategy"`
	DeltaMinutes int    `json:"delta_minutes"`
	Source       string `json:"source"`
}

// Payload implements Event interface.
func (e AttendanceMarkedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id":      e.GroupID,
		"schedule_id":   e.ScheduleID,
		"student_id":    e.StudentID,
		"state":         e.State,
		"strategy":      e.Strategy,
		"delta_minutes": e.DeltaMinutes,
		"source":        e.Source,
	}
}

// NewAttendanceMarkedEvent creates a new AttendanceMarkedEvent.
func NewAttendanceMarkedEvent(recordID, groupID, scheduleID, studentID, state, strategy string, delta int, source string) AttendanceMarkedEvent {
	return AttendanceMarkedEvent{
		BaseEvent:    NewBaseEvent(EventAttendanceMarked, recordID),
		GroupID:      groupID,
		ScheduleID:   scheduleID,
		StudentID:    studentID,
		State:        state,
		Strategy:     strategy,
		DeltaMinutes: delta,
		Source:       source,
	}
}

// AttendanceClosedEvent is emitted when a class session is closed and
// remaining students are marked absent.
type AttendanceClosedEvent struct {
	BaseEvent
	ClassDate    string `json:"class_date"`
	AutoAbsences int    `json:"auto_absences"`
}

// Payload implements Event interface.
func (e AttendanceClosedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_date":    e.ClassDate,
		"auto_absences": e.AutoAbsences,
	}
}

// NewAttendanceClosedEvent creates a new AttendanceClosedEvent.
func NewAttendanceClosedEvent(scheduleID, classDate string, autoAbsences int) AttendanceClosedEvent {
	return AttendanceClosedEvent{
		BaseEvent:    NewBaseEvent(EventAttendanceClosed, scheduleID),
		ClassDate:    classDate,
		AutoAbsences: autoAbsences,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
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
