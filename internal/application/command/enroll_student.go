package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENT COMMAND
// Enrolls a student in a group unless one of the group's weekly slots
// collides with a slot of a group the student is already in.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand contains the enrollment request.
type EnrollStudentCommand struct {
	GroupID   string
	StudentID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c EnrollStudentCommand) Validate() error {
	if c.GroupID == "" {
		return invalid("EnrollStudent", "group_id is required")
	}
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	return nil
}

// EnrollStudentResult contains the created enrollment.
type EnrollStudentResult struct {
	Enrollment *enrollment.Enrollment
}

// EnrollStudentHandler handles EnrollStudentCommand.
type EnrollStudentHandler struct {
	groups      group.Repository
	schedules   schedule.Repository
	enrollments enrollment.Repository
	locker      enrollment.Locker
	bus         shared.EventPublisher
	newID       IDGenerator
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler. locker may be nil.
func NewEnrollStudentHandler(
	groups group.Repository,
	schedules schedule.Repository,
	enrollments enrollment.Repository,
	locker enrollment.Locker,
	bus shared.EventPublisher,
	newID IDGenerator,
) *EnrollStudentHandler {
	if newID == nil {
		newID = NewUUID
	}
	return &EnrollStudentHandler{
		groups:      groups,
		schedules:   schedules,
		enrollments: enrollments,
		locker:      locker,
		bus:         bus,
		newID:       newID,
	}
}

// Handle executes the command. A conflicting request fails with an error
// matching shared.ErrScheduleConflict and nothing is written.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*EnrollStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(logger.GroupID(cmd.GroupID), logger.StudentID(cmd.StudentID))

	if h.locker != nil {
		release, err := h.locker.Acquire(ctx, cmd.StudentID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	if _, err := h.groups.GetByID(ctx, cmd.GroupID); err != nil {
		return nil, err
	}

	enrolled, err := h.enrollments.Exists(ctx, cmd.GroupID, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("enroll_student: failed to check enrollment: %w", err)
	}
	if enrolled {
		return nil, shared.ErrAlreadyEnrolled
	}

	candidate, err := h.schedules.ListByGroup(ctx, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("enroll_student: failed to load group schedule: %w", err)
	}

	groupIDs, err := h.enrollments.ListGroupIDsByStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("enroll_student: failed to load student groups: %w", err)
	}

	var existing []*schedule.Entry
	if len(groupIDs) > 0 {
		existing, err = h.schedules.ListByGroups(ctx, groupIDs)
		if err != nil {
			return nil, fmt.Errorf("enroll_student: failed to load student schedule: %w", err)
		}
	}

	conflict, found, err := schedule.FindEntryConflict(candidate, existing)
	if err != nil {
		return nil, err
	}
	if found {
		event := shared.NewEnrollmentRejectedEvent(cmd.GroupID, cmd.StudentID, conflict.Existing.GroupID, conflict.String())
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		publish(ctx, h.bus, event)

		log.Info("enrollment rejected: schedule conflict",
			logger.String("conflicting_group_id", conflict.Existing.GroupID),
			logger.String("conflict", conflict.String()),
		)
		return nil, shared.ErrScheduleConflict.WithDetail(errors.New(conflict.String()))
	}

	e, err := enrollment.NewEnrollment(h.newID(), cmd.GroupID, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	if err := h.enrollments.Create(ctx, e); err != nil {
		return nil, err
	}

	event := shared.NewEnrollmentCreatedEvent(e.ID, e.GroupID, e.StudentID.String())
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	publish(ctx, h.bus, event)

	log.Info("student enrolled")

	return &EnrollStudentResult{Enrollment: e}, nil
}
