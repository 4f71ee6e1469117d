package command

import (
	"context"

	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNENROLL STUDENT COMMAND
// Removes a student from a group. Existing attendance records are kept; the
// student is no longer marked absent by later closes.
// ══════════════════════════════════════════════════════════════════════════════

// UnenrollStudentCommand identifies the enrollment to remove.
type UnenrollStudentCommand struct {
	GroupID   string
	StudentID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UnenrollStudentCommand) Validate() error {
	if c.GroupID == "" {
		return invalid("UnenrollStudent", "group_id is required")
	}
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	return nil
}

// UnenrollStudentHandler handles UnenrollStudentCommand.
type UnenrollStudentHandler struct {
	enrollments enrollment.Repository
	locker      enrollment.Locker
	bus         shared.EventPublisher
}

// NewUnenrollStudentHandler creates a new UnenrollStudentHandler. locker may be nil.
func NewUnenrollStudentHandler(enrollments enrollment.Repository, locker enrollment.Locker, bus shared.EventPublisher) *UnenrollStudentHandler {
	return &UnenrollStudentHandler{enrollments: enrollments, locker: locker, bus: bus}
}

// Handle executes the command. A missing enrollment fails with shared.ErrNotEnrolled.
func (h *UnenrollStudentHandler) Handle(ctx context.Context, cmd UnenrollStudentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	// Same lock as enrollment, so a concurrent enroll sees a settled state.
	if h.locker != nil {
		release, err := h.locker.Acquire(ctx, cmd.StudentID)
		if err != nil {
			return err
		}
		defer release()
	}

	if err := h.enrollments.Delete(ctx, cmd.GroupID, cmd.StudentID); err != nil {
		return err
	}

	event := shared.NewEnrollmentRemovedEvent(cmd.GroupID, cmd.StudentID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	publish(ctx, h.bus, event)

	logger.FromContext(ctx).Info("student unenrolled",
		logger.GroupID(cmd.GroupID),
		logger.StudentID(cmd.StudentID),
	)
	return nil
}
