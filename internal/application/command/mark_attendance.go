package command

import (
	"context"
	"fmt"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/logger"
	"github.com/classmark/classmark-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK ATTENDANCE COMMAND
// Classifies one attendance mark with the group's tolerance and strategy
// and stores the state exactly as classified.
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendanceCommand contains one attendance mark.
type MarkAttendanceCommand struct {
	GroupID    string
	ScheduleID string
	StudentID  string

	// ClassDate is "YYYY-MM-DD"; empty means today on campus.
	ClassDate string

	// MarkedAt is "HH:MM"; empty means the current campus time.
	MarkedAt string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c MarkAttendanceCommand) Validate() error {
	if c.GroupID == "" {
		return invalid("MarkAttendance", "group_id is required")
	}
	if c.ScheduleID == "" {
		return invalid("MarkAttendance", "schedule_id is required")
	}
	if c.StudentID == "" {
		return invalid("MarkAttendance", "student_id is required")
	}
	return nil
}

// MarkAttendanceResult contains the stored record.
type MarkAttendanceResult struct {
	Record *attendance.Record
}

// MarkAttendanceHandler handles MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	schedules   schedule.Repository
	enrollments enrollment.Repository
	records     attendance.Repository
	settings    group.SettingsSource
	bus         shared.EventPublisher
	clock       *timeutil.Clock
	newID       IDGenerator
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(
	schedules schedule.Repository,
	enrollments enrollment.Repository,
	records attendance.Repository,
	settings group.SettingsSource,
	bus shared.EventPublisher,
	clock *timeutil.Clock,
	newID IDGenerator,
) *MarkAttendanceHandler {
	if clock == nil {
		clock = timeutil.NewClock(nil)
	}
	if newID == nil {
		newID = NewUUID
	}
	return &MarkAttendanceHandler{
		schedules:   schedules,
		enrollments: enrollments,
		records:     records,
		settings:    settings,
		bus:         bus,
		clock:       clock,
		newID:       newID,
	}
}

// Handle executes the command.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*MarkAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	marked, err := h.markTime(cmd.MarkedAt)
	if err != nil {
		return nil, err
	}
	classDate, err := h.classDate(cmd.ClassDate)
	if err != nil {
		return nil, err
	}

	entry, err := h.schedules.GetByID(ctx, cmd.ScheduleID)
	if err != nil {
		return nil, err
	}
	if entry.GroupID != cmd.GroupID {
		return nil, shared.ErrWrongGroupSchedule
	}
	if schedule.WeekdayOf(classDate.Weekday()) != entry.Day {
		return nil, shared.ErrClassDayMismatch
	}
	classStart, err := entry.Start()
	if err != nil {
		return nil, err
	}

	enrolled, err := h.enrollments.Exists(ctx, cmd.GroupID, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("mark_attendance: failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, shared.ErrNotEnrolled
	}

	settings, err := h.settings.GetSettings(ctx, cmd.GroupID)
	if err != nil {
		return nil, err
	}

	record, err := attendance.NewManualRecord(attendance.NewRecordParams{
		ID:         h.newID(),
		GroupID:    cmd.GroupID,
		ScheduleID: entry.ID,
		StudentID:  cmd.StudentID,
		ClassDate:  classDate,
		ClassStart: classStart,
		MarkedAt:   marked,
		Classifier: settings.Classifier(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.records.Save(ctx, record); err != nil {
		return nil, err
	}

	event := shared.NewAttendanceMarkedEvent(
		record.ID, record.GroupID, record.ScheduleID, record.StudentID,
		record.State.String(), record.Strategy.String(), record.DeltaMinutes, string(record.Source),
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	publish(ctx, h.bus, event)

	logger.FromContext(ctx).Info("attendance marked",
		logger.GroupID(record.GroupID),
		logger.ScheduleID(record.ScheduleID),
		logger.StudentID(record.StudentID),
		logger.State(record.State.String()),
		logger.Strategy(record.Strategy.String()),
		logger.Int("delta_minutes", record.DeltaMinutes),
	)

	return &MarkAttendanceResult{Record: record}, nil
}

func (h *MarkAttendanceHandler) markTime(text string) (schedule.TimeOfDay, error) {
	if text == "" {
		now := h.clock.Now()
		return schedule.NewTimeOfDay(now.Hour(), now.Minute())
	}
	return schedule.ParseTimeOfDay(text)
}

func (h *MarkAttendanceHandler) classDate(text string) (time.Time, error) {
	if text == "" {
		return h.clock.Today(), nil
	}
	d, err := timeutil.ParseDate(text)
	if err != nil {
		return time.Time{}, shared.WrapError("attendance", "Mark", shared.ErrInvalidFormat, "invalid class date, expected YYYY-MM-DD", err)
	}
	return d, nil
}
