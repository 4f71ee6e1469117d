package command

import (
	"context"
	"errors"
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
// CLOSE ATTENDANCE COMMAND
// After a class ends (plus a grace period) every enrolled student without a
// mark gets an absent record with source "auto".
// ══════════════════════════════════════════════════════════════════════════════

// CloseAttendanceCommand selects the day to close. A zero Date means today;
// on today only classes whose end plus grace has passed are closed.
type CloseAttendanceCommand struct {
	Date time.Time
}

// CloseAttendanceResult reports what was closed.
type CloseAttendanceResult struct {
	ClassDate        time.Time
	EntriesClosed    int
	EntriesSkipped   int
	AbsencesRecorded int
}

// CloseAttendanceHandler handles CloseAttendanceCommand.
type CloseAttendanceHandler struct {
	schedules   schedule.Repository
	enrollments enrollment.Repository
	records     attendance.Repository
	settings    group.SettingsSource
	bus         shared.EventPublisher
	clock       *timeutil.Clock
	grace       time.Duration
	newID       IDGenerator
}

// NewCloseAttendanceHandler creates a new CloseAttendanceHandler.
func NewCloseAttendanceHandler(
	schedules schedule.Repository,
	enrollments enrollment.Repository,
	records attendance.Repository,
	settings group.SettingsSource,
	bus shared.EventPublisher,
	clock *timeutil.Clock,
	grace time.Duration,
	newID IDGenerator,
) *CloseAttendanceHandler {
	if clock == nil {
		clock = timeutil.NewClock(nil)
	}
	if newID == nil {
		newID = NewUUID
	}
	return &CloseAttendanceHandler{
		schedules:   schedules,
		enrollments: enrollments,
		records:     records,
		settings:    settings,
		bus:         bus,
		clock:       clock,
		grace:       grace,
		newID:       newID,
	}
}

// Handle executes the command. A failing entry is logged and skipped so one
// misconfigured group does not block the others.
func (h *CloseAttendanceHandler) Handle(ctx context.Context, cmd CloseAttendanceCommand) (*CloseAttendanceResult, error) {
	today := h.clock.Today()
	date := today
	if !cmd.Date.IsZero() {
		date = shared.TruncateToDate(cmd.Date)
	}
	if date.After(today) {
		return nil, invalid("CloseAttendance", "cannot close a future date")
	}

	entries, err := h.schedules.ListByDay(ctx, schedule.WeekdayOf(date.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("close_attendance: failed to list schedule: %w", err)
	}

	log := logger.FromContext(ctx).With(logger.Operation("close_attendance"), logger.String("class_date", timeutil.FormatDateStr(date)))
	result := &CloseAttendanceResult{ClassDate: date}
	nowMinute := h.clock.MinuteOfDay()
	graceMinutes := int(h.grace / time.Minute)

	for _, entry := range entries {
		end, err := entry.End()
		if err != nil {
			log.Warn("skipping entry with malformed end time", logger.ScheduleID(entry.ID), logger.Err(err))
			result.EntriesSkipped++
			continue
		}
		if date.Equal(today) && end.Add(graceMinutes).Minutes() > nowMinute {
			continue
		}

		n, err := h.closeEntry(ctx, entry, date, h.clock.At(date, end.Minutes()))
		if err != nil {
			log.Warn("failed to close entry", logger.ScheduleID(entry.ID), logger.GroupID(entry.GroupID), logger.Err(err))
			result.EntriesSkipped++
			continue
		}
		result.EntriesClosed++
		result.AbsencesRecorded += n
	}

	if result.AbsencesRecorded > 0 {
		log.Info("attendance closed",
			logger.Int("entries_closed", result.EntriesClosed),
			logger.Int("absences", result.AbsencesRecorded),
		)
	}

	return result, nil
}

// closeEntry records absences for students who were enrolled when the
// meeting ended at endsAt. Later enrollments were never expected to attend.
func (h *CloseAttendanceHandler) closeEntry(ctx context.Context, entry *schedule.Entry, date, endsAt time.Time) (int, error) {
	students, err := h.enrollments.ListStudentIDsEnrolledBy(ctx, entry.GroupID, endsAt)
	if err != nil {
		return 0, fmt.Errorf("failed to list students: %w", err)
	}
	if len(students) == 0 {
		return 0, nil
	}

	marked, err := h.records.ListMarkedStudentIDs(ctx, entry.ID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to list marks: %w", err)
	}
	seen := make(map[string]struct{}, len(marked))
	for _, id := range marked {
		seen[id] = struct{}{}
	}

	settings, err := h.settings.GetSettings(ctx, entry.GroupID)
	if err != nil {
		return 0, err
	}
	classifier := settings.Classifier()

	recorded := 0
	for _, studentID := range students {
		if _, ok := seen[studentID]; ok {
			continue
		}
		record := attendance.NewAutoAbsence(h.newID(), entry.GroupID, entry.ID, studentID, date, classifier)
		if err := h.records.Save(ctx, record); err != nil {
			if errors.Is(err, shared.ErrAttendanceAlreadyMarked) {
				continue
			}
			return recorded, fmt.Errorf("failed to save absence: %w", err)
		}
		recorded++
		publish(ctx, h.bus, shared.NewAttendanceMarkedEvent(
			record.ID, record.GroupID, record.ScheduleID, record.StudentID,
			record.State.String(), record.Strategy.String(), 0, string(record.Source),
		))
	}

	publish(ctx, h.bus, shared.NewAttendanceClosedEvent(entry.ID, timeutil.FormatDateStr(date), recorded))
	return recorded, nil
}
