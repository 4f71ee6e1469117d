package command

import (
	"context"
	"fmt"

	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD SCHEDULE COMMAND
// Attaches a weekly class time to a group.
// ══════════════════════════════════════════════════════════════════════════════

// AddScheduleCommand contains the weekly slot to add.
type AddScheduleCommand struct {
	GroupID   string
	Day       string
	StartTime string
	EndTime   string
	Room      string
}

// Validate validates the command.
func (c AddScheduleCommand) Validate() error {
	if c.GroupID == "" {
		return invalid("AddSchedule", "group_id is required")
	}
	return nil
}

// AddScheduleHandler handles AddScheduleCommand.
type AddScheduleHandler struct {
	groups    group.Repository
	schedules schedule.Repository
	bus       shared.EventPublisher
	newID     IDGenerator
}

// NewAddScheduleHandler creates a new AddScheduleHandler.
func NewAddScheduleHandler(groups group.Repository, schedules schedule.Repository, bus shared.EventPublisher, newID IDGenerator) *AddScheduleHandler {
	if newID == nil {
		newID = NewUUID
	}
	return &AddScheduleHandler{groups: groups, schedules: schedules, bus: bus, newID: newID}
}

// Handle executes the command. Malformed times fail with
// shared.ErrInvalidTimeFormat, start >= end with shared.ErrInvalidSlot.
func (h *AddScheduleHandler) Handle(ctx context.Context, cmd AddScheduleCommand) (*schedule.Entry, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	entry, err := schedule.NewEntry(schedule.NewEntryParams{
		ID:        h.newID(),
		GroupID:   cmd.GroupID,
		Day:       cmd.Day,
		StartTime: cmd.StartTime,
		EndTime:   cmd.EndTime,
		Room:      cmd.Room,
	})
	if err != nil {
		return nil, err
	}

	if _, err := h.groups.GetByID(ctx, cmd.GroupID); err != nil {
		return nil, err
	}

	if err := h.schedules.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("add_schedule: failed to save entry: %w", err)
	}

	publish(ctx, h.bus, shared.NewScheduleAddedEvent(entry.GroupID, entry.ID, entry.Day.String(), entry.StartTime, entry.EndTime))

	logger.FromContext(ctx).Info("schedule entry added",
		logger.GroupID(entry.GroupID),
		logger.ScheduleID(entry.ID),
		logger.String("slot", fmt.Sprintf("%s %s-%s", entry.Day, entry.StartTime, entry.EndTime)),
	)

	return entry, nil
}
