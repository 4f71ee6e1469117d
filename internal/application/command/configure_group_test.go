package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureGroup_StoresSettings(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	cache := &recordingRefresher{}
	h := NewConfigureGroupHandler(f.groups, cache, f.bus)

	res, err := h.Handle(context.Background(), ConfigureGroupCommand{GroupID: "math", ToleranceMinutes: 15, Strategy: "standard_present"})
	require.NoError(t, err)
	assert.Equal(t, group.ToleranceMinutes(15), res.Settings.Tolerance)
	assert.Equal(t, attendance.StrategyPresent, res.Settings.Strategy)

	stored := f.groups.groups["math"]
	require.NotNil(t, stored.Tolerance)
	assert.Equal(t, 15, *stored.Tolerance)
	assert.Equal(t, "standard_present", stored.StrategyLabel)
	assert.Equal(t, map[string]group.Settings{"math": res.Settings}, cache.calls)
	assert.Zero(t, res.StaleFor)
	assert.Equal(t, []shared.EventType{shared.EventGroupConfigured}, f.bus.types())
}

func TestConfigureGroup_ReportsStaleCache(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	cache := &recordingRefresher{err: errors.New("redis: connection refused"), staleFor: 10 * time.Minute}
	h := NewConfigureGroupHandler(f.groups, cache, f.bus)

	res, err := h.Handle(context.Background(), ConfigureGroupCommand{GroupID: "math", ToleranceMinutes: 20, Strategy: "standard_present"})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, res.StaleFor)

	stored := f.groups.groups["math"]
	require.NotNil(t, stored.Tolerance)
	assert.Equal(t, 20, *stored.Tolerance)
	assert.Equal(t, []shared.EventType{shared.EventGroupConfigured}, f.bus.types())
}

func TestConfigureGroup_BoundaryTolerances(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	h := NewConfigureGroupHandler(f.groups, nil, nil)

	for _, tol := range []int{0, 60} {
		_, err := h.Handle(context.Background(), ConfigureGroupCommand{GroupID: "math", ToleranceMinutes: tol})
		assert.NoError(t, err, tol)
	}
	for _, tol := range []int{-1, 61} {
		_, err := h.Handle(context.Background(), ConfigureGroupCommand{GroupID: "math", ToleranceMinutes: tol})
		assert.ErrorIs(t, err, shared.ErrInvalidToleranceRange, tol)
	}
}

func TestConfigureGroup_RejectsUnknownStrategy(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "standard_present", nil)
	h := NewConfigureGroupHandler(f.groups, nil, f.bus)

	_, err := h.Handle(context.Background(), ConfigureGroupCommand{GroupID: "math", ToleranceMinutes: 10, Strategy: "flexible"})
	assert.ErrorIs(t, err, shared.ErrUnrecognizedStrategyKind)
	assert.Equal(t, "standard_present", f.groups.groups["math"].StrategyLabel)
	assert.Empty(t, f.bus.types())
}

func TestConfigureGroup_EmptyStrategyTakesDefault(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "standard_present", nil)

	res, err := NewConfigureGroupHandler(f.groups, nil, nil).Handle(context.Background(), ConfigureGroupCommand{GroupID: "math", ToleranceMinutes: 10})
	require.NoError(t, err)
	assert.Equal(t, attendance.StrategyLateWindow, res.Settings.Strategy)
}

func TestConfigureGroup_UnknownGroup(t *testing.T) {
	f := newFixture()
	_, err := NewConfigureGroupHandler(f.groups, nil, nil).Handle(context.Background(), ConfigureGroupCommand{GroupID: "x", ToleranceMinutes: 10})
	assert.ErrorIs(t, err, shared.ErrGroupNotFound)
}

func TestCreateGroup(t *testing.T) {
	f := newFixture()
	h := NewCreateGroupHandler(f.groups, f.bus, sequentialIDs("grp"))

	res, err := h.Handle(context.Background(), CreateGroupCommand{Name: "Algebra", SubjectCode: "mat-101"})
	require.NoError(t, err)
	assert.Equal(t, "grp-1", res.Group.ID)
	assert.Equal(t, group.DefaultSettings(), res.Settings)
	assert.Contains(t, f.groups.groups, "grp-1")

	_, err = h.Handle(context.Background(), CreateGroupCommand{Name: ""})
	assert.ErrorIs(t, err, shared.ErrInvalidGroupName)

	tol := 75
	_, err = h.Handle(context.Background(), CreateGroupCommand{Name: "Lab", Tolerance: &tol})
	assert.ErrorIs(t, err, shared.ErrInvalidToleranceRange)
}

func TestAddSchedule(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	h := NewAddScheduleHandler(f.groups, f.schedules, f.bus, sequentialIDs("sch"))

	entry, err := h.Handle(context.Background(), AddScheduleCommand{GroupID: "math", Day: "Wednesday", StartTime: "09:00", EndTime: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, "sch-1", entry.ID)
	assert.Equal(t, schedule.Wednesday, entry.Day)

	_, err = h.Handle(context.Background(), AddScheduleCommand{GroupID: "math", Day: "mon", StartTime: "11:00", EndTime: "09:00"})
	assert.ErrorIs(t, err, shared.ErrInvalidSlot)

	_, err = h.Handle(context.Background(), AddScheduleCommand{GroupID: "math", Day: "mon", StartTime: "24:00", EndTime: "09:00"})
	assert.ErrorIs(t, err, shared.ErrInvalidTimeFormat)

	_, err = h.Handle(context.Background(), AddScheduleCommand{GroupID: "ghost", Day: "mon", StartTime: "08:00", EndTime: "09:00"})
	assert.ErrorIs(t, err, shared.ErrGroupNotFound)

	assert.Len(t, f.schedules.entries, 1)
}
