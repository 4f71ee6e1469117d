package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memGroups struct {
	mu     sync.Mutex
	groups map[string]*group.Group
}

func newMemGroups() *memGroups {
	return &memGroups{groups: make(map[string]*group.Group)}
}

func (m *memGroups) Create(_ context.Context, g *group.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[g.ID]; ok {
		return shared.ErrGroupAlreadyExists
	}
	cp := *g
	m.groups[g.ID] = &cp
	return nil
}

func (m *memGroups) GetByID(_ context.Context, id string) (*group.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, shared.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGroups) UpdateSettings(_ context.Context, g *group.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.groups[g.ID]
	if !ok {
		return shared.ErrGroupNotFound
	}
	stored.Tolerance = g.Tolerance
	stored.StrategyLabel = g.StrategyLabel
	stored.UpdatedAt = g.UpdatedAt
	return nil
}

func (m *memGroups) List(_ context.Context, _ shared.Pagination) ([]*group.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*group.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetSettings lets memGroups act as an uncached group.SettingsSource.
func (m *memGroups) GetSettings(ctx context.Context, groupID string) (group.Settings, error) {
	g, err := m.GetByID(ctx, groupID)
	if err != nil {
		return group.Settings{}, err
	}
	return g.Settings()
}

type memSchedules struct {
	mu      sync.Mutex
	entries []*schedule.Entry
}

func (m *memSchedules) Create(_ context.Context, e *schedule.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memSchedules) GetByID(_ context.Context, id string) (*schedule.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, shared.ErrScheduleNotFound
}

func (m *memSchedules) ListByGroup(ctx context.Context, groupID string) ([]*schedule.Entry, error) {
	return m.ListByGroups(ctx, []string{groupID})
}

func (m *memSchedules) ListByGroups(_ context.Context, groupIDs []string) ([]*schedule.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		want[id] = true
	}
	var out []*schedule.Entry
	for _, e := range m.entries {
		if want[e.GroupID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memSchedules) ListByDay(_ context.Context, day schedule.Weekday) ([]*schedule.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schedule.Entry
	for _, e := range m.entries {
		if e.Day == day {
			out = append(out, e)
		}
	}
	return out, nil
}

type memEnrollments struct {
	mu    sync.Mutex
	items []*enrollment.Enrollment
}

func (m *memEnrollments) Create(_ context.Context, e *enrollment.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.GroupID == e.GroupID && it.StudentID == e.StudentID {
			return shared.ErrAlreadyEnrolled
		}
	}
	m.items = append(m.items, e)
	return nil
}

func (m *memEnrollments) Exists(_ context.Context, groupID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.GroupID == groupID && it.StudentID.String() == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEnrollments) ListGroupIDsByStudent(_ context.Context, studentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, it := range m.items {
		if it.StudentID.String() == studentID {
			out = append(out, it.GroupID)
		}
	}
	return out, nil
}

func (m *memEnrollments) ListStudentIDsByGroup(_ context.Context, groupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, it := range m.items {
		if it.GroupID == groupID {
			out = append(out, it.StudentID.String())
		}
	}
	return out, nil
}

func (m *memEnrollments) ListStudentIDsEnrolledBy(_ context.Context, groupID string, at time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, it := range m.items {
		if it.GroupID == groupID && !it.EnrolledAt.After(at) {
			out = append(out, it.StudentID.String())
		}
	}
	return out, nil
}

func (m *memEnrollments) Delete(_ context.Context, groupID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.GroupID == groupID && it.StudentID.String() == studentID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotEnrolled
}

type memRecords struct {
	mu      sync.Mutex
	records []*attendance.Record
}

func (m *memRecords) Save(_ context.Context, r *attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.records {
		if it.ScheduleID == r.ScheduleID && it.StudentID == r.StudentID && it.ClassDate.Equal(r.ClassDate) {
			return shared.ErrAttendanceAlreadyMarked
		}
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memRecords) ListByGroup(_ context.Context, groupID string, dates shared.DateRange) ([]*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attendance.Record
	for _, r := range m.records {
		if r.GroupID == groupID && dates.Contains(r.ClassDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecords) ListMarkedStudentIDs(_ context.Context, scheduleID string, classDate time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.records {
		if r.ScheduleID == scheduleID && r.ClassDate.Equal(classDate) {
			out = append(out, r.StudentID)
		}
	}
	return out, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(e shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

// recordingRefresher records refreshed settings. When err is set it fails
// and reports staleFor.
type recordingRefresher struct {
	calls    map[string]group.Settings
	err      error
	staleFor time.Duration
}

func (r *recordingRefresher) Refresh(_ context.Context, groupID string, s group.Settings) (time.Duration, error) {
	if r.err != nil {
		return r.staleFor, r.err
	}
	if r.calls == nil {
		r.calls = make(map[string]group.Settings)
	}
	r.calls[groupID] = s
	return 0, nil
}

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// fixture wires all fakes together.
type fixture struct {
	groups      *memGroups
	schedules   *memSchedules
	enrollments *memEnrollments
	records     *memRecords
	bus         *recordingBus
}

func newFixture() *fixture {
	return &fixture{
		groups:      newMemGroups(),
		schedules:   &memSchedules{},
		enrollments: &memEnrollments{},
		records:     &memRecords{},
		bus:         &recordingBus{},
	}
}

func (f *fixture) addGroup(id, label string, tolerance *int) {
	f.groups.groups[id] = &group.Group{ID: id, Name: id, Tolerance: tolerance, StrategyLabel: label}
}

func (f *fixture) addEntry(id, groupID string, day schedule.Weekday, start, end string) {
	f.schedules.entries = append(f.schedules.entries, &schedule.Entry{
		ID: id, GroupID: groupID, Day: day, StartTime: start, EndTime: end,
	})
}

func (f *fixture) enroll(groupID, studentID string) {
	f.enrollAt(groupID, studentID, time.Time{})
}

func (f *fixture) enrollAt(groupID, studentID string, at time.Time) {
	f.enrollments.items = append(f.enrollments.items, &enrollment.Enrollment{
		ID: groupID + "/" + studentID, GroupID: groupID, StudentID: shared.StudentID(studentID), EnrolledAt: at,
	})
}
