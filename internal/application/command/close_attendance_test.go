package command

import (
	"context"
	"testing"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCloseHandler(f *fixture, now time.Time) *CloseAttendanceHandler {
	return NewCloseAttendanceHandler(f.schedules, f.enrollments, f.records, f.groups, f.bus, timeutil.FixedClock(now), 15*time.Minute, sequentialIDs("auto"))
}

func TestCloseAttendance_MarksUnmarkedStudentsAbsent(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	f.addEntry("math-wed", "math", schedule.Wednesday, "08:00", "09:30")
	f.enroll("math", "stu-1")
	f.enroll("math", "stu-2")
	f.enroll("math", "stu-3")

	classDate := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.records.Save(context.Background(), &attendance.Record{
		ID: "manual", GroupID: "math", ScheduleID: "math-wed", StudentID: "stu-2", ClassDate: classDate, State: attendance.StateOnTime,
	}))

	res, err := newCloseHandler(f, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntriesClosed)
	assert.Equal(t, 2, res.AbsencesRecorded)

	absent := map[string]attendance.Source{}
	for _, r := range f.records.records {
		if r.State == attendance.StateAbsent {
			absent[r.StudentID] = r.Source
		}
	}
	assert.Equal(t, map[string]attendance.Source{"stu-1": attendance.SourceAuto, "stu-3": attendance.SourceAuto}, absent)

	// running again is a no-op
	res, err = newCloseHandler(f, time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AbsencesRecorded)
}

func TestCloseAttendance_WaitsForGracePeriod(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	f.addEntry("math-wed", "math", schedule.Wednesday, "08:00", "09:30")
	f.enroll("math", "stu-1")

	// 09:40 is before 09:30 + 15m
	res, err := newCloseHandler(f, time.Date(2026, 3, 4, 9, 40, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.EntriesClosed)
	assert.Empty(t, f.records.records)
}

func TestCloseAttendance_PastDateClosesEverything(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	f.addEntry("math-wed", "math", schedule.Wednesday, "20:00", "21:30")
	f.enroll("math", "stu-1")

	res, err := newCloseHandler(f, time.Date(2026, 3, 5, 7, 0, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{
		Date: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AbsencesRecorded)
}

func TestCloseAttendance_SkipsMisconfiguredGroup(t *testing.T) {
	f := newFixture()
	f.addGroup("broken", "unknown_label", nil)
	f.addGroup("math", "", nil)
	f.addEntry("b-wed", "broken", schedule.Wednesday, "08:00", "09:00")
	f.addEntry("m-wed", "math", schedule.Wednesday, "08:00", "09:00")
	f.enroll("broken", "stu-1")
	f.enroll("math", "stu-2")

	res, err := newCloseHandler(f, time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntriesClosed)
	assert.Equal(t, 1, res.EntriesSkipped)
	assert.Equal(t, 1, res.AbsencesRecorded)
}

func TestCloseAttendance_RejectsFutureDate(t *testing.T) {
	f := newFixture()
	_, err := newCloseHandler(f, time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{
		Date: time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestCloseAttendance_IgnoresLaterEnrollments(t *testing.T) {
	f := newFixture()
	f.addGroup("math", "", nil)
	f.addEntry("math-wed", "math", schedule.Wednesday, "08:00", "09:30")
	f.enrollAt("math", "stu-early", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	f.enrollAt("math", "stu-during", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	f.enrollAt("math", "stu-after", time.Date(2026, 3, 4, 9, 45, 0, 0, time.UTC))
	f.enrollAt("math", "stu-next-week", time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))

	// Closing the 4th a week later must not blame students who joined afterwards.
	res, err := newCloseHandler(f, time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{
		Date: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.AbsencesRecorded)

	var absent []string
	for _, r := range f.records.records {
		absent = append(absent, r.StudentID)
	}
	assert.ElementsMatch(t, []string{"stu-early", "stu-during"}, absent)
}

func TestCloseAttendance_EnrollmentCutoffUsesCampusZone(t *testing.T) {
	campus := time.FixedZone("campus", 5*60*60)
	f := newFixture()
	f.addGroup("math", "", nil)
	f.addEntry("math-wed", "math", schedule.Wednesday, "08:00", "09:30")
	// 09:30 on campus is 04:30 UTC.
	f.enrollAt("math", "stu-before", time.Date(2026, 3, 4, 4, 0, 0, 0, time.UTC))
	f.enrollAt("math", "stu-after", time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC))

	res, err := newCloseHandler(f, time.Date(2026, 3, 4, 12, 0, 0, 0, campus)).Handle(context.Background(), CloseAttendanceCommand{})
	require.NoError(t, err)
	require.Equal(t, 1, res.AbsencesRecorded)
	assert.Equal(t, "stu-before", f.records.records[0].StudentID)
}

func TestCloseAttendance_LateClassClosesBeforeMidnight(t *testing.T) {
	f := newFixture()
	f.addGroup("night", "", nil)
	f.addEntry("night-wed", "night", schedule.Wednesday, "22:00", "23:50")
	f.enroll("night", "stu-1")

	// 23:50 + 15m runs past the day; the grace is cut at the last minute.
	res, err := newCloseHandler(f, time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)).Handle(context.Background(), CloseAttendanceCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntriesClosed)
	assert.Equal(t, 1, res.AbsencesRecorded)
}
