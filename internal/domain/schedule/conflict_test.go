package schedule

import (
	"testing"

	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slot(t *testing.T, day, start, end string) WeeklySlot {
	t.Helper()
	s, err := ParseWeeklySlot(day, start, end)
	require.NoError(t, err)
	return s
}

func TestNewWeeklySlot_RejectsEmptyOrInvertedRange(t *testing.T) {
	_, err := ParseWeeklySlot("mon", "10:00", "10:00")
	assert.ErrorIs(t, err, shared.ErrInvalidSlot)

	_, err = ParseWeeklySlot("mon", "11:00", "10:00")
	assert.ErrorIs(t, err, shared.ErrInvalidSlot)

	_, err = ParseWeeklySlot("mon", "9:00", "10:00")
	assert.ErrorIs(t, err, shared.ErrInvalidTimeFormat)

	_, err = ParseWeeklySlot("holiday", "09:00", "10:00")
	assert.ErrorIs(t, err, shared.ErrInvalidWeekday)
}

func TestHasConflict(t *testing.T) {
	tests := []struct {
		name      string
		candidate []WeeklySlot
		existing  []WeeklySlot
		want      bool
	}{
		{
			name:      "partial overlap same day",
			candidate: []WeeklySlot{slot(t, "wed", "10:30", "12:00")},
			existing:  []WeeklySlot{slot(t, "wed", "09:00", "11:00")},
			want:      true,
		},
		{
			name:      "touching endpoints conflict",
			candidate: []WeeklySlot{slot(t, "mon", "10:00", "12:00")},
			existing:  []WeeklySlot{slot(t, "mon", "08:00", "10:00")},
			want:      true,
		},
		{
			name:      "containment",
			candidate: []WeeklySlot{slot(t, "tue", "09:30", "10:00")},
			existing:  []WeeklySlot{slot(t, "tue", "09:00", "11:00")},
			want:      true,
		},
		{
			name:      "same times different day",
			candidate: []WeeklySlot{slot(t, "mon", "09:00", "11:00")},
			existing:  []WeeklySlot{slot(t, "tue", "09:00", "11:00")},
			want:      false,
		},
		{
			name:      "one minute apart",
			candidate: []WeeklySlot{slot(t, "thu", "10:01", "12:00")},
			existing:  []WeeklySlot{slot(t, "thu", "08:00", "10:00")},
			want:      false,
		},
		{
			name: "second candidate collides",
			candidate: []WeeklySlot{
				slot(t, "mon", "08:00", "09:00"),
				slot(t, "fri", "14:00", "15:30"),
			},
			existing: []WeeklySlot{
				slot(t, "wed", "08:00", "09:00"),
				slot(t, "fri", "15:00", "16:00"),
			},
			want: true,
		},
		{
			name:      "empty candidate",
			candidate: nil,
			existing:  []WeeklySlot{slot(t, "mon", "08:00", "09:00")},
			want:      false,
		},
		{
			name:      "empty existing",
			candidate: []WeeklySlot{slot(t, "mon", "08:00", "09:00")},
			existing:  []WeeklySlot{},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasConflict(tt.candidate, tt.existing))
			// symmetric
			assert.Equal(t, tt.want, HasConflict(tt.existing, tt.candidate))
		})
	}
}

func TestFindConflict_ReturnsFirstPair(t *testing.T) {
	candidate := []WeeklySlot{
		slot(t, "mon", "08:00", "09:00"),
		slot(t, "wed", "10:30", "12:00"),
	}
	existing := []WeeklySlot{
		slot(t, "wed", "09:00", "11:00"),
		slot(t, "wed", "11:30", "13:00"),
	}

	c, found := FindConflict(candidate, existing)
	require.True(t, found)
	assert.Equal(t, candidate[1], c.Candidate)
	assert.Equal(t, existing[0], c.Existing)
	assert.Equal(t, "wednesday 10:30-12:00 overlaps wednesday 09:00-11:00", c.String())
}

func TestFindEntryConflict(t *testing.T) {
	algebra := &Entry{ID: "e1", GroupID: "algebra", Day: Wednesday, StartTime: "09:00", EndTime: "11:00"}
	physics := &Entry{ID: "e2", GroupID: "physics", Day: Wednesday, StartTime: "10:30", EndTime: "12:00"}
	art := &Entry{ID: "e3", GroupID: "art", Day: Thursday, StartTime: "10:30", EndTime: "12:00"}

	ec, found, err := FindEntryConflict([]*Entry{physics}, []*Entry{art, algebra})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "algebra", ec.Existing.GroupID)
	assert.Equal(t, "physics", ec.Candidate.GroupID)

	_, found, err = FindEntryConflict([]*Entry{art}, []*Entry{algebra})
	require.NoError(t, err)
	assert.False(t, found)

	broken := &Entry{ID: "e4", GroupID: "broken", Day: Monday, StartTime: "8:00", EndTime: "09:00"}
	_, _, err = FindEntryConflict([]*Entry{broken}, []*Entry{algebra})
	assert.ErrorIs(t, err, shared.ErrInvalidTimeFormat)
}

func TestNewEntry_NormalizesDay(t *testing.T) {
	e, err := NewEntry(NewEntryParams{
		ID:        "e1",
		GroupID:   "g1",
		Day:       "Wed",
		StartTime: "09:00",
		EndTime:   "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, Wednesday, e.Day)

	s, err := e.Slot()
	require.NoError(t, err)
	assert.Equal(t, 120, s.Duration())
}
