package schedule

import (
	"fmt"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY SLOT
// ══════════════════════════════════════════════════════════════════════════════

// WeeklySlot is a recurring class time: one weekday and a [Start, End] range.
// Start is always strictly before End; slots never cross midnight.
type WeeklySlot struct {
	Day   Weekday
	Start TimeOfDay
	End   TimeOfDay
}

// NewWeeklySlot validates and builds a slot.
func NewWeeklySlot(day Weekday, start, end TimeOfDay) (WeeklySlot, error) {
	if !day.IsValid() {
		return WeeklySlot{}, shared.ErrInvalidWeekday
	}
	if !start.IsValid() || !end.IsValid() {
		return WeeklySlot{}, shared.ErrInvalidTimeFormat
	}
	if start >= end {
		return WeeklySlot{}, shared.ErrInvalidSlot
	}
	return WeeklySlot{Day: day, Start: start, End: end}, nil
}

// ParseWeeklySlot builds a slot from textual day and "HH:MM" times.
func ParseWeeklySlot(day, start, end string) (WeeklySlot, error) {
	d, err := ParseWeekday(day)
	if err != nil {
		return WeeklySlot{}, err
	}
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return WeeklySlot{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return WeeklySlot{}, err
	}
	return NewWeeklySlot(d, s, e)
}

// Duration returns the length of the slot in minutes.
func (s WeeklySlot) Duration() int {
	return Difference(s.End, s.Start)
}

// Overlaps reports whether two slots collide. Slots on different days never
// collide; on the same day the closed ranges are compared, so a slot ending
// at 10:00 collides with one starting at 10:00.
func (s WeeklySlot) Overlaps(other WeeklySlot) bool {
	if s.Day != other.Day {
		return false
	}
	return s.Start <= other.End && other.Start <= s.End
}

// String formats the slot as "wednesday 09:00-11:00".
func (s WeeklySlot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Day, s.Start, s.End)
}
