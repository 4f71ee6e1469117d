package schedule

import (
	"fmt"
	"regexp"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIME OF DAY
// ══════════════════════════════════════════════════════════════════════════════

// MinutesPerDay is the number of minutes in one day.
const MinutesPerDay = 24 * 60

// TimeOfDay is a clock time inside one day, stored as minutes since midnight.
// Valid values are in [0, 1439].
type TimeOfDay int

// Strict HH:MM, ASCII digits only.
var timeOfDayRegex = regexp.MustCompile(`^[0-9]{2}:[0-9]{2}$`)

// ParseTimeOfDay parses a strict two-digit "HH:MM" string.
// Single-digit hours, missing colons, seconds and out-of-range fields
// all fail with shared.ErrInvalidTimeFormat.
func ParseTimeOfDay(text string) (TimeOfDay, error) {
	if !timeOfDayRegex.MatchString(text) {
		return 0, shared.ErrInvalidTimeFormat
	}

	hour := int(text[0]-'0')*10 + int(text[1]-'0')
	minute := int(text[3]-'0')*10 + int(text[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, shared.ErrInvalidTimeFormat
	}

	return TimeOfDay(hour*60 + minute), nil
}

// MustParseTimeOfDay is like ParseTimeOfDay but panics on error.
// Intended for constants and tests.
func MustParseTimeOfDay(text string) TimeOfDay {
	t, err := ParseTimeOfDay(text)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, shared.ErrInvalidTimeFormat
	}
	return TimeOfDay(hour*60 + minute), nil
}

// IsValid checks that the value lies inside one day.
func (t TimeOfDay) IsValid() bool {
	return t >= 0 && t < MinutesPerDay
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

// Minute returns the minute component.
func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return int(t)
}

// String formats the value as zero-padded "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add returns t shifted by the given minutes, clamped to the day.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	v := int(t) + minutes
	if v < 0 {
		return 0
	}
	if v >= MinutesPerDay {
		return MinutesPerDay - 1
	}
	return TimeOfDay(v)
}

// Difference returns the signed number of minutes a - b.
// There is no wrap-around at midnight.
func Difference(a, b TimeOfDay) int {
	return int(a) - int(b)
}
