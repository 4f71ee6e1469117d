package schedule

import (
	"strings"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// Weekday is a day of the week. The set is closed: Monday through Sunday.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists all days in calendar order starting on Monday.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// IsValid checks that the value is one of the seven days.
func (d Weekday) IsValid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	default:
		return false
	}
}

// String returns the lowercase English day name.
func (d Weekday) String() string {
	return string(d)
}

// Index returns 0 for Monday up to 6 for Sunday, or -1 for an invalid day.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// ParseWeekday accepts full English day names ("Monday", "monday") and
// three-letter abbreviations ("mon").
func ParseWeekday(text string) (Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	for _, d := range Weekdays {
		if s == string(d) || (len(s) == 3 && strings.HasPrefix(string(d), s)) {
			return d, nil
		}
	}
	return "", shared.ErrInvalidWeekday
}

// WeekdayOf converts a time.Weekday.
func WeekdayOf(w time.Weekday) Weekday {
	switch w {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}
