// Package timeutil provides campus-local time helpers.
// The whole deployment runs in one campus time zone; every class time,
// mark time and class date is interpreted in that zone.
package timeutil

import (
	"fmt"
	"time"
)

// DefaultLocation is used when no campus zone is configured.
var DefaultLocation = time.UTC

// LoadLocation resolves an IANA zone name such as "Europe/Madrid".
// An empty name yields DefaultLocation.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return DefaultLocation, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

// Clock reads the current time in the campus zone. The now func can be
// replaced in tests.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a Clock for the given location.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = DefaultLocation
	}
	return &Clock{loc: loc, now: time.Now}
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Location returns the campus zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the campus zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current campus calendar day as midnight UTC, the form
// class dates are stored in.
func (c *Clock) Today() time.Time {
	return DateOf(c.Now())
}

// MinuteOfDay returns minutes since campus midnight.
func (c *Clock) MinuteOfDay() int {
	return MinuteOfDay(c.Now())
}

// At returns the campus instant that lies minute minutes after midnight of
// the class date d.
func (c *Clock) At(d time.Time, minute int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, minute, 0, 0, c.loc)
}

// DateOf returns the calendar day of t (in t's own zone) as midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MinuteOfDay returns minutes since midnight of t in t's own zone.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// StartOfWeek returns the Monday of the week containing the date d.
func StartOfWeek(d time.Time) time.Time {
	day := DateOf(d)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// FormatDateStr formats a date as YYYY-MM-DD.
func FormatDateStr(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
