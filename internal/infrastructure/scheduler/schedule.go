package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL
// ══════════════════════════════════════════════════════════════════════════════

// Every runs a job at a fixed interval after the previous start.
type Every time.Duration

// Next returns t plus the interval.
func (e Every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// String returns the "@every" form.
func (e Every) String() string {
	return "@every " + time.Duration(e).String()
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON
// ══════════════════════════════════════════════════════════════════════════════

// Cron is a parsed five-field cron expression:
// minute hour day-of-month month day-of-week (0 = Sunday).
// Each field accepts *, n, n-m, lists of those, and a /step suffix.
type Cron struct {
	raw    string
	fields [5]bitset
}

type bitset uint64

func (b bitset) has(v int) bool { return b&(1<<uint(v)) != 0 }

var cronBounds = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseCron parses a cron expression.
func ParseCron(expr string) (*Cron, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(parts))
	}

	c := &Cron{raw: expr}
	for i, part := range parts {
		b := cronBounds[i]
		set, err := parseCronField(part, b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s field: %w", expr, b.name, err)
		}
		c.fields[i] = set
	}
	return c, nil
}

// MustParseCron is ParseCron that panics, for constant expressions.
func MustParseCron(expr string) *Cron {
	c, err := ParseCron(expr)
	if err != nil {
		panic(err)
	}
	return c
}

func parseCronField(field string, min, max int) (bitset, error) {
	var set bitset
	for _, item := range strings.Split(field, ",") {
		rangePart, step := item, 1
		if i := strings.IndexByte(item, '/'); i >= 0 {
			n, err := strconv.Atoi(item[i+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step in %q", item)
			}
			rangePart, step = item[:i], n
		}

		lo, hi := min, max
		switch {
		case rangePart == "*":
		case strings.Contains(rangePart, "-"):
			bounds := strings.SplitN(rangePart, "-", 2)
			var err1, err2 error
			lo, err1 = strconv.Atoi(bounds[0])
			hi, err2 = strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil {
				return 0, fmt.Errorf("bad range %q", rangePart)
			}
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", rangePart)
			}
			lo, hi = v, v
			if step > 1 {
				hi = max
			}
		}
		if lo < min || hi > max || lo > hi {
			return 0, fmt.Errorf("%q outside [%d-%d]", item, min, max)
		}
		for v := lo; v <= hi; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

// Next returns the first matching minute strictly after t, in t's location.
// A zero time means no match within a year.
func (c *Cron) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < 366*24*60; i++ {
		if c.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

func (c *Cron) matches(t time.Time) bool {
	return c.fields[0].has(t.Minute()) &&
		c.fields[1].has(t.Hour()) &&
		c.fields[2].has(t.Day()) &&
		c.fields[3].has(int(t.Month())) &&
		c.fields[4].has(int(t.Weekday()))
}

// String returns the original expression.
func (c *Cron) String() string {
	return c.raw
}

// ParseSchedule accepts "@every <duration>" or a cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("schedule %q: bad interval", spec)
		}
		return Every(d), nil
	}
	return ParseCron(spec)
}
