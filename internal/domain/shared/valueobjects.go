// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// StudentID identifies a student. Student IDs come from the institution
// roster, so any short token of letters, digits, dots, dashes or underscores is accepted.
type StudentID string

var studentIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// IsValid checks if the student ID format is valid.
func (s StudentID) IsValid() bool {
	return studentIDRegex.MatchString(string(s))
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return s == ""
}

// NewStudentID creates a new StudentID with validation.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.TrimSpace(id))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewStudentID", ErrInvalidID, "invalid student ID format")
	}
	return sid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// SubjectCode Value Object
// ═══════════════════════════════════════════════════════════════════════════

// SubjectCode is the catalogue code of the subject a group teaches, e.g. "MAT-101".
type SubjectCode string

var subjectCodeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,19}$`)

// IsValid checks if the subject code format is valid.
func (c SubjectCode) IsValid() bool {
	return subjectCodeRegex.MatchString(string(c))
}

// String returns the string representation.
func (c SubjectCode) String() string {
	return string(c)
}

// NewSubjectCode creates a new SubjectCode with validation. Empty input is allowed.
func NewSubjectCode(value string) (SubjectCode, error) {
	c := SubjectCode(strings.ToUpper(strings.TrimSpace(value)))
	if c == "" {
		return "", nil
	}
	if !c.IsValid() {
		return "", NewDomainError("shared", "NewSubjectCode", ErrInvalidFormat, "invalid subject code format")
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// DateRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the date range is valid.
func (d DateRange) IsValid() bool {
	return !d.From.IsZero() && !d.To.IsZero() && !d.From.After(d.To)
}

// Contains checks if the calendar day of t is within the range.
func (d DateRange) Contains(t time.Time) bool {
	day := TruncateToDate(t)
	return !day.Before(d.From) && !day.After(d.To)
}

// Days returns the number of calendar days in the range.
func (d DateRange) Days() int {
	if !d.IsValid() {
		return 0
	}
	return int(d.To.Sub(d.From).Hours()/24) + 1
}

// NewDateRange creates a new DateRange with validation. Both ends are truncated to days.
func NewDateRange(from, to time.Time) (DateRange, error) {
	dr := DateRange{From: TruncateToDate(from), To: TruncateToDate(to)}
	if !dr.IsValid() {
		return DateRange{}, NewDomainError("shared", "NewDateRange", ErrInvalidInput, "'from' must not be after 'to'")
	}
	return dr, nil
}

// ParseDateRange parses two YYYY-MM-DD dates into a DateRange.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, WrapError("shared", "ParseDateRange", ErrInvalidFormat, "invalid 'from' date, expected YYYY-MM-DD", err)
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, WrapError("shared", "ParseDateRange", ErrInvalidFormat, "invalid 'to' date, expected YYYY-MM-DD", err)
	}
	return NewDateRange(f, t)
}

// TruncateToDate drops the clock part of t and returns midnight UTC of the same calendar day.
func TruncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LastNDays returns the range covering today and the previous n-1 days.
func LastNDays(now time.Time, n int) DateRange {
	if n < 1 {
		n = 1
	}
	to := TruncateToDate(now)
	return DateRange{From: to.AddDate(0, 0, -(n - 1)), To: to}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
