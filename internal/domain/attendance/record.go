package attendance

import (
	"time"

	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// Source tells who produced a record.
type Source string

const (
	// SourceManual - an instructor or the student marked attendance.
	SourceManual Source = "manual"
	// SourceAuto - the closing job marked a student absent after class.
	SourceAuto Source = "auto"
)

// IsValid checks that the source is known.
func (s Source) IsValid() bool {
	return s == SourceManual || s == SourceAuto
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is one classified attendance mark of a student for one class
// meeting. State is stored exactly as the classifier returned it.
type Record struct {
	ID         string
	GroupID    string
	ScheduleID string
	StudentID  string

	// ClassDate is the calendar day of the meeting (midnight UTC).
	ClassDate time.Time

	// MarkedAt is nil for auto-generated absences.
	MarkedAt *schedule.TimeOfDay

	DeltaMinutes int
	State        State
	Strategy     StrategyKind
	Tolerance    int
	Source       Source
	CreatedAt    time.Time
}

// NewRecordParams holds the input for NewManualRecord.
type NewRecordParams struct {
	ID         string
	GroupID    string
	ScheduleID string
	StudentID  string
	ClassDate  time.Time
	ClassStart schedule.TimeOfDay
	MarkedAt   schedule.TimeOfDay
	Classifier Classifier
}

// NewManualRecord classifies a mark and wraps the result in a Record.
func NewManualRecord(params NewRecordParams) (*Record, error) {
	if params.ID == "" || params.GroupID == "" || params.ScheduleID == "" || params.StudentID == "" {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrInvalidID, "record, group, schedule and student IDs are required")
	}
	if params.ClassDate.IsZero() {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrEmptyValue, "class date is required")
	}

	marked := params.MarkedAt
	return &Record{
		ID:           params.ID,
		GroupID:      params.GroupID,
		ScheduleID:   params.ScheduleID,
		StudentID:    params.StudentID,
		ClassDate:    shared.TruncateToDate(params.ClassDate),
		MarkedAt:     &marked,
		DeltaMinutes: LateMinutes(marked, params.ClassStart),
		State:        params.Classifier.Classify(marked, params.ClassStart),
		Strategy:     params.Classifier.Kind(),
		Tolerance:    params.Classifier.Tolerance(),
		Source:       SourceManual,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// NewAutoAbsence builds the record written for a student who never marked
// attendance before the class was closed.
func NewAutoAbsence(id, groupID, scheduleID, studentID string, classDate time.Time, c Classifier) *Record {
	return &Record{
		ID:         id,
		GroupID:    groupID,
		ScheduleID: scheduleID,
		StudentID:  studentID,
		ClassDate:  shared.TruncateToDate(classDate),
		State:      StateAbsent,
		Strategy:   c.Kind(),
		Tolerance:  c.Tolerance(),
		Source:     SourceAuto,
		CreatedAt:  time.Now().UTC(),
	}
}

// MarkedAtString returns the mark time as "HH:MM", or "" for auto absences.
func (r *Record) MarkedAtString() string {
	if r.MarkedAt == nil {
		return ""
	}
	return r.MarkedAt.String()
}
