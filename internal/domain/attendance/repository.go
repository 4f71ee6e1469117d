package attendance

import (
	"context"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// Repository stores classified attendance records.
type Repository interface {
	// Save stores a record. Returns shared.ErrAttendanceAlreadyMarked when the
	// student already has a record for the same schedule entry and date.
	Save(ctx context.Context, record *Record) error

	// ListByGroup returns the records of a group whose class date is in the range.
	ListByGroup(ctx context.Context, groupID string, dates shared.DateRange) ([]*Record, error)

	// ListMarkedStudentIDs returns the students who already have a record
	// for one meeting of a schedule entry.
	ListMarkedStudentIDs(ctx context.Context, scheduleID string, classDate time.Time) ([]string, error)
}
