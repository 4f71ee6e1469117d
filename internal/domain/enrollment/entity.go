// Package enrollment links students to class groups.
package enrollment

import (
	"context"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// Enrollment is the membership of one student in one group.
type Enrollment struct {
	ID         string
	GroupID    string
	StudentID  shared.StudentID
	EnrolledAt time.Time
}

// NewEnrollment validates the IDs and builds an Enrollment.
func NewEnrollment(id, groupID, studentID string) (*Enrollment, error) {
	if id == "" || groupID == "" {
		return nil, shared.NewDomainError("enrollment", "NewEnrollment", shared.ErrInvalidID, "enrollment and group IDs are required")
	}
	sid, err := shared.NewStudentID(studentID)
	if err != nil {
		return nil, err
	}
	return &Enrollment{
		ID:         id,
		GroupID:    groupID,
		StudentID:  sid,
		EnrolledAt: time.Now().UTC(),
	}, nil
}

// Repository stores enrollments.
type Repository interface {
	// Create stores an enrollment. Returns shared.ErrAlreadyEnrolled on duplicates.
	Create(ctx context.Context, e *Enrollment) error

	// Exists reports whether the student is enrolled in the group.
	Exists(ctx context.Context, groupID, studentID string) (bool, error)

	// ListGroupIDsByStudent returns the groups a student is enrolled in.
	ListGroupIDsByStudent(ctx context.Context, studentID string) ([]string, error)

	// ListStudentIDsByGroup returns the students enrolled in a group.
	ListStudentIDsByGroup(ctx context.Context, groupID string) ([]string, error)

	// ListStudentIDsEnrolledBy returns the students of a group whose
	// enrollment existed at the given instant.
	ListStudentIDsEnrolledBy(ctx context.Context, groupID string, at time.Time) ([]string, error)

	// Delete removes an enrollment. Returns shared.ErrNotEnrolled if missing.
	Delete(ctx context.Context, groupID, studentID string) error
}

// Locker serializes enrollments of one student so two concurrent requests
// cannot both pass the conflict check.
type Locker interface {
	// Acquire returns a release func, or shared.ErrEnrollmentBusy when held elsewhere.
	Acquire(ctx context.Context, studentID string) (release func(), err error)
}
