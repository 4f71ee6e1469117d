package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// EnrollmentRepository implements enrollment.Repository.
type EnrollmentRepository struct {
	conn *Connection
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

// Create stores an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (id, group_id, student_id, enrolled_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn.Exec(ctx, query, e.ID, e.GroupID, e.StudentID.String(), e.EnrolledAt)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return shared.ErrAlreadyEnrolled
		case IsForeignKeyViolation(err):
			return shared.ErrGroupNotFound
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

// Exists reports whether the student is enrolled in the group.
func (r *EnrollmentRepository) Exists(ctx context.Context, groupID, studentID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM enrollments WHERE group_id = $1 AND student_id = $2)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, groupID, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return exists, nil
}

// ListGroupIDsByStudent returns the groups a student is enrolled in.
func (r *EnrollmentRepository) ListGroupIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	query := `SELECT group_id FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at, group_id`
	return r.listStrings(ctx, query, studentID)
}

// ListStudentIDsByGroup returns the students enrolled in a group.
func (r *EnrollmentRepository) ListStudentIDsByGroup(ctx context.Context, groupID string) ([]string, error) {
	query := `SELECT student_id FROM enrollments WHERE group_id = $1 ORDER BY student_id`
	return r.listStrings(ctx, query, groupID)
}

// ListStudentIDsEnrolledBy returns the students enrolled in a group at or before at.
func (r *EnrollmentRepository) ListStudentIDsEnrolledBy(ctx context.Context, groupID string, at time.Time) ([]string, error) {
	query := `SELECT student_id FROM enrollments WHERE group_id = $1 AND enrolled_at <= $2 ORDER BY student_id`
	return r.listStrings(ctx, query, groupID, at)
}

// Delete removes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, groupID, studentID string) error {
	query := `DELETE FROM enrollments WHERE group_id = $1 AND student_id = $2`

	result, err := r.conn.Exec(ctx, query, groupID, studentID)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotEnrolled
	}
	return nil
}

func (r *EnrollmentRepository) listStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
