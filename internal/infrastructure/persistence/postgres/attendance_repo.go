package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// AttendanceRepository implements attendance.Repository.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

// Save stores a record. A second record for the same entry, student and date
// violates uq_attendance_mark.
func (r *AttendanceRepository) Save(ctx context.Context, rec *attendance.Record) error {
	query := `
		INSERT INTO attendance_records (
			id, group_id, schedule_id, student_id, class_date, marked_at_minute,
			delta_minutes, state, strategy_kind, tolerance_minutes, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var markedAt *int
	if rec.MarkedAt != nil {
		m := rec.MarkedAt.Minutes()
		markedAt = &m
	}

	_, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.GroupID,
		rec.ScheduleID,
		rec.StudentID,
		rec.ClassDate,
		markedAt,
		rec.DeltaMinutes,
		rec.State.String(),
		rec.Strategy.String(),
		rec.Tolerance,
		string(rec.Source),
		rec.CreatedAt,
	)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return shared.ErrAttendanceAlreadyMarked
		case IsForeignKeyViolation(err):
			return shared.ErrScheduleNotFound
		}
		return fmt.Errorf("failed to save attendance record: %w", err)
	}

	return nil
}

// ListByGroup returns the records of a group within the date range.
func (r *AttendanceRepository) ListByGroup(ctx context.Context, groupID string, dates shared.DateRange) ([]*attendance.Record, error) {
	query := `
		SELECT id, group_id, schedule_id, student_id, class_date, marked_at_minute,
			   delta_minutes, state, strategy_kind, tolerance_minutes, source, created_at
		FROM attendance_records
		WHERE group_id = $1 AND class_date BETWEEN $2 AND $3
		ORDER BY class_date, student_id
	`

	rows, err := r.conn.Query(ctx, query, groupID, dates.From, dates.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	var records []*attendance.Record
	for rows.Next() {
		var (
			rec       attendance.Record
			markedAt  *int
			state     string
			strategy  string
			source    string
			classDate time.Time
		)
		err := rows.Scan(
			&rec.ID,
			&rec.GroupID,
			&rec.ScheduleID,
			&rec.StudentID,
			&classDate,
			&markedAt,
			&rec.DeltaMinutes,
			&state,
			&strategy,
			&rec.Tolerance,
			&source,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}

		rec.ClassDate = shared.TruncateToDate(classDate)
		if markedAt != nil {
			t := schedule.TimeOfDay(*markedAt)
			rec.MarkedAt = &t
		}
		rec.State = attendance.State(state)
		rec.Strategy = attendance.StrategyKind(strategy)
		rec.Source = attendance.Source(source)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// ListMarkedStudentIDs returns the students with a record for one meeting.
func (r *AttendanceRepository) ListMarkedStudentIDs(ctx context.Context, scheduleID string, classDate time.Time) ([]string, error) {
	query := `
		SELECT student_id
		FROM attendance_records
		WHERE schedule_id = $1 AND class_date = $2
	`

	rows, err := r.conn.Query(ctx, query, scheduleID, shared.TruncateToDate(classDate))
	if err != nil {
		return nil, fmt.Errorf("failed to list marked students: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
