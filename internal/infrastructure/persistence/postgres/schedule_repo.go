package postgres

import (
	"context"
	"fmt"

	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// ScheduleRepository implements schedule.Repository.
type ScheduleRepository struct {
	conn *Connection
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(conn *Connection) *ScheduleRepository {
	return &ScheduleRepository{conn: conn}
}

const scheduleColumns = `id, group_id, day, start_time, end_time, room, created_at`

// Weekday order for ORDER BY; the day column is stored as text.
const dayOrder = `array_position(ARRAY['monday','tuesday','wednesday','thursday','friday','saturday','sunday']::varchar[], day)`

// Create stores a new entry.
func (r *ScheduleRepository) Create(ctx context.Context, e *schedule.Entry) error {
	query := `
		INSERT INTO schedule_entries (id, group_id, day, start_time, end_time, room, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		e.ID,
		e.GroupID,
		e.Day.String(),
		e.StartTime,
		e.EndTime,
		e.Room,
		e.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrGroupNotFound
		}
		return fmt.Errorf("failed to create schedule entry: %w", err)
	}

	return nil
}

// GetByID returns an entry by ID.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*schedule.Entry, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_entries WHERE id = $1`

	e, err := r.scanEntry(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrScheduleNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListByGroup returns the entries of one group ordered by day and start time.
func (r *ScheduleRepository) ListByGroup(ctx context.Context, groupID string) ([]*schedule.Entry, error) {
	return r.ListByGroups(ctx, []string{groupID})
}

// ListByGroups returns the entries of all given groups.
func (r *ScheduleRepository) ListByGroups(ctx context.Context, groupIDs []string) ([]*schedule.Entry, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule_entries
		WHERE group_id = ANY($1)
		ORDER BY ` + dayOrder + `, start_time, id
	`

	return r.list(ctx, query, groupIDs)
}

// ListByDay returns every entry held on the weekday.
func (r *ScheduleRepository) ListByDay(ctx context.Context, day schedule.Weekday) ([]*schedule.Entry, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule_entries
		WHERE day = $1
		ORDER BY start_time, id
	`

	return r.list(ctx, query, day.String())
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]*schedule.Entry, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []*schedule.Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *ScheduleRepository) scanEntry(row pgx.Row) (*schedule.Entry, error) {
	var (
		e   schedule.Entry
		day string
	)
	if err := row.Scan(&e.ID, &e.GroupID, &day, &e.StartTime, &e.EndTime, &e.Room, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Day = schedule.Weekday(day)
	return &e, nil
}
