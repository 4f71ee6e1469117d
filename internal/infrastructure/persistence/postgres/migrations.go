package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: GROUPS AND SCHEDULES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS class_groups (
    id UUID PRIMARY KEY,
    name VARCHAR(120) NOT NULL,
    subject_code VARCHAR(20) NOT NULL DEFAULT '',
    -- NULL means the group uses the default tolerance
    tolerance_minutes INTEGER,
    -- empty means the group uses the default strategy
    strategy_kind VARCHAR(40) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_tolerance CHECK (tolerance_minutes IS NULL OR tolerance_minutes BETWEEN 0 AND 60)
);

CREATE INDEX IF NOT EXISTS idx_class_groups_name ON class_groups(name);

CREATE TABLE IF NOT EXISTS schedule_entries (
    id UUID PRIMARY KEY,
    group_id UUID NOT NULL REFERENCES class_groups(id) ON DELETE CASCADE,
    day VARCHAR(10) NOT NULL,
    start_time CHAR(5) NOT NULL,
    end_time CHAR(5) NOT NULL,
    room VARCHAR(60) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_day CHECK (day IN ('monday', 'tuesday', 'wednesday', 'thursday', 'friday', 'saturday', 'sunday')),
    CONSTRAINT valid_interval CHECK (start_time < end_time)
);

CREATE INDEX IF NOT EXISTS idx_schedule_entries_group ON schedule_entries(group_id);
CREATE INDEX IF NOT EXISTS idx_schedule_entries_day ON schedule_entries(day);
`

const migration001Down = `
DROP TABLE IF EXISTS schedule_entries;
DROP TABLE IF EXISTS class_groups;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    group_id UUID NOT NULL REFERENCES class_groups(id) ON DELETE CASCADE,
    student_id VARCHAR(64) NOT NULL,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_enrollment UNIQUE (group_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id);
`

const migration002Down = `
DROP TABLE IF EXISTS enrollments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ATTENDANCE RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS attendance_records (
    id UUID PRIMARY KEY,
    group_id UUID NOT NULL REFERENCES class_groups(id) ON DELETE CASCADE,
    schedule_id UUID NOT NULL REFERENCES schedule_entries(id) ON DELETE CASCADE,
    student_id VARCHAR(64) NOT NULL,
    class_date DATE NOT NULL,
    -- minutes since midnight, NULL for auto-generated absences
    marked_at_minute INTEGER,
    delta_minutes INTEGER NOT NULL DEFAULT 0,
    state VARCHAR(10) NOT NULL,
    strategy_kind VARCHAR(40) NOT NULL,
    tolerance_minutes INTEGER NOT NULL,
    source VARCHAR(10) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_attendance_mark UNIQUE (schedule_id, student_id, class_date),
    CONSTRAINT valid_state CHECK (state IN ('on_time', 'late', 'absent')),
    CONSTRAINT valid_source CHECK (source IN ('manual', 'auto')),
    CONSTRAINT valid_marked_at CHECK (marked_at_minute IS NULL OR marked_at_minute BETWEEN 0 AND 1439)
);

CREATE INDEX IF NOT EXISTS idx_attendance_group_date ON attendance_records(group_id, class_date);
CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance_records(student_id, class_date);
`

const migration003Down = `
DROP TABLE IF EXISTS attendance_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// GetMigrations returns all migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_groups_and_schedules", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_enrollments", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_attendance_records", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator applies migrations and tracks them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over the given migrations.
func NewMigrator(conn *Connection, migrations []Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{conn: conn, migrations: sorted}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Migrate applies every pending migration, each in its own transaction.
// Returns the number of migrations applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

// Rollback reverts the latest applied migration. Returns false when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (bool, error) {
	if err := m.ensureTable(ctx); err != nil {
		return false, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if _, ok := done[mig.Version]; !ok {
			continue
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
			return err
		})
		if err != nil {
			return false, fmt.Errorf("%w: rollback %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		return true, nil
	}
	return false, nil
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		st := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := done[mig.Version]; ok {
			at := at
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}
