package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// GroupRepository implements group.Repository.
type GroupRepository struct {
	conn *Connection
}

// NewGroupRepository creates a new group repository.
func NewGroupRepository(conn *Connection) *GroupRepository {
	return &GroupRepository{conn: conn}
}

// Create stores a new group.
func (r *GroupRepository) Create(ctx context.Context, g *group.Group) error {
	query := `
		INSERT INTO class_groups (id, name, subject_code, tolerance_minutes, strategy_kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		g.ID,
		g.Name,
		g.SubjectCode.String(),
		g.Tolerance,
		g.StrategyLabel,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrGroupAlreadyExists
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// GetByID returns a group by ID.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*group.Group, error) {
	query := `
		SELECT id, name, subject_code, tolerance_minutes, strategy_kind, created_at, updated_at
		FROM class_groups
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanGroup(row)
}

// GetSettings resolves the stored settings of a group. It makes the repository
// usable as a group.SettingsSource without a cache in front.
func (r *GroupRepository) GetSettings(ctx context.Context, groupID string) (group.Settings, error) {
	g, err := r.GetByID(ctx, groupID)
	if err != nil {
		return group.Settings{}, err
	}
	return g.Settings()
}

// UpdateSettings stores tolerance and strategy.
func (r *GroupRepository) UpdateSettings(ctx context.Context, g *group.Group) error {
	query := `
		UPDATE class_groups SET
			tolerance_minutes = $1,
			strategy_kind = $2,
			updated_at = $3
		WHERE id = $4
	`

	result, err := r.conn.Exec(ctx, query, g.Tolerance, g.StrategyLabel, time.Now().UTC(), g.ID)
	if err != nil {
		return fmt.Errorf("failed to update group settings: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrGroupNotFound
	}

	return nil
}

// List returns groups ordered by name.
func (r *GroupRepository) List(ctx context.Context, page shared.Pagination) ([]*group.Group, error) {
	query := `
		SELECT id, name, subject_code, tolerance_minutes, strategy_kind, created_at, updated_at
		FROM class_groups
		ORDER BY name, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*group.Group
	for rows.Next() {
		g, err := r.scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

func (r *GroupRepository) scanGroup(row pgx.Row) (*group.Group, error) {
	var (
		g           group.Group
		subjectCode string
		tolerance   *int
	)

	err := row.Scan(
		&g.ID,
		&g.Name,
		&subjectCode,
		&tolerance,
		&g.StrategyLabel,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	g.SubjectCode = shared.SubjectCode(subjectCode)
	g.Tolerance = tolerance
	return &g, nil
}
