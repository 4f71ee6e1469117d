package group

import (
	"context"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// Repository stores class groups.
type Repository interface {
	// Create stores a new group.
	Create(ctx context.Context, group *Group) error

	// GetByID returns a group. Returns shared.ErrGroupNotFound if missing.
	GetByID(ctx context.Context, id string) (*Group, error)

	// UpdateSettings stores tolerance and strategy of an existing group.
	// Returns shared.ErrGroupNotFound if missing.
	UpdateSettings(ctx context.Context, group *Group) error

	// List returns groups ordered by name.
	List(ctx context.Context, page shared.Pagination) ([]*Group, error)
}

// SettingsSource resolves the attendance settings of a group. The cached
// implementation sits in front of Repository.
type SettingsSource interface {
	GetSettings(ctx context.Context, groupID string) (Settings, error)
}
