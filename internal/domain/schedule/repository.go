package schedule

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores weekly schedule entries of groups.
type Repository interface {
	// Create stores a new entry.
	Create(ctx context.Context, entry *Entry) error

	// GetByID returns an entry by ID.
	// Returns shared.ErrScheduleNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// ListByGroup returns all entries of one group ordered by day and start time.
	ListByGroup(ctx context.Context, groupID string) ([]*Entry, error)

	// ListByGroups returns all entries of the given groups.
	ListByGroups(ctx context.Context, groupIDs []string) ([]*Entry, error)

	// ListByDay returns every entry held on the given weekday.
	ListByDay(ctx context.Context, day Weekday) ([]*Entry, error)
}
