package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE GROUP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateGroupCommand creates a class group, optionally with attendance settings.
type CreateGroupCommand struct {
	Name        string
	SubjectCode string

	// Tolerance is nil when the group should use the default.
	Tolerance *int

	// Strategy is empty when the group should use the default.
	Strategy string
}

// Validate validates the command.
func (c CreateGroupCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return shared.ErrInvalidGroupName
	}
	return nil
}

// CreateGroupResult contains the created group and its resolved settings.
type CreateGroupResult struct {
	Group    *group.Group
	Settings group.Settings
}

// CreateGroupHandler handles CreateGroupCommand.
type CreateGroupHandler struct {
	groups group.Repository
	bus    shared.EventPublisher
	newID  IDGenerator
}

// NewCreateGroupHandler creates a new CreateGroupHandler.
func NewCreateGroupHandler(groups group.Repository, bus shared.EventPublisher, newID IDGenerator) *CreateGroupHandler {
	if newID == nil {
		newID = NewUUID
	}
	return &CreateGroupHandler{groups: groups, bus: bus, newID: newID}
}

// Handle executes the command.
func (h *CreateGroupHandler) Handle(ctx context.Context, cmd CreateGroupCommand) (*CreateGroupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	g, err := group.NewGroup(group.NewGroupParams{
		ID:          h.newID(),
		Name:        cmd.Name,
		SubjectCode: cmd.SubjectCode,
		Tolerance:   cmd.Tolerance,
		Strategy:    cmd.Strategy,
	})
	if err != nil {
		return nil, err
	}

	settings, err := g.Settings()
	if err != nil {
		return nil, err
	}

	if err := h.groups.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create_group: failed to save group: %w", err)
	}

	publish(ctx, h.bus, shared.NewGroupCreatedEvent(g.ID, g.Name, g.SubjectCode.String()))

	logger.FromContext(ctx).Info("group created",
		logger.GroupID(g.ID),
		logger.Tolerance(settings.Tolerance.Int()),
		logger.Strategy(settings.Strategy.String()),
	)

	return &CreateGroupResult{Group: g, Settings: settings}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURE GROUP COMMAND
// Validates and stores tolerance and classification strategy of a group.
// ══════════════════════════════════════════════════════════════════════════════

// ConfigureGroupCommand changes the attendance settings of a group.
type ConfigureGroupCommand struct {
	GroupID          string
	ToleranceMinutes int
	Strategy         string
}

// Validate validates the command.
func (c ConfigureGroupCommand) Validate() error {
	if c.GroupID == "" {
		return invalid("ConfigureGroup", "group_id is required")
	}
	return nil
}

// ConfigureGroupResult contains the stored settings.
type ConfigureGroupResult struct {
	GroupID  string
	Settings group.Settings

	// StaleFor is non-zero when the settings cache could not be updated:
	// classification may use the previous settings for up to this long.
	StaleFor time.Duration
}

// SettingsRefresher keeps cached group settings in step with the database.
type SettingsRefresher interface {
	// Refresh replaces the cached settings of a group. On error the returned
	// duration bounds how long the previous settings may still be served.
	Refresh(ctx context.Context, groupID string, s group.Settings) (time.Duration, error)
}

// ConfigureGroupHandler handles ConfigureGroupCommand.
type ConfigureGroupHandler struct {
	groups group.Repository
	cache  SettingsRefresher
	bus    shared.EventPublisher
}

// NewConfigureGroupHandler creates a new ConfigureGroupHandler. cache may be nil.
func NewConfigureGroupHandler(groups group.Repository, cache SettingsRefresher, bus shared.EventPublisher) *ConfigureGroupHandler {
	return &ConfigureGroupHandler{groups: groups, cache: cache, bus: bus}
}

// Handle executes the command. Tolerance outside [0, 60] fails with
// shared.ErrInvalidToleranceRange; an unknown strategy label fails with
// shared.ErrUnrecognizedStrategyKind. Nothing is written on failure.
func (h *ConfigureGroupHandler) Handle(ctx context.Context, cmd ConfigureGroupCommand) (*ConfigureGroupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	tolerance := cmd.ToleranceMinutes
	settings, err := group.NewSettings(&tolerance, cmd.Strategy)
	if err != nil {
		return nil, err
	}

	g, err := h.groups.GetByID(ctx, cmd.GroupID)
	if err != nil {
		return nil, err
	}

	g.Configure(settings)
	if err := h.groups.UpdateSettings(ctx, g); err != nil {
		return nil, fmt.Errorf("configure_group: failed to update settings: %w", err)
	}

	log := logger.FromContext(ctx).With(logger.GroupID(g.ID))
	var staleFor time.Duration
	if h.cache != nil {
		stale, err := h.cache.Refresh(ctx, g.ID, settings)
		if err != nil {
			staleFor = stale
			log.Warn("cached settings not refreshed", logger.Duration("stale_for", stale), logger.Err(err))
		}
	}

	publish(ctx, h.bus, shared.NewGroupConfiguredEvent(g.ID, settings.Tolerance.Int(), settings.Strategy.String()))

	log.Info("group configured",
		logger.Tolerance(settings.Tolerance.Int()),
		logger.Strategy(settings.Strategy.String()),
	)

	return &ConfigureGroupResult{GroupID: g.ID, Settings: settings, StaleFor: staleFor}, nil
}
