package query

import (
	"context"
	"fmt"

	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// GetGroupQuery selects one group.
type GetGroupQuery struct {
	GroupID string
}

// ScheduleEntryDTO is one weekly slot of a group.
type ScheduleEntryDTO struct {
	ID        string `json:"id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room,omitempty"`
}

// GroupDTO is a group with its resolved settings and weekly schedule.
type GroupDTO struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	SubjectCode      string             `json:"subject_code,omitempty"`
	ToleranceMinutes int                `json:"tolerance_minutes"`
	Strategy         string             `json:"strategy"`
	UsesDefaults     bool               `json:"uses_defaults"`
	Schedule         []ScheduleEntryDTO `json:"schedule"`
}

// GetGroupHandler handles GetGroupQuery.
type GetGroupHandler struct {
	groups    group.Repository
	schedules schedule.Repository
}

// NewGetGroupHandler creates a new handler.
func NewGetGroupHandler(groups group.Repository, schedules schedule.Repository) *GetGroupHandler {
	return &GetGroupHandler{groups: groups, schedules: schedules}
}

// Handle executes the query. A stored strategy label that is no longer
// recognized fails with shared.ErrUnrecognizedStrategyKind.
func (h *GetGroupHandler) Handle(ctx context.Context, q GetGroupQuery) (*GroupDTO, error) {
	if q.GroupID == "" {
		return nil, shared.NewDomainError("query", "GetGroup", shared.ErrValidation, "group_id is required")
	}

	g, err := h.groups.GetByID(ctx, q.GroupID)
	if err != nil {
		return nil, err
	}
	settings, err := g.Settings()
	if err != nil {
		return nil, err
	}

	entries, err := h.schedules.ListByGroup(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("get_group: failed to load schedule: %w", err)
	}

	dto := &GroupDTO{
		ID:               g.ID,
		Name:             g.Name,
		SubjectCode:      g.SubjectCode.String(),
		ToleranceMinutes: settings.Tolerance.Int(),
		Strategy:         settings.Strategy.String(),
		UsesDefaults:     g.Tolerance == nil && g.StrategyLabel == "",
		Schedule:         make([]ScheduleEntryDTO, 0, len(entries)),
	}
	for _, e := range entries {
		dto.Schedule = append(dto.Schedule, ScheduleEntryDTO{
			ID:        e.ID,
			Day:       e.Day.String(),
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			Room:      e.Room,
		})
	}
	return dto, nil
}

// ListGroupsQuery pages through groups.
type ListGroupsQuery struct {
	Page     int
	PageSize int
}

// ListGroupsHandler handles ListGroupsQuery.
type ListGroupsHandler struct {
	groups group.Repository
}

// NewListGroupsHandler creates a new handler.
func NewListGroupsHandler(groups group.Repository) *ListGroupsHandler {
	return &ListGroupsHandler{groups: groups}
}

// GroupSummaryDTO is a group row in a listing. Unresolvable settings are
// reported with an empty strategy instead of failing the listing.
type GroupSummaryDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SubjectCode      string `json:"subject_code,omitempty"`
	ToleranceMinutes int    `json:"tolerance_minutes"`
	Strategy         string `json:"strategy"`
}

// Handle executes the query.
func (h *ListGroupsHandler) Handle(ctx context.Context, q ListGroupsQuery) ([]GroupSummaryDTO, error) {
	groups, err := h.groups.List(ctx, shared.NewPagination(q.Page, q.PageSize))
	if err != nil {
		return nil, fmt.Errorf("list_groups: %w", err)
	}
	out := make([]GroupSummaryDTO, 0, len(groups))
	for _, g := range groups {
		row := GroupSummaryDTO{ID: g.ID, Name: g.Name, SubjectCode: g.SubjectCode.String()}
		if s, err := g.Settings(); err == nil {
			row.ToleranceMinutes = s.Tolerance.Int()
			row.Strategy = s.Strategy.String()
		}
		out = append(out, row)
	}
	return out, nil
}
