package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK CONFLICT QUERY
// Dry run of the enrollment conflict check. Nothing is written.
// ══════════════════════════════════════════════════════════════════════════════

// CheckConflictQuery asks whether a student could join a group.
type CheckConflictQuery struct {
	GroupID   string
	StudentID string
}

// Validate checks the query.
func (q CheckConflictQuery) Validate() error {
	if q.GroupID == "" {
		return errors.New("group_id is required")
	}
	if q.StudentID == "" {
		return errors.New("student_id is required")
	}
	return nil
}

// ConflictDTO describes the first colliding pair.
type ConflictDTO struct {
	ConflictingGroupID    string `json:"conflicting_group_id"`
	ConflictingScheduleID string `json:"conflicting_schedule_id"`
	CandidateSlot         string `json:"candidate_slot"`
	ExistingSlot          string `json:"existing_slot"`
}

// CheckConflictDTO is the answer.
type CheckConflictDTO struct {
	GroupID         string       `json:"group_id"`
	StudentID       string       `json:"student_id"`
	AlreadyEnrolled bool         `json:"already_enrolled"`
	HasConflict     bool         `json:"has_conflict"`
	Conflict        *ConflictDTO `json:"conflict,omitempty"`
}

// CheckConflictHandler handles CheckConflictQuery.
type CheckConflictHandler struct {
	schedules   schedule.Repository
	enrollments enrollment.Repository
}

// NewCheckConflictHandler creates a new handler.
func NewCheckConflictHandler(schedules schedule.Repository, enrollments enrollment.Repository) *CheckConflictHandler {
	return &CheckConflictHandler{schedules: schedules, enrollments: enrollments}
}

// Handle executes the query.
func (h *CheckConflictHandler) Handle(ctx context.Context, q CheckConflictQuery) (*CheckConflictDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "CheckConflict", shared.ErrValidation, "invalid query", err)
	}

	dto := &CheckConflictDTO{GroupID: q.GroupID, StudentID: q.StudentID}

	groupIDs, err := h.enrollments.ListGroupIDsByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("check_conflict: failed to load student groups: %w", err)
	}

	others := make([]string, 0, len(groupIDs))
	for _, id := range groupIDs {
		if id == q.GroupID {
			dto.AlreadyEnrolled = true
			continue
		}
		others = append(others, id)
	}
	if len(others) == 0 {
		return dto, nil
	}

	candidate, err := h.schedules.ListByGroup(ctx, q.GroupID)
	if err != nil {
		return nil, fmt.Errorf("check_conflict: failed to load group schedule: %w", err)
	}
	existing, err := h.schedules.ListByGroups(ctx, others)
	if err != nil {
		return nil, fmt.Errorf("check_conflict: failed to load student schedule: %w", err)
	}

	c, found, err := schedule.FindEntryConflict(candidate, existing)
	if err != nil {
		return nil, err
	}
	if found {
		dto.HasConflict = true
		dto.Conflict = &ConflictDTO{
			ConflictingGroupID:    c.Existing.GroupID,
			ConflictingScheduleID: c.Existing.ID,
			CandidateSlot:         c.Slots.Candidate.String(),
			ExistingSlot:          c.Slots.Existing.String(),
		}
	}

	return dto, nil
}
