// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROUP ATTENDANCE QUERY
// Per-student attendance tallies of one group over a date range.
// ══════════════════════════════════════════════════════════════════════════════

// GetGroupAttendanceQuery selects the group and period.
type GetGroupAttendanceQuery struct {
	GroupID string

	// From and To are "YYYY-MM-DD"; both empty means the last DefaultDays days.
	From string
	To   string

	// IncludeRecords returns the raw records next to the tallies.
	IncludeRecords bool
}

// DefaultDays is the report window when no range is given.
const DefaultDays = 30

// MaxDays caps the report window.
const MaxDays = 366

// Validate checks the query.
func (q *GetGroupAttendanceQuery) Validate() error {
	if q.GroupID == "" {
		return errors.New("group_id is required")
	}
	if (q.From == "") != (q.To == "") {
		return errors.New("from and to must be given together")
	}
	return nil
}

// StudentAttendanceDTO is the tally of one student.
type StudentAttendanceDTO struct {
	StudentID       string  `json:"student_id"`
	OnTime          int     `json:"on_time"`
	Late            int     `json:"late"`
	Absent          int     `json:"absent"`
	Total           int     `json:"total"`
	AttendanceRate  float64 `json:"attendance_rate"`
	PunctualityRate float64 `json:"punctuality_rate"`
}

// RecordDTO is one stored record.
type RecordDTO struct {
	ID           string `json:"id"`
	ScheduleID   string `json:"schedule_id"`
	StudentID    string `json:"student_id"`
	ClassDate    string `json:"class_date"`
	MarkedAt     string `json:"marked_at,omitempty"`
	DeltaMinutes int    `json:"delta_minutes"`
	State        string `json:"state"`
	Strategy     string `json:"strategy"`
	Tolerance    int    `json:"tolerance_minutes"`
	Source       string `json:"source"`
}

// GroupAttendanceDTO is the report.
type GroupAttendanceDTO struct {
	GroupID   string                 `json:"group_id"`
	GroupName string                 `json:"group_name"`
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Students  []StudentAttendanceDTO `json:"students"`
	Overall   StudentAttendanceDTO   `json:"overall"`
	Records   []RecordDTO            `json:"records,omitempty"`
}

// GetGroupAttendanceHandler handles GetGroupAttendanceQuery.
type GetGroupAttendanceHandler struct {
	groups      group.Repository
	enrollments enrollment.Repository
	records     attendance.Repository
	now         func() time.Time
}

// NewGetGroupAttendanceHandler creates a new handler.
func NewGetGroupAttendanceHandler(groups group.Repository, enrollments enrollment.Repository, records attendance.Repository) *GetGroupAttendanceHandler {
	return &GetGroupAttendanceHandler{groups: groups, enrollments: enrollments, records: records, now: time.Now}
}

// Handle executes the query. Enrolled students without records appear with zero counts.
func (h *GetGroupAttendanceHandler) Handle(ctx context.Context, q GetGroupAttendanceQuery) (*GroupAttendanceDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetGroupAttendance", shared.ErrValidation, "invalid query", err)
	}

	dates := shared.LastNDays(h.now(), DefaultDays)
	if q.From != "" {
		var err error
		dates, err = shared.ParseDateRange(q.From, q.To)
		if err != nil {
			return nil, err
		}
	}
	if dates.Days() > MaxDays {
		return nil, shared.NewDomainError("query", "GetGroupAttendance", shared.ErrValueOutOfRange, fmt.Sprintf("range exceeds %d days", MaxDays))
	}

	g, err := h.groups.GetByID(ctx, q.GroupID)
	if err != nil {
		return nil, err
	}

	records, err := h.records.ListByGroup(ctx, q.GroupID, dates)
	if err != nil {
		return nil, fmt.Errorf("get_group_attendance: failed to list records: %w", err)
	}

	students, err := h.enrollments.ListStudentIDsByGroup(ctx, q.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get_group_attendance: failed to list students: %w", err)
	}

	perStudent, overall := attendance.Summarize(records)
	seen := make(map[string]bool, len(perStudent))
	dto := &GroupAttendanceDTO{
		GroupID:   g.ID,
		GroupName: g.Name,
		From:      dates.From.Format(shared.DateLayout),
		To:        dates.To.Format(shared.DateLayout),
		Overall:   toStudentDTO(overall),
	}
	for _, s := range perStudent {
		seen[s.StudentID] = true
		dto.Students = append(dto.Students, toStudentDTO(s))
	}
	for _, id := range students {
		if !seen[id] {
			dto.Students = append(dto.Students, StudentAttendanceDTO{StudentID: id})
		}
	}

	if q.IncludeRecords {
		dto.Records = make([]RecordDTO, 0, len(records))
		for _, r := range records {
			dto.Records = append(dto.Records, NewRecordDTO(r))
		}
	}

	return dto, nil
}

// NewRecordDTO renders one stored record.
func NewRecordDTO(r *attendance.Record) RecordDTO {
	return RecordDTO{
		ID:           r.ID,
		ScheduleID:   r.ScheduleID,
		StudentID:    r.StudentID,
		ClassDate:    r.ClassDate.Format(shared.DateLayout),
		MarkedAt:     r.MarkedAtString(),
		DeltaMinutes: r.DeltaMinutes,
		State:        r.State.String(),
		Strategy:     r.Strategy.String(),
		Tolerance:    r.Tolerance,
		Source:       string(r.Source),
	}
}

func toStudentDTO(s attendance.Summary) StudentAttendanceDTO {
	return StudentAttendanceDTO{
		StudentID:       s.StudentID,
		OnTime:          s.OnTime,
		Late:            s.Late,
		Absent:          s.Absent,
		Total:           s.Total(),
		AttendanceRate:  s.AttendanceRate(),
		PunctualityRate: s.PunctualityRate(),
	}
}
