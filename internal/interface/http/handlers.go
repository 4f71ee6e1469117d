package http

import (
	"net/http"
	"time"

	"github.com/classmark/classmark-hub/internal/application/command"
	"github.com/classmark/classmark-hub/internal/application/query"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

type groupResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SubjectCode      string `json:"subject_code,omitempty"`
	ToleranceMinutes int    `json:"tolerance_minutes"`
	Strategy         string `json:"strategy"`
	UsesDefaults     bool   `json:"uses_defaults"`
}

type settingsResponse struct {
	GroupID          string `json:"group_id"`
	ToleranceMinutes int    `json:"tolerance_minutes"`
	Strategy         string `json:"strategy"`

	// EffectiveWithinSeconds is set when cached settings could not be
	// refreshed and the old ones may still classify marks for that long.
	EffectiveWithinSeconds int `json:"effective_within_seconds,omitempty"`
}

type scheduleEntryResponse struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room,omitempty"`
}

type enrollmentResponse struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	StudentID  string    `json:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

func newSettingsResponse(groupID string, s group.Settings) settingsResponse {
	return settingsResponse{GroupID: groupID, ToleranceMinutes: s.Tolerance.Int(), Strategy: s.Strategy.String()}
}

func newScheduleEntryResponse(e *schedule.Entry) scheduleEntryResponse {
	return scheduleEntryResponse{
		ID:        e.ID,
		GroupID:   e.GroupID,
		Day:       e.Day.String(),
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Room:      e.Room,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy", "uptime": s.Uptime().String()})
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "reason": status.Message})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	writeAPIError(w, r, http.StatusNotImplemented, &APIError{Code: "not_implemented", Message: "Handler not configured"})
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateGroup handles POST /api/v1/groups
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateGroup == nil {
		notConfigured(w, r)
		return
	}
	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.CreateGroup.Handle(r.Context(), command.CreateGroupCommand{
		Name:        req.Name,
		SubjectCode: req.SubjectCode,
		Tolerance:   req.ToleranceMinutes,
		Strategy:    req.Strategy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	g := res.Group
	w.Header().Set("Location", "/api/v1/groups/"+g.ID)
	writeJSON(w, r, http.StatusCreated, groupResponse{
		ID:               g.ID,
		Name:             g.Name,
		SubjectCode:      g.SubjectCode.String(),
		ToleranceMinutes: res.Settings.Tolerance.Int(),
		Strategy:         res.Settings.Strategy.String(),
		UsesDefaults:     g.Tolerance == nil && g.StrategyLabel == "",
	})
}

// handleListGroups handles GET /api/v1/groups?page=&page_size=
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListGroups == nil {
		notConfigured(w, r)
		return
	}
	q := query.ListGroupsQuery{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 50),
	}
	groups, err := s.deps.ListGroups.Handle(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, groups, &ResponseMeta{Page: q.Page, PageSize: q.PageSize, Count: len(groups)})
}

// handleGetGroup handles GET /api/v1/groups/{id}
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetGroup == nil {
		notConfigured(w, r)
		return
	}
	dto, err := s.deps.GetGroup.Handle(r.Context(), query.GetGroupQuery{GroupID: r.PathValue("id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleConfigureGroup handles PUT /api/v1/groups/{id}/settings
func (s *Server) handleConfigureGroup(w http.ResponseWriter, r *http.Request) {
	if s.deps.ConfigureGroup == nil {
		notConfigured(w, r)
		return
	}
	var req configureGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.ConfigureGroup.Handle(r.Context(), command.ConfigureGroupCommand{
		GroupID:          r.PathValue("id"),
		ToleranceMinutes: *req.ToleranceMinutes,
		Strategy:         req.Strategy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := newSettingsResponse(res.GroupID, res.Settings)
	if res.StaleFor > 0 {
		resp.EffectiveWithinSeconds = int(res.StaleFor.Seconds())
		writeJSON(w, r, http.StatusAccepted, resp)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleAddSchedule handles POST /api/v1/groups/{id}/schedules
func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	if s.deps.AddSchedule == nil {
		notConfigured(w, r)
		return
	}
	var req addScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := s.deps.AddSchedule.Handle(r.Context(), command.AddScheduleCommand{
		GroupID:   r.PathValue("id"),
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newScheduleEntryResponse(entry))
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleEnroll handles POST /api/v1/groups/{id}/enrollments
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if s.deps.EnrollStudent == nil {
		notConfigured(w, r)
		return
	}
	var req studentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.EnrollStudent.Handle(r.Context(), command.EnrollStudentCommand{
		GroupID:       r.PathValue("id"),
		StudentID:     req.StudentID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := res.Enrollment
	writeJSON(w, r, http.StatusCreated, enrollmentResponse{
		ID:         e.ID,
		GroupID:    e.GroupID,
		StudentID:  e.StudentID.String(),
		EnrolledAt: e.EnrolledAt,
	})
}

// handleUnenroll handles DELETE /api/v1/groups/{id}/enrollments/{student_id}
func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	if s.deps.UnenrollStudent == nil {
		notConfigured(w, r)
		return
	}

	err := s.deps.UnenrollStudent.Handle(r.Context(), command.UnenrollStudentCommand{
		GroupID:       r.PathValue("id"),
		StudentID:     r.PathValue("student_id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckConflict handles POST /api/v1/groups/{id}/enrollments/check.
// It never writes; a conflict is a 200 with has_conflict set.
func (s *Server) handleCheckConflict(w http.ResponseWriter, r *http.Request) {
	if s.deps.CheckConflict == nil {
		notConfigured(w, r)
		return
	}
	var req studentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := s.deps.CheckConflict.Handle(r.Context(), query.CheckConflictQuery{
		GroupID:   r.PathValue("id"),
		StudentID: req.StudentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleMarkAttendance handles POST /api/v1/groups/{id}/attendance
func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.MarkAttendance == nil {
		notConfigured(w, r)
		return
	}
	var req markAttendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.MarkAttendance.Handle(r.Context(), command.MarkAttendanceCommand{
		GroupID:       r.PathValue("id"),
		ScheduleID:    req.ScheduleID,
		StudentID:     req.StudentID,
		ClassDate:     req.ClassDate,
		MarkedAt:      req.MarkedAt,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, query.NewRecordDTO(res.Record))
}

// handleGetAttendance handles GET /api/v1/groups/{id}/attendance?from=&to=&records=
func (s *Server) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetGroupAttendance == nil {
		notConfigured(w, r)
		return
	}
	params := attendanceReportParams{
		From:           r.URL.Query().Get("from"),
		To:             r.URL.Query().Get("to"),
		IncludeRecords: queryBool(r, "records"),
	}
	if !validRequest(w, r, &params) {
		return
	}

	dto, err := s.deps.GetGroupAttendance.Handle(r.Context(), query.GetGroupAttendanceQuery{
		GroupID:        r.PathValue("id"),
		From:           params.From,
		To:             params.To,
		IncludeRecords: params.IncludeRecords,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}
