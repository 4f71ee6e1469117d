package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/classmark/classmark-hub/internal/application/command"
	"github.com/classmark/classmark-hub/internal/application/query"
	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/domain/schedule"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/internal/interface/http/handlers"
	"github.com/classmark/classmark-hub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// handlerFunc adapts a function to any of the application handler interfaces.
type handlerFunc[C, R any] func(ctx context.Context, c C) (R, error)

func (f handlerFunc[C, R]) Handle(ctx context.Context, c C) (R, error) { return f(ctx, c) }

type recordedRequest struct {
	route string
	code  int
}

type observer struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (o *observer) ObserveHTTP(route string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, recordedRequest{route, code})
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func newTestServer(deps Dependencies) *Server {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	deps.Logger = logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
	return NewServer(cfg, deps)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestServer_CreateGroup(t *testing.T) {
	var got command.CreateGroupCommand
	s := newTestServer(Dependencies{
		CreateGroup: handlerFunc[command.CreateGroupCommand, *command.CreateGroupResult](
			func(_ context.Context, cmd command.CreateGroupCommand) (*command.CreateGroupResult, error) {
				got = cmd
				return &command.CreateGroupResult{
					Group:    &group.Group{ID: "g1", Name: cmd.Name, Tolerance: cmd.Tolerance},
					Settings: group.Settings{Tolerance: 5, Strategy: attendance.StrategyLateWindow},
				}, nil
			}),
	})

	rec, env := do(t, s, http.MethodPost, "/api/v1/groups", `{"name":"Algebra I","tolerance_minutes":5}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, "/api/v1/groups/g1", rec.Header().Get("Location"))
	require.NotNil(t, got.Tolerance)
	assert.Equal(t, 5, *got.Tolerance)

	var data groupResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "standard_late_window", data.Strategy)
	assert.Equal(t, 5, data.ToleranceMinutes)
	assert.False(t, data.UsesDefaults)
}

func TestServer_RequestValidation(t *testing.T) {
	called := false
	s := newTestServer(Dependencies{
		CreateGroup: handlerFunc[command.CreateGroupCommand, *command.CreateGroupResult](
			func(context.Context, command.CreateGroupCommand) (*command.CreateGroupResult, error) {
				called = true
				return nil, errors.New("unreachable")
			}),
	})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing name", `{"strategy":"standard_present"}`, "validation_failed"},
		{"unknown field", `{"name":"x","tolerance":5}`, "invalid_body"},
		{"malformed", `{"name":`, "invalid_body"},
		{"empty body", ``, "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodPost, "/api/v1/groups", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
	assert.False(t, called)

	_, env := do(t, s, http.MethodPost, "/api/v1/groups", `{}`)
	assert.Equal(t, "is required", env.Error.Fields["name"])
}

func TestServer_ConfigureGroupErrors(t *testing.T) {
	errs := map[string]error{
		"g-strategy":  shared.ErrUnrecognizedStrategyKind,
		"g-tolerance": shared.ErrInvalidToleranceRange,
		"g-missing":   shared.ErrGroupNotFound,
	}
	s := newTestServer(Dependencies{
		ConfigureGroup: handlerFunc[command.ConfigureGroupCommand, *command.ConfigureGroupResult](
			func(_ context.Context, cmd command.ConfigureGroupCommand) (*command.ConfigureGroupResult, error) {
				if err, ok := errs[cmd.GroupID]; ok {
					return nil, err
				}
				res := &command.ConfigureGroupResult{
					GroupID:  cmd.GroupID,
					Settings: group.Settings{Tolerance: group.ToleranceMinutes(cmd.ToleranceMinutes), Strategy: attendance.StrategyAbsentOnly},
				}
				if cmd.GroupID == "g-stale" {
					res.StaleFor = 10 * time.Minute
				}
				return res, nil
			}),
	})

	tests := []struct {
		groupID string
		status  int
		code    string
	}{
		{"g-strategy", http.StatusBadRequest, "unrecognized_strategy_kind"},
		{"g-tolerance", http.StatusBadRequest, "invalid_tolerance_range"},
		{"g-missing", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.groupID, func(t *testing.T) {
			rec, env := do(t, s, http.MethodPut, "/api/v1/groups/"+tt.groupID+"/settings", `{"tolerance_minutes":5,"strategy":"x"}`)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	rec, env := do(t, s, http.MethodPut, "/api/v1/groups/g1/settings", `{"tolerance_minutes":0,"strategy":"standard_absent_only"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var data settingsResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, settingsResponse{GroupID: "g1", ToleranceMinutes: 0, Strategy: "standard_absent_only"}, data)

	rec, env = do(t, s, http.MethodPut, "/api/v1/groups/g-stale/settings", `{"tolerance_minutes":5,"strategy":"standard_absent_only"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 600, data.EffectiveWithinSeconds)

	rec, env = do(t, s, http.MethodPut, "/api/v1/groups/g1/settings", `{"strategy":"standard_absent_only"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", env.Error.Fields["tolerance_minutes"])
}

func TestServer_AddSchedule(t *testing.T) {
	s := newTestServer(Dependencies{
		AddSchedule: handlerFunc[command.AddScheduleCommand, *schedule.Entry](
			func(_ context.Context, cmd command.AddScheduleCommand) (*schedule.Entry, error) {
				if cmd.StartTime == "9:00" {
					return nil, shared.ErrInvalidTimeFormat
				}
				return &schedule.Entry{ID: "s1", GroupID: cmd.GroupID, Day: schedule.Monday, StartTime: cmd.StartTime, EndTime: cmd.EndTime}, nil
			}),
	})

	rec, env := do(t, s, http.MethodPost, "/api/v1/groups/g1/schedules", `{"day":"monday","start_time":"09:00","end_time":"10:30"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var data scheduleEntryResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "monday", data.Day)
	assert.Equal(t, "g1", data.GroupID)

	rec, env = do(t, s, http.MethodPost, "/api/v1/groups/g1/schedules", `{"day":"monday","start_time":"9:00","end_time":"10:30"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_time_format", env.Error.Code)
}

func TestServer_Enroll(t *testing.T) {
	s := newTestServer(Dependencies{
		EnrollStudent: handlerFunc[command.EnrollStudentCommand, *command.EnrollStudentResult](
			func(_ context.Context, cmd command.EnrollStudentCommand) (*command.EnrollStudentResult, error) {
				switch cmd.StudentID {
				case "busy":
					return nil, shared.ErrEnrollmentBusy
				case "clash":
					return nil, shared.ErrScheduleConflict.WithDetail(errors.New("monday 09:00-10:30 overlaps monday 10:00-11:00"))
				case "again":
					return nil, shared.ErrAlreadyEnrolled
				}
				if cmd.CorrelationID == "" {
					return nil, errors.New("missing correlation id")
				}
				return &command.EnrollStudentResult{Enrollment: &enrollment.Enrollment{
					ID: "e1", GroupID: cmd.GroupID, StudentID: shared.StudentID(cmd.StudentID),
				}}, nil
			}),
	})

	rec, _ := do(t, s, http.MethodPost, "/api/v1/groups/g1/enrollments", `{"student_id":"alice"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, s, http.MethodPost, "/api/v1/groups/g1/enrollments", `{"student_id":"clash"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "schedule_conflict", env.Error.Code)
	assert.Equal(t, "schedule conflict", env.Error.Message)
	assert.Contains(t, env.Error.Details, "overlaps")

	rec, env = do(t, s, http.MethodPost, "/api/v1/groups/g1/enrollments", `{"student_id":"busy"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "enrollment_busy", env.Error.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec, env = do(t, s, http.MethodPost, "/api/v1/groups/g1/enrollments", `{"student_id":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", env.Error.Code)
}

func TestServer_CheckConflict(t *testing.T) {
	s := newTestServer(Dependencies{
		CheckConflict: handlerFunc[query.CheckConflictQuery, *query.CheckConflictDTO](
			func(_ context.Context, q query.CheckConflictQuery) (*query.CheckConflictDTO, error) {
				return &query.CheckConflictDTO{
					GroupID: q.GroupID, StudentID: q.StudentID, HasConflict: true,
					Conflict: &query.ConflictDTO{ConflictingGroupID: "g2"},
				}, nil
			}),
	})

	rec, env := do(t, s, http.MethodPost, "/api/v1/groups/g1/enrollments/check", `{"student_id":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var data query.CheckConflictDTO
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.HasConflict)
	assert.Equal(t, "g2", data.Conflict.ConflictingGroupID)
}

type unenrollFunc func(ctx context.Context, cmd command.UnenrollStudentCommand) error

func (f unenrollFunc) Handle(ctx context.Context, cmd command.UnenrollStudentCommand) error {
	return f(ctx, cmd)
}

func TestServer_Unenroll(t *testing.T) {
	var got command.UnenrollStudentCommand
	s := newTestServer(Dependencies{
		UnenrollStudent: unenrollFunc(func(_ context.Context, cmd command.UnenrollStudentCommand) error {
			got = cmd
			if cmd.StudentID == "stranger" {
				return shared.ErrNotEnrolled
			}
			return nil
		}),
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/groups/g1/enrollments/stu-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "g1", got.GroupID)
	assert.Equal(t, "stu-1", got.StudentID)

	rec, env := do(t, s, http.MethodDelete, "/api/v1/groups/g1/enrollments/stranger", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_enrolled", env.Error.Code)
}

func TestServer_MarkAttendance(t *testing.T) {
	s := newTestServer(Dependencies{
		MarkAttendance: handlerFunc[command.MarkAttendanceCommand, *command.MarkAttendanceResult](
			func(_ context.Context, cmd command.MarkAttendanceCommand) (*command.MarkAttendanceResult, error) {
				switch cmd.StudentID {
				case "stranger":
					return nil, shared.ErrNotEnrolled
				case "twice":
					return nil, shared.ErrAttendanceAlreadyMarked
				}
				marked := schedule.MustParseTimeOfDay(cmd.MarkedAt)
				return &command.MarkAttendanceResult{Record: &attendance.Record{
					ID: "r1", GroupID: cmd.GroupID, ScheduleID: cmd.ScheduleID, StudentID: cmd.StudentID,
					ClassDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), MarkedAt: &marked,
					DeltaMinutes: 15, State: attendance.StateLate, Strategy: attendance.StrategyLateWindow,
					Tolerance: 10, Source: attendance.SourceManual,
				}}, nil
			}),
	})

	rec, env := do(t, s, http.MethodPost, "/api/v1/groups/g1/attendance",
		`{"schedule_id":"s1","student_id":"alice","class_date":"2026-03-02","marked_at":"09:15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var data query.RecordDTO
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "late", data.State)
	assert.Equal(t, "2026-03-02", data.ClassDate)
	assert.Equal(t, "09:15", data.MarkedAt)

	rec, env = do(t, s, http.MethodPost, "/api/v1/groups/g1/attendance", `{"schedule_id":"s1","student_id":"stranger"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not_enrolled", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, "/api/v1/groups/g1/attendance", `{"schedule_id":"s1","student_id":"twice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, "/api/v1/groups/g1/attendance", `{"schedule_id":"s1","student_id":"alice","class_date":"03/02/2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be a date formatted YYYY-MM-DD", env.Error.Fields["class_date"])
}

func TestServer_GetAttendance(t *testing.T) {
	var got query.GetGroupAttendanceQuery
	s := newTestServer(Dependencies{
		GetGroupAttendance: handlerFunc[query.GetGroupAttendanceQuery, *query.GroupAttendanceDTO](
			func(_ context.Context, q query.GetGroupAttendanceQuery) (*query.GroupAttendanceDTO, error) {
				got = q
				return &query.GroupAttendanceDTO{GroupID: q.GroupID, From: q.From, To: q.To}, nil
			}),
	})

	rec, _ := do(t, s, http.MethodGet, "/api/v1/groups/g1/attendance?from=2026-03-01&to=2026-03-31&records=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, query.GetGroupAttendanceQuery{GroupID: "g1", From: "2026-03-01", To: "2026-03-31", IncludeRecords: true}, got)

	rec, env := do(t, s, http.MethodGet, "/api/v1/groups/g1/attendance?to=2026-03-31", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required together with to", env.Error.Fields["from"])
}

func TestServer_ServerErrorsAreOpaque(t *testing.T) {
	s := newTestServer(Dependencies{
		GetGroup: handlerFunc[query.GetGroupQuery, *query.GroupDTO](
			func(context.Context, query.GetGroupQuery) (*query.GroupDTO, error) {
				return nil, errors.New("pq: password authentication failed")
			}),
	})

	rec, env := do(t, s, http.MethodGet, "/api/v1/groups/g1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestServer_UnconfiguredHandler(t *testing.T) {
	s := newTestServer(Dependencies{})
	rec, env := do(t, s, http.MethodGet, "/api/v1/groups", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "not_implemented", env.Error.Code)
}

func TestServer_APIKeyAndMetrics(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("cm_live_0123456789abcdef"), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := handlers.NewAPIKeyAuth("X-API-Key", []string{string(hash)})
	require.NoError(t, err)

	obs := &observer{}
	s := newTestServer(Dependencies{
		Auth:    auth,
		Metrics: obs,
		GetGroup: handlerFunc[query.GetGroupQuery, *query.GroupDTO](
			func(_ context.Context, q query.GetGroupQuery) (*query.GroupDTO, error) {
				return &query.GroupDTO{ID: q.GroupID}, nil
			}),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{}"))
		}),
	})

	rec, env := do(t, s, http.MethodGet, "/api/v1/groups/g1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/g1", nil)
	req.Header.Set("X-API-Key", "cm_live_0123456789abcdef")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code, "probes need no key")

	rec, _ = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []recordedRequest{
		{"GET /api/v1/groups/{id}", http.StatusUnauthorized},
		{"GET /api/v1/groups/{id}", http.StatusOK},
		{"GET /live", http.StatusOK},
	}, obs.seen)
}

type stubHealth struct{ status handlers.HealthStatus }

func (s stubHealth) Check(context.Context) handlers.HealthStatus { return s.status }

func TestServer_HealthAndReady(t *testing.T) {
	s := newTestServer(Dependencies{
		HealthChecker: stubHealth{handlers.HealthStatus{Healthy: false, Ready: true, Message: "failed checks: redis"}},
	})

	rec, _ := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RecoversPanics(t *testing.T) {
	s := newTestServer(Dependencies{
		ListGroups: handlerFunc[query.ListGroupsQuery, []query.GroupSummaryDTO](
			func(context.Context, query.ListGroupsQuery) ([]query.GroupSummaryDTO, error) {
				panic("boom")
			}),
	})

	rec, env := do(t, s, http.MethodGet, "/api/v1/groups", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_server_error", env.Error.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}
