package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type createGroupRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	SubjectCode string `json:"subject_code" validate:"omitempty,max=32"`

	// ToleranceMinutes and Strategy are optional; unset values use the defaults.
	ToleranceMinutes *int   `json:"tolerance_minutes"`
	Strategy         string `json:"strategy" validate:"omitempty,max=64"`
}

type configureGroupRequest struct {
	ToleranceMinutes *int   `json:"tolerance_minutes" validate:"required"`
	Strategy         string `json:"strategy" validate:"required,max=64"`
}

type addScheduleRequest struct {
	Day       string `json:"day" validate:"required,max=16"`
	StartTime string `json:"start_time" validate:"required,max=5"`
	EndTime   string `json:"end_time" validate:"required,max=5"`
	Room      string `json:"room" validate:"omitempty,max=64"`
}

type studentRequest struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
}

type markAttendanceRequest struct {
	ScheduleID string `json:"schedule_id" validate:"required,max=64"`
	StudentID  string `json:"student_id" validate:"required,max=64"`
	ClassDate  string `json:"class_date" validate:"omitempty,datetime=2006-01-02"`
	MarkedAt   string `json:"marked_at" validate:"omitempty,max=5"`
}

type attendanceReportParams struct {
	From           string `json:"from" validate:"required_with=To,omitempty,datetime=2006-01-02"`
	To             string `json:"to" validate:"required_with=From,omitempty,datetime=2006-01-02"`
	IncludeRecords bool   `json:"records"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING AND VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// errBadBody marks undecodable request bodies.
var errBadBody = errors.New("malformed JSON body")

// decodeJSON reads one JSON object into dst and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeAPIError(w, r, http.StatusRequestEntityTooLarge, &APIError{Code: "payload_too_large", Message: "Request body too large"})
		case errors.Is(err, io.EOF):
			writeAPIError(w, r, http.StatusBadRequest, &APIError{Code: "invalid_body", Message: "Request body is required"})
		default:
			writeAPIError(w, r, http.StatusBadRequest, &APIError{Code: "invalid_body", Message: errBadBody.Error(), Details: err.Error()})
		}
		return false
	}
	return validRequest(w, r, dst)
}

func validRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeAPIError(w, r, http.StatusBadRequest, &APIError{Code: "validation_failed", Message: err.Error()})
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	writeAPIError(w, r, http.StatusBadRequest, &APIError{
		Code:    "validation_failed",
		Message: "Request validation failed",
		Fields:  fields,
	})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return "is required together with " + strings.ToLower(fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
