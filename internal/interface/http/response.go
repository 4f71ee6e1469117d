package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	// Fields maps request fields to validation messages.
	Fields map[string]string `json:"fields,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Page      int       `json:"page,omitempty"`
	PageSize  int       `json:"page_size,omitempty"`
	Count     int       `json:"count,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSONWithMeta(w, r, status, data, nil)
}

func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	encode(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeAPIError(w, nil, status, &APIError{Code: code, Message: message})
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError) {
	resp := JSONResponse{
		Success: false,
		Error:   apiErr,
		Meta:    &ResponseMeta{Timestamp: time.Now().UTC()},
	}
	if r != nil {
		resp.RequestID = getRequestID(r.Context())
	}
	encode(w, status, resp)
}

func encode(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorStatus maps an application error to a status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrScheduleConflict):
		return http.StatusConflict, "schedule_conflict"
	case errors.Is(err, shared.ErrEnrollmentBusy):
		return http.StatusConflict, "enrollment_busy"
	case errors.Is(err, shared.ErrNotEnrolled):
		return http.StatusUnprocessableEntity, "not_enrolled"
	case errors.Is(err, shared.ErrUnrecognizedStrategyKind):
		return http.StatusBadRequest, "unrecognized_strategy_kind"
	case errors.Is(err, shared.ErrInvalidToleranceRange):
		return http.StatusBadRequest, "invalid_tolerance_range"
	case errors.Is(err, shared.ErrInvalidTimeFormat):
		return http.StatusBadRequest, "invalid_time_format"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError answers with the mapped status. Server errors are logged and
// their text is not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	apiErr := &APIError{Code: code, Message: err.Error()}
	var de *shared.DomainError
	if errors.As(err, &de) {
		apiErr.Message = de.Message
		if de.Err != nil {
			apiErr.Details = de.Err.Error()
		}
	}

	if status >= 500 {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		apiErr.Message = "An unexpected error occurred"
		apiErr.Details = ""
	}
	if code == "enrollment_busy" {
		w.Header().Set("Retry-After", "1")
	}
	writeAPIError(w, r, status, apiErr)
}
