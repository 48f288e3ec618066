// Package response writes the JSON bodies shared by every HTTP module.
// Success payloads are encoded as-is; errors are wrapped in a single
// envelope so clients parse one shape regardless of which handler failed.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPError pairs a status code with a stable machine-readable code.
// Message is an optional human-readable hint; when empty the standard
// status text is sent.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Code
}

// WithMessage returns a copy of the error carrying a human-readable hint.
func (e HTTPError) WithMessage(msg string) HTTPError {
	e.Message = msg
	return e
}

var (
	ErrBadRequest          = HTTPError{Status: http.StatusBadRequest, Code: "bad_request"}
	ErrUnauthorized        = HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	ErrForbidden           = HTTPError{Status: http.StatusForbidden, Code: "forbidden"}
	ErrNotFound            = HTTPError{Status: http.StatusNotFound, Code: "not_found"}
	ErrConflict            = HTTPError{Status: http.StatusConflict, Code: "conflict"}
	ErrUnprocessable       = HTTPError{Status: http.StatusUnprocessableEntity, Code: "unprocessable"}
	ErrTooManyRequests     = HTTPError{Status: http.StatusTooManyRequests, Code: "too_many_requests"}
	ErrInternal            = HTTPError{Status: http.StatusInternalServerError, Code: "internal_error"}
	ErrServiceUnavailable  = HTTPError{Status: http.StatusServiceUnavailable, Code: "service_unavailable"}
	ErrSubscriptionExpired = HTTPError{Status: http.StatusForbidden, Code: "subscription_required", Message: "renew your subscription to regain access"}
)

// ValidationError maps request fields to their failures. Rendered as a 422
// with per-field details.
type ValidationError map[string][]string

// Error implements the error interface.
func (v ValidationError) Error() string {
	return "validation failed"
}

// ErrorBody is the wire shape of the error envelope.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes v with the given status. A nil v writes the status line and
// headers only.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error renders err as the error envelope. HTTPError values choose their
// own status and code, ValidationError renders 422 with field details, and
// everything else collapses to a 500 with the cause withheld from the
// client.
func Error(w http.ResponseWriter, err error) {
	var (
		httpErr HTTPError
		valErr  ValidationError
	)
	switch {
	case errors.As(err, &valErr):
		JSON(w, http.StatusUnprocessableEntity, errorEnvelope{Error: ErrorBody{
			Code:    "validation_error",
			Message: "validation failed",
			Details: valErr,
		}})
	case errors.As(err, &httpErr):
		body := ErrorBody{Code: httpErr.Code, Message: httpErr.Message}
		if body.Message == "" {
			body.Message = http.StatusText(httpErr.Status)
		}
		JSON(w, httpErr.Status, errorEnvelope{Error: body})
	default:
		JSON(w, http.StatusInternalServerError, errorEnvelope{Error: ErrorBody{
			Code:    ErrInternal.Code,
			Message: http.StatusText(http.StatusInternalServerError),
		}})
	}
}
