package web

// errors.go is the single place where errors become HTTP responses.
//
// Every *core.Error carries a kind; the kind picks the status code and is
// echoed to the client together with the retryable flag so workflow hosts
// can decide whether to try again. Anything that is not a *core.Error is
// reported as an unknown 500 without its text.

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/JonMunkholm/tablelink/internal/logging"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}

var kindStatus = map[core.ErrorKind]int{
	core.KindValidation:  http.StatusBadRequest,
	core.KindAuth:        http.StatusUnauthorized,
	core.KindPermission:  http.StatusForbidden,
	core.KindNotFound:    http.StatusNotFound,
	core.KindConflict:    http.StatusConflict,
	core.KindRateLimit:   http.StatusTooManyRequests,
	core.KindServer:      http.StatusBadGateway,
	core.KindUnavailable: http.StatusServiceUnavailable,
	core.KindUnknown:     http.StatusInternalServerError,
}

// errorResponse maps err to a status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var ce *core.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{
			Error:     "request timed out",
			Message:   "The request took too long to complete",
			Kind:      string(core.KindUnavailable),
			Retryable: true,
		}
	case errors.As(err, &ce):
		status, ok := kindStatus[ce.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, ErrorResponse{
			Error:     ce.Error(),
			Message:   ce.Error(),
			Kind:      string(ce.Kind),
			Field:     ce.Field,
			Retryable: ce.Retryable(),
		}
	case errors.Is(err, audit.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error:   err.Error(),
			Message: "The audit entry was not found",
			Kind:    string(core.KindNotFound),
		}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "internal error",
		Message: "An unexpected error occurred",
		Kind:    string(core.KindUnknown),
	}
}

// respondError logs err and writes its JSON form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"kind", body.Kind,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", args...)
	} else {
		logger.Warn("request failed", args...)
	}

	writeJSON(w, status, body)
}

// writeJSON encodes v; encoding errors are logged since headers are sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// maxBodySize caps JSON request bodies.
const maxBodySize = 4 << 20

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return core.NewValidationError("body", "", "invalid JSON body: %v", err)
	}
	return nil
}
