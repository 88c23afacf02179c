package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// statusKinds maps HTTP status codes to error kinds. Anything absent is
// KindUnknown.
var statusKinds = map[int]ErrorKind{
	http.StatusBadRequest:          KindValidation,
	http.StatusUnauthorized:        KindAuth,
	http.StatusForbidden:           KindPermission,
	http.StatusNotFound:            KindNotFound,
	http.StatusConflict:            KindConflict,
	http.StatusUnprocessableEntity: KindValidation,
	http.StatusTooManyRequests:     KindRateLimit,
	http.StatusInternalServerError: KindServer,
	http.StatusBadGateway:          KindUnavailable,
	http.StatusServiceUnavailable:  KindUnavailable,
	http.StatusGatewayTimeout:      KindUnavailable,
}

// timeoutError is satisfied by net.Error and the transport's timeout errors.
type timeoutError interface {
	Timeout() bool
}

// isTimeout reports whether cause is a deadline or transport timeout.
func isTimeout(cause error) bool {
	if errors.Is(cause, context.DeadlineExceeded) {
		return true
	}
	var te timeoutError
	return errors.As(cause, &te) && te.Timeout()
}

// KindForStatus returns the error kind for an HTTP status code.
func KindForStatus(status int) ErrorKind {
	if kind, ok := statusKinds[status]; ok {
		return kind
	}
	return KindUnknown
}

// Classify turns a failed call into exactly one typed error.
//
// status is the HTTP status (0 when the request never got a response), body
// the raw response body if any, and cause the transport error if any. The
// message is taken from the server body when it carries one, then from
// cause, then from the per-kind default. A call that never got a response
// because it timed out is unavailable.
func Classify(status int, body []byte, cause error) *Error {
	kind := KindForStatus(status)
	if status == 0 && cause != nil && isTimeout(cause) {
		kind = KindUnavailable
	}

	msg := ServerMessage(body)
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	if msg == "" {
		msg = defaultMessages[kind]
	}

	return &Error{
		Kind:    kind,
		Status:  status,
		Message: msg,
		Cause:   cause,
	}
}

// ServerMessage extracts a human message from an API error body. It
// understands the plain {"message": ...} and {"error": ...} shapes and the
// OCS envelope {"ocs": {"meta": {"message": ...}}}.
func ServerMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		OCS     *struct {
			Meta struct {
				Message string `json:"message"`
			} `json:"meta"`
			Data json.RawMessage `json:"data"`
		} `json:"ocs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if m := strings.TrimSpace(payload.Message); m != "" {
		return m
	}
	if s, ok := payload.Error.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if payload.OCS != nil {
		var data struct {
			Message string `json:"message"`
		}
		// data is an array on some failures; only objects carry a message.
		if json.Unmarshal(payload.OCS.Data, &data) == nil {
			if m := strings.TrimSpace(data.Message); m != "" {
				return m
			}
		}
		if m := strings.TrimSpace(payload.OCS.Meta.Message); m != "" {
			return m
		}
	}
	return ""
}
