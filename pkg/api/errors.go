package api

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

// FallbackMessage is shown when an error carries no readable text.
const FallbackMessage = "An unexpected error occurred"

// ErrUnreachable marks requests that got no response at all.
var ErrUnreachable = stderrors.New("no response from server - check your connection")

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode   int
	Method       string
	Path         string
	RequestID    string
	ErrorField   string
	MessageField string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// Code classifies the status into the error taxonomy.
func (e *StatusError) Code() verrors.ErrorCode {
	return codeForStatus(e.StatusCode)
}

func codeForStatus(status int) verrors.ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return verrors.ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return verrors.ErrCodeForbidden
	case status == http.StatusNotFound:
		return verrors.ErrCodeNotFound
	case status >= 500:
		return verrors.ErrCodeBackendFault
	default:
		return verrors.ErrCodeRequestRejected
	}
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// ErrorMessage reduces any error to one human-readable line, preferring the
// backend's error field, then its message field, then the transport text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var se *StatusError
	if stderrors.As(err, &se) {
		if msg := strings.TrimSpace(se.ErrorField); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(se.MessageField); msg != "" {
			return msg
		}
		return se.Error()
	}

	if stderrors.Is(err, ErrUnreachable) {
		return ErrUnreachable.Error()
	}

	if e, ok := verrors.As(err); ok {
		if msg := strings.TrimSpace(e.UserMessage); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(e.Message); msg != "" {
			return msg
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackMessage
}
