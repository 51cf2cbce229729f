// Package apperr defines the request-outcome and validation errors of the
// projection engine and maps them to stable kinds and user-facing messages.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrTimeout          = errors.New("projection request timed out")
	ErrUnreachable      = errors.New("projection service unreachable")
	ErrUnknown          = errors.New("projection request failed")
	ErrDuplicateRequest = errors.New("identical projection request already in flight")
	ErrBusy             = errors.New("another projection request is in progress")
	ErrComparisonFailed = errors.New("no comparison variant could be evaluated")
)

// ProjectionEndpoint is the path of the evaluation call, quoted in messages.
const ProjectionEndpoint = "/api/v1/projections/calculate"

// RemoteError is a well-formed error response from the calculation service.
type RemoteError struct {
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("projection service returned status %d", e.Status)
	}
	return fmt.Sprintf("projection service returned status %d: %s", e.Status, e.Detail)
}

// ValidationError lists every constraint a scenario violated.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid scenario: " + strings.Join(e.Errors, "; ")
}

// Kind returns a stable classification for err.
func Kind(err error) string {
	var remote *RemoteError
	var invalid *ValidationError

	switch {
	case err == nil:
		return ""

	case errors.As(err, &invalid):
		return "validation"

	case errors.As(err, &remote):
		return "remote"

	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, ErrUnreachable):
		return "unreachable"

	case errors.Is(err, ErrUnknown):
		return "unknown"

	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"

	case errors.Is(err, ErrBusy):
		return "busy"

	case errors.Is(err, ErrComparisonFailed):
		return "comparison_failed"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// UserMessage returns the single message shown to the user for err.
func UserMessage(err error) string {
	var remote *RemoteError
	var invalid *ValidationError

	switch {
	case err == nil:
		return ""

	case errors.As(err, &invalid):
		return strings.Join(invalid.Errors, " ")

	case errors.As(err, &remote):
		if remote.Status == http.StatusNotFound && remote.Detail == "" {
			return "API endpoint not found at " + ProjectionEndpoint + "."
		}
		if remote.Detail != "" {
			return "Backend error: " + remote.Detail
		}
		return "Failed to calculate projection. Please try again."

	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Request timeout. Backend may not be running."

	case errors.Is(err, ErrUnreachable):
		return "Cannot connect to backend. Is the backend running?"

	case errors.Is(err, ErrDuplicateRequest):
		return "This projection is already being calculated."

	case errors.Is(err, ErrBusy):
		return "Another calculation is in progress. Please wait."

	case errors.Is(err, ErrComparisonFailed):
		return "Unable to fetch comparison data. Please verify backend API is running and retry."

	default:
		return "Failed to calculate projection. Please try again."
	}
}

// HTTPStatus maps err to the status used by the local API.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "validation":
		return http.StatusUnprocessableEntity
	case "duplicate", "busy":
		return http.StatusConflict
	case "timeout":
		return http.StatusGatewayTimeout
	case "unreachable", "remote", "unknown", "comparison_failed":
		return http.StatusBadGateway
	case "canceled":
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
