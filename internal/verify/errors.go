package verify

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/docverify/internal/idp"
	"github.com/hyperjump/docverify/internal/storage"
	"github.com/hyperjump/docverify/internal/stream"
)

var (
	// ErrInvalidRequest marks input the caller must fix.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotConfigured is returned when an operation needs an extractor that was not wired.
	ErrNotConfigured = errors.New("extraction service not configured")
)

// Classify maps an error to an HTTP status and whether retrying the same call may succeed.
func Classify(err error) (status int, retryable bool) {
	var apiErr *idp.APIError
	switch {
	case err == nil:
		return http.StatusOK, false
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, false
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, idp.ErrTimeout),
		errors.Is(err, stream.ErrChunkTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, true
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized, false
	case errors.Is(err, ErrNotConfigured), errors.Is(err, idp.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, false
	case errors.Is(err, stream.ErrNoPages):
		return http.StatusInternalServerError, true
	default:
		return http.StatusInternalServerError, false
	}
}
