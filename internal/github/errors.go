package github

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidArgument is returned for blank tokens, owners, names or refs.
var ErrInvalidArgument = errors.New("invalid argument")

// APIError is returned when the upstream API answers with a non-success
// status or cannot be reached at all (StatusCode 0).
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("github request to %s failed: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("github API returned HTTP %d for %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, url, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// IsAPIError reports whether err wraps an *APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
