package github

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRepoNotFound indicates the repository was not found or is not
	// accessible with the current credentials.
	ErrRepoNotFound = errors.New("github: repository not found")

	// ErrRefNotFound indicates the branch or tag does not exist.
	ErrRefNotFound = errors.New("github: ref not found")
)

// RateLimitError reports an exhausted API quota and when it resets.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound checks whether the error means a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return errors.Is(err, ErrRepoNotFound) || errors.Is(err, ErrRefNotFound)
}

// IsRateLimited checks whether the error is quota exhaustion.
func IsRateLimited(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// isTransient reports whether a retry might succeed.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return !IsRateLimited(err) && !IsNotFound(err)
}
