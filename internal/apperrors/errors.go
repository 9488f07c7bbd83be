// Package apperrors defines the service error kinds and their mapping to
// HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data.
var (
	// ErrAlreadyVoted is returned when a session votes twice for one song.
	ErrAlreadyVoted = errors.New("already voted for this song")
	// ErrSongNotFound is returned when a vote references a song that is not
	// in the venue's queue.
	ErrSongNotFound = errors.New("song not found in queue")
	// ErrQueueEmpty is returned by play-next on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrProviderUnavailable is returned when Spotify credentials are not
	// configured. A deployment problem, not a caller problem.
	ErrProviderUnavailable = errors.New("spotify API not configured")
	// ErrAuthExpired is returned when the provider rejected the cached token.
	// The token has been invalidated; the caller should retry once.
	ErrAuthExpired = errors.New("authentication expired")
)

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation creates a ValidationError.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CooldownActiveError reports that a session added a song too recently.
// Minutes is the remaining wait, rounded up, for display.
type CooldownActiveError struct {
	Minutes int
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active: %d minutes remaining", e.Minutes)
}

// RateLimitedError reports that the search window is exhausted. RetryAfter is
// the wait in seconds until the window resets.
type RateLimitedError struct {
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many searches, please wait %d seconds", e.RetryAfter)
}

// UpstreamError wraps an opaque provider failure. The status code and detail
// are logged server-side; clients see only a generic message.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spotify %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("spotify %s failed: status %d", e.Op, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
