package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrProviderUnavailable indicates the provider could not be reached or
	// returned a server-side failure.
	ErrProviderUnavailable = errors.New("generation provider unavailable")

	// ErrRateLimited indicates the provider rejected the call for quota
	// reasons.
	ErrRateLimited = errors.New("generation provider rate limited")

	// ErrTimeout indicates the generation call exceeded its deadline.
	ErrTimeout = errors.New("generation timed out")

	// ErrGenerationFailed indicates every provider in the chain failed.
	// Surfaced as a per-question error, never as a request failure.
	ErrGenerationFailed = errors.New("generation failed")
)

// classify maps a raw provider error onto the taxonomy. Providers speak
// through langchaingo so the underlying error shapes vary; string matching
// on the usual suspects is the pragmatic option here.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return ErrRateLimited
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return ErrTimeout
	default:
		return ErrProviderUnavailable
	}
}

// retryable reports whether the next provider in the chain should be tried.
// Caller cancellation is never retryable.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout)
}
