package domain

import (
	"context"
	"errors"
)

var (
	// ErrValidation signals bad input shape or range. Never retried, surfaced as a client error.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing document or chunk.
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch signals a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrConfig signals invalid chunking or retry configuration, rejected at load time.
	ErrConfig = errors.New("invalid configuration")
	// ErrUpstreamUnavailable signals an exhausted retry budget against a remote gateway.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrEmbeddingProvider signals an embedding gateway failure (transient, retried).
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrRerankProvider signals a rerank gateway failure (transient, rerank degrades).
	ErrRerankProvider = errors.New("rerank provider error")
)

// IsTransient reports whether err is worth retrying against a remote gateway.
// Validation and dimension errors are never transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider) ||
		errors.Is(err, ErrRerankProvider) ||
		errors.Is(err, context.DeadlineExceeded)
}
