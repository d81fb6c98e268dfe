package domain

import "errors"

// Sentinel errors for the fetch pipeline
var (
	// ErrNoAPIKey indicates no provider credential is configured.
	// Recoverable by user action, never retried automatically.
	ErrNoAPIKey = errors.New("no API key configured")

	// ErrEmptyTitle indicates a request title that normalizes to nothing.
	// Rejected at the boundary so unrelated unresolved titles cannot
	// collide on an empty cache key.
	ErrEmptyTitle = errors.New("title is required")

	// ErrProviderUnavailable indicates the ratings provider could not be
	// reached or returned a non-OK status.
	ErrProviderUnavailable = errors.New("ratings provider is unreachable")
)

// Error codes surfaced through the message interface.
const (
	ErrCodeNoAPIKey   = "NO_API_KEY"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeTransport  = "TRANSPORT_ERROR"
	ErrCodeEmptyTitle = "EMPTY_TITLE"
)
