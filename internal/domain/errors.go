package domain

import "errors"

var (
	// ErrInvalidInput marks client mistakes: missing user, query too short.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound is returned by stores when a session id does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned by stores on a duplicate create. Callers
	// treat it as "already created" so concurrent creates stay idempotent.
	ErrSessionExists = errors.New("session already exists")

	// ErrContextNotFound is returned when no conversation context has been
	// recorded for a session yet.
	ErrContextNotFound = errors.New("conversation context not found")

	// ErrServiceUnavailable marks a degraded dependency: the generation
	// backend failed or is not configured. No partial state is written when
	// a request fails with this error.
	ErrServiceUnavailable = errors.New("service unavailable")
)
