// Package common defines shared constants and sentinel errors used across
// client and server layers of jtrack. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller holds no active membership at
	// the target location or attempts a cross-tenant write.
	ErrForbidden = errors.New("forbidden")

	// ErrStoreUnavailable marks a persistence failure inside a sync
	// transaction. The whole call was rolled back and may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStorageDisabled is returned for attachment URL requests when no
	// object store is configured.
	ErrStorageDisabled = errors.New("object storage is not configured")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
