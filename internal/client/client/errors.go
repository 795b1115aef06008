package client

import "errors"

var (
	// ErrUnavailable means the server could not be reached or asked for a
	// retry. Queued changes stay queued.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
