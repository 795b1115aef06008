// Package logging is the structured logger shared by the sync server and
// the agent. Arguments after the message are slog key/value pairs.
package logging

import "context"

// Logger is what components depend on; SlogLogger is the only
// implementation.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
