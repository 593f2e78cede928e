// Package logging defines the structured-logging interface used across the
// server. Implementations wrap slog (default) or zap.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "server started", "addr", addr)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New picks an implementation by backend name: "zap" or anything else for slog.
func New(backend string, development bool) (Logger, error) {
	if backend == "zap" {
		return NewZapLogger(development)
	}
	return NewJSONSlogLogger(development), nil
}
