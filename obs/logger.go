// Package obs holds the ambient observability stack — structured logging
// and metrics hooks — shared by the ivfflat and hnsw packages.
package obs

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with field helpers for the values this module
// logs repeatedly: tuple ids, dimensions, phase names and counts.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger around handler. A nil handler falls back to
// a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)})
	return &Logger{Logger: slog.New(handler)}
}

// WithDimension adds a dimension field.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{Logger: l.Logger.With("dimension", dim)}
}

// Notice logs a downgraded-to-continue event at warn level: a resource
// condition that can proceed without aborting the statement (e.g. HNSW
// build-arena overflow, an IVFFlat build that leaves some lists empty).
func (l *Logger) Notice(ctx context.Context, msg string, args ...any) {
	l.WarnContext(ctx, msg, args...)
}

// Phase logs a build-progress phase transition.
func (l *Logger) Phase(ctx context.Context, phase string, done, total int64) {
	l.InfoContext(ctx, "build progress", "phase", phase, "done", done, "total", total)
}
