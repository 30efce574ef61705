package motiondb

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with motiondb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithDatabase adds the database name to every record.
func (l *Logger) WithDatabase(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("database", name),
	}
}

// LogLoad logs the decoding of a stored database.
func (l *Logger) LogLoad(ctx context.Context, name string, size int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"name", name,
			"bytes", size,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "load completed",
		"name", name,
		"bytes", size,
		"duration", duration,
	)
}

// LogSave logs the publication of a database.
func (l *Logger) LogSave(ctx context.Context, name string, size int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "save completed",
		"name", name,
		"bytes", size,
		"duration", duration,
	)
}

// LogStage logs a completed build stage at debug level.
func (l *Logger) LogStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "stage failed",
			"stage", stage,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "stage completed",
		"stage", stage,
		"duration", duration,
	)
}

// LogSearch logs a search at debug level.
func (l *Logger) LogSearch(ctx context.Context, k, candidates, results int, duration time.Duration) {
	l.DebugContext(ctx, "search completed",
		"k", k,
		"candidates", candidates,
		"results", results,
		"duration", duration,
	)
}
