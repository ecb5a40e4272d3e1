// Package logger provides the structured logger used across every control
// plane process.
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with the contextual fields the control plane
// threads through requests, watches, and router dispatches.
type Logger struct {
	*slog.Logger
}

// New builds a Logger. format "json" selects slog's JSON handler (used in
// production); anything else selects tint's colored console handler.
func New(level, format string) *Logger {
	var handler slog.Handler

	logLevel := parseLevel(level)

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
			AddSource:  false,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext attaches trace_id from ctx, if present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if traceID := ctx.Value(traceIDKey{}); traceID != nil {
		return &Logger{Logger: l.With("trace_id", traceID)}
	}
	return l
}

type traceIDKey struct{}

// ContextWithTraceID stores a trace id for later retrieval by WithContext.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// WithFields returns a logger with additional static fields attached.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// WithWorkflow adds the workflow name to the logger's context.
func (l *Logger) WithWorkflow(name string) *Logger {
	return &Logger{Logger: l.With("workflow", name)}
}

// WithRecord adds a workflow record id to the logger's context.
func (l *Logger) WithRecord(recordID string) *Logger {
	return &Logger{Logger: l.With("record_id", recordID)}
}

// WithStep adds a workflow step name to the logger's context.
func (l *Logger) WithStep(step string) *Logger {
	return &Logger{Logger: l.With("step", step)}
}

// Error logs an error with a stack trace attached, matching the rest of the
// control plane's policy of never swallowing an unexpected error silently.
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.Error(msg, args...)
}

// ErrorContext is the context-aware variant of Error.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.ErrorContext(ctx, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
