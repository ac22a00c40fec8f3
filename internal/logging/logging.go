// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// OperationIDKey is the context key for operation IDs.
	OperationIDKey ContextKey = "operation_id"
	// DocumentIDKey is the context key for the document being edited.
	DocumentIDKey ContextKey = "doc_id"
)

var (
	mu sync.RWMutex
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Text to stderr at Info level until the CLI configures otherwise.
	InitLogger(LevelInfo, FormatText)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel maps a config string to a Level. Unknown values yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat maps a config string to a Format. Anything but "json" is text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// InitLogger initializes the global logger writing to stderr.
func InitLogger(level Level, format Format) {
	InitLoggerTo(os.Stderr, level, format)
}

// InitLoggerTo initializes the global logger writing to w.
func InitLoggerTo(w io.Writer, level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	defaultLogger = slog.New(handler)
	mu.Unlock()
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// WithOperationID adds an operation ID to the context.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, OperationIDKey, id)
}

// GetOperationID retrieves the operation ID from the context.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithDocumentID adds a document ID to the context.
func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DocumentIDKey, id)
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if id := GetOperationID(ctx); id != "" {
		logger = logger.With("operation_id", id)
	}
	if id, ok := ctx.Value(DocumentIDKey).(string); ok && id != "" {
		logger = logger.With("doc_id", id)
	}
	return logger
}

// Helper functions for common logging patterns

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// SchemaResolved logs a schema cache lookup.
func SchemaResolved(path string, hit bool, duration time.Duration, args ...any) {
	allArgs := []any{
		"schema", path,
		"cache_hit", hit,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	GetLogger().Debug("schema_resolved", allArgs...)
}

// SchemaLoadFailed logs a loader or parse failure.
func SchemaLoadFailed(path string, err error, args ...any) {
	allArgs := []any{
		"schema", path,
		"error", err.Error(),
	}
	allArgs = append(allArgs, args...)
	GetLogger().Error("schema_load_failed", allArgs...)
}

// SchemaEvicted logs a schema leaving the cache.
func SchemaEvicted(path, reason string, args ...any) {
	allArgs := []any{
		"schema", path,
		"reason", reason,
	}
	allArgs = append(allArgs, args...)
	GetLogger().Debug("schema_evicted", allArgs...)
}

// ValidationRun logs the outcome of a validation call.
func ValidationRun(ctx context.Context, passageID, tag string, valid bool, errs, warnings int, args ...any) {
	allArgs := []any{
		"passage_id", passageID,
		"tag", tag,
		"valid", valid,
		"errors", errs,
		"warnings", warnings,
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Debug("validation_run", allArgs...)
}

// TagCommitted logs a tag accepted by the queue.
func TagCommitted(ctx context.Context, passageID, tagID string, revision int, args ...any) {
	allArgs := []any{
		"passage_id", passageID,
		"tag_id", tagID,
		"revision", revision,
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Debug("tag_committed", allArgs...)
}

// TagRejected logs a tag refused by the queue.
func TagRejected(ctx context.Context, passageID, code, message string, args ...any) {
	allArgs := []any{
		"passage_id", passageID,
		"code", code,
		"message", message,
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Warn("tag_rejected", allArgs...)
}

// DocumentMutated logs a new document revision.
func DocumentMutated(docID, eventType string, revision int, args ...any) {
	allArgs := []any{
		"doc_id", docID,
		"event", eventType,
		"revision", revision,
	}
	allArgs = append(allArgs, args...)
	GetLogger().Debug("document_mutated", allArgs...)
}
