// Package logging provides structured logging with trace IDs for the
// memory engine. Output is JSON by default (LOG_JSON=false for text).
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logging interface used across the engine.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	DebugContext(ctx context.Context, msg string, fields ...interface{})
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})

	WithTraceID(traceID string) Logger
	WithComponent(component string) Logger
}

// Level represents logging verbosity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type contextKey string

// TraceIDKey is the context key carrying the request trace ID.
const TraceIDKey contextKey = "trace_id"

// Entry is a single structured log record.
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

type structuredLogger struct {
	level     Level
	traceID   string
	component string
	useJSON   bool
}

// NewLogger creates a structured logger at the given level.
func NewLogger(level Level) Logger {
	useJSON := true
	if v := os.Getenv("LOG_JSON"); v == "false" || v == "0" {
		useJSON = false
	}
	return &structuredLogger{level: level, useJSON: useJSON}
}

func (l *structuredLogger) WithTraceID(traceID string) Logger {
	clone := *l
	clone.traceID = traceID
	return &clone
}

func (l *structuredLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

func (l *structuredLogger) Debug(msg string, fields ...interface{}) {
	l.emit(DEBUG, "DEBUG", msg, "", fields...)
}

func (l *structuredLogger) Info(msg string, fields ...interface{}) {
	l.emit(INFO, "INFO", msg, "", fields...)
}

func (l *structuredLogger) Warn(msg string, fields ...interface{}) {
	l.emit(WARN, "WARN", msg, "", fields...)
}

func (l *structuredLogger) Error(msg string, fields ...interface{}) {
	l.emit(ERROR, "ERROR", msg, "", fields...)
}

func (l *structuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(DEBUG, "DEBUG", msg, TraceID(ctx), fields...)
}

func (l *structuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(INFO, "INFO", msg, TraceID(ctx), fields...)
}

func (l *structuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(WARN, "WARN", msg, TraceID(ctx), fields...)
}

func (l *structuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ERROR, "ERROR", msg, TraceID(ctx), fields...)
}

func (l *structuredLogger) emit(level Level, name, msg, ctxTraceID string, fields ...interface{}) {
	if l.level > level {
		return
	}

	traceID := l.traceID
	if ctxTraceID != "" {
		traceID = ctxTraceID
	}

	fieldMap := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		fieldMap[fmt.Sprintf("%v", fields[i])] = fields[i+1]
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     name,
		Message:   msg,
		TraceID:   traceID,
		Component: l.component,
		Fields:    fieldMap,
	}

	if l.useJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	parts := []string{entry.Timestamp, "[" + entry.Level + "]"}
	if entry.Component != "" {
		parts = append(parts, "component:"+entry.Component)
	}
	if entry.TraceID != "" && len(entry.TraceID) >= 8 {
		parts = append(parts, "trace:"+entry.TraceID[:8])
	}
	parts = append(parts, entry.Message)
	for k, v := range entry.Fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	fmt.Fprintln(os.Stderr, strings.Join(parts, " "))
}

// Default logger plus package-level helpers, as most call sites only need
// these.
var defaultLogger = NewLogger(ParseLevel(os.Getenv("LOG_LEVEL")))

// SetDefault replaces the default logger instance.
func SetDefault(logger Logger) { defaultLogger = logger }

func Debug(msg string, fields ...interface{}) { defaultLogger.Debug(msg, fields...) }
func Info(msg string, fields ...interface{})  { defaultLogger.Info(msg, fields...) }
func Warn(msg string, fields ...interface{})  { defaultLogger.Warn(msg, fields...) }
func Error(msg string, fields ...interface{}) { defaultLogger.Error(msg, fields...) }

// WithComponent returns the default logger scoped to a component.
func WithComponent(component string) Logger {
	return defaultLogger.WithComponent(component)
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTrace stores a trace ID in the context, generating one when empty.
func WithTrace(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = NewTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// TraceID extracts the trace ID from the context, if any.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}
