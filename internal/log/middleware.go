package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// FromContext returns the request logger installed by the trace middleware,
// or the default logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogDashboardAssembled logs a completed view model assembly.
func (sl *StructuredLogger) LogDashboardAssembled(ctx context.Context, period, start, end string, records int, empty bool, elapsed time.Duration) {
	fields := NewFields().
		WithWindow(period, start, end).
		WithOperation(OpAssemble).
		WithComponent(ComponentDashboard).
		ToSlice()

	fields = append(fields, FieldRecords, records, "empty", empty, FieldDuration, elapsed.Milliseconds())

	sl.logger.InfoContext(ctx, "Dashboard assembled", fields...)
}

// LogEventApplied logs a report event written to the register.
func (sl *StructuredLogger) LogEventApplied(ctx context.Context, eventType, messageID, reportID, status string) {
	fields := NewFields().
		WithEvent(eventType, messageID).
		WithReport(reportID, status).
		WithOperation(OpIngest).
		WithComponent(ComponentWorker)

	sl.logger.InfoContext(ctx, "Report event applied", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
