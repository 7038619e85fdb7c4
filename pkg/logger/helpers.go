package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ForSource returns a logger tagged with the source identifier and run id
func ForSource(base Logger, sourceID, runID string) Logger {
	if base == nil {
		base = GetLogger()
	}
	fields := map[string]interface{}{"source": sourceID}
	if runID != "" {
		fields["run_id"] = runID
	}
	return base.WithFields(fields)
}

// LogRequest logs a completed HTTP exchange at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode == 429 || (statusCode >= 400 && statusCode < 500):
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogPage logs one committed page
func LogPage(l Logger, cursor, next, accepted, rejected int) {
	l.InfoWithFields("Page committed", map[string]interface{}{
		"cursor":   cursor,
		"next":     next,
		"accepted": accepted,
		"rejected": rejected,
	})
}

// LogRejection logs an item that failed validation
func LogRejection(l Logger, key, reason string) {
	l.WarnWithFields("Item rejected", map[string]interface{}{
		"key":    key,
		"reason": reason,
	})
}

// LogRetry logs a scheduled retry of a failed operation
func LogRetry(l Logger, attempt int, delay time.Duration, err error) {
	l.WithError(err).WarnWithFields("Retrying after failure", map[string]interface{}{
		"attempt": attempt,
		"delay":   delay,
	})
}

// LogSourceSummary logs the terminal state of a source harvest
func LogSourceSummary(l Logger, state string, pages, written, rejected int, elapsed time.Duration) {
	fields := map[string]interface{}{
		"state":    state,
		"pages":    pages,
		"written":  written,
		"rejected": rejected,
		"elapsed":  elapsed,
	}
	if state == "failed" {
		l.ErrorWithFields("Source finished", fields)
		return
	}
	l.InfoWithFields("Source finished", fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
