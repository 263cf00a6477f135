package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogStage logs the completion of a pipeline stage
func LogStage(l Logger, stage string, count int, elapsed time.Duration) {
	l.InfoWithFields("Stage completed", map[string]interface{}{
		"stage":      stage,
		"count":      count,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

// LogDownload logs a single download outcome at debug level, failures at warn
func LogDownload(l Logger, link, path string, err error) {
	fields := map[string]interface{}{
		"link": link,
		"path": path,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Download failed", fields)
		return
	}
	l.DebugWithFields("Download completed", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
