package logger

import (
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggerWithCaller returns a logger with caller information
func LoggerWithCaller() Logger {
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		return GetLogger()
	}

	fn := runtime.FuncForPC(pc)
	funcName := "unknown"
	if fn != nil {
		funcName = fn.Name()
		if idx := strings.LastIndex(funcName, "."); idx >= 0 {
			funcName = funcName[idx+1:]
		}
	}

	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}

	return GetLogger().WithFields(map[string]interface{}{
		"caller": funcName,
		"file":   file,
		"line":   line,
	})
}

// LogRequest logs an outbound HTTP request with standard fields
func LogRequest(logger Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	if statusCode >= 400 {
		logger.ErrorWithFields("HTTP request failed", fields)
	} else {
		logger.DebugWithFields("HTTP request completed", fields)
	}
}

// LogExtraction logs the outcome of one extraction strategy attempt
func LogExtraction(logger Logger, strategy, url string, files int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"strategy": strategy,
		"url":      url,
		"files":    files,
		"duration": duration,
	}

	if err != nil {
		logger.WithError(err).ErrorWithFields("Extraction failed", fields)
	} else if files == 0 {
		logger.DebugWithFields("Extraction produced nothing", fields)
	} else {
		logger.InfoWithFields("Extraction completed", fields)
	}
}

// LogDelivery logs a completed delivery to a chat
func LogDelivery(logger Logger, chatID int64, units int, asDocument bool, duration time.Duration) {
	logger.InfoWithFields("Delivery completed", map[string]interface{}{
		"chat_id":     chatID,
		"units":       units,
		"as_document": asDocument,
		"duration":    duration,
	})
}

// LogCleanup logs the removal of a staging scope
func LogCleanup(logger Logger, scope string, err error) {
	if err != nil {
		logger.WithError(err).ErrorWithFields("Staging cleanup failed", map[string]interface{}{
			"scope": scope,
		})
		return
	}
	logger.DebugWithFields("Staging cleaned up", map[string]interface{}{
		"scope": scope,
	})
}

// LogRateLimit logs a rate limiting wait
func LogRateLimit(logger Logger, waitTime time.Duration) {
	logger.DebugWithFields("Rate limited, waiting", map[string]interface{}{
		"wait_time": waitTime,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(logger Logger, component string) {
	logger.InfoWithFields("Component started", map[string]interface{}{
		"component": component,
	})
}

// LogComponentStop logs when a component stops
func LogComponentStop(logger Logger, component string, reason string) {
	logger.InfoWithFields("Component stopped", map[string]interface{}{
		"component": component,
		"reason":    reason,
	})
}

// NewNopLogger returns a logger that discards all output, useful for tests
func NewNopLogger() Logger {
	nop := zerolog.Nop()
	return &nopLogger{logger: &nop}
}

type nopLogger struct {
	logger *zerolog.Logger
}

func (n *nopLogger) Debug(msg string) {}
func (n *nopLogger) Info(msg string)  {}
func (n *nopLogger) Warn(msg string)  {}
func (n *nopLogger) Error(msg string) {}
func (n *nopLogger) Fatal(msg string) {}

func (n *nopLogger) WithField(key string, value interface{}) Logger       { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger      { return n }
func (n *nopLogger) WithError(err error) Logger                           { return n }
func (n *nopLogger) DebugWithFields(msg string, f map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, f map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, f map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, f map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                          { return n.logger }
