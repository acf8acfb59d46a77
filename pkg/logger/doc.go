// Package logger provides structured logging for grabbot built on zerolog.
//
// The package exposes a Logger interface so components can accept any
// implementation (including the no-op logger used in tests). The default
// implementation writes human-readable console output, optionally teeing
// to a log file when configured.
//
// Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	log := logger.GetLogger().WithField("component", "bot")
//	log.Info("starting")
//
// Helper functions cover the recurring log shapes of the pipeline:
// HTTP requests, extraction attempts, deliveries, and staging cleanup.
package logger
