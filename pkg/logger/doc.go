// Package logger provides the structured logging interface used across the crawler.
//
// It wraps zerolog with a small field-oriented API. Console output is colored;
// when a log file is configured, entries are also written to a size-rotated
// file through lumberjack.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info", File: "crawl.log"})
//
//	log := logger.GetLogger().WithField("domain", "someblog")
//	log.InfoWithFields("Discovery finished", map[string]interface{}{
//	    "end_page": 42,
//	    "probes":   9,
//	})
//
// Tests use NewTestLogger to capture messages or NewNopLogger to discard them.
package logger
