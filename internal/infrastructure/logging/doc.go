// Package logging provides structured logging for the river-control node.
//
// It wraps Go's standard log/slog package so every component logs with the
// same shape and default fields.
//
// # Features
//
//   - JSON output for deployed nodes (machine-parsable)
//   - Text output for bench work (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("store connected", "site", siteID)
//	logger.Error("query failed", "error", err)
//
// Field nodes run unattended for long periods; keep the log volume low and
// never log store credentials.
package logging
