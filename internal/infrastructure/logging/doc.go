// Package logging provides structured logging for the AM43 service.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service=am43core, version) on all log entries
//   - Component child loggers (component=link, dispatch, api, ...)
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
//	dialer.SetLogger(logger.Component("link"))
//	logger.Info("dispatch completed", "status", "OK", "devices", 2)
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys.
// The MQTT password in particular is never logged.
package logging
