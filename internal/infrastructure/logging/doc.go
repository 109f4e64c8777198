// Package logging provides structured logging for the Gray Logic Insteon service.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the modem, bridge and storage layers.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("modem").Info("port opened", "port", "/dev/ttyUSB0")
//
// # Security
//
// Never log secrets, tokens or passwords.
package logging
