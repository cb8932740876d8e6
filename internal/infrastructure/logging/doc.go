// Package logging provides structured logging for the sensor network proxy.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Optional debug log file receiving every record regardless of level
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//	  file:
//	    path: "sensor-net-proxy-debug.log"
//
// # Usage
//
//	logger, err := logging.New(cfg.Logging, "1.0.0")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("proxy started", "interface", "eth0")
package logging
