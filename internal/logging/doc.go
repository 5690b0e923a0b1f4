// Package logging provides structured logging for the fairbuds tools.
//
// This package wraps a global zap logger. It is silent by default so CLI
// output stays clean; set FAIRBUDS_LOG_LEVEL or pass --log-level to see
// protocol traffic.
//
// # Log Levels
//
//   - Debug: every QXW frame in hex, websocket messages on the bridge
//   - Info: connects, disconnects, presets applied
//   - Warn: link loss, dropped events, garbled notifications
//   - Error: failures surfaced to the user
//
// # File Output
//
// InitializeWithFile adds a JSON log file rotated by lumberjack:
//
//	err := logging.InitializeWithFile("info", logging.FileConfig{
//	    Path:      "/var/log/fairbuds-bridge.log",
//	    MaxSizeMB: 10,
//	})
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once initialized.
// Initialize itself is not; call it once at startup.
package logging
