// Package logging provides structured logging for the IoT bridge.
//
// It wraps log/slog so every record carries the service name and build
// version, in JSON for production or text for development.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Device secrets and platform passwords are never logged. Log the node id or
// device id instead.
package logging
