// Package logging provides structured logging for the OTA portal daemon.
//
// Logging is built on go.uber.org/zap and is silent by default: unless a
// level is passed to Initialize or set through the OTAPORTAL_LOG_LEVEL
// environment variable, a nop logger is installed and nothing is emitted.
// This keeps command output clean while still allowing full debug traces
// when diagnosing connectivity or session problems.
//
// Levels:
//   - debug: per-tick detail, scan polling, reconnect attempts
//   - info: mode transitions, connection events, credential changes
//   - warn: recoverable failures (reconnect cycles, mDNS bring-up retries)
//   - error: persistence failures, transport errors
//
// The package exposes a small set of helpers (Info, Debug, Warn, Error)
// around a process-wide logger so that call sites stay terse.
package logging
