// Package log provides protocol capture for hamctl daemon sessions.
//
// This package defines the Logger interface and Event types for recording
// every line exchanged with rigctld and rotctld, every session state
// transition and every session error. It is separate from operational
// logging (slog): a capture is a complete machine-readable trace of a
// session that can be replayed when a daemon misbehaves.
//
// # Basic Usage
//
// Sessions are configured with a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/hamctl/session.hlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: socket dial and close (StateChangeEvent, ErrorEventData)
//   - Protocol: command and response lines (LineEvent)
//   - Service: supervisor decisions such as settings-driven reconnects
//
// Each TCP connection gets its own connection ID (a random UUID) so that
// interleaved sessions can be separated when reading a capture back.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with the .hlog
// extension. The hamctl-log CLI provides viewing, filtering, export and
// statistics.
package log
