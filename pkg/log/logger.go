package log

import "github.com/google/uuid"

// Logger is the interface sessions use to record protocol events.
// Pass nil or NoopLogger to disable capture.
type Logger interface {
	// Log records a protocol event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking stalls the session.
	Log(event Event)
}

// NoopLogger discards all events. Use when capture is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// NewConnectionID returns a fresh identifier for one TCP connection.
func NewConnectionID() string {
	return uuid.New().String()
}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
