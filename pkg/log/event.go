package log

import (
	"time"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the TCP connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates line flow relative to hamctl.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// DeviceKind tells radio sessions from rotator sessions.
	DeviceKind device.Kind `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the daemon address (host:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceID is the device identifier of the session.
	DeviceID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Line        *LineEvent        `cbor:"10,keyasint,omitempty"` // Protocol layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of line flow.
type Direction uint8

const (
	// DirectionIn indicates a line received from the daemon.
	DirectionIn Direction = 0
	// DirectionOut indicates a line sent to the daemon.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of hamctl captured the event.
type Layer uint8

const (
	// LayerTransport is the TCP socket layer.
	LayerTransport Layer = 0
	// LayerProtocol is the line protocol layer.
	LayerProtocol Layer = 1
	// LayerService is the supervisor layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerProtocol:
		return "PROTOCOL"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol line.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LineEvent captures one protocol line.
type LineEvent struct {
	// Text is the line without its terminator.
	Text string `cbor:"1,keyasint"`

	// Command is the command being answered (responses only).
	Command string `cbor:"2,keyasint,omitempty"`

	// Report is the RPRT code when the line is a terminator.
	Report *int `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySupervisor indicates a supervisor decision.
	StateEntitySupervisor StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySupervisor:
		return "SUPERVISOR"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the daemon RPRT code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
