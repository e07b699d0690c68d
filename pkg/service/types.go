package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/log4ym/hamctl-go/pkg/connection"
	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/discovery"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/log"
	"github.com/log4ym/hamctl-go/pkg/settings"
)

// Service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrAlreadyStarted    = errors.New("service already started")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrManagedBySettings = errors.New("device is managed by settings")
	ErrInvalidAzimuth    = errors.New("invalid azimuth")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateRunning - service is running normally.
	StateRunning

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Service.
type Config struct {
	// Settings supplies the radio and rotator configuration. Nil means a
	// memory source holding settings.Defaults.
	Settings settings.Source

	// Sink receives every event. Nil discards them.
	Sink event.Sink

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger records session traffic. Nil disables capture.
	ProtocolLogger log.Logger

	// DialTimeout and ReadTimeout bound session I/O. Zero uses the
	// connection package defaults.
	DialTimeout time.Duration
	ReadTimeout time.Duration

	// DisabledInterval overrides the supervisor's disabled cycle. Zero
	// uses supervisor.DisabledInterval.
	DisabledInterval time.Duration

	// NewBackoff creates the reconnect backoff of each supervisor. Nil
	// uses connection.NewBackoff.
	NewBackoff func() *connection.Backoff

	// Browser finds rigctld daemons. Nil disables discovery.
	Browser discovery.Browser

	// AutoConnect connects every radio the browser reports.
	AutoConnect bool
}

// Source tells where a device comes from.
type Source string

// Device sources.
const (
	SourceSettings Source = "settings"
	SourceManual   Source = "manual"
	SourceMDNS     Source = "mdns"
)

// DeviceInfo describes a known device.
type DeviceInfo struct {
	DeviceID  string      `json:"deviceId"`
	Kind      device.Kind `json:"kind"`
	Name      string      `json:"name,omitempty"`
	Host      string      `json:"host"`
	Port      int         `json:"port"`
	Source    Source      `json:"source"`
	Connected bool        `json:"connected"`
}

// DeviceStatus is the live state of a supervised device.
type DeviceStatus struct {
	DeviceID   string                        `json:"deviceId"`
	Kind       device.Kind                   `json:"kind"`
	Connection string                        `json:"connection"`
	Error      string                        `json:"error,omitempty"`
	Radio      *event.RadioStateChanged      `json:"radio,omitempty"`
	Rotator    *event.RotatorPositionChanged `json:"rotator,omitempty"`
}
