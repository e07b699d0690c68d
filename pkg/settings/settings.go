// Package settings supplies the user's device configuration to the
// supervisors. Sources are read-only from hamctl's point of view apart
// from MemorySource, which the interactive console edits.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// Default poll intervals.
const (
	// RadioPollInterval is the fixed radio cadence.
	RadioPollInterval = 250 * time.Millisecond

	// DefaultRotatorPollInterval applies when no interval is configured.
	DefaultRotatorPollInterval = 500 * time.Millisecond
)

// ErrInvalid is wrapped by Validate failures.
var ErrInvalid = errors.New("invalid settings")

// Device is the configuration of one daemon endpoint.
type Device struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	PollIntervalMs int    `yaml:"poll_interval_ms,omitempty" json:"pollIntervalMs,omitempty"`
	Name           string `yaml:"name,omitempty" json:"name,omitempty"`
}

// PollInterval returns the configured interval, or def when unset.
func (d Device) PollInterval(def time.Duration) time.Duration {
	if d.PollIntervalMs <= 0 {
		return def
	}
	return time.Duration(d.PollIntervalMs) * time.Millisecond
}

// Identity returns the endpoint as a device identity of the given kind.
func (d Device) Identity(kind device.Kind) device.Identity {
	return device.Identity{Kind: kind, Host: d.Host, Port: d.Port, Name: d.Name}
}

// Validate checks an enabled device for a usable endpoint. Disabled
// devices are always valid.
func (d Device) Validate() error {
	if !d.Enabled {
		return nil
	}
	if d.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalid)
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, d.Port)
	}
	if d.PollIntervalMs < 0 {
		return fmt.Errorf("%w: negative poll interval", ErrInvalid)
	}
	return nil
}

// Snapshot is the complete configuration at one point in time.
type Snapshot struct {
	Radio   Device `yaml:"radio" json:"radio"`
	Rotator Device `yaml:"rotator" json:"rotator"`
}

// Validate checks both devices.
func (s Snapshot) Validate() error {
	if err := s.Radio.Validate(); err != nil {
		return fmt.Errorf("radio: %w", err)
	}
	if err := s.Rotator.Validate(); err != nil {
		return fmt.Errorf("rotator: %w", err)
	}
	return nil
}

// Defaults returns the configuration used when nothing is set: both
// devices disabled, pointing at the local default daemon ports.
func Defaults() Snapshot {
	return Snapshot{
		Radio: Device{
			Host: "localhost",
			Port: device.DefaultRigctldPort,
		},
		Rotator: Device{
			Host:           "localhost",
			Port:           device.DefaultRotctldPort,
			PollIntervalMs: int(DefaultRotatorPollInterval / time.Millisecond),
		},
	}
}

// Source provides the current settings. Current is called once per
// supervisor cycle and must be cheap.
type Source interface {
	Current() (Snapshot, error)
}
