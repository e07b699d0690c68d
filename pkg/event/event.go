package event

import (
	"fmt"
	"time"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// Type identifies the kind of event.
type Type uint8

const (
	// TypeConnectionStateChanged - a session changed connection state.
	TypeConnectionStateChanged Type = iota + 1

	// TypeDeviceDiscovered - a device connected for the first time.
	TypeDeviceDiscovered

	// TypeDeviceRemoved - a device was explicitly disconnected.
	TypeDeviceRemoved

	// TypeRadioStateChanged - frequency, mode or PTT changed.
	TypeRadioStateChanged

	// TypeRotatorPositionChanged - azimuth, movement or target changed.
	TypeRotatorPositionChanged
)

// String returns the event type name.
func (t Type) String() string {
	switch t {
	case TypeConnectionStateChanged:
		return "connection-state-changed"
	case TypeDeviceDiscovered:
		return "device-discovered"
	case TypeDeviceRemoved:
		return "device-removed"
	case TypeRadioStateChanged:
		return "radio-state-changed"
	case TypeRotatorPositionChanged:
		return "rotator-position-changed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *Type) UnmarshalText(text []byte) error {
	for c := TypeConnectionStateChanged; c <= TypeRotatorPositionChanged; c++ {
		if c.String() == string(text) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", text)
}

// ConnectionStateChanged is the payload of TypeConnectionStateChanged.
type ConnectionStateChanged struct {
	DeviceID string `json:"deviceId"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// DeviceDiscovered is the payload of TypeDeviceDiscovered.
type DeviceDiscovered struct {
	DeviceID string      `json:"deviceId"`
	Kind     device.Kind `json:"kind"`
	Name     string      `json:"name"`
	Host     string      `json:"host"`
	Port     int         `json:"port"`
}

// DeviceRemoved is the payload of TypeDeviceRemoved.
type DeviceRemoved struct {
	DeviceID string `json:"deviceId"`
}

// RadioStateChanged is the payload of TypeRadioStateChanged.
type RadioStateChanged struct {
	DeviceID     string `json:"deviceId"`
	FrequencyHz  int64  `json:"frequencyHz"`
	Mode         string `json:"mode"`
	Transmitting bool   `json:"transmitting"`
	Band         string `json:"band"`
}

// RotatorPositionChanged is the payload of TypeRotatorPositionChanged.
type RotatorPositionChanged struct {
	DeviceID          string   `json:"deviceId"`
	CurrentAzimuthDeg float64  `json:"currentAzimuthDeg"`
	Moving            bool     `json:"moving"`
	TargetAzimuthDeg  *float64 `json:"targetAzimuthDeg,omitempty"`
}

// Event is one notification. Exactly one payload pointer is set, matching
// Type.
type Event struct {
	Type     Type      `json:"type"`
	DeviceID string    `json:"deviceId"`
	Time     time.Time `json:"time"`

	ConnectionState *ConnectionStateChanged `json:"connectionState,omitempty"`
	Discovered      *DeviceDiscovered       `json:"discovered,omitempty"`
	Removed         *DeviceRemoved          `json:"removed,omitempty"`
	Radio           *RadioStateChanged      `json:"radio,omitempty"`
	Rotator         *RotatorPositionChanged `json:"rotator,omitempty"`
}

// Payload returns the payload matching the event type, or nil.
func (e Event) Payload() any {
	switch e.Type {
	case TypeConnectionStateChanged:
		return e.ConnectionState
	case TypeDeviceDiscovered:
		return e.Discovered
	case TypeDeviceRemoved:
		return e.Removed
	case TypeRadioStateChanged:
		return e.Radio
	case TypeRotatorPositionChanged:
		return e.Rotator
	default:
		return nil
	}
}

// ConnectionState builds a connection-state-changed event. err may be nil.
func ConnectionState(deviceID, state string, err error) Event {
	p := &ConnectionStateChanged{DeviceID: deviceID, State: state}
	if err != nil {
		p.Error = err.Error()
	}
	return Event{Type: TypeConnectionStateChanged, DeviceID: deviceID, Time: time.Now(), ConnectionState: p}
}

// Discovered builds a device-discovered event.
func Discovered(id device.Identity) Event {
	deviceID := id.DeviceID()
	return Event{
		Type:     TypeDeviceDiscovered,
		DeviceID: deviceID,
		Time:     time.Now(),
		Discovered: &DeviceDiscovered{
			DeviceID: deviceID,
			Kind:     id.Kind,
			Name:     id.Name,
			Host:     id.Host,
			Port:     id.Port,
		},
	}
}

// Removed builds a device-removed event.
func Removed(deviceID string) Event {
	return Event{Type: TypeDeviceRemoved, DeviceID: deviceID, Time: time.Now(), Removed: &DeviceRemoved{DeviceID: deviceID}}
}

// RadioState builds a radio-state-changed event.
func RadioState(deviceID string, s device.RadioState) Event {
	return Event{
		Type:     TypeRadioStateChanged,
		DeviceID: deviceID,
		Time:     time.Now(),
		Radio: &RadioStateChanged{
			DeviceID:     deviceID,
			FrequencyHz:  s.FrequencyHz,
			Mode:         s.Mode,
			Transmitting: s.Transmitting,
			Band:         s.Band(),
		},
	}
}

// RotatorPosition builds a rotator-position-changed event.
func RotatorPosition(deviceID string, s device.RotatorState) Event {
	s = s.Clone()
	return Event{
		Type:     TypeRotatorPositionChanged,
		DeviceID: deviceID,
		Time:     time.Now(),
		Rotator: &RotatorPositionChanged{
			DeviceID:          deviceID,
			CurrentAzimuthDeg: s.CurrentAzimuthDeg,
			Moving:            s.Moving,
			TargetAzimuthDeg:  s.TargetAzimuthDeg,
		},
	}
}
