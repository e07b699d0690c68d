package device

import (
	"fmt"
	"net"
	"strconv"
)

// Kind identifies the class of controller daemon a device is reached through.
type Kind uint8

const (
	// KindRadio is a transceiver controlled through rigctld.
	KindRadio Kind = iota

	// KindRotator is an antenna rotator controlled through rotctld.
	KindRotator
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRadio:
		return "radio"
	case KindRotator:
		return "rotator"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses "radio" or "rotator".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "radio":
		return KindRadio, nil
	case "rotator":
		return KindRotator, nil
	default:
		return 0, fmt.Errorf("unknown device kind %q", s)
	}
}

// Default daemon ports.
const (
	DefaultRigctldPort = 4532
	DefaultRotctldPort = 4533
)

// Identity describes one controller daemon endpoint.
// It is immutable once a session has been created for it.
type Identity struct {
	Kind Kind   `json:"kind"`
	Host string `json:"host"`
	Port int    `json:"port"`
	Name string `json:"name"`
}

// Address returns the host:port dial address.
func (id Identity) Address() string {
	return net.JoinHostPort(id.Host, strconv.Itoa(id.Port))
}

// DeviceID returns the identifier used in events and registry lookups.
// Two identities with the same kind, host and port share a device ID.
func (id Identity) DeviceID() string {
	switch id.Kind {
	case KindRotator:
		return "rotator-" + id.Address()
	default:
		return "hamlib-" + id.Address()
	}
}

// SameEndpoint reports whether both identities address the same daemon.
func (id Identity) SameEndpoint(other Identity) bool {
	return id.Kind == other.Kind && id.Host == other.Host && id.Port == other.Port
}
