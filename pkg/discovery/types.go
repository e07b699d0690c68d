package discovery

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// Service type constants for mDNS.
const (
	// ServiceTypeRigctld is the service type of radio control daemons.
	ServiceTypeRigctld = "_rigctld._tcp"

	// ServiceTypeRotctld is the service type of rotator control daemons.
	ServiceTypeRotctld = "_rotctld._tcp"

	// ServiceTypeHamctl is the service type of hamctl's own API.
	ServiceTypeHamctl = "_hamctl._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultInstanceName is used when no instance name is configured.
	DefaultInstanceName = "hamctl"
)

// TXT record keys.
const (
	TXTKeyName    = "name"    // Display name of a daemon
	TXTKeyVersion = "version" // hamctl API version
	TXTKeyPath    = "path"    // WebSocket path
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Discovery errors.
var (
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrInvalidPort         = errors.New("invalid port")
)

// ServiceTypeFor returns the daemon service type of a device kind.
func ServiceTypeFor(kind device.Kind) string {
	if kind == device.KindRotator {
		return ServiceTypeRotctld
	}
	return ServiceTypeRigctld
}

// DaemonService is a discovered rigctld or rotctld instance.
type DaemonService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Kind is derived from the service type.
	Kind device.Kind

	// Host is the advertised host name.
	Host string

	// Port is the daemon TCP port.
	Port int

	// Addresses are the resolved IP addresses, IPv4 first.
	Addresses []string

	// Name is the display name from TXT, or the instance name.
	Name string
}

// Endpoint returns the address hamctl should dial: the first IPv4
// address, then any address, then the host name.
func (s *DaemonService) Endpoint() string {
	for _, a := range s.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return strings.TrimSuffix(s.Host, ".")
}

// Identity returns the device identity of the service.
func (s *DaemonService) Identity() device.Identity {
	return device.Identity{Kind: s.Kind, Host: s.Endpoint(), Port: s.Port, Name: s.Name}
}

// APIInfo describes hamctl's API for advertising.
type APIInfo struct {
	// InstanceName defaults to DefaultInstanceName.
	InstanceName string

	// Port is the HTTP listen port.
	Port int

	// Version is the API version string.
	Version string

	// Path is the WebSocket path, e.g. "/ws".
	Path string
}

// Validate checks the advertised values.
func (i *APIInfo) Validate() error {
	if err := ValidateInstanceName(i.instanceName()); err != nil {
		return err
	}
	if i.Port <= 0 || i.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, i.Port)
	}
	return nil
}

func (i *APIInfo) instanceName() string {
	if i.InstanceName == "" {
		return DefaultInstanceName
	}
	return i.InstanceName
}
