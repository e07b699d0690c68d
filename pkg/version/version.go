// Package version provides the hamctl API version and its compatibility
// rules.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// API is the version of the HTTP and WebSocket API served by hamctl.
// Clients with the same major version are compatible.
const API = "1.0"

// Version is the build version, set with -ldflags "-X".
var Version = "dev"

// APIVersion represents a parsed "major.minor" API version.
type APIVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (APIVersion, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(minor, ".") {
		return APIVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	ma, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return APIVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}
	mi, err := strconv.ParseUint(minor, 10, 16)
	if err != nil {
		return APIVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return APIVersion{Major: uint16(ma), Minor: uint16(mi)}, nil
}

// Current returns the parsed API version.
func Current() APIVersion {
	v, _ := Parse(API)
	return v
}

// String returns the version as "major.minor".
func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v APIVersion) Compatible(other APIVersion) bool {
	return v.Major == other.Major
}

// CheckClient reports whether a client requesting the given version can be
// served. An empty request is always accepted.
func CheckClient(requested string) error {
	if requested == "" {
		return nil
	}
	v, err := Parse(requested)
	if err != nil {
		return err
	}
	if !Current().Compatible(v) {
		return fmt.Errorf("api version %s not supported (server speaks %s)", v, API)
	}
	return nil
}
