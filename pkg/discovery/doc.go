// Package discovery finds Hamlib daemons on the local network and
// announces hamctl's own API, both over mDNS/DNS-SD.
//
// # Daemon Discovery
//
// rigctld and rotctld do not advertise themselves, but many shack setups
// publish them with avahi service files:
//
//	_rigctld._tcp   radio control daemon (default port 4532)
//	_rotctld._tcp   rotator control daemon (default port 4533)
//
// An optional TXT record "name=<label>" gives the device a display name.
// Entries seen on several interfaces are merged into one service; a service
// is reported removed once its last address disappears.
//
// # API Advertising
//
// hamctl registers its WebSocket/HTTP API as _hamctl._tcp so log clients
// can find it. TXT records carry the API version and path.
package discovery
