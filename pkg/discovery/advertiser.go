package discovery

import "context"

// Advertiser announces hamctl's API on the network.
type Advertiser interface {
	// Advertise starts announcing the API, replacing any earlier
	// announcement.
	Advertise(ctx context.Context, info *APIInfo) error

	// Stop withdraws the announcement.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the record TTL. Zero uses the library default.
	TTL uint32
}
