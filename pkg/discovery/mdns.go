package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// Advertise registers the API service.
func (a *MDNSAdvertiser) Advertise(_ context.Context, info *APIInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(a.config.TTL))
	}

	server, err := zeroconf.Register(
		info.instanceName(),
		ServiceTypeHamctl,
		Domain,
		info.Port,
		TXTRecordsToStrings(EncodeAPITXT(info)),
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register API service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the API service.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	stopped bool
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Browse searches for daemons of the given kind. Services are aggregated
// by instance name; addresses from multiple interfaces are combined into a
// single entry.
func (b *MDNSBrowser) Browse(ctx context.Context, kind device.Kind) (<-chan Update, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrBrowserStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	raw := make(chan *zeroconf.ServiceEntry)
	rawRemoved := make(chan *zeroconf.ServiceEntry)
	entries := make(chan ServiceEntry)
	removed := make(chan ServiceEntry)
	out := make(chan Update)

	go aggregate(ctx, kind, entries, removed, out)
	go forward(ctx, raw, entries)
	go forward(ctx, rawRemoved, removed)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeFor(kind), Domain, raw, rawRemoved, opts...)
	}()

	return out, nil
}

// Stop ends all browse operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// forward converts zeroconf entries until in is closed or ctx ends, then
// closes out.
func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- ServiceEntry) {
	defer close(out)
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return
			}
			if e == nil {
				continue
			}
			select {
			case out <- fromZeroconf(e):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func fromZeroconf(e *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance:  e.Instance,
		Host:      e.HostName,
		Port:      e.Port,
		Addresses: addrs,
		Text:      e.Text,
	}
}

// interfaces returns the named interface, or nil for all interfaces.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
