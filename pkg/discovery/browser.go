package discovery

import (
	"context"
	"errors"
	"strings"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// ErrBrowserStopped is returned by Browse after Stop.
var ErrBrowserStopped = errors.New("browser stopped")

// Update reports a daemon appearing or disappearing.
type Update struct {
	Service *DaemonService
	Removed bool
}

// Browser finds Hamlib daemons.
type Browser interface {
	// Browse reports daemons of the given kind until ctx is cancelled or
	// Stop is called, then closes the channel.
	Browse(ctx context.Context, kind device.Kind) (<-chan Update, error)

	// Stop ends all active browse operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// ServiceEntry is one raw mDNS answer, independent of the mDNS library.
type ServiceEntry struct {
	Instance  string
	Service   string
	Domain    string
	Host      string
	Port      int
	Addresses []string
	Text      []string
}

// ToDaemonService converts the entry into a daemon of the given kind.
// Entries without a port are rejected.
func (e *ServiceEntry) ToDaemonService(kind device.Kind) (*DaemonService, bool) {
	if e.Port <= 0 || e.Port > 65535 {
		return nil, false
	}
	name := StringsToTXTRecords(e.Text)[TXTKeyName]
	if name == "" {
		name = e.Instance
	}
	return &DaemonService{
		InstanceName: e.Instance,
		Kind:         kind,
		Host:         strings.TrimSuffix(e.Host, "."),
		Port:         e.Port,
		Addresses:    append([]string(nil), e.Addresses...),
		Name:         name,
	}, true
}

// aggregate merges entries by instance name and forwards additions and
// final removals to out. It closes out when entries is closed or ctx ends.
func aggregate(ctx context.Context, kind device.Kind, entries, removed <-chan ServiceEntry, out chan<- Update) {
	defer close(out)

	services := make(map[string]*DaemonService)
	send := func(u Update) bool {
		select {
		case out <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, valid := entry.ToDaemonService(kind)
			if !valid {
				continue
			}
			if existing, found := services[svc.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			if !send(Update{Service: copyService(svc)}) {
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			existing, found := services[entry.Instance]
			if !found {
				continue
			}
			// An entry without addresses withdraws the whole service.
			if len(entry.Addresses) == 0 {
				existing.Addresses = nil
			} else {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addresses)
			}
			if len(existing.Addresses) == 0 {
				delete(services, entry.Instance)
				if !send(Update{Service: copyService(existing), Removed: true}) {
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func copyService(s *DaemonService) *DaemonService {
	c := *s
	c.Addresses = append([]string(nil), s.Addresses...)
	return &c
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses returns addresses without any of gone.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
