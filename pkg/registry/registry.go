// Package registry provides a concurrency-safe map from device ID to the
// object that owns the device, typically a supervisor.
package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrExists is returned by Add when the key is already registered.
var ErrExists = errors.New("already registered")

// Entry is one key/value pair returned by List.
type Entry[V any] struct {
	Key   string
	Value V
}

// Registry maps keys to values. The zero value is not usable; call New.
type Registry[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New creates an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{items: make(map[string]V)}
}

// Add registers v under key unless key is taken.
func (r *Registry[V]) Add(key string, v V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; ok {
		return ErrExists
	}
	r.items[key] = v
	return nil
}

// Remove deletes key and returns the value it held.
func (r *Registry[V]) Remove(key string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[key]
	if ok {
		delete(r.items, key)
	}
	return v, ok
}

// Get returns the value registered under key.
func (r *Registry[V]) Get(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

// List returns a snapshot of all entries sorted by key.
func (r *Registry[V]) List() []Entry[V] {
	r.mu.RLock()
	out := make([]Entry[V], 0, len(r.items))
	for k, v := range r.items {
		out = append(out, Entry[V]{Key: k, Value: v})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Values returns a snapshot of all values sorted by key.
func (r *Registry[V]) Values() []V {
	entries := r.List()
	out := make([]V, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Len returns the number of registered entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear removes and returns every value.
func (r *Registry[V]) Clear() []V {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]V, 0, len(r.items))
	for k, v := range r.items {
		out = append(out, v)
		delete(r.items, k)
	}
	return out
}
