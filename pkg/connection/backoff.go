package connection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Reconnect pacing defaults.
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 30 * time.Second

	// DefaultJitter is the random extra NewBackoff adds, as a fraction of
	// the delay.
	DefaultJitter = 0.25
)

// BackoffConfig tunes a Backoff. Zero Initial and Max take the defaults;
// zero Jitter adds none.
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// Backoff paces reconnect attempts to one daemon. Every failed connect
// doubles the delay, from Initial up to Max. A successful connect resets it.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	failures int
}

// NewBackoff returns a backoff running from 1 s to 30 s with jitter.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Jitter: DefaultJitter})
}

// NewBackoffWithConfig returns a backoff with custom pacing.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = max(MaxBackoff, cfg.Initial)
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{cfg: cfg}
}

// Next records a failed connect and returns how long to wait before the
// next attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.cfg.Initial
	for i := 0; i < b.failures && d < b.cfg.Max; i++ {
		d *= 2
	}
	d = min(d, b.cfg.Max)
	b.failures++

	if b.cfg.Jitter > 0 {
		d += time.Duration(float64(d) * b.cfg.Jitter * rand.Float64())
	}
	return d
}

// Failures returns the number of failed connects since the last Reset.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}
