package hamlibtest

import (
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Rotator is a fake rotctld. It reports a settable azimuth on "p" and
// records targets from "P" and stops from "S". It never moves on its own.
type Rotator struct {
	*Server

	mu        sync.Mutex
	azimuth   float64
	elevation float64
	targets   []float64
	stops     int
	reject    int
}

// NewRotator starts a fake rotctld pointing at azimuth 0.
func NewRotator(t testing.TB) *Rotator {
	r := &Rotator{}
	r.Server = NewServer(t, r.handle)
	return r
}

// SetAzimuth sets the azimuth reported by "p".
func (r *Rotator) SetAzimuth(az float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.azimuth = az
}

// Targets returns every azimuth received via "P".
func (r *Rotator) Targets() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.targets...)
}

// Stops returns how many "S" commands were received.
func (r *Rotator) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// RejectSetPosition makes "P" answer with code. Zero accepts again.
func (r *Rotator) RejectSetPosition(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reject = code
}

func (r *Rotator) handle(cmd string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return Reject(-1)
	}
	switch fields[0] {
	case "p":
		return OK(ftoa(r.azimuth), ftoa(r.elevation))
	case "P":
		if r.reject != 0 {
			return Reject(r.reject)
		}
		if len(fields) < 2 {
			return Reject(-1)
		}
		az, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Reject(-1)
		}
		r.targets = append(r.targets, az)
		return OK()
	case "S":
		r.stops++
		return OK()
	default:
		return Reject(-4)
	}
}
