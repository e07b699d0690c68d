package device

import "math"

// Rotator tracking thresholds in degrees.
const (
	// MovementThreshold is the azimuth change between polls above which
	// the rotator is reported as moving.
	MovementThreshold = 0.5

	// TargetTolerance is the distance to the target below which the
	// target counts as reached.
	TargetTolerance = 2.0
)

// NormalizeAzimuth maps any angle into [0, 360).
// Non-finite input yields 0.
func NormalizeAzimuth(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	// -1e-15 + 360 rounds to 360; a == 0 also folds -0.
	if a >= 360 || a == 0 {
		a = 0
	}
	return a
}

// TargetAzimuth returns the azimuth a set-position command carries: deg
// rounded to 0.1 degree, then normalized.
func TargetAzimuth(deg float64) float64 {
	return NormalizeAzimuth(math.Round(deg*10) / 10)
}

// RotatorState is the last observed state of a rotctld-controlled rotator.
type RotatorState struct {
	CurrentAzimuthDeg float64  `json:"currentAzimuthDeg"`
	TargetAzimuthDeg  *float64 `json:"targetAzimuthDeg,omitempty"`
	Moving            bool     `json:"moving"`
}

// HasTarget reports whether a commanded target is pending.
func (s RotatorState) HasTarget() bool {
	return s.TargetAzimuthDeg != nil
}

// Clone returns a copy that shares no memory with s.
func (s RotatorState) Clone() RotatorState {
	if s.TargetAzimuthDeg != nil {
		target := *s.TargetAzimuthDeg
		s.TargetAzimuthDeg = &target
	}
	return s
}

// RotatorTracker holds the last observed rotator state.
type RotatorTracker struct {
	state    RotatorState
	observed bool
}

// NewRotatorTracker creates an empty tracker.
func NewRotatorTracker() *RotatorTracker {
	return &RotatorTracker{}
}

// Current returns a copy of the last observed state.
func (t *RotatorTracker) Current() RotatorState {
	return t.state.Clone()
}

// Observed reports whether at least one sample has been recorded.
func (t *RotatorTracker) Observed() bool {
	return t.observed
}

// Observe records a polled position. Only CurrentAzimuthDeg is taken
// from the sample; target and moving are derived here.
//
// The sample is a change when the azimuth moved by more than
// MovementThreshold, when the pending target was reached by it, or when
// the rotator came to rest. The first sample of a session only seeds the
// tracker.
func (t *RotatorTracker) Observe(sample RotatorState) (RotatorState, bool) {
	current := NormalizeAzimuth(sample.CurrentAzimuthDeg)
	wasMoving := t.state.Moving

	delta := 0.0
	if t.observed {
		delta = math.Abs(current - t.state.CurrentAzimuthDeg)
	}

	t.state.CurrentAzimuthDeg = current
	t.state.Moving = delta > MovementThreshold

	reached := false
	if t.state.TargetAzimuthDeg != nil && math.Abs(current-*t.state.TargetAzimuthDeg) < TargetTolerance {
		t.state.TargetAzimuthDeg = nil
		t.state.Moving = false
		reached = true
	}

	changed := t.observed && (delta > MovementThreshold || reached || t.state.Moving != wasMoving)
	t.observed = true
	return t.state.Clone(), changed
}

// Apply mutates the state on behalf of an explicit command.
// Commands always produce a reportable state.
func (t *RotatorTracker) Apply(fn func(*RotatorState)) RotatorState {
	fn(&t.state)
	return t.state.Clone()
}

// SetTarget records a commanded target and marks the rotator as moving.
// The target is the value TargetAzimuth sends to the daemon.
func SetTarget(azimuth float64) func(*RotatorState) {
	target := TargetAzimuth(azimuth)
	return func(s *RotatorState) {
		t := target
		s.TargetAzimuthDeg = &t
		s.Moving = true
	}
}

// ClearTarget drops any pending target and marks the rotator as stopped.
func ClearTarget(s *RotatorState) {
	s.TargetAzimuthDeg = nil
	s.Moving = false
}
