package device

// RadioState is the last observed state of a rigctld-controlled radio.
type RadioState struct {
	FrequencyHz  int64  `json:"frequencyHz"`
	Mode         string `json:"mode"`
	PassbandHz   int    `json:"passbandHz"`
	Transmitting bool   `json:"transmitting"`
}

// Band returns the amateur band containing the current frequency.
func (s RadioState) Band() string {
	return BandForFrequency(s.FrequencyHz)
}

// differs reports a material difference between two radio states.
// Passband is deliberately excluded.
func (s RadioState) differs(other RadioState) bool {
	return s.FrequencyHz != other.FrequencyHz ||
		s.Mode != other.Mode ||
		s.Transmitting != other.Transmitting
}

// RadioTracker holds the last observed radio state.
type RadioTracker struct {
	state    RadioState
	observed bool
}

// NewRadioTracker creates an empty tracker.
func NewRadioTracker() *RadioTracker {
	return &RadioTracker{}
}

// Current returns the last observed state.
func (t *RadioTracker) Current() RadioState {
	return t.state
}

// Observed reports whether at least one sample has been recorded.
func (t *RadioTracker) Observed() bool {
	return t.observed
}

// Observe records a polled sample and reports whether it differs
// materially from the previous one. The first sample only seeds the
// tracker and is never reported as a change.
func (t *RadioTracker) Observe(sample RadioState) (RadioState, bool) {
	changed := t.observed && sample.differs(t.state)
	t.state = sample
	t.observed = true
	return t.state, changed
}

// Apply mutates the state on behalf of an explicit command.
// Commands always produce a reportable state.
func (t *RadioTracker) Apply(fn func(*RadioState)) RadioState {
	fn(&t.state)
	return t.state
}
