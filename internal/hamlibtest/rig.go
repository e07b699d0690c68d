package hamlibtest

import (
	"strconv"
	"sync"
	"testing"
)

// Rig is a fake rigctld answering f, m and t with settable values.
type Rig struct {
	*Server

	mu         sync.Mutex
	frequency  string
	mode       string
	passband   string
	ptt        string
	rejections map[string]int
}

// NewRig starts a fake rigctld tuned to 14.250 MHz USB.
func NewRig(t testing.TB) *Rig {
	r := &Rig{
		frequency:  "14250000",
		mode:       "USB",
		passband:   "2400",
		ptt:        "0",
		rejections: make(map[string]int),
	}
	r.Server = NewServer(t, r.handle)
	return r
}

// SetFrequency sets the frequency reported by "f".
func (r *Rig) SetFrequency(hz int64) {
	r.SetRawFrequency(strconv.FormatInt(hz, 10))
}

// SetRawFrequency sets the literal "f" response line.
func (r *Rig) SetRawFrequency(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frequency = line
}

// SetMode sets the mode and passband reported by "m".
func (r *Rig) SetMode(mode string, passbandHz int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	r.passband = strconv.Itoa(passbandHz)
}

// SetPTT sets the transmit flag reported by "t".
func (r *Rig) SetPTT(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.ptt = "1"
	} else {
		r.ptt = "0"
	}
}

// RejectCommand makes cmd answer with the given non-zero report code.
// Code zero clears the rejection.
func (r *Rig) RejectCommand(cmd string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code == 0 {
		delete(r.rejections, cmd)
		return
	}
	r.rejections[cmd] = code
}

func (r *Rig) handle(cmd string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.rejections[cmd]; ok {
		return Reject(code)
	}
	switch cmd {
	case "f":
		return OK(r.frequency)
	case "m":
		return OK(r.mode, r.passband)
	case "t":
		return OK(r.ptt)
	default:
		return Reject(-4)
	}
}
