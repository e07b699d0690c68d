package hamlib

import (
	"strconv"
	"strings"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// rigctld commands used by the radio codec.
const (
	CmdGetFreq = "f"
	CmdGetMode = "m"
	CmdGetPTT  = "t"
)

// RadioCodec speaks the rigctld dialect.
type RadioCodec struct{}

// PollCommands returns frequency, mode and PTT queries.
func (RadioCodec) PollCommands() []string {
	return []string{CmdGetFreq, CmdGetMode, CmdGetPTT}
}

// Decode applies one rigctld response to state.
func (RadioCodec) Decode(cmd string, lines []string, state *device.RadioState) {
	switch cmd {
	case CmdGetFreq:
		// Some backends report "14250000.000000".
		if hz, ok := parseHz(line(lines, 0)); ok {
			state.FrequencyHz = hz
		}
	case CmdGetMode:
		if mode := strings.ToUpper(line(lines, 0)); mode != "" {
			state.Mode = mode
		}
		if pb, err := strconv.Atoi(line(lines, 1)); err == nil {
			state.PassbandHz = pb
		}
	case CmdGetPTT:
		if ptt, err := strconv.Atoi(line(lines, 0)); err == nil {
			state.Transmitting = ptt != 0
		}
	}
}

func parseHz(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if hz, err := strconv.ParseInt(s, 10, 64); err == nil {
		return hz, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f + 0.5), true
}

var _ Codec[device.RadioState] = RadioCodec{}
