package hamlib

import (
	"fmt"
	"math"
	"strconv"

	"github.com/log4ym/hamctl-go/pkg/device"
)

// rotctld commands used by the rotator codec.
const (
	CmdGetPos = "p"
	CmdStop   = "S"
)

// RotatorCodec speaks the rotctld dialect.
type RotatorCodec struct{}

// PollCommands returns the position query.
func (RotatorCodec) PollCommands() []string {
	return []string{CmdGetPos}
}

// Decode applies one rotctld response to state.
// The elevation line is ignored; only azimuth-only rotators are supported.
func (RotatorCodec) Decode(cmd string, lines []string, state *device.RotatorState) {
	if cmd != CmdGetPos {
		return
	}
	az, err := strconv.ParseFloat(line(lines, 0), 64)
	if err == nil && !math.IsNaN(az) && !math.IsInf(az, 0) {
		state.CurrentAzimuthDeg = device.NormalizeAzimuth(az)
	}
}

// SetPosition encodes a set-position command with elevation pinned to 0.
func (RotatorCodec) SetPosition(azimuth float64) string {
	return fmt.Sprintf("P %.1f 0", device.TargetAzimuth(azimuth))
}

// Stop encodes the stop command.
func (RotatorCodec) Stop() string {
	return CmdStop
}

var _ Codec[device.RotatorState] = RotatorCodec{}
