package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/log"
)

var base = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func writeCapture(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.hlog")
	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func intPtr(v int) *int { return &v }

// radioSession is a connect, one poll of "f", a rejected "m" and a drop.
func radioSession() []log.Event {
	common := log.Event{
		ConnectionID: "0b1c2d3e-aaaa-bbbb-cccc-000000000001",
		DeviceKind:   device.KindRadio,
		RemoteAddr:   "127.0.0.1:4532",
		DeviceID:     "hamlib-127.0.0.1:4532",
	}
	at := func(ms int, e log.Event) log.Event {
		e.Timestamp = base.Add(time.Duration(ms) * time.Millisecond)
		e.ConnectionID = common.ConnectionID
		e.DeviceKind = common.DeviceKind
		e.RemoteAddr = common.RemoteAddr
		e.DeviceID = common.DeviceID
		return e
	}
	return []log.Event{
		at(0, log.Event{Layer: log.LayerTransport, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "CONNECTING", NewState: "CONNECTED"}}),
		at(1, log.Event{Layer: log.LayerProtocol, Category: log.CategoryMessage, Direction: log.DirectionOut,
			Line: &log.LineEvent{Text: "f"}}),
		at(2, log.Event{Layer: log.LayerProtocol, Category: log.CategoryMessage, Direction: log.DirectionIn,
			Line: &log.LineEvent{Text: "14074000", Command: "f"}}),
		at(3, log.Event{Layer: log.LayerProtocol, Category: log.CategoryMessage, Direction: log.DirectionIn,
			Line: &log.LineEvent{Text: "RPRT 0", Command: "f", Report: intPtr(0)}}),
		at(4, log.Event{Layer: log.LayerProtocol, Category: log.CategoryMessage, Direction: log.DirectionOut,
			Line: &log.LineEvent{Text: "m"}}),
		at(5, log.Event{Layer: log.LayerProtocol, Category: log.CategoryMessage, Direction: log.DirectionIn,
			Line: &log.LineEvent{Text: "RPRT -11", Command: "m", Report: intPtr(-11)}}),
		at(6, log.Event{Layer: log.LayerProtocol, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerProtocol, Message: "daemon rejected \"m\": RPRT -11", Code: intPtr(-11), Context: "m"}}),
		at(1500, log.Event{Layer: log.LayerTransport, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "CONNECTED", NewState: "DISCONNECTED", Reason: "connection lost"}}),
	}
}

func rotatorDialFailure() log.Event {
	return log.Event{
		Timestamp:  base.Add(2 * time.Second),
		Layer:      log.LayerTransport,
		Category:   log.CategoryError,
		DeviceKind: device.KindRotator,
		RemoteAddr: "10.0.0.5:4533",
		DeviceID:   "rotator-10.0.0.5:4533",
		Error:      &log.ErrorEventData{Layer: log.LayerTransport, Message: "connect failure: refused", Context: "dial"},
	}
}
