package supervisor

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/log4ym/hamctl-go/internal/hamlibtest"
	"github.com/log4ym/hamctl-go/pkg/connection"
	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/settings"
)

const waitTimeout = 3 * time.Second

type recorder struct {
	mu     sync.Mutex
	events []event.Event
	ch     chan event.Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan event.Event, 1024)}
}

func (r *recorder) Emit(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.ch <- e:
	default:
	}
}

func (r *recorder) count(typ event.Type) int {
	return r.countMatching(isType(typ))
}

func (r *recorder) countMatching(match func(event.Event) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if match(e) {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ event.Type) (event.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return event.Event{}, false
}

// waitFor consumes events until one matches.
func (r *recorder) waitFor(t *testing.T, desc string, match func(event.Event) bool) event.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-r.ch:
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
			return event.Event{}
		}
	}
}

func connState(state connection.State) func(event.Event) bool {
	return func(e event.Event) bool {
		return e.ConnectionState != nil && e.ConnectionState.State == state.String()
	}
}

func isType(typ event.Type) func(event.Event) bool {
	return func(e event.Event) bool { return e.Type == typ }
}

func testBackoff() *connection.Backoff {
	return connection.NewBackoffWithConfig(connection.BackoffConfig{
		Initial: 20 * time.Millisecond,
		Max:     100 * time.Millisecond,
	})
}

func startRadio(t *testing.T, src settings.Source, sink event.Sink) *Radio {
	t.Helper()
	cfg := RadioConfig(FromSource(src, device.KindRadio))
	cfg.Sink = sink
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.DialTimeout = time.Second
	cfg.DisabledInterval = 50 * time.Millisecond
	cfg.Backoff = testBackoff()

	sup := New(cfg)
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(sup.Stop)
	return sup
}

func startRotator(t *testing.T, src settings.Source, sink event.Sink) *Rotator {
	t.Helper()
	cfg := RotatorConfig(FromSource(src, device.KindRotator))
	cfg.Sink = sink
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.DialTimeout = time.Second
	cfg.DisabledInterval = 50 * time.Millisecond
	cfg.Backoff = testBackoff()

	sup := New(cfg)
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(sup.Stop)
	return sup
}

func radioSettings(host string, port int) *settings.MemorySource {
	snap := settings.Defaults()
	snap.Radio = settings.Device{Enabled: true, Host: host, Port: port, Name: "test rig"}
	return settings.NewMemorySource(snap)
}

func rotatorSettings(host string, port int) *settings.MemorySource {
	snap := settings.Defaults()
	snap.Rotator = settings.Device{Enabled: true, Host: host, Port: port, PollIntervalMs: 30}
	return settings.NewMemorySource(snap)
}

func TestRadioInitialPollIsReported(t *testing.T) {
	rig := hamlibtest.NewRig(t)
	rec := newRecorder()
	sup := startRadio(t, radioSettings(rig.Host(), rig.Port()), rec)

	rec.waitFor(t, "connected", connState(connection.StateConnected))
	disc := rec.waitFor(t, "device discovered", isType(event.TypeDeviceDiscovered))
	assert.Equal(t, "test rig", disc.Discovered.Name)

	e := rec.waitFor(t, "initial radio state", isType(event.TypeRadioStateChanged))
	assert.Equal(t, int64(14250000), e.Radio.FrequencyHz)
	assert.Equal(t, "USB", e.Radio.Mode)
	assert.Equal(t, "20m", e.Radio.Band)

	state, err := sup.ConnectionState()
	assert.Equal(t, connection.StateConnected, state)
	assert.NoError(t, err)
	assert.Equal(t, int64(14250000), sup.State().FrequencyHz)
	assert.Equal(t, "hamlib-"+rig.Addr(), sup.DeviceID())
}

func TestRadioReportsOnlyMaterialChanges(t *testing.T) {
	rig := hamlibtest.NewRig(t)
	rec := newRecorder()
	startRadio(t, radioSettings(rig.Host(), rig.Port()), rec)

	rec.waitFor(t, "initial radio state", isType(event.TypeRadioStateChanged))

	// Passband alone never counts.
	rig.SetMode("USB", 3000)
	time.Sleep(700 * time.Millisecond)
	assert.Equal(t, 1, rec.count(event.TypeRadioStateChanged))

	rig.SetFrequency(14250001)
	e := rec.waitFor(t, "frequency change", isType(event.TypeRadioStateChanged))
	assert.Equal(t, int64(14250001), e.Radio.FrequencyHz)

	rig.SetPTT(true)
	e = rec.waitFor(t, "ptt change", isType(event.TypeRadioStateChanged))
	assert.True(t, e.Radio.Transmitting)
}

func TestRadioRejectedPollKeepsSession(t *testing.T) {
	rig := hamlibtest.NewRig(t)
	rig.RejectCommand("t", -11)
	rec := newRecorder()
	sup := startRadio(t, radioSettings(rig.Host(), rig.Port()), rec)

	e := rec.waitFor(t, "initial radio state", isType(event.TypeRadioStateChanged))
	assert.Equal(t, int64(14250000), e.Radio.FrequencyHz)
	assert.False(t, e.Radio.Transmitting)

	time.Sleep(600 * time.Millisecond)
	state, _ := sup.ConnectionState()
	assert.Equal(t, connection.StateConnected, state)
	assert.Equal(t, 1, rig.Accepted())
}

func TestRadioReconnectsAfterConnectionLoss(t *testing.T) {
	rig := hamlibtest.NewRig(t)
	rec := newRecorder()
	startRadio(t, radioSettings(rig.Host(), rig.Port()), rec)

	rec.waitFor(t, "connected", connState(connection.StateConnected))
	rec.waitFor(t, "initial radio state", isType(event.TypeRadioStateChanged))

	rig.DropConnections()

	rec.waitFor(t, "disconnected", connState(connection.StateDisconnected))
	rec.waitFor(t, "reconnected", connState(connection.StateConnected))
	rec.waitFor(t, "fresh state after reconnect", isType(event.TypeRadioStateChanged))

	assert.GreaterOrEqual(t, rig.Accepted(), 2)
	assert.Equal(t, 1, rec.count(event.TypeDeviceDiscovered), "discovery is announced once")
}

func TestConnectFailureReportsErrorAndRetries(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	rec := newRecorder()
	sup := startRadio(t, radioSettings("127.0.0.1", port), rec)

	e := rec.waitFor(t, "error state", connState(connection.StateError))
	assert.NotEmpty(t, e.ConnectionState.Error)
	rec.waitFor(t, "second attempt", connState(connection.StateConnecting))
	rec.waitFor(t, "second error", connState(connection.StateError))

	state, stateErr := sup.ConnectionState()
	assert.Equal(t, connection.StateError, state)
	assert.ErrorIs(t, stateErr, connection.ErrConnectFailure)
	assert.Equal(t, 0, rec.count(event.TypeDeviceDiscovered))
}

func TestSettingsApplyDuringBackoff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	rig := hamlibtest.NewRig(t)
	src := radioSettings("127.0.0.1", deadPort)
	rec := newRecorder()

	cfg := RadioConfig(FromSource(src, device.KindRadio))
	cfg.Sink = rec
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.DialTimeout = time.Second
	cfg.DisabledInterval = 20 * time.Millisecond
	cfg.Backoff = connection.NewBackoffWithConfig(connection.BackoffConfig{Initial: time.Minute})
	sup := New(cfg)
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(sup.Stop)

	rec.waitFor(t, "first failure", connState(connection.StateError))

	require.NoError(t, src.Update(func(s *settings.Snapshot) { s.Radio.Enabled = false }))
	rec.waitFor(t, "disabled while backing off", connState(connection.StateDisconnected))

	require.NoError(t, src.Update(func(s *settings.Snapshot) {
		s.Radio.Enabled = true
		s.Radio.Port = rig.Port()
	}))
	rec.waitFor(t, "connected to corrected endpoint", connState(connection.StateConnected))
	assert.Equal(t, "hamlib-"+rig.Addr(), sup.DeviceID())
}

func TestEndpointFixDuringBackoff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	rig := hamlibtest.NewRig(t)
	src := radioSettings("127.0.0.1", deadPort)
	rec := newRecorder()

	cfg := RadioConfig(FromSource(src, device.KindRadio))
	cfg.Sink = rec
	cfg.DialTimeout = time.Second
	cfg.DisabledInterval = 20 * time.Millisecond
	cfg.Backoff = connection.NewBackoffWithConfig(connection.BackoffConfig{Initial: time.Minute})
	sup := New(cfg)
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(sup.Stop)

	rec.waitFor(t, "first failure", connState(connection.StateError))
	require.NoError(t, src.Update(func(s *settings.Snapshot) { s.Radio.Port = rig.Port() }))

	rec.waitFor(t, "connected without waiting out the backoff", connState(connection.StateConnected))
	assert.Equal(t, 1, rec.countMatching(connState(connection.StateError)))
}

func TestDisabledDisconnectsAndReEnables(t *testing.T) {
	rig := hamlibtest.NewRig(t)
	src := radioSettings(rig.Host(), rig.Port())
	rec := newRecorder()
	startRadio(t, src, rec)

	rec.waitFor(t, "connected", connState(connection.StateConnected))

	require.NoError(t, src.Update(func(s *settings.Snapshot) { s.Radio.Enabled = false }))
	rec.waitFor(t, "disconnected", connState(connection.StateDisconnected))

	require.NoError(t, src.Update(func(s *settings.Snapshot) { s.Radio.Enabled = true }))
	rec.waitFor(t, "reconnected", connState(connection.StateConnected))
	assert.Eventually(t, func() bool { return rig.Accepted() == 2 }, waitTimeout, 10*time.Millisecond)
}

func TestEndpointChangeReconnects(t *testing.T) {
	first := hamlibtest.NewRig(t)
	second := hamlibtest.NewRig(t)
	second.SetFrequency(7074000)

	src := radioSettings(first.Host(), first.Port())
	rec := newRecorder()
	sup := startRadio(t, src, rec)

	rec.waitFor(t, "initial state", isType(event.TypeRadioStateChanged))

	require.NoError(t, src.Update(func(s *settings.Snapshot) { s.Radio.Port = second.Port() }))

	e := rec.waitFor(t, "state from new endpoint", func(e event.Event) bool {
		return e.Radio != nil && e.Radio.FrequencyHz == 7074000
	})
	assert.Equal(t, "hamlib-"+second.Addr(), e.DeviceID)
	assert.Equal(t, "hamlib-"+second.Addr(), sup.DeviceID())
	assert.Equal(t, 1, second.Accepted())
}

func TestRotatorSetTargetAndClear(t *testing.T) {
	rot := hamlibtest.NewRotator(t)
	rot.SetAzimuth(85)
	rec := newRecorder()
	sup := startRotator(t, rotatorSettings(rot.Host(), rot.Port()), rec)

	e := rec.waitFor(t, "initial position", isType(event.TypeRotatorPositionChanged))
	assert.InDelta(t, 85.0, e.Rotator.CurrentAzimuthDeg, 0.001)

	require.NoError(t, sup.Submit(context.Background(), SetTarget(90)))
	assert.Equal(t, []float64{90}, rot.Targets())

	e = rec.waitFor(t, "target event", isType(event.TypeRotatorPositionChanged))
	require.NotNil(t, e.Rotator.TargetAzimuthDeg)
	assert.InDelta(t, 90.0, *e.Rotator.TargetAzimuthDeg, 0.001)
	assert.True(t, e.Rotator.Moving)

	rot.SetAzimuth(89.5)
	e = rec.waitFor(t, "target reached", func(e event.Event) bool {
		return e.Rotator != nil && e.Rotator.TargetAzimuthDeg == nil
	})
	assert.InDelta(t, 89.5, e.Rotator.CurrentAzimuthDeg, 0.001)
	assert.False(t, e.Rotator.Moving)
	assert.False(t, sup.State().HasTarget())
}

func TestRotatorReportsComingToRest(t *testing.T) {
	rot := hamlibtest.NewRotator(t)
	rot.SetAzimuth(10)
	rec := newRecorder()
	sup := startRotator(t, rotatorSettings(rot.Host(), rot.Port()), rec)

	rec.waitFor(t, "initial position", isType(event.TypeRotatorPositionChanged))

	rot.SetAzimuth(50)
	e := rec.waitFor(t, "movement", isType(event.TypeRotatorPositionChanged))
	assert.True(t, e.Rotator.Moving)
	assert.InDelta(t, 50.0, e.Rotator.CurrentAzimuthDeg, 0.001)

	e = rec.waitFor(t, "at rest", isType(event.TypeRotatorPositionChanged))
	assert.False(t, e.Rotator.Moving)
	assert.InDelta(t, 50.0, e.Rotator.CurrentAzimuthDeg, 0.001)

	// Idle polls stay quiet once the rest was reported.
	time.Sleep(15 * 30 * time.Millisecond)
	last, ok := rec.last(event.TypeRotatorPositionChanged)
	require.True(t, ok)
	assert.False(t, last.Rotator.Moving)
	assert.False(t, sup.State().Moving)
	assert.Equal(t, 3, rec.count(event.TypeRotatorPositionChanged))
}

func TestRotatorPollIntervalChangeKeepsSession(t *testing.T) {
	rot := hamlibtest.NewRotator(t)
	src := rotatorSettings(rot.Host(), rot.Port())
	rec := newRecorder()
	startRotator(t, src, rec)

	rec.waitFor(t, "initial position", isType(event.TypeRotatorPositionChanged))

	before := rot.CountCommand("p")
	time.Sleep(300 * time.Millisecond)
	fast := rot.CountCommand("p") - before

	require.NoError(t, src.Update(func(s *settings.Snapshot) { s.Rotator.PollIntervalMs = 150 }))
	// Let the cycle scheduled at the old interval pass.
	time.Sleep(60 * time.Millisecond)

	before = rot.CountCommand("p")
	time.Sleep(600 * time.Millisecond)
	slow := rot.CountCommand("p") - before

	assert.GreaterOrEqual(t, fast, 5, "30 ms interval")
	assert.LessOrEqual(t, slow, 6, "150 ms interval")
	assert.GreaterOrEqual(t, slow, 2, "still polling")
	assert.Equal(t, 1, rot.Accepted())
	assert.Equal(t, 0, rec.countMatching(connState(connection.StateDisconnected)))
}

func TestRotatorStop(t *testing.T) {
	rot := hamlibtest.NewRotator(t)
	rec := newRecorder()
	sup := startRotator(t, rotatorSettings(rot.Host(), rot.Port()), rec)

	rec.waitFor(t, "initial position", isType(event.TypeRotatorPositionChanged))
	require.NoError(t, sup.Submit(context.Background(), SetTarget(180)))
	require.NoError(t, sup.Submit(context.Background(), Stop()))

	assert.Equal(t, 1, rot.Stops())
	assert.False(t, sup.State().HasTarget())
	assert.False(t, sup.State().Moving)
}

func TestRotatorRejectedTargetIsNotApplied(t *testing.T) {
	rot := hamlibtest.NewRotator(t)
	rot.RejectSetPosition(-8)
	rec := newRecorder()
	sup := startRotator(t, rotatorSettings(rot.Host(), rot.Port()), rec)

	rec.waitFor(t, "initial position", isType(event.TypeRotatorPositionChanged))

	err := sup.Submit(context.Background(), SetTarget(45))
	assert.ErrorIs(t, err, connection.ErrDaemonRejected)
	assert.False(t, sup.State().HasTarget())

	state, _ := sup.ConnectionState()
	assert.Equal(t, connection.StateConnected, state)
}

func TestSubmitWhileDisconnected(t *testing.T) {
	src := settings.NewMemorySource(settings.Defaults())
	sup := startRotator(t, src, nil)

	err := sup.Submit(context.Background(), SetTarget(45))
	assert.ErrorIs(t, err, connection.ErrNotConnected)
}

func TestSubmitAfterStop(t *testing.T) {
	sup := New(RotatorConfig(Static(settings.Device{})))
	require.NoError(t, sup.Start(context.Background()))
	sup.Stop()

	err := sup.Submit(context.Background(), Stop())
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, sup.Start(context.Background()), ErrAlreadyRunning)
}

func TestStopDisconnects(t *testing.T) {
	rig := hamlibtest.NewRig(t)
	rec := newRecorder()
	sup := startRadio(t, radioSettings(rig.Host(), rig.Port()), rec)

	rec.waitFor(t, "connected", connState(connection.StateConnected))
	sup.Stop()

	rec.waitFor(t, "disconnected", connState(connection.StateDisconnected))
	select {
	case <-sup.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestStaticSettings(t *testing.T) {
	dev := settings.Device{Enabled: true, Host: "h", Port: 1}
	got, err := Static(dev)()
	require.NoError(t, err)
	assert.Equal(t, dev, got)
}
