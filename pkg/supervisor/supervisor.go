package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/log4ym/hamctl-go/pkg/connection"
	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/hamlib"
	"github.com/log4ym/hamctl-go/pkg/log"
	"github.com/log4ym/hamctl-go/pkg/settings"
)

// DisabledInterval is the cycle length while the device is disabled.
const DisabledInterval = 5 * time.Second

// Supervisor errors.
var (
	ErrStopped        = errors.New("supervisor stopped")
	ErrAlreadyRunning = errors.New("supervisor already running")
)

// Tracker decides which polled states are worth reporting.
// device.RadioTracker and device.RotatorTracker implement it.
type Tracker[S any] interface {
	Current() S
	Observe(sample S) (S, bool)
	Apply(fn func(*S)) S
}

// Command is an external request executed on the session goroutine.
type Command[S any] struct {
	// Line is sent to the daemon. Empty means no daemon round trip.
	Line string

	// Apply updates the tracked state after Line succeeded. Optional.
	Apply func(*S)
}

// SettingsFunc returns the current configuration of the device.
type SettingsFunc func() (settings.Device, error)

// Config configures a Supervisor.
type Config[S any] struct {
	// Kind is the device class the supervisor drives.
	Kind device.Kind

	// Codec speaks the daemon dialect.
	Codec hamlib.Codec[S]

	// NewTracker returns a fresh tracker for every new connection.
	NewTracker func() Tracker[S]

	// StateEvent converts a state into its change event.
	StateEvent func(deviceID string, state S) event.Event

	// Settings is read at the start of every cycle.
	Settings SettingsFunc

	// Interval returns the poll interval for the given settings.
	Interval func(settings.Device) time.Duration

	// DisabledInterval is the cycle length while disabled. Zero means
	// DisabledInterval.
	DisabledInterval time.Duration

	// DialTimeout and ReadTimeout are passed to the session.
	DialTimeout time.Duration
	ReadTimeout time.Duration

	// Backoff paces reconnects after failed connects. Nil means the
	// connection package defaults. Settings are still re-read every
	// DisabledInterval while waiting for the next attempt.
	Backoff *connection.Backoff

	// Sink receives all events. Nil discards them.
	Sink event.Sink

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger records session traffic. Nil disables capture.
	ProtocolLogger log.Logger
}

type request[S any] struct {
	cmd   Command[S]
	reply chan error
}

// Supervisor owns one device session: it keeps it connected according to
// the settings, polls it on schedule and reports material changes.
// All socket traffic happens on the goroutine running Run.
type Supervisor[S any] struct {
	cfg     Config[S]
	sink    event.Sink
	logger  *slog.Logger
	backoff *connection.Backoff

	requests chan request[S]
	done     chan struct{}

	// Owned by the Run goroutine.
	session   *connection.Session
	tracker   Tracker[S]
	last      settings.Device
	lastErr   string
	announced bool
	retryAt   time.Time

	mu        sync.RWMutex
	claimed   bool
	identity  device.Identity
	state     S
	connState connection.State
	connErr   error
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a supervisor. It does nothing until Start or Run is called.
func New[S any](cfg Config[S]) *Supervisor[S] {
	if cfg.DisabledInterval <= 0 {
		cfg.DisabledInterval = DisabledInterval
	}
	if cfg.Interval == nil {
		cfg.Interval = func(settings.Device) time.Duration { return settings.DefaultRotatorPollInterval }
	}
	if cfg.Sink == nil {
		cfg.Sink = event.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = connection.NewBackoff()
	}

	s := &Supervisor[S]{
		cfg:      cfg,
		sink:     cfg.Sink,
		logger:   cfg.Logger.With("kind", cfg.Kind.String()),
		backoff:  backoff,
		requests: make(chan request[S]),
		done:     make(chan struct{}),
		tracker:  cfg.NewTracker(),
	}
	if dev, err := cfg.Settings(); err == nil && dev.Enabled {
		s.identity = dev.Identity(cfg.Kind)
	}
	return s
}

// Identity returns the endpoint from the most recent settings.
func (s *Supervisor[S]) Identity() device.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// DeviceID returns the device ID of the current endpoint.
func (s *Supervisor[S]) DeviceID() string {
	return s.Identity().DeviceID()
}

// State returns the last reported device state.
func (s *Supervisor[S]) State() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ConnectionState returns the session state and the error behind it.
func (s *Supervisor[S]) ConnectionState() (connection.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState, s.connErr
}

// Start runs the supervisor in a new goroutine until ctx is done or Stop
// is called.
func (s *Supervisor[S]) Start(ctx context.Context) error {
	if err := s.claim(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

// Stop cancels a started supervisor and waits for it to exit. The session
// is disconnected before Stop returns.
func (s *Supervisor[S]) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Done is closed when Run returns.
func (s *Supervisor[S]) Done() <-chan struct{} {
	return s.done
}

// Run drives the session until ctx is done. A supervisor runs at most
// once, through either Run or Start.
func (s *Supervisor[S]) Run(ctx context.Context) error {
	if err := s.claim(); err != nil {
		return err
	}
	s.run(ctx)
	return nil
}

func (s *Supervisor[S]) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed {
		return ErrAlreadyRunning
	}
	s.claimed = true
	return nil
}

func (s *Supervisor[S]) run(ctx context.Context) {
	defer func() {
		s.closeSession()
		close(s.done)
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("supervisor stopping", "device_id", s.DeviceID())
			return
		case req := <-s.requests:
			req.reply <- s.execute(ctx, req.cmd)
		case <-timer.C:
			timer.Reset(s.cycle(ctx))
		}
	}
}

// Submit executes cmd on the session goroutine and waits for the result.
// It returns connection.ErrNotConnected when no session is up.
func (s *Supervisor[S]) Submit(ctx context.Context, cmd Command[S]) error {
	req := request[S]{cmd: cmd, reply: make(chan error, 1)}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
}

// cycle runs one supervisor tick and returns the delay until the next.
func (s *Supervisor[S]) cycle(ctx context.Context) time.Duration {
	dev, err := s.cfg.Settings()
	if err != nil {
		if err.Error() != s.lastErr {
			s.logger.Warn("settings unavailable, keeping previous", "error", err)
		}
		s.lastErr = err.Error()
		dev = s.last
	} else {
		s.lastErr = ""
	}
	s.last = dev

	if !dev.Enabled {
		if s.session != nil {
			s.logger.Info("device disabled, disconnecting", "device_id", s.session.Identity().DeviceID())
			s.closeSession()
		}
		s.resetRetry()
		return s.cfg.DisabledInterval
	}

	id := dev.Identity(s.cfg.Kind)
	interval := s.cfg.Interval(dev)

	if s.session != nil && !s.session.Identity().SameEndpoint(id) {
		s.logger.Info("endpoint changed, reconnecting",
			"from", s.session.Identity().Address(),
			"to", id.Address())
		s.closeSession()
		s.resetRetry()
	}
	s.setIdentity(id)

	if s.session == nil || !s.session.IsConnected() {
		if wait := time.Until(s.retryAt); wait > 0 {
			return min(wait, s.cfg.DisabledInterval)
		}
		if !s.connect(ctx, id) {
			delay := s.backoff.Next()
			s.retryAt = time.Now().Add(delay)
			s.logger.Debug("connect failed, backing off",
				"device_id", id.DeviceID(),
				"failures", s.backoff.Failures(),
				"retry_in", delay)
			return min(delay, s.cfg.DisabledInterval)
		}
		return interval
	}

	s.poll(ctx, false)
	return interval
}

// connect opens the session and performs the initial full poll. It
// reports whether the connect succeeded; a failing initial poll leaves the
// session disconnected for the next cycle.
func (s *Supervisor[S]) connect(ctx context.Context, id device.Identity) bool {
	if s.session == nil {
		s.session = connection.NewSession(connection.SessionConfig{
			Identity:       id,
			ReadTimeout:    s.cfg.ReadTimeout,
			Logger:         s.cfg.Logger,
			ProtocolLogger: s.cfg.ProtocolLogger,
			OnStateChange:  s.onStateChange,
		})
	}

	if _, err := s.session.Connect(ctx, s.cfg.DialTimeout); err != nil {
		return false
	}
	s.resetRetry()

	s.tracker = s.cfg.NewTracker()
	if !s.announced {
		s.announced = true
		s.sink.Emit(event.Discovered(id))
	}

	s.poll(ctx, true)
	return true
}

// poll runs one full poll. Rejected commands leave their fields unchanged;
// an I/O failure abandons the poll with the session already torn down.
func (s *Supervisor[S]) poll(ctx context.Context, initial bool) {
	sample := s.tracker.Current()

	for _, cmd := range s.cfg.Codec.PollCommands() {
		lines, err := s.session.SendCommand(ctx, cmd)
		if err != nil {
			if errors.Is(err, connection.ErrDaemonRejected) {
				s.logger.Debug("poll command rejected", "command", cmd, "error", err)
				continue
			}
			return
		}
		s.cfg.Codec.Decode(cmd, lines, &sample)
	}

	next, changed := s.tracker.Observe(sample)
	s.publish(next, changed || initial)
}

// execute runs an external command. The command always counts as a
// reportable change once it succeeded.
func (s *Supervisor[S]) execute(ctx context.Context, cmd Command[S]) error {
	if s.session == nil || !s.session.IsConnected() {
		return connection.ErrNotConnected
	}

	if cmd.Line != "" {
		if _, err := s.session.SendCommand(ctx, cmd.Line); err != nil {
			s.logger.Warn("command failed", "command", cmd.Line, "error", err)
			return err
		}
	}
	if cmd.Apply != nil {
		s.publish(s.tracker.Apply(cmd.Apply), true)
	}
	return nil
}

func (s *Supervisor[S]) publish(state S, emit bool) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if emit {
		s.sink.Emit(s.cfg.StateEvent(s.DeviceID(), state))
	}
}

// resetRetry allows the next cycle to connect at once.
func (s *Supervisor[S]) resetRetry() {
	s.retryAt = time.Time{}
	s.backoff.Reset()
}

func (s *Supervisor[S]) closeSession() {
	if s.session == nil {
		return
	}
	s.session.Disconnect()
	s.session = nil
}

func (s *Supervisor[S]) setIdentity(id device.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

func (s *Supervisor[S]) onStateChange(_, newState connection.State, err error) {
	s.mu.Lock()
	s.connState = newState
	s.connErr = err
	id := s.identity
	s.mu.Unlock()

	s.sink.Emit(event.ConnectionState(id.DeviceID(), newState.String(), err))
}
