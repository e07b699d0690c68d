package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/hamlib"
	"github.com/log4ym/hamctl-go/pkg/log"
)

// Session timing defaults.
const (
	// DefaultReadTimeout bounds every line read from the daemon.
	DefaultReadTimeout = 1 * time.Second

	// DefaultDialTimeout bounds the TCP connect.
	DefaultDialTimeout = 5 * time.Second
)

// StateChangeFunc is called after every state transition. err is the
// failure that caused the transition, or nil.
type StateChangeFunc func(oldState, newState State, err error)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Identity is the daemon endpoint. It never changes for a session.
	Identity device.Identity

	// ReadTimeout bounds each response line. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger records every line exchanged. Nil disables capture.
	ProtocolLogger log.Logger

	// OnStateChange is called on every transition. Optional.
	OnStateChange StateChangeFunc
}

// Session is a connection to one rigctld or rotctld daemon.
//
// Commands must be issued by a single owner goroutine; State, Err and
// Disconnect are safe to call from anywhere.
type Session struct {
	mu sync.Mutex

	identity    device.Identity
	readTimeout time.Duration
	logger      *slog.Logger
	protoLog    log.Logger
	onChange    StateChangeFunc

	state   State
	lastErr error

	conn   net.Conn
	reader *bufio.Reader
	connID string
}

// NewSession creates a disconnected session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ProtocolLogger == nil {
		cfg.ProtocolLogger = log.NoopLogger{}
	}
	return &Session{
		identity:    cfg.Identity,
		readTimeout: cfg.ReadTimeout,
		logger:      cfg.Logger.With("device_id", cfg.Identity.DeviceID()),
		protoLog:    cfg.ProtocolLogger,
		onChange:    cfg.OnStateChange,
		state:       StateDisconnected,
	}
}

// Identity returns the daemon endpoint of the session.
func (s *Session) Identity() device.Identity {
	return s.identity
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure behind the last transition to Disconnected or
// Error, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsConnected returns true if the session has an open socket.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// Connect dials the daemon. On failure the session moves to StateError and
// the returned error wraps ErrConnectFailure. Connect never retries.
func (s *Session) Connect(ctx context.Context, timeout time.Duration) (State, error) {
	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return StateConnected, nil
	}
	s.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	s.transition(StateConnecting, nil)
	s.logger.Debug("connecting", "address", s.identity.Address())

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.identity.Address())
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrConnectFailure, s.identity.Address(), err)
		s.logger.Warn("connect failed", "error", err)
		s.logError(log.LayerTransport, err, "dial")
		s.transition(StateError, err)
		return StateError, err
	}

	s.mu.Lock()
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.connID = log.NewConnectionID()
	s.mu.Unlock()

	s.logger.Info("connected", "address", s.identity.Address())
	s.transition(StateConnected, nil)
	return StateConnected, nil
}

// Disconnect closes the socket and moves the session to StateDisconnected.
// It is idempotent and safe to call in any state.
func (s *Session) Disconnect() {
	if s.teardown(nil) {
		return
	}
	if s.State() != StateDisconnected {
		s.transition(StateDisconnected, nil)
	}
}

// SendCommand writes one command line and collects the response lines up to
// the RPRT terminator, which is not included.
//
// A non-zero RPRT code returns a *RejectedError and keeps the connection.
// A read timeout returns ErrCommandTimeout and any other I/O failure
// ErrConnectionLost; both disconnect the session. Cancelling ctx interrupts
// a blocked read.
func (s *Session) SendCommand(ctx context.Context, text string) ([]string, error) {
	s.mu.Lock()
	conn, reader := s.conn, s.reader
	s.mu.Unlock()

	if conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	cmd := strings.TrimSpace(text)

	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
		return nil, s.ioFailure(ctx, cmd, err)
	}
	s.logLine(log.DirectionOut, cmd, "", nil)

	var lines []string
	for {
		if err := ctx.Err(); err != nil {
			s.teardown(err)
			return nil, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		raw, err := reader.ReadString('\n')
		if err != nil {
			return nil, s.ioFailure(ctx, cmd, err)
		}

		line := strings.TrimRight(raw, "\r\n")
		code, isReport := hamlib.ParseReport(line)
		if !isReport {
			s.logLine(log.DirectionIn, line, cmd, nil)
			lines = append(lines, line)
			continue
		}

		s.logLine(log.DirectionIn, line, cmd, &code)
		if code != 0 {
			rej := &RejectedError{Command: cmd, Code: code}
			s.logger.Debug("command rejected", "command", cmd, "code", code)
			s.logError(log.LayerProtocol, rej, cmd)
			return nil, rej
		}
		return lines, nil
	}
}

// ioFailure classifies a socket error and tears the session down.
func (s *Session) ioFailure(ctx context.Context, cmd string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.teardown(ctxErr)
		return ctxErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		err = fmt.Errorf("%w: %q", ErrCommandTimeout, cmd)
	} else {
		err = fmt.Errorf("%w: %q: %w", ErrConnectionLost, cmd, err)
	}

	s.logger.Warn("session failed", "error", err)
	s.logError(log.LayerTransport, err, cmd)
	s.teardown(err)
	return err
}

// teardown closes the socket if one is open and reports whether it did.
// cause is recorded as the session error.
func (s *Session) teardown(cause error) bool {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.reader = nil
	s.mu.Unlock()

	if conn == nil {
		return false
	}
	_ = conn.Close()
	s.transition(StateDisconnected, cause)
	return true
}

// transition records the new state and notifies listeners.
func (s *Session) transition(newState State, cause error) {
	s.mu.Lock()
	oldState := s.state
	s.state = newState
	s.lastErr = cause
	connID := s.connID
	s.mu.Unlock()

	change := &log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: oldState.String(),
		NewState: newState.String(),
	}
	if cause != nil {
		change.Reason = cause.Error()
	}
	s.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		DeviceKind:   s.identity.Kind,
		RemoteAddr:   s.identity.Address(),
		DeviceID:     s.identity.DeviceID(),
		StateChange:  change,
	})

	if s.onChange != nil {
		s.onChange(oldState, newState, cause)
	}
}

func (s *Session) logLine(dir log.Direction, text, cmd string, report *int) {
	s.mu.Lock()
	connID := s.connID
	s.mu.Unlock()

	s.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryMessage,
		DeviceKind:   s.identity.Kind,
		RemoteAddr:   s.identity.Address(),
		DeviceID:     s.identity.DeviceID(),
		Line:         &log.LineEvent{Text: text, Command: cmd, Report: report},
	})
}

func (s *Session) logError(layer log.Layer, err error, op string) {
	s.mu.Lock()
	connID := s.connID
	s.mu.Unlock()

	data := &log.ErrorEventData{Layer: layer, Message: err.Error(), Context: op}
	var rej *RejectedError
	if errors.As(err, &rej) {
		code := rej.Code
		data.Code = &code
	}
	s.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        layer,
		Category:     log.CategoryError,
		DeviceKind:   s.identity.Kind,
		RemoteAddr:   s.identity.Address(),
		DeviceID:     s.identity.DeviceID(),
		Error:        data,
	})
}
