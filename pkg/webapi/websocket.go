package webapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/service"
	"github.com/log4ym/hamctl-go/pkg/version"
)

// Frame kinds sent by the server.
const (
	FrameSnapshot = "snapshot"
	FrameEvent    = "event"
	FrameResult   = "result"
)

// WebSocket request operations.
const (
	OpConnect          = "connect"
	OpDisconnect       = "disconnect"
	OpSetRotatorTarget = "setRotatorTarget"
	OpStopRotator      = "stopRotator"
	OpListDevices      = "listDevices"
	OpListStates       = "listStates"
)

// Request is a command sent by a WebSocket client. Connect uses Host and
// Port, or DeviceID for a discovered radio.
type Request struct {
	ID       string   `json:"id,omitempty"`
	Op       string   `json:"op"`
	DeviceID string   `json:"deviceId,omitempty"`
	Host     string   `json:"host,omitempty"`
	Port     int      `json:"port,omitempty"`
	Name     string   `json:"name,omitempty"`
	Azimuth  *float64 `json:"azimuth,omitempty"`
}

// Frame is a message sent to a WebSocket client.
type Frame struct {
	Kind      string       `json:"kind"`
	ID        string       `json:"id,omitempty"`
	Op        string       `json:"op,omitempty"`
	OK        bool         `json:"ok,omitempty"`
	Error     string       `json:"error,omitempty"`
	Status    int          `json:"status,omitempty"`
	Event     *event.Event `json:"event,omitempty"`
	Data      any          `json:"data,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Snapshot is the data of the first frame of every WebSocket session.
type Snapshot struct {
	Devices []service.DeviceInfo   `json:"devices"`
	States  []service.DeviceStatus `json:"states"`
}

var errUnknownOp = errors.New("unknown op")

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Hub == nil {
		writeError(w, "event stream not available", http.StatusServiceUnavailable)
		return
	}

	if err := version.CheckClient(r.URL.Query().Get("api")); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("remote_addr", r.RemoteAddr)
	logger.Info("websocket client connected")
	start := time.Now()

	// Subscribe before the snapshot so no change is lost in between.
	events, unsubscribe := s.cfg.Hub.Subscribe(s.cfg.SubscriberBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	results := make(chan Frame, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		if err := s.writeLoop(ctx, conn, events, results); err != nil {
			logger.Debug("websocket write ended", "error", err)
		}
		// Unblocks the reader.
		_ = conn.Close()
	}()

	s.readLoop(ctx, conn, results)
	cancel()
	<-writerDone

	logger.Info("websocket client disconnected", "duration", time.Since(start))
}

// readLoop handles client requests until the client goes away.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, results chan<- Frame) {
	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))

		frame := s.dispatch(ctx, req)
		select {
		case results <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop owns all writes to conn.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan event.Event, results <-chan Frame) error {
	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	snapshot := Frame{
		Kind: FrameSnapshot,
		Data: Snapshot{
			Devices: s.ctrl.ListDiscoveredDevices(),
			States:  s.ctrl.ListCurrentStates(),
		},
	}
	if err := s.send(conn, snapshot); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteTimeout))
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.send(conn, Frame{Kind: FrameEvent, Event: &e}); err != nil {
				return err
			}
		case f := <-results:
			if err := s.send(conn, f); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return fmt.Errorf("failed to write ping: %w", err)
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, f Frame) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", f.Kind, err)
	}
	return nil
}

// dispatch executes one client request and builds its result frame.
func (s *Server) dispatch(ctx context.Context, req Request) Frame {
	data, err := s.execute(ctx, req)
	f := Frame{Kind: FrameResult, ID: req.ID, Op: req.Op}
	if err != nil {
		f.Error = err.Error()
		f.Status = StatusFor(err)
		return f
	}
	f.OK = true
	f.Data = data
	return f
}

func (s *Server) execute(ctx context.Context, req Request) (any, error) {
	switch req.Op {
	case OpConnect:
		var id string
		var err error
		if req.DeviceID != "" {
			id, err = s.ctrl.Connect(ctx, req.DeviceID)
		} else {
			id, err = s.ctrl.ConnectRadio(ctx, req.Host, req.Port, req.Name)
		}
		if err != nil {
			return nil, err
		}
		return ConnectResponse{DeviceID: id}, nil

	case OpDisconnect:
		return nil, s.ctrl.Disconnect(req.DeviceID)

	case OpSetRotatorTarget:
		if req.Azimuth == nil {
			return nil, errMissingAzimuth
		}
		return nil, s.ctrl.SetRotatorTarget(ctx, *req.Azimuth)

	case OpStopRotator:
		return nil, s.ctrl.StopRotator(ctx)

	case OpListDevices:
		return s.ctrl.ListDiscoveredDevices(), nil

	case OpListStates:
		return s.ctrl.ListCurrentStates(), nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownOp, req.Op)
	}
}
