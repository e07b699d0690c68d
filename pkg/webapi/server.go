package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/log4ym/hamctl-go/pkg/connection"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/registry"
	"github.com/log4ym/hamctl-go/pkg/service"
	"github.com/log4ym/hamctl-go/pkg/settings"
	"github.com/log4ym/hamctl-go/pkg/version"
)

// Defaults for Config.
const (
	DefaultWSPath       = "/ws"
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
)

// Controller is the command surface served by the API.
// *service.Service implements it.
type Controller interface {
	ConnectRadio(ctx context.Context, host string, port int, name string) (string, error)
	Connect(ctx context.Context, deviceID string) (string, error)
	Disconnect(deviceID string) error
	SetRotatorTarget(ctx context.Context, azimuth float64) error
	StopRotator(ctx context.Context) error
	ListDiscoveredDevices() []service.DeviceInfo
	ListCurrentStates() []service.DeviceStatus
}

// Config configures a Server.
type Config struct {
	// Controller executes commands. Required.
	Controller Controller

	// Hub streams events to WebSocket clients. Required for /ws.
	Hub *event.Hub

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// WSPath is the WebSocket path. Empty means DefaultWSPath.
	WSPath string

	// SubscriberBuffer is the per-client event buffer. Zero means
	// event.DefaultSubscriberBuffer.
	SubscriberBuffer int

	// AllowedOrigins restricts WebSocket origins. Empty allows all.
	AllowedOrigins []string

	// WriteTimeout bounds each WebSocket write.
	WriteTimeout time.Duration

	// PingInterval is the keep-alive period of WebSocket clients.
	PingInterval time.Duration
}

// Server is the HTTP and WebSocket API.
type Server struct {
	cfg      Config
	ctrl     Controller
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New creates the API server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.WSPath == "" {
		cfg.WSPath = DefaultWSPath
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = event.DefaultSubscriberBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}

	s := &Server{
		cfg:    cfg,
		ctrl:   cfg.Controller,
		logger: cfg.Logger,
		router: mux.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}/connect", s.handleConnectDiscovered).Methods(http.MethodPost)
	api.HandleFunc("/states", s.handleListStates).Methods(http.MethodGet)
	api.HandleFunc("/radios", s.handleConnectRadio).Methods(http.MethodPost)
	api.HandleFunc("/radios/{id}", s.handleDisconnect).Methods(http.MethodDelete)
	api.HandleFunc("/rotator/target", s.handleRotatorTarget).Methods(http.MethodPost)
	api.HandleFunc("/rotator/stop", s.handleRotatorStop).Methods(http.MethodPost)

	s.router.HandleFunc(s.cfg.WSPath, s.handleWebSocket).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	s.logger.Warn("websocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
	return false
}

// ConnectRadioRequest is the body of POST /api/radios.
type ConnectRadioRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Name string `json:"name,omitempty"`
}

// TargetRequest is the body of POST /api/rotator/target.
type TargetRequest struct {
	Azimuth *float64 `json:"azimuth"`
}

// ConnectResponse is returned when a radio is added.
type ConnectResponse struct {
	DeviceID string `json:"deviceId"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// VersionResponse is returned by GET /api/version.
type VersionResponse struct {
	API   string `json:"api"`
	Build string `json:"build"`
}

var errMissingAzimuth = errors.New("azimuth is required")

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{API: version.API, Build: version.Version})
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ListDiscoveredDevices())
}

func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ListCurrentStates())
}

func (s *Server) handleConnectRadio(w http.ResponseWriter, r *http.Request) {
	var req ConnectRadioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.ctrl.ConnectRadio(r.Context(), req.Host, req.Port, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ConnectResponse{DeviceID: id})
}

func (s *Server) handleConnectDiscovered(w http.ResponseWriter, r *http.Request) {
	id, err := s.ctrl.Connect(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ConnectResponse{DeviceID: id})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Disconnect(mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRotatorTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Azimuth == nil {
		s.fail(w, r, errMissingAzimuth)
		return
	}

	if err := s.ctrl.SetRotatorTarget(r.Context(), *req.Azimuth); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRotatorStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StopRotator(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, err.Error(), status)
}

// StatusFor maps a command error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrExists), errors.Is(err, service.ErrManagedBySettings):
		return http.StatusConflict
	case errors.Is(err, settings.ErrInvalid), errors.Is(err, service.ErrInvalidAzimuth),
		errors.Is(err, errMissingAzimuth), errors.Is(err, errUnknownOp):
		return http.StatusBadRequest
	case errors.Is(err, connection.ErrNotConnected), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, connection.ErrDaemonRejected), errors.Is(err, connection.ErrConnectionLost):
		return http.StatusBadGateway
	case errors.Is(err, connection.ErrCommandTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, ErrorResponse{Message: message, Status: status})
}
