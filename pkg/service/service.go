package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/log4ym/hamctl-go/pkg/connection"
	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/discovery"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/registry"
	"github.com/log4ym/hamctl-go/pkg/settings"
	"github.com/log4ym/hamctl-go/pkg/supervisor"
)

// Service is the hardware-control service of one station.
type Service struct {
	mu sync.RWMutex

	cfg    Config
	src    settings.Source
	sink   event.Sink
	logger *slog.Logger
	state  ServiceState

	// Settings-driven supervisors.
	radio   *supervisor.Radio
	rotator *supervisor.Rotator

	// Manually connected radios, keyed by device ID.
	radios *registry.Registry[*supervisor.Radio]

	// Radios reported by the browser, keyed by device ID.
	discovered *registry.Registry[*discovery.DaemonService]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a service. Nothing connects until Start.
func New(cfg Config) *Service {
	if cfg.Settings == nil {
		cfg.Settings = settings.NewMemorySource(settings.Defaults())
	}
	if cfg.Sink == nil {
		cfg.Sink = event.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Service{
		cfg:        cfg,
		src:        cfg.Settings,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		state:      StateIdle,
		radios:     registry.New[*supervisor.Radio](),
		discovered: registry.New[*discovery.DaemonService](),
	}
	s.radio = supervisor.New(configure(s, supervisor.RadioConfig(supervisor.FromSource(s.src, device.KindRadio))))
	s.rotator = supervisor.New(configure(s, supervisor.RotatorConfig(supervisor.FromSource(s.src, device.KindRotator))))
	return s
}

// configure applies the service-wide session settings to a supervisor.
func configure[S any](s *Service, cfg supervisor.Config[S]) supervisor.Config[S] {
	cfg.Sink = s.sink
	cfg.Logger = s.logger
	cfg.ProtocolLogger = s.cfg.ProtocolLogger
	cfg.DialTimeout = s.cfg.DialTimeout
	cfg.ReadTimeout = s.cfg.ReadTimeout
	cfg.DisabledInterval = s.cfg.DisabledInterval
	if s.cfg.NewBackoff != nil {
		cfg.Backoff = s.cfg.NewBackoff()
	}
	return cfg
}

// State returns the current service state.
func (s *Service) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start starts the settings-driven supervisors and, when a browser is
// configured, daemon discovery. A service starts at most once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state = StateRunning
	s.mu.Unlock()

	if err := s.radio.Start(s.ctx); err != nil {
		return err
	}
	if err := s.rotator.Start(s.ctx); err != nil {
		return err
	}

	if s.cfg.Browser != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.browse(s.ctx)
		}()
	}

	s.logger.Info("service started")
	return nil
}

// Stop disconnects every device and waits for all goroutines to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopped
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	if s.cfg.Browser != nil {
		s.cfg.Browser.Stop()
	}

	for _, sup := range s.radios.Clear() {
		sup.Stop()
	}
	s.radio.Stop()
	s.rotator.Stop()
	s.wg.Wait()

	s.logger.Info("service stopped")
	return nil
}

// runContext returns the service context, or ErrNotStarted.
func (s *Service) runContext() (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateRunning {
		return nil, ErrNotStarted
	}
	return s.ctx, nil
}

// ConnectRadio starts supervising the rigctld at host:port and returns its
// device ID. Connection progress is reported through events.
func (s *Service) ConnectRadio(ctx context.Context, host string, port int, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	runCtx, err := s.runContext()
	if err != nil {
		return "", err
	}

	dev := settings.Device{Enabled: true, Host: host, Port: port, Name: name}
	if err := dev.Validate(); err != nil {
		return "", err
	}
	id := dev.Identity(device.KindRadio).DeviceID()

	radioID, _ := s.managedIDs()
	if id == radioID {
		return "", fmt.Errorf("%w: %s", registry.ErrExists, id)
	}

	sup := supervisor.New(configure(s, supervisor.RadioConfig(supervisor.Static(dev))))
	if err := s.radios.Add(id, sup); err != nil {
		return "", fmt.Errorf("%w: %s", err, id)
	}
	if err := sup.Start(runCtx); err != nil {
		s.radios.Remove(id)
		return "", err
	}

	s.logger.Info("radio added", "device_id", id, "name", name)
	return id, nil
}

// Connect starts supervising a radio previously reported by discovery.
func (s *Service) Connect(ctx context.Context, deviceID string) (string, error) {
	svc, ok := s.discovered.Get(deviceID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return s.ConnectRadio(ctx, svc.Endpoint(), svc.Port, svc.Name)
}

// Disconnect stops a manually connected radio and reports it removed.
// Devices configured through settings are disabled there instead.
func (s *Service) Disconnect(deviceID string) error {
	if sup, ok := s.radios.Remove(deviceID); ok {
		sup.Stop()
		s.sink.Emit(event.Removed(deviceID))
		s.logger.Info("radio removed", "device_id", deviceID)
		return nil
	}

	radioID, rotatorID := s.managedIDs()
	if deviceID == radioID || deviceID == rotatorID {
		return fmt.Errorf("%w: %s", ErrManagedBySettings, deviceID)
	}
	return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

// SetRotatorTarget turns the rotator to azimuth degrees. Any value is
// normalised into [0, 360).
func (s *Service) SetRotatorTarget(ctx context.Context, azimuth float64) error {
	if math.IsNaN(azimuth) || math.IsInf(azimuth, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAzimuth, azimuth)
	}
	if _, err := s.runContext(); err != nil {
		return err
	}
	return s.rotator.Submit(ctx, supervisor.SetTarget(azimuth))
}

// StopRotator halts the rotator and clears its target.
func (s *Service) StopRotator(ctx context.Context) error {
	if _, err := s.runContext(); err != nil {
		return err
	}
	return s.rotator.Submit(ctx, supervisor.Stop())
}

// RadioState returns the last reported state of a radio.
func (s *Service) RadioState(deviceID string) (device.RadioState, error) {
	if sup, ok := s.radios.Get(deviceID); ok {
		return sup.State(), nil
	}
	if radioID, _ := s.managedIDs(); radioID != "" && deviceID == radioID {
		return s.radio.State(), nil
	}
	return device.RadioState{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

// RotatorState returns the last reported rotator state.
func (s *Service) RotatorState() device.RotatorState {
	return s.rotator.State()
}

// ListDiscoveredDevices returns every known device sorted by ID: the
// settings devices when enabled, manual radios and discovered radios.
func (s *Service) ListDiscoveredDevices() []DeviceInfo {
	byID := make(map[string]DeviceInfo)

	for _, d := range s.discovered.Values() {
		id := d.Identity()
		byID[id.DeviceID()] = deviceInfo(id, SourceMDNS, false)
	}
	for _, e := range s.radios.List() {
		byID[e.Key] = supervisedInfo(e.Value, SourceManual)
	}
	radioID, rotatorID := s.managedIDs()
	if radioID != "" {
		byID[radioID] = supervisedInfo(s.radio, SourceSettings)
	}
	if rotatorID != "" {
		byID[rotatorID] = supervisedInfo(s.rotator, SourceSettings)
	}

	out := make([]DeviceInfo, 0, len(byID))
	for _, info := range byID {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// ListCurrentStates returns the live state of every supervised device.
func (s *Service) ListCurrentStates() []DeviceStatus {
	var out []DeviceStatus

	radioID, rotatorID := s.managedIDs()
	if radioID != "" && s.radio.DeviceID() == radioID {
		out = append(out, radioStatus(s.radio))
	}
	for _, sup := range s.radios.Values() {
		out = append(out, radioStatus(sup))
	}
	if rotatorID != "" && s.rotator.DeviceID() == rotatorID {
		out = append(out, rotatorStatus(s.rotator))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// AddDiscovered records a daemon found by discovery and, with AutoConnect,
// starts supervising it. Only radios are accepted.
func (s *Service) AddDiscovered(ctx context.Context, d *discovery.DaemonService) {
	if d == nil || d.Kind != device.KindRadio {
		return
	}
	id := d.Identity().DeviceID()
	s.discovered.Remove(id)
	_ = s.discovered.Add(id, d)
	s.logger.Info("radio discovered", "device_id", id, "instance", d.InstanceName, "name", d.Name)

	if !s.cfg.AutoConnect {
		return
	}
	if _, err := s.Connect(ctx, id); err != nil {
		s.logger.Debug("auto-connect skipped", "device_id", id, "error", err)
	}
}

// RemoveDiscovered forgets a daemon by mDNS instance name. Supervised
// radios stay connected; the supervisor notices a dead daemon on its own.
func (s *Service) RemoveDiscovered(instanceName string) bool {
	for _, e := range s.discovered.List() {
		if e.Value.InstanceName == instanceName {
			s.discovered.Remove(e.Key)
			s.logger.Info("radio withdrawn", "device_id", e.Key, "instance", instanceName)
			return true
		}
	}
	return false
}

// browse feeds browser updates into the discovered set until ctx ends.
func (s *Service) browse(ctx context.Context) {
	updates, err := s.cfg.Browser.Browse(ctx, device.KindRadio)
	if err != nil {
		s.logger.Warn("discovery unavailable", "error", err)
		return
	}
	for u := range updates {
		if u.Removed {
			s.RemoveDiscovered(u.Service.InstanceName)
			continue
		}
		s.AddDiscovered(ctx, u.Service)
	}
}

// managedIDs returns the device IDs of the enabled settings devices.
func (s *Service) managedIDs() (radioID, rotatorID string) {
	snap, err := s.src.Current()
	if err != nil {
		// Fall back to whatever the supervisors run with.
		return s.radio.DeviceID(), s.rotator.DeviceID()
	}
	if snap.Radio.Enabled {
		radioID = snap.Radio.Identity(device.KindRadio).DeviceID()
	}
	if snap.Rotator.Enabled {
		rotatorID = snap.Rotator.Identity(device.KindRotator).DeviceID()
	}
	return radioID, rotatorID
}

func deviceInfo(id device.Identity, src Source, connected bool) DeviceInfo {
	return DeviceInfo{
		DeviceID:  id.DeviceID(),
		Kind:      id.Kind,
		Name:      id.Name,
		Host:      id.Host,
		Port:      id.Port,
		Source:    src,
		Connected: connected,
	}
}

type supervised interface {
	Identity() device.Identity
	ConnectionState() (connection.State, error)
}

func supervisedInfo(sup supervised, src Source) DeviceInfo {
	state, _ := sup.ConnectionState()
	return deviceInfo(sup.Identity(), src, state == connection.StateConnected)
}

func connectionStatus(sup supervised) DeviceStatus {
	id := sup.Identity()
	state, err := sup.ConnectionState()
	st := DeviceStatus{
		DeviceID:   id.DeviceID(),
		Kind:       id.Kind,
		Connection: state.String(),
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

func radioStatus(sup *supervisor.Radio) DeviceStatus {
	st := connectionStatus(sup)
	st.Radio = event.RadioState(st.DeviceID, sup.State()).Radio
	return st
}

func rotatorStatus(sup *supervisor.Rotator) DeviceStatus {
	st := connectionStatus(sup)
	st.Rotator = event.RotatorPosition(st.DeviceID, sup.State()).Rotator
	return st
}
