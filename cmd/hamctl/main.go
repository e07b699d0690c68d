// Command hamctl runs the live hardware-control layer of a logging station.
//
// It supervises a rigctld radio and a rotctld rotator, streams their state
// to browser clients over WebSocket and optionally to NATS, and records
// every protocol line to a capture file.
//
// Usage:
//
//	hamctl [flags]
//
// Flags:
//
//	-config string         Configuration file path
//	-listen string         HTTP listen address (default ":8073")
//	-log-level string      Log level: debug, info, warn, error (default "info")
//	-protocol-log string   Protocol capture file (CBOR)
//	-settings string       Device settings file, re-read on change
//	-nats string           NATS server URL for event publishing
//	-discover              Browse mDNS for rigctld daemons
//	-auto-connect          Connect every discovered radio
//	-interactive           Enable interactive command mode
//
// Examples:
//
//	# Rotator from a live-edited settings file, with a console
//	hamctl -settings station.yaml -interactive
//
//	# Capture all daemon traffic for later inspection with hamctl-log
//	hamctl -config hamctl.yaml -protocol-log /tmp/hamctl.hlog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/log4ym/hamctl-go/cmd/hamctl/interactive"
	"github.com/log4ym/hamctl-go/pkg/discovery"
	"github.com/log4ym/hamctl-go/pkg/event"
	protolog "github.com/log4ym/hamctl-go/pkg/log"
	"github.com/log4ym/hamctl-go/pkg/service"
	"github.com/log4ym/hamctl-go/pkg/settings"
	"github.com/log4ym/hamctl-go/pkg/version"
	"github.com/log4ym/hamctl-go/pkg/webapi"
)

// Flags holds the command-line flags. Set flags override the config file.
type Flags struct {
	ConfigFile   string
	Listen       string
	LogLevel     string
	ProtocolLog  string
	SettingsFile string
	NATSURL      string
	Discover     bool
	AutoConnect  bool
	Interactive  bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Listen, "listen", "", "HTTP listen address (default \":8073\")")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Protocol capture file (CBOR)")
	flag.StringVar(&flags.SettingsFile, "settings", "", "Device settings file, re-read on change")
	flag.StringVar(&flags.NATSURL, "nats", "", "NATS server URL for event publishing")
	flag.BoolVar(&flags.Discover, "discover", false, "Browse mDNS for rigctld daemons")
	flag.BoolVar(&flags.AutoConnect, "auto-connect", false, "Connect every discovered radio")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	cfg, err := LoadConfig(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *Config) {
	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if flags.ProtocolLog != "" {
		cfg.ProtocolLog = flags.ProtocolLog
	}
	if flags.SettingsFile != "" {
		cfg.SettingsFile = flags.SettingsFile
	}
	if flags.NATSURL != "" {
		cfg.NATS.URL = flags.NATSURL
	}
	if flags.Discover {
		cfg.Discovery.Browse = true
	}
	if flags.AutoConnect {
		cfg.Discovery.AutoConnect = true
	}
}

func run(cfg Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Console output is swapped in once readline owns the terminal.
	logOut := &switchWriter{w: os.Stderr}
	level, _ := ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	logger.Info("hamctl starting", "version", version.Version, "listen", cfg.Listen)

	hub := event.NewHub()
	defer hub.Close()
	sinks := []event.Sink{hub, event.NewSlogSink(logger)}

	if cfg.NATS.URL != "" {
		nc, err := event.ConnectNATS(cfg.NATS.URL, "hamctl", logger)
		if err != nil {
			return err
		}
		defer func() { _ = nc.Drain() }()
		sinks = append(sinks, event.NewNATSSink(nc, cfg.NATS.SubjectPrefix, logger))
		logger.Info("publishing events to NATS", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	var protoLoggers []protolog.Logger
	if cfg.ProtocolLog != "" {
		fl, err := protolog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return fmt.Errorf("failed to create protocol logger: %w", err)
		}
		defer fl.Close()
		protoLoggers = append(protoLoggers, fl)
		logger.Info("protocol logging", "path", cfg.ProtocolLog)
	}
	if cfg.ProtocolDebug {
		protoLoggers = append(protoLoggers, protolog.NewSlogAdapter(logger))
	}

	src, edit := settingsSource(cfg)

	var browser discovery.Browser
	if cfg.Discovery.Browse {
		browser = discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: cfg.Discovery.Interface})
	}

	svcCfg := service.Config{
		Settings:    src,
		Sink:        event.NewMultiSink(sinks...),
		Logger:      logger,
		Browser:     browser,
		AutoConnect: cfg.Discovery.AutoConnect,
	}
	// A nil MultiLogger would be a non-nil interface.
	if len(protoLoggers) > 0 {
		svcCfg.ProtocolLogger = protolog.NewMultiLogger(protoLoggers...)
	}

	svc := service.New(svcCfg)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		_ = svc.Stop()
		return fmt.Errorf("failed to listen: %w", err)
	}
	httpSrv := &http.Server{
		Handler: webapi.New(webapi.Config{
			Controller:     svc,
			Hub:            hub,
			Logger:         logger,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()
	logger.Info("api listening", "address", ln.Addr().String())

	if cfg.Discovery.Advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{Interface: cfg.Discovery.Interface})
		info := &discovery.APIInfo{
			InstanceName: cfg.Discovery.InstanceName,
			Port:         ln.Addr().(*net.TCPAddr).Port,
			Version:      version.API,
			Path:         webapi.DefaultWSPath,
		}
		if err := adv.Advertise(ctx, info); err != nil {
			logger.Warn("failed to advertise api", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	if flags.Interactive {
		console, err := interactive.New(svc, hub, edit)
		if err != nil {
			return err
		}
		// Log output goes through readline so it does not clobber the prompt.
		logOut.Set(console.Stdout())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	cancel()
	if err := svc.Stop(); err != nil {
		logger.Warn("error stopping service", "error", err)
	}
	logger.Info("goodbye", "dropped_events", hub.Dropped())
	return nil
}

// settingsSource returns the device settings source and its editor.
func settingsSource(cfg Config) (settings.Source, interactive.EditFunc) {
	if cfg.SettingsFile == "" {
		mem := settings.NewMemorySource(cfg.Snapshot())
		return mem, mem.Update
	}

	fs := settings.NewFileSource(cfg.SettingsFile)
	if _, err := os.Stat(cfg.SettingsFile); errors.Is(err, os.ErrNotExist) {
		// Seed a missing file so it can be edited in place.
		_ = settings.Write(cfg.SettingsFile, cfg.Snapshot())
	}
	return fs, func(fn func(*settings.Snapshot)) error {
		snap, err := fs.Current()
		if err != nil {
			return err
		}
		fn(&snap)
		if err := snap.Validate(); err != nil {
			return err
		}
		return settings.Write(fs.Path(), snap)
	}
}

// switchWriter lets the console take over log output after start.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
