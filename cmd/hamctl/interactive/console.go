// Package interactive provides the interactive command-line interface
// for hamctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"

	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/service"
	"github.com/log4ym/hamctl-go/pkg/settings"
)

// EditFunc applies a change to the live settings.
type EditFunc func(fn func(*settings.Snapshot)) error

// Console handles interactive mode for hamctl.
type Console struct {
	svc  *service.Service
	hub  *event.Hub
	edit EditFunc
	rl   *readline.Instance

	unwatch func()
}

// New creates a new console. edit may be nil when settings are read-only.
func New(svc *service.Service, hub *event.Hub, edit EditFunc) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hamctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{svc: svc, hub: hub, edit: edit, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.stopWatching()

	out := c.rl.Stdout()
	printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Execute(ctx, out, line); quit {
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, out io.Writer, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		printHelp(out)
	case "connect", "c":
		c.cmdConnect(ctx, out, args)
	case "disconnect", "d":
		c.cmdDisconnect(out, args)
	case "devices", "ls":
		c.cmdDevices(out)
	case "states", "st":
		c.cmdStates(out)
	case "target", "t":
		c.cmdTarget(ctx, out, args)
	case "stop":
		report(out, c.svc.StopRotator(ctx), "Rotator stopped")
	case "set":
		c.cmdSet(out, args)
	case "watch":
		c.cmdWatch(out, args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `
hamctl Commands:
  Devices:
    connect <host> <port> [name]      - Connect a rigctld radio
    connect <device-id>               - Connect a discovered radio
    disconnect <device-id>            - Disconnect a manual radio
    devices                           - List known devices
    states                            - Show live device states

  Rotator:
    target <azimuth>                  - Turn the rotator
    stop                              - Halt the rotator

  Settings:
    set <radio|rotator> <field> <value>
                                      - Fields: enabled, host, port, poll, name

  General:
    watch on|off                      - Print events as they happen
    help                              - Show this help
    quit                              - Exit hamctl`)
}

func (c *Console) cmdConnect(ctx context.Context, out io.Writer, args []string) {
	var (
		id  string
		err error
	)
	switch len(args) {
	case 1:
		id, err = c.svc.Connect(ctx, args[0])
	case 2, 3:
		port, perr := strconv.Atoi(args[1])
		if perr != nil {
			fmt.Fprintf(out, "Invalid port: %s\n", args[1])
			return
		}
		name := ""
		if len(args) == 3 {
			name = args[2]
		}
		id, err = c.svc.ConnectRadio(ctx, args[0], port, name)
	default:
		fmt.Fprintln(out, "Usage: connect <host> <port> [name] | connect <device-id>")
		return
	}
	report(out, err, "Connecting "+id)
}

func (c *Console) cmdDisconnect(out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: disconnect <device-id>")
		return
	}
	report(out, c.svc.Disconnect(args[0]), "Disconnected "+args[0])
}

func (c *Console) cmdDevices(out io.Writer) {
	devices := c.svc.ListDiscoveredDevices()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tKIND\tNAME\tSOURCE\tCONNECTED")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", d.DeviceID, d.Kind, d.Name, d.Source, d.Connected)
	}
	_ = w.Flush()
}

func (c *Console) cmdStates(out io.Writer) {
	states := c.svc.ListCurrentStates()
	if len(states) == 0 {
		fmt.Fprintln(out, "No supervised devices.")
		return
	}
	for _, st := range states {
		fmt.Fprintf(out, "%s [%s]", st.DeviceID, st.Connection)
		if st.Error != "" {
			fmt.Fprintf(out, " error=%q", st.Error)
		}
		if r := st.Radio; r != nil {
			fmt.Fprintf(out, " %.3f kHz %s %s tx=%v", float64(r.FrequencyHz)/1000, r.Mode, r.Band, r.Transmitting)
		}
		if r := st.Rotator; r != nil {
			fmt.Fprintf(out, " az=%.1f moving=%v", r.CurrentAzimuthDeg, r.Moving)
			if r.TargetAzimuthDeg != nil {
				fmt.Fprintf(out, " target=%.1f", *r.TargetAzimuthDeg)
			}
		}
		fmt.Fprintln(out)
	}
}

func (c *Console) cmdTarget(ctx context.Context, out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: target <azimuth>")
		return
	}
	az, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(out, "Invalid azimuth: %s\n", args[0])
		return
	}
	report(out, c.svc.SetRotatorTarget(ctx, az), fmt.Sprintf("Turning to %.1f", az))
}

func (c *Console) cmdSet(out io.Writer, args []string) {
	if len(args) != 3 {
		fmt.Fprintln(out, "Usage: set <radio|rotator> <field> <value>")
		return
	}
	if c.edit == nil {
		fmt.Fprintln(out, "Settings are read-only.")
		return
	}
	var applyErr error
	err := c.edit(func(snap *settings.Snapshot) {
		applyErr = ApplySetting(snap, args[0], args[1], args[2])
	})
	if applyErr != nil {
		err = applyErr
	}
	report(out, err, fmt.Sprintf("%s.%s = %s", args[0], args[1], args[2]))
}

func (c *Console) cmdWatch(out io.Writer, args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(out, "Usage: watch on|off")
		return
	}
	c.stopWatching()
	if args[0] == "off" || c.hub == nil {
		return
	}

	events, cancel := c.hub.Subscribe(event.DefaultSubscriberBuffer)
	c.unwatch = cancel
	go func() {
		for e := range events {
			fmt.Fprintf(out, "[EVENT] %s %s %s\n", e.Type, e.DeviceID, describe(e))
		}
	}()
}

func (c *Console) stopWatching() {
	if c.unwatch != nil {
		c.unwatch()
		c.unwatch = nil
	}
}

func describe(e event.Event) string {
	switch {
	case e.ConnectionState != nil:
		if e.ConnectionState.Error != "" {
			return e.ConnectionState.State + " (" + e.ConnectionState.Error + ")"
		}
		return e.ConnectionState.State
	case e.Radio != nil:
		return fmt.Sprintf("%d Hz %s %s tx=%v", e.Radio.FrequencyHz, e.Radio.Mode, e.Radio.Band, e.Radio.Transmitting)
	case e.Rotator != nil:
		return fmt.Sprintf("az=%.1f moving=%v", e.Rotator.CurrentAzimuthDeg, e.Rotator.Moving)
	case e.Discovered != nil:
		return fmt.Sprintf("%s %s:%d", e.Discovered.Name, e.Discovered.Host, e.Discovered.Port)
	default:
		return ""
	}
}

func report(out io.Writer, err error, ok string) {
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(out, ok)
}

// ApplySetting sets one field of the radio or rotator settings.
func ApplySetting(snap *settings.Snapshot, target, field, value string) error {
	var dev *settings.Device
	switch strings.ToLower(target) {
	case "radio":
		dev = &snap.Radio
	case "rotator":
		dev = &snap.Rotator
	default:
		return fmt.Errorf("unknown device: %s (use: radio, rotator)", target)
	}

	switch strings.ToLower(field) {
	case "enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool: %s", value)
		}
		dev.Enabled = b
	case "host":
		dev.Host = value
	case "port":
		p, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port: %s", value)
		}
		dev.Port = p
	case "poll", "poll_interval_ms":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid interval: %s", value)
		}
		dev.PollIntervalMs = ms
	case "name":
		dev.Name = value
	default:
		return fmt.Errorf("unknown field: %s (use: enabled, host, port, poll, name)", field)
	}
	return nil
}
