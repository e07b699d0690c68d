// Package commands implements the hamctl-log subcommands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// ViewOptions selects the events printed by RunView.
type ViewOptions struct {
	Layer     string
	Direction string
	Category  string
	Kind      string
	DeviceID  string
}

// Filter converts the flag values into a log.Filter.
func (o ViewOptions) Filter() (log.Filter, error) {
	filter := log.Filter{DeviceID: o.DeviceID}
	if err := applyEnumFlags(&filter, o.Layer, o.Direction, o.Category, o.Kind); err != nil {
		return log.Filter{}, err
	}
	return filter, nil
}

// RunView prints every matching event of the capture at path.
func RunView(path string, opts ViewOptions, w io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer reader.Close()

	return forEach(reader, func(event log.Event) error {
		formatEvent(w, event)
		return nil
	})
}

// forEach calls fn for every event left in reader.
func forEach(reader *log.Reader, fn func(log.Event) error) error {
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// formatEvent writes one event as a header line plus indented details.
//
//	2026-01-28T10:15:32.123456Z [conn:0b1c2d3e] OUT PROTOCOL radio 127.0.0.1:4532 f
func formatEvent(w io.Writer, event log.Event) {
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s %s",
		event.Timestamp.UTC().Format(timeLayout),
		shortenConnID(event.ConnectionID),
		directionLabel(event),
		event.Layer.String(),
		event.DeviceKind.String(),
		event.RemoteAddr)

	switch {
	case event.Line != nil:
		fmt.Fprintf(w, " %s\n", quoteLine(event.Line.Text))
		if event.Line.Command != "" && event.Direction == log.DirectionIn {
			fmt.Fprintf(w, "  Command: %s\n", event.Line.Command)
		}
		if event.Line.Report != nil {
			fmt.Fprintf(w, "  Report: %d\n", *event.Line.Report)
		}
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(w, " State\n  %s: ", sc.Entity.String())
		if sc.OldState != "" {
			fmt.Fprintf(w, "%s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "-> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Error != nil:
		fmt.Fprintf(w, " Error\n  Message: %s\n", event.Error.Message)
		if event.Error.Code != nil {
			fmt.Fprintf(w, "  Code: %d\n", *event.Error.Code)
		}
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	default:
		fmt.Fprintln(w, " Unknown")
	}
	fmt.Fprintln(w)
}

// directionLabel is blank for events that carry no line.
func directionLabel(event log.Event) string {
	if event.Line == nil {
		return "-"
	}
	return event.Direction.String()
}

// quoteLine keeps empty and whitespace-padded lines visible.
func quoteLine(text string) string {
	if text == "" || strings.TrimSpace(text) != text {
		return fmt.Sprintf("%q", text)
	}
	return text
}

func shortenConnID(id string) string {
	if id == "" {
		return "--------"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func applyEnumFlags(filter *log.Filter, layer, direction, category, kind string) error {
	if layer != "" {
		l, err := ParseLayer(layer)
		if err != nil {
			return err
		}
		filter.Layer = &l
	}
	if direction != "" {
		d, err := ParseDirection(direction)
		if err != nil {
			return err
		}
		filter.Direction = &d
	}
	if category != "" {
		c, err := ParseCategory(category)
		if err != nil {
			return err
		}
		filter.Category = &c
	}
	if kind != "" {
		k, err := device.ParseKind(strings.ToLower(kind))
		if err != nil {
			return err
		}
		filter.DeviceKind = &k
	}
	return nil
}

// ParseLayer parses a layer name, case-insensitively.
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "protocol":
		return log.LayerProtocol, nil
	case "service":
		return log.LayerService, nil
	}
	return 0, fmt.Errorf("invalid layer %q (want transport, protocol or service)", s)
}

// ParseDirection parses "in" or "out", case-insensitively.
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	}
	return 0, fmt.Errorf("invalid direction %q (want in or out)", s)
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	}
	return 0, fmt.Errorf("invalid category %q (want message, state or error)", s)
}
