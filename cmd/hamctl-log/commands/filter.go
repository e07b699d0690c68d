package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/log4ym/hamctl-go/pkg/log"
)

// FilterOptions holds the filter subcommand flags.
type FilterOptions struct {
	Output    string
	ConnID    string
	DeviceID  string
	Kind      string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Filter converts the flag values into a log.Filter.
func (o FilterOptions) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		DeviceID:     o.DeviceID,
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start: %w", err)
		}
		filter.Since = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end: %w", err)
		}
		filter.Until = &t
	}
	if err := applyEnumFlags(&filter, o.Layer, o.Direction, o.Category, o.Kind); err != nil {
		return log.Filter{}, err
	}
	return filter, nil
}

// RunFilter copies the matching events of the capture at path into a new
// capture file and reports how many were written.
func RunFilter(path string, opts FilterOptions, w io.Writer) (int, error) {
	if opts.Output == "" {
		return 0, errors.New("output file required")
	}
	filter, err := opts.Filter()
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("open capture: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}

	count := 0
	err = forEach(reader, func(event log.Event) error {
		out.Log(event)
		count++
		return nil
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return count, err
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, opts.Output)
	return count, nil
}
