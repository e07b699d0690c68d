package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/log4ym/hamctl-go/pkg/log"
)

// Record is the flat export form of a capture event.
type Record struct {
	Timestamp    string `json:"timestamp"`
	ConnectionID string `json:"connectionId,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Layer        string `json:"layer"`
	Category     string `json:"category"`
	Kind         string `json:"kind"`
	RemoteAddr   string `json:"remoteAddr,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
	Type         string `json:"type"`
	Text         string `json:"text,omitempty"`
	Command      string `json:"command,omitempty"`
	Code         *int   `json:"code,omitempty"`
	OldState     string `json:"oldState,omitempty"`
	NewState     string `json:"newState,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category", "kind",
	"remote_addr", "device_id", "type", "text", "command", "code",
	"old_state", "new_state", "reason",
}

// NewRecord flattens event.
func NewRecord(event log.Event) Record {
	rec := Record{
		Timestamp:    event.Timestamp.UTC().Format(timeLayout),
		ConnectionID: event.ConnectionID,
		Layer:        event.Layer.String(),
		Category:     event.Category.String(),
		Kind:         event.DeviceKind.String(),
		RemoteAddr:   event.RemoteAddr,
		DeviceID:     event.DeviceID,
		Type:         "unknown",
	}
	switch {
	case event.Line != nil:
		rec.Type = "line"
		rec.Direction = event.Direction.String()
		rec.Text = event.Line.Text
		rec.Command = event.Line.Command
		rec.Code = event.Line.Report
	case event.StateChange != nil:
		rec.Type = "state"
		rec.OldState = event.StateChange.OldState
		rec.NewState = event.StateChange.NewState
		rec.Reason = event.StateChange.Reason
	case event.Error != nil:
		rec.Type = "error"
		rec.Text = event.Error.Message
		rec.Command = event.Error.Context
		rec.Code = event.Error.Code
	}
	return rec
}

func (r Record) row() []string {
	code := ""
	if r.Code != nil {
		code = strconv.Itoa(*r.Code)
	}
	return []string{
		r.Timestamp, r.ConnectionID, r.Direction, r.Layer, r.Category, r.Kind,
		r.RemoteAddr, r.DeviceID, r.Type, r.Text, r.Command, code,
		r.OldState, r.NewState, r.Reason,
	}
}

// RunExport converts the capture at path to format ("jsonl" or "csv") and
// writes it to output, or to stdout when output is empty.
func RunExport(path, format, output string) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format %q (want jsonl or csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	return forEach(reader, func(event log.Event) error {
		if err := enc.Encode(NewRecord(event)); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	err := forEach(reader, func(event log.Event) error {
		return cw.Write(NewRecord(event).row())
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}
