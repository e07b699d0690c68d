package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/log4ym/hamctl-go/pkg/connection"
	"github.com/log4ym/hamctl-go/pkg/log"
)

// Stats summarises a capture file.
type Stats struct {
	TotalEvents int
	ByLayer     map[log.Layer]int
	ByCategory  map[log.Category]int
	ByDirection map[log.Direction]int
	Connections map[string]*ConnectionStats
	Errors      int
	Start       time.Time
	End         time.Time
}

// ConnectionStats summarises one TCP connection to a daemon.
type ConnectionStats struct {
	ID         string
	DeviceID   string
	RemoteAddr string
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Commands   int
	Rejected   int
	Disconnect string
}

// Collect reads every event of reader into a Stats.
func Collect(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		ByLayer:     make(map[log.Layer]int),
		ByCategory:  make(map[log.Category]int),
		ByDirection: make(map[log.Direction]int),
		Connections: make(map[string]*ConnectionStats),
	}
	err := forEach(reader, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.ByLayer[event.Layer]++
	s.ByCategory[event.Category]++
	if event.Line != nil {
		s.ByDirection[event.Direction]++
	}
	if event.Error != nil {
		s.Errors++
	}
	if s.Start.IsZero() || event.Timestamp.Before(s.Start) {
		s.Start = event.Timestamp
	}
	if event.Timestamp.After(s.End) {
		s.End = event.Timestamp
	}

	// Failed dials carry no connection ID.
	if event.ConnectionID == "" {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{ID: event.ConnectionID, FirstSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.DeviceID == "" {
		conn.DeviceID = event.DeviceID
	}
	if conn.RemoteAddr == "" {
		conn.RemoteAddr = event.RemoteAddr
	}

	switch {
	case event.Line != nil && event.Direction == log.DirectionOut:
		conn.Commands++
	case event.Line != nil && event.Line.Report != nil && *event.Line.Report != 0:
		conn.Rejected++
	case event.StateChange != nil && event.StateChange.NewState == connection.StateDisconnected.String():
		conn.Disconnect = event.StateChange.Reason
		if conn.Disconnect == "" {
			conn.Disconnect = "closed"
		}
	}
}

// RunStats prints a summary of the capture at path.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, s *Stats) {
	fmt.Fprintln(w, "=== hamctl capture statistics ===")
	fmt.Fprintln(w)

	if s.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n\n", s.End.Sub(s.Start).Round(time.Second))
	}
	fmt.Fprintf(w, "Total Events: %d\n\n", s.TotalEvents)

	fmt.Fprintln(w, "Events by Layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerProtocol, log.LayerService} {
		if n := s.ByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", l.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if n := s.ByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Lines by Direction:")
	for _, d := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if n := s.ByDirection[d]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", d.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	conns := make([]*ConnectionStats, 0, len(s.Connections))
	for _, c := range s.Connections {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].FirstSeen.Before(conns[j].FirstSeen) })

	fmt.Fprintf(w, "Connections: %d\n", len(conns))
	for _, c := range conns {
		fmt.Fprintf(w, "  [%s] %s %s: %d events, %d commands, %d rejected, duration %s\n",
			shortenConnID(c.ID), c.DeviceID, c.RemoteAddr, c.Events, c.Commands, c.Rejected,
			c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond))
		if c.Disconnect != "" {
			fmt.Fprintf(w, "           Disconnected: %s\n", c.Disconnect)
		}
	}

	if s.Errors > 0 {
		fmt.Fprintf(w, "\nErrors: %d\n", s.Errors)
	}
}
