// Package hamlibtest provides fake rigctld and rotctld daemons that listen
// on loopback for use in tests.
package hamlibtest

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Response is the daemon's answer to one command line.
type Response struct {
	// Lines are the data lines sent before the report line.
	Lines []string

	// Code is the RPRT status. Zero is success.
	Code int

	// Report replaces the "RPRT <Code>" line verbatim when set.
	Report string

	// Silent suppresses the reply entirely so the client times out.
	Silent bool

	// Hangup closes the connection instead of replying.
	Hangup bool
}

// OK returns a successful response carrying lines.
func OK(lines ...string) Response {
	return Response{Lines: lines}
}

// Reject returns a response with a non-zero report code.
func Reject(code int) Response {
	return Response{Code: code}
}

// Handler answers one command line.
type Handler func(cmd string) Response

// Server is a line-protocol TCP server speaking the Hamlib daemon framing.
type Server struct {
	ln net.Listener

	mu       sync.Mutex
	handler  Handler
	conns    map[net.Conn]struct{}
	commands []string
	accepted int
	closed   bool

	wg sync.WaitGroup
}

// NewServer starts a server on 127.0.0.1 with an ephemeral port. It is
// closed automatically when the test ends.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("hamlibtest: listen: %v", err)
	}
	s := &Server{
		ln:      ln,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Host returns the listening host.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// SetHandler replaces the command handler.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Commands returns every command line received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// CountCommand returns how often cmd was received.
func (s *Server) CountCommand(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		if c == cmd {
			n++
		}
	}
	return n
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// DropConnections closes every open client connection. The listener keeps
// accepting new ones.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// Close stops the server and closes all connections.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(raw)

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		handler := s.handler
		s.mu.Unlock()

		resp := Reject(-11)
		if handler != nil {
			resp = handler(cmd)
		}
		switch {
		case resp.Hangup:
			return
		case resp.Silent:
			continue
		}

		var b strings.Builder
		for _, l := range resp.Lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
		if resp.Report != "" {
			b.WriteString(resp.Report)
			b.WriteByte('\n')
		} else {
			fmt.Fprintf(&b, "RPRT %d\n", resp.Code)
		}
		if _, err := conn.Write([]byte(b.String())); err != nil {
			return
		}
	}
}

// ftoa formats like rotctld does.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
