package event

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject root used when none is configured.
const DefaultSubjectPrefix = "hamctl"

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every event as JSON to
// <prefix>.<event-type>.<device-token>.
type NATSSink struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// NewNATSSink creates a sink publishing through pub. An empty prefix means
// DefaultSubjectPrefix; a nil logger discards publish failures.
func NewNATSSink(pub Publisher, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NATSSink{pub: pub, prefix: prefix, logger: logger}
}

// Subject returns the subject e is published on.
func (s *NATSSink) Subject(e Event) string {
	return s.prefix + "." + e.Type.String() + "." + SubjectToken(e.DeviceID)
}

// Emit publishes e. Failures are logged and otherwise ignored.
func (s *NATSSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("nats: encode event", "type", e.Type.String(), "error", err)
		return
	}
	if err := s.pub.Publish(s.Subject(e), data); err != nil {
		s.logger.Warn("nats: publish", "subject", s.Subject(e), "error", err)
	}
}

// SubjectToken makes a device ID usable as one subject token. Dots,
// wildcards and whitespace are replaced by underscores.
func SubjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', ':':
			return '_'
		}
		return r
	}, id)
}

// ConnectNATS dials a NATS server with reconnect handling logged to logger.
func ConnectNATS(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
}

var (
	_ Sink      = (*NATSSink)(nil)
	_ Publisher = (*nats.Conn)(nil)
)
