package event

import (
	"context"
	"log/slog"
)

// SlogSink writes events to an slog.Logger. Connection changes are logged
// at Info, state updates at Debug.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging to logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Emit logs e.
func (s *SlogSink) Emit(e Event) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("type", e.Type.String()),
		slog.String("device_id", e.DeviceID),
	}

	switch {
	case e.ConnectionState != nil:
		level = slog.LevelInfo
		attrs = append(attrs, slog.String("state", e.ConnectionState.State))
		if e.ConnectionState.Error != "" {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", e.ConnectionState.Error))
		}
	case e.Discovered != nil:
		level = slog.LevelInfo
		attrs = append(attrs,
			slog.String("kind", e.Discovered.Kind.String()),
			slog.String("name", e.Discovered.Name),
			slog.String("host", e.Discovered.Host),
			slog.Int("port", e.Discovered.Port),
		)
	case e.Removed != nil:
		level = slog.LevelInfo
	case e.Radio != nil:
		attrs = append(attrs,
			slog.Int64("frequency_hz", e.Radio.FrequencyHz),
			slog.String("mode", e.Radio.Mode),
			slog.String("band", e.Radio.Band),
			slog.Bool("transmitting", e.Radio.Transmitting),
		)
	case e.Rotator != nil:
		attrs = append(attrs,
			slog.Float64("azimuth", e.Rotator.CurrentAzimuthDeg),
			slog.Bool("moving", e.Rotator.Moving),
		)
		if e.Rotator.TargetAzimuthDeg != nil {
			attrs = append(attrs, slog.Float64("target", *e.Rotator.TargetAzimuthDeg))
		}
	}

	s.logger.LogAttrs(context.Background(), level, "event", attrs...)
}

var _ Sink = (*SlogSink)(nil)
