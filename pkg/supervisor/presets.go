package supervisor

import (
	"time"

	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/hamlib"
	"github.com/log4ym/hamctl-go/pkg/settings"
)

// Radio supervises a rigctld session.
type Radio = Supervisor[device.RadioState]

// Rotator supervises a rotctld session.
type Rotator = Supervisor[device.RotatorState]

// RadioConfig returns the configuration of a radio supervisor. Radios poll
// at the fixed settings.RadioPollInterval whatever the settings say.
func RadioConfig(src SettingsFunc) Config[device.RadioState] {
	return Config[device.RadioState]{
		Kind:       device.KindRadio,
		Codec:      hamlib.RadioCodec{},
		NewTracker: func() Tracker[device.RadioState] { return device.NewRadioTracker() },
		StateEvent: event.RadioState,
		Settings:   src,
		Interval: func(settings.Device) time.Duration {
			return settings.RadioPollInterval
		},
	}
}

// RotatorConfig returns the configuration of a rotator supervisor, polling
// at the configured interval.
func RotatorConfig(src SettingsFunc) Config[device.RotatorState] {
	return Config[device.RotatorState]{
		Kind:       device.KindRotator,
		Codec:      hamlib.RotatorCodec{},
		NewTracker: func() Tracker[device.RotatorState] { return device.NewRotatorTracker() },
		StateEvent: event.RotatorPosition,
		Settings:   src,
		Interval: func(d settings.Device) time.Duration {
			return d.PollInterval(settings.DefaultRotatorPollInterval)
		},
	}
}

// SetTarget commands the rotator to azimuth and records it as the target.
func SetTarget(azimuth float64) Command[device.RotatorState] {
	return Command[device.RotatorState]{
		Line:  hamlib.RotatorCodec{}.SetPosition(azimuth),
		Apply: device.SetTarget(azimuth),
	}
}

// Stop halts the rotator and clears any target.
func Stop() Command[device.RotatorState] {
	return Command[device.RotatorState]{
		Line:  hamlib.RotatorCodec{}.Stop(),
		Apply: device.ClearTarget,
	}
}

// Static returns a SettingsFunc that always yields dev.
func Static(dev settings.Device) SettingsFunc {
	return func() (settings.Device, error) { return dev, nil }
}

// FromSource returns a SettingsFunc reading one device from src.
func FromSource(src settings.Source, kind device.Kind) SettingsFunc {
	return func() (settings.Device, error) {
		snap, err := src.Current()
		if kind == device.KindRotator {
			return snap.Rotator, err
		}
		return snap.Radio, err
	}
}
