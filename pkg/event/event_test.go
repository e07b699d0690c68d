package event_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/event/mocks"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  event.Type
		want string
	}{
		{event.TypeConnectionStateChanged, "connection-state-changed"},
		{event.TypeDeviceDiscovered, "device-discovered"},
		{event.TypeDeviceRemoved, "device-removed"},
		{event.TypeRadioStateChanged, "radio-state-changed"},
		{event.TypeRotatorPositionChanged, "rotator-position-changed"},
		{event.Type(0), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestConstructors(t *testing.T) {
	t.Run("ConnectionState", func(t *testing.T) {
		e := event.ConnectionState("hamlib-rig:4532", "ERROR", errors.New("refused"))
		require.NotNil(t, e.ConnectionState)
		assert.Equal(t, event.TypeConnectionStateChanged, e.Type)
		assert.Equal(t, "ERROR", e.ConnectionState.State)
		assert.Equal(t, "refused", e.ConnectionState.Error)
		assert.Same(t, e.ConnectionState, e.Payload())

		e = event.ConnectionState("hamlib-rig:4532", "CONNECTED", nil)
		assert.Empty(t, e.ConnectionState.Error)
	})

	t.Run("Discovered", func(t *testing.T) {
		id := device.Identity{Kind: device.KindRadio, Host: "rig.local", Port: 4532, Name: "IC-7300"}
		e := event.Discovered(id)
		require.NotNil(t, e.Discovered)
		assert.Equal(t, "hamlib-rig.local:4532", e.DeviceID)
		assert.Equal(t, "IC-7300", e.Discovered.Name)
		assert.Equal(t, device.KindRadio, e.Discovered.Kind)
	})

	t.Run("RadioStateDerivesBand", func(t *testing.T) {
		e := event.RadioState("hamlib-rig:4532", device.RadioState{FrequencyHz: 7074000, Mode: "PKTUSB"})
		require.NotNil(t, e.Radio)
		assert.Equal(t, "40m", e.Radio.Band)
		assert.Equal(t, int64(7074000), e.Radio.FrequencyHz)
	})

	t.Run("RotatorPositionCopiesTarget", func(t *testing.T) {
		target := 90.0
		s := device.RotatorState{CurrentAzimuthDeg: 45, TargetAzimuthDeg: &target, Moving: true}
		e := event.RotatorPosition("rotator-rot:4533", s)
		require.NotNil(t, e.Rotator)
		require.NotNil(t, e.Rotator.TargetAzimuthDeg)

		target = 10
		assert.Equal(t, 90.0, *e.Rotator.TargetAzimuthDeg)
	})
}

func TestEventJSON(t *testing.T) {
	e := event.RotatorPosition("rotator-rot:4533", device.RotatorState{CurrentAzimuthDeg: 285})
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "rotator-position-changed", decoded["type"])
	assert.Equal(t, "rotator-rot:4533", decoded["deviceId"])

	rot, ok := decoded["rotator"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 285.0, rot["currentAzimuthDeg"])
	assert.NotContains(t, rot, "targetAzimuthDeg")
	assert.NotContains(t, decoded, "radio")
}

func TestMultiSink(t *testing.T) {
	a := mocks.NewMockSink(t)
	b := mocks.NewMockSink(t)
	e := event.Removed("hamlib-rig:4532")

	a.EXPECT().Emit(e).Once()
	b.EXPECT().Emit(e).Once()

	event.NewMultiSink(a, nil, b).Emit(e)
}

func TestHub(t *testing.T) {
	t.Run("FanOut", func(t *testing.T) {
		hub := event.NewHub()
		ch1, cancel1 := hub.Subscribe(4)
		ch2, cancel2 := hub.Subscribe(4)
		defer cancel1()
		defer cancel2()

		hub.Emit(event.Removed("x"))

		for _, ch := range []<-chan event.Event{ch1, ch2} {
			select {
			case got := <-ch:
				assert.Equal(t, event.TypeDeviceRemoved, got.Type)
			case <-time.After(time.Second):
				t.Fatal("subscriber did not receive event")
			}
		}
	})

	t.Run("SlowSubscriberDoesNotBlock", func(t *testing.T) {
		hub := event.NewHub()
		_, cancel := hub.Subscribe(1)
		defer cancel()

		hub.Emit(event.Removed("a"))
		hub.Emit(event.Removed("b"))

		assert.Equal(t, uint64(1), hub.Dropped())
	})

	t.Run("CancelClosesChannel", func(t *testing.T) {
		hub := event.NewHub()
		ch, cancel := hub.Subscribe(1)
		assert.Equal(t, 1, hub.Subscribers())

		cancel()
		cancel()

		_, open := <-ch
		assert.False(t, open)
		assert.Equal(t, 0, hub.Subscribers())

		hub.Emit(event.Removed("a"))
	})

	t.Run("Close", func(t *testing.T) {
		hub := event.NewHub()
		ch, _ := hub.Subscribe(1)
		hub.Close()

		_, open := <-ch
		assert.False(t, open)

		late, _ := hub.Subscribe(1)
		_, open = <-late
		assert.False(t, open)
	})
}

func TestNATSSink(t *testing.T) {
	t.Run("PublishesJSONOnDeviceSubject", func(t *testing.T) {
		pub := mocks.NewMockPublisher(t)
		sink := event.NewNATSSink(pub, "log4ym", nil)
		e := event.RadioState("hamlib-192.168.1.5:4532", device.RadioState{FrequencyHz: 14074000, Mode: "USB"})

		pub.EXPECT().
			Publish("log4ym.radio-state-changed.hamlib-192_168_1_5_4532", mock.Anything).
			Run(func(_ string, data []byte) {
				var decoded event.Event
				require.NoError(t, json.Unmarshal(data, &decoded))
				require.NotNil(t, decoded.Radio)
				assert.Equal(t, "20m", decoded.Radio.Band)
			}).
			Return(nil).
			Once()

		sink.Emit(e)
	})

	t.Run("PublishErrorIsLogged", func(t *testing.T) {
		pub := mocks.NewMockPublisher(t)
		var buf bytes.Buffer
		sink := event.NewNATSSink(pub, "", slog.New(slog.NewTextHandler(&buf, nil)))

		pub.EXPECT().Publish("hamctl.device-removed.x", mock.Anything).Return(errors.New("nats: connection closed")).Once()

		sink.Emit(event.Removed("x"))
		assert.Contains(t, buf.String(), "connection closed")
	})
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "rotator-10_0_0_1_4533", event.SubjectToken("rotator-10.0.0.1:4533"))
	assert.Equal(t, "_", event.SubjectToken(""))
	assert.Equal(t, "a_b_", event.SubjectToken("a*b>"))
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := event.NewSlogSink(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	sink.Emit(event.ConnectionState("hamlib-rig:4532", "ERROR", errors.New("refused")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "refused", entry["error"])
	assert.Equal(t, "hamlib-rig:4532", entry["device_id"])
}
