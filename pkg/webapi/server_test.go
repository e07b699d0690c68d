package webapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/log4ym/hamctl-go/pkg/connection"
	"github.com/log4ym/hamctl-go/pkg/device"
	"github.com/log4ym/hamctl-go/pkg/event"
	"github.com/log4ym/hamctl-go/pkg/registry"
	"github.com/log4ym/hamctl-go/pkg/service"
	"github.com/log4ym/hamctl-go/pkg/settings"
	"github.com/log4ym/hamctl-go/pkg/version"
	"github.com/log4ym/hamctl-go/pkg/webapi"
)

type mockController struct {
	mock.Mock
}

func (m *mockController) ConnectRadio(ctx context.Context, host string, port int, name string) (string, error) {
	args := m.Called(ctx, host, port, name)
	return args.String(0), args.Error(1)
}

func (m *mockController) Connect(ctx context.Context, deviceID string) (string, error) {
	args := m.Called(ctx, deviceID)
	return args.String(0), args.Error(1)
}

func (m *mockController) Disconnect(deviceID string) error {
	return m.Called(deviceID).Error(0)
}

func (m *mockController) SetRotatorTarget(ctx context.Context, azimuth float64) error {
	return m.Called(ctx, azimuth).Error(0)
}

func (m *mockController) StopRotator(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockController) ListDiscoveredDevices() []service.DeviceInfo {
	return m.Called().Get(0).([]service.DeviceInfo)
}

func (m *mockController) ListCurrentStates() []service.DeviceStatus {
	return m.Called().Get(0).([]service.DeviceStatus)
}

var _ webapi.Controller = (*service.Service)(nil)

const rigID = "hamlib-192.168.1.5:4532"

func newAPI(t *testing.T, ctrl *mockController, hub *event.Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(webapi.New(webapi.Config{
		Controller:   ctrl,
		Hub:          hub,
		PingInterval: time.Second,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestListEndpoints(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("ListDiscoveredDevices").Return([]service.DeviceInfo{
		{DeviceID: rigID, Kind: device.KindRadio, Host: "192.168.1.5", Port: 4532, Source: service.SourceMDNS},
	})
	ctrl.On("ListCurrentStates").Return([]service.DeviceStatus{
		{DeviceID: rigID, Kind: device.KindRadio, Connection: "CONNECTED",
			Radio: &event.RadioStateChanged{DeviceID: rigID, FrequencyHz: 7074000, Mode: "USB", Band: "40m"}},
	})
	srv := newAPI(t, ctrl, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/devices", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var devices []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.Equal(t, rigID, devices[0]["deviceId"])
	assert.Equal(t, "radio", devices[0]["kind"])
	assert.Equal(t, "mdns", devices[0]["source"])

	resp = do(t, http.MethodGet, srv.URL+"/api/states", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var states []service.DeviceStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&states))
	require.Len(t, states, 1)
	assert.Equal(t, "40m", states[0].Radio.Band)
}

func TestConnectRadioEndpoint(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("ConnectRadio", mock.Anything, "192.168.1.5", 4532, "IC-7300").Return(rigID, nil).Once()
	ctrl.On("ConnectRadio", mock.Anything, "192.168.1.5", 4532, "IC-7300").
		Return("", fmt.Errorf("%w: %s", registry.ErrExists, rigID)).Once()
	srv := newAPI(t, ctrl, nil)

	body := webapi.ConnectRadioRequest{Host: "192.168.1.5", Port: 4532, Name: "IC-7300"}
	resp := do(t, http.MethodPost, srv.URL+"/api/radios", body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var out webapi.ConnectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, rigID, out.DeviceID)

	resp = do(t, http.MethodPost, srv.URL+"/api/radios", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp webapi.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp.Message, "already registered")

	resp = do(t, http.MethodPost, srv.URL+"/api/radios", "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctrl.AssertExpectations(t)
}

func TestConnectDiscoveredEndpoint(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("Connect", mock.Anything, rigID).Return(rigID, nil)
	srv := newAPI(t, ctrl, nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/devices/"+rigID+"/connect", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	ctrl.AssertExpectations(t)
}

func TestDisconnectEndpoint(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("Disconnect", rigID).Return(nil)
	ctrl.On("Disconnect", "hamlib-nowhere:1").Return(service.ErrDeviceNotFound)
	srv := newAPI(t, ctrl, nil)

	resp := do(t, http.MethodDelete, srv.URL+"/api/radios/"+rigID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/api/radios/hamlib-nowhere:1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRotatorEndpoints(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("SetRotatorTarget", mock.Anything, 285.0).Return(nil)
	ctrl.On("StopRotator", mock.Anything).Return(connection.ErrNotConnected)
	srv := newAPI(t, ctrl, nil)

	az := 285.0
	resp := do(t, http.MethodPost, srv.URL+"/api/rotator/target", webapi.TargetRequest{Azimuth: &az})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/rotator/target", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/rotator/stop", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ctrl.AssertNumberOfCalls(t, "SetRotatorTarget", 1)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newAPI(t, &mockController{}, nil)
	resp := do(t, http.MethodGet, srv.URL+"/api/rotator/stop", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", service.ErrDeviceNotFound), http.StatusNotFound},
		{service.ErrManagedBySettings, http.StatusConflict},
		{fmt.Errorf("%w: port", settings.ErrInvalid), http.StatusBadRequest},
		{service.ErrInvalidAzimuth, http.StatusBadRequest},
		{service.ErrNotStarted, http.StatusServiceUnavailable},
		{&connection.RejectedError{Command: "P 1.0 0", Code: -1}, http.StatusBadGateway},
		{fmt.Errorf("%w: \"p\"", connection.ErrCommandTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, webapi.StatusFor(tt.err))
		})
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, kind string) webapi.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var raw json.RawMessage
		require.NoError(t, conn.ReadJSON(&raw))
		var f webapi.Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Kind == kind {
			return f
		}
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("ListDiscoveredDevices").Return([]service.DeviceInfo{})
	ctrl.On("ListCurrentStates").Return([]service.DeviceStatus{})
	hub := event.NewHub()
	srv := newAPI(t, ctrl, hub)

	conn := dialWS(t, srv)
	readFrame(t, conn, webapi.FrameSnapshot)

	hub.Emit(event.RadioState(rigID, device.RadioState{FrequencyHz: 14074000, Mode: "USB"}))
	f := readFrame(t, conn, webapi.FrameEvent)
	require.NotNil(t, f.Event)
	assert.Equal(t, event.TypeRadioStateChanged, f.Event.Type)
	assert.Equal(t, "20m", f.Event.Radio.Band)
}

func TestWebSocketCommands(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("ListDiscoveredDevices").Return([]service.DeviceInfo{})
	ctrl.On("ListCurrentStates").Return([]service.DeviceStatus{})
	ctrl.On("ConnectRadio", mock.Anything, "192.168.1.5", 4532, "").Return(rigID, nil)
	ctrl.On("SetRotatorTarget", mock.Anything, 90.0).Return(nil)
	ctrl.On("Disconnect", "ghost").Return(service.ErrDeviceNotFound)
	srv := newAPI(t, ctrl, event.NewHub())

	conn := dialWS(t, srv)
	readFrame(t, conn, webapi.FrameSnapshot)

	require.NoError(t, conn.WriteJSON(webapi.Request{ID: "1", Op: webapi.OpConnect, Host: "192.168.1.5", Port: 4532}))
	f := readFrame(t, conn, webapi.FrameResult)
	assert.Equal(t, "1", f.ID)
	assert.True(t, f.OK)
	assert.Equal(t, map[string]any{"deviceId": rigID}, f.Data)

	az := 90.0
	require.NoError(t, conn.WriteJSON(webapi.Request{ID: "2", Op: webapi.OpSetRotatorTarget, Azimuth: &az}))
	f = readFrame(t, conn, webapi.FrameResult)
	assert.Equal(t, "2", f.ID)
	assert.True(t, f.OK)

	require.NoError(t, conn.WriteJSON(webapi.Request{ID: "3", Op: webapi.OpDisconnect, DeviceID: "ghost"}))
	f = readFrame(t, conn, webapi.FrameResult)
	assert.False(t, f.OK)
	assert.Equal(t, http.StatusNotFound, f.Status)

	require.NoError(t, conn.WriteJSON(webapi.Request{ID: "4", Op: "reboot"}))
	f = readFrame(t, conn, webapi.FrameResult)
	assert.False(t, f.OK)
	assert.Equal(t, http.StatusBadRequest, f.Status)
}

func TestWebSocketOriginCheck(t *testing.T) {
	srv := httptest.NewServer(webapi.New(webapi.Config{
		Controller:     &mockController{},
		Hub:            event.NewHub(),
		AllowedOrigins: []string{"http://shack.local"},
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketWithoutHub(t *testing.T) {
	srv := newAPI(t, &mockController{}, nil)
	resp := do(t, http.MethodGet, srv.URL+"/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestVersionEndpoint(t *testing.T) {
	srv := newAPI(t, &mockController{}, nil)
	resp := do(t, http.MethodGet, srv.URL+"/api/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var v webapi.VersionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, version.API, v.API)
}

func TestWebSocketRejectsIncompatibleVersion(t *testing.T) {
	srv := newAPI(t, &mockController{}, event.NewHub())
	resp := do(t, http.MethodGet, srv.URL+"/ws?api=2.0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
