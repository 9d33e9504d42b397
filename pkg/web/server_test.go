package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mirror/pkg/camera"
	"github.com/teslashibe/go-mirror/pkg/tracking"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

func testFace() *detection.Detection {
	return &detection.Detection{
		Box: detection.Box{X: 100, Y: 100, Width: 200, Height: 200},
		Parts: map[detection.Part][]detection.Point{
			detection.PartJaw:      {{X: 110, Y: 150}, {X: 200, Y: 295}, {X: 290, Y: 150}},
			detection.PartLeftEye:  {{X: 140, Y: 180}, {X: 160, Y: 180}},
			detection.PartRightEye: {{X: 240, Y: 180}, {X: 260, Y: 180}},
			detection.PartNose:     {{X: 200, Y: 170}, {X: 200, Y: 185}, {X: 200, Y: 200}, {X: 200, Y: 215}},
			detection.PartMouth:    {{X: 170, Y: 250}, {X: 230, Y: 250}},
		},
	}
}

type fakeSource struct {
	mu      sync.Mutex
	onFrame func(detection.Frame)
}

func (f *fakeSource) Start(onFrame func(detection.Frame)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFrame = onFrame
}

func (f *fakeSource) Frame() (detection.Frame, bool) {
	return detection.Frame{Seq: 1, Width: 640, Height: 480, JPEG: []byte{0xff, 0xd8}}, true
}

func (f *fakeSource) Size() (int, int) { return 640, 480 }
func (f *fakeSource) Stop() error      { return nil }

func (f *fakeSource) emit(frame detection.Frame) {
	f.mu.Lock()
	fn := f.onFrame
	f.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

type fixture struct {
	server  *Server
	tracker *tracking.Tracker
	oracle  *detection.MockOracle
	camera  *camera.Manager
	source  *fakeSource
}

func newFixture(t *testing.T, withCamera bool) *fixture {
	t.Helper()

	oracle := detection.NewMockOracle()
	oracle.SetResult(testFace(), nil)
	tracker, err := tracking.New(tracking.DefaultConfig(), oracle)
	require.NoError(t, err)

	f := &fixture{tracker: tracker, oracle: oracle}
	if withCamera {
		f.source = &fakeSource{}
		open := func(deviceID int, cfg camera.Config) (camera.Source, error) {
			if deviceID > 1 {
				return nil, camera.ErrNoCamera
			}
			return f.source, nil
		}
		cfg := camera.DefaultConfig()
		cfg.FallbackToDefault = false
		f.camera, err = camera.NewManager(cfg, open)
		require.NoError(t, err)
		f.camera.OnFeedChange = func(src camera.Source) {
			if src == nil {
				tracker.ClearFeed()
				return
			}
			tracker.SetFeed(src)
		}
	}
	f.server = NewServer(Options{Addr: "127.0.0.1:0"}, tracker, f.camera)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Camera)
	assert.Equal(t, camera.StatusNotRequested, resp.Camera.Status)
	assert.True(t, resp.Tracker.Models.Loaded)
	assert.False(t, resp.Tracker.FeedActive)
	assert.False(t, resp.Tracker.HasFace)
	assert.Contains(t, resp.Hubs, "signals")
}

func TestSignalsEndpointStartsNeutral(t *testing.T) {
	f := newFixture(t, false)

	code, body := f.do(t, http.MethodGet, "/api/signals", "")
	require.Equal(t, http.StatusOK, code)

	var msg SignalsMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, tracking.Signals(tracking.NeutralFacing()), msg.Signals)
	assert.False(t, msg.HasFace)
}

func TestTuningEndpoints(t *testing.T) {
	f := newFixture(t, false)
	var applied []tracking.TuningParams
	f.server.OnTuningChange = func(p tracking.TuningParams) { applied = append(applied, p) }

	code, body := f.do(t, http.MethodGet, "/api/tuning", "")
	require.Equal(t, http.StatusOK, code)
	var params tracking.TuningParams
	require.NoError(t, json.Unmarshal(body, &params))
	assert.InDelta(t, 10, params.DetectionHz, 1e-9)
	require.NotNil(t, params.PitchBand)
	assert.Equal(t, tracking.DefaultCalibration().Pitch, *params.PitchBand)

	code, body = f.do(t, http.MethodPost, "/api/tuning", `{"detection_hz": 20, "yaw_band": {"in_min": 0.2, "in_max": -0.2, "out_min": -1, "out_max": 1}}`)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &params))
	assert.InDelta(t, 20, params.DetectionHz, 1e-9)
	assert.Equal(t, 0.2, params.YawBand.InMin)
	require.Len(t, applied, 1)

	code, _ = f.do(t, http.MethodPost, "/api/tuning", `{"validity_band": {"in_min": 0.3, "in_max": 0.3, "out_min": 0, "out_max": 1}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = f.do(t, http.MethodPost, "/api/tuning", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, applied, 1)
}

func TestCameraEndpoints(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodPost, "/api/camera/start", "")
	require.Equal(t, http.StatusOK, code, string(body))
	var info camera.Info
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, camera.StatusAccepted, info.Status)
	assert.True(t, f.tracker.Status().FeedActive)

	code, _ = f.do(t, http.MethodPost, "/api/camera/device/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/camera/device/5", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NoError(t, json.Unmarshal(body, &struct{}{}))
	assert.Equal(t, camera.StatusNoCamera, f.camera.Status())

	code, _ = f.do(t, http.MethodPost, "/api/camera/device/1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.camera.Info().DeviceID)

	code, _ = f.do(t, http.MethodPost, "/api/camera/config", `{"preset": "720p"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1280, f.camera.GetConfig().Width)

	code, _ = f.do(t, http.MethodPost, "/api/camera/config", `{"preset": "8k"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/camera/config", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/camera/config", `{"preset": `)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "invalid camera config body")

	code, _ = f.do(t, http.MethodPost, "/api/camera/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.camera.Info().DeviceID)

	code, _ = f.do(t, http.MethodPost, "/api/camera/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, f.tracker.Status().FeedActive)

	code, _ = f.do(t, http.MethodPost, "/api/camera/stop", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestCameraEndpointsWithoutCamera(t *testing.T) {
	f := newFixture(t, false)
	for _, path := range []string{"/api/camera/start", "/api/camera/stop", "/api/camera/device/0"} {
		code, _ := f.do(t, http.MethodPost, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t, false)
	code, _ := f.do(t, http.MethodGet, "/ws/signals", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

// listen serves the fixture on a random port with streams running.
func (f *fixture) listen(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.server.startStreams(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go f.server.App().Listener(ln)
	t.Cleanup(func() {
		_ = f.server.Shutdown()
		cancel()
	})
	return "ws://" + ln.Addr().String()
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSignalsWebSocket(t *testing.T) {
	f := newFixture(t, false)
	conn := dial(t, f.listen(t)+"/ws/signals")

	// Greeting plus at least one render-loop sample.
	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg SignalsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.InDelta(t, 1, msg.Validity, 1e-9)
		assert.InDelta(t, 0.5, msg.PosX, 1e-9)
	}
}

func TestDebugWebSocket(t *testing.T) {
	f := newFixture(t, true)
	conn := dial(t, f.listen(t)+"/ws/debug")
	require.Eventually(t, func() bool { return f.server.debugHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.camera.Start())
	f.tracker.Tick(context.Background())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg DebugMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, uint64(1), msg.Tick)
	assert.True(t, msg.HasFace)
	require.Len(t, msg.Paths, len(detection.AllParts))
	assert.Equal(t, detection.PartJaw, msg.Paths[0].Part)
}

func TestCameraWebSocket(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.camera.Start())
	conn := dial(t, f.listen(t)+"/ws/camera")

	// Latest frame is sent as a greeting.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gorilla.BinaryMessage, msgType)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	require.Eventually(t, func() bool { return f.server.cameraHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.source.emit(detection.Frame{Seq: 2, JPEG: []byte{1, 2, 3}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestDebugMessage(t *testing.T) {
	u := tracking.Update{Tick: 7, HasFace: false}
	msg := debugMessage(u)
	want := DebugMessage{Tick: 7, Paths: []detection.Path{}}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("debugMessage mismatch (-want +got):\n%s", diff)
	}
}
