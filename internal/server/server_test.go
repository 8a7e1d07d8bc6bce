package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hudpulse/hudpulse/internal/engine"
	apperrors "github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/event"
	"github.com/hudpulse/hudpulse/internal/metrics"
)

// fakeEngine records control calls and returns canned results.
type fakeEngine struct {
	startErr error
	testErr  error
	frameErr error
	status   engine.Status
	report   *engine.TestReport

	startedWith []byte
	stops       int
	testedWith  []byte
	testedDir   string
}

func (f *fakeEngine) StartWatch(ctx context.Context, profileJSON []byte) error {
	f.startedWith = profileJSON
	return f.startErr
}

func (f *fakeEngine) StopWatch() { f.stops++ }

func (f *fakeEngine) Status() engine.Status { return f.status }

func (f *fakeEngine) TestProfile(ctx context.Context, profileJSON []byte, outputDir string) (*engine.TestReport, error) {
	f.testedWith = profileJSON
	f.testedDir = outputDir
	if f.testErr != nil {
		return nil, f.testErr
	}
	return f.report, nil
}

func (f *fakeEngine) Frame(ctx context.Context) (image.Image, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return image.NewNRGBA(image.Rect(0, 0, 8, 6)), nil
}

func newTestServer(eng *fakeEngine) (*Server, *event.Fanout) {
	fanout := event.NewFanout(16)
	return New(eng, fanout, metrics.New()), fanout
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, http.NoBody)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	return rec
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, OPTIONS" {
		t.Errorf("CORS methods = %q, want %q", v, "GET, POST, OPTIONS")
	}

	req = httptest.NewRequest("GET", "/test", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin on GET = %q, want %q", v, "*")
	}
}

func TestStatusEndpoint(t *testing.T) {
	eng := &fakeEngine{status: engine.Status{Running: true, Profile: "arena", TickMS: 50}}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}

	var st engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Running || st.Profile != "arena" || st.TickMS != 50 {
		t.Errorf("status = %+v, want running arena at 50ms", st)
	}
}

func TestWatchStartPassesBodyThrough(t *testing.T) {
	eng := &fakeEngine{status: engine.Status{Running: true, Profile: "arena"}}
	srv, _ := newTestServer(eng)

	profileJSON := `{"name": "arena", "detectors": []}`
	rec := doRequest(t, srv, "POST", "/api/watch/start", profileJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body)
	}
	if string(eng.startedWith) != profileJSON {
		t.Errorf("engine got body %q, want %q", eng.startedWith, profileJSON)
	}

	var st engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Running {
		t.Error("response status not running after successful start")
	}
}

func TestWatchStartErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid profile", apperrors.New(apperrors.CodeProfileInvalid, "bad profile"), http.StatusUnprocessableEntity, "profile_invalid"},
		{"unresolved templates", apperrors.New(apperrors.CodeTemplateSetUnresolved, "missing set"), http.StatusUnprocessableEntity, "template_set_unresolved"},
		{"capture unavailable", apperrors.New(apperrors.CodeCaptureUnavailable, "no display"), http.StatusServiceUnavailable, "capture_unavailable"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeEngine{startErr: tt.err})
			rec := doRequest(t, srv, "POST", "/api/watch/start", `{}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("error code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestWatchStopEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, "POST", "/api/watch/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if eng.stops != 1 {
		t.Errorf("StopWatch called %d times, want 1", eng.stops)
	}
}

func TestProfileTestEndpoint(t *testing.T) {
	eng := &fakeEngine{report: &engine.TestReport{Profile: "calib", FrameW: 100, FrameH: 100}}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, "POST", "/api/profile/test", `{"profile": {"name": "calib"}, "output_dir": "crops"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body)
	}
	if string(eng.testedWith) != `{"name": "calib"}` {
		t.Errorf("engine got profile %q", eng.testedWith)
	}
	if eng.testedDir != "crops" {
		t.Errorf("engine got output dir %q, want %q", eng.testedDir, "crops")
	}

	var report engine.TestReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Profile != "calib" || report.FrameW != 100 {
		t.Errorf("report = %+v, want calib at 100 wide", report)
	}
}

func TestProfileTestRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"no profile", `{"output_dir": "x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeEngine{})
			rec := doRequest(t, srv, "POST", "/api/profile/test", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestFrameEndpoint(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})

	rec := doRequest(t, srv, "GET", "/api/frame", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("frame = %dx%d, want 8x6", b.Dx(), b.Dy())
	}
}

func TestFrameEndpointUnavailable(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{frameErr: apperrors.New(apperrors.CodeCaptureUnavailable, "no display")})

	rec := doRequest(t, srv, "GET", "/api/frame", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})

	rec := doRequest(t, srv, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health body = %s, want ok", rec.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})

	rec := doRequest(t, srv, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "hudpulse_ticks_total") {
		t.Error("metrics scrape missing hudpulse_ticks_total")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})

	rec := doRequest(t, srv, "GET", "/api/watch/start", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := &rateLimiter{}
	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("message %d denied inside the limit", i)
		}
	}
	if rl.allow() {
		t.Error("message over the limit allowed")
	}

	// Aging one slot out of the window frees exactly one message.
	rl.mu.Lock()
	rl.timestamps[0] = time.Now().Add(-2 * RateLimitWindow)
	rl.mu.Unlock()
	if !rl.allow() {
		t.Error("message denied after a slot aged out")
	}
	if rl.allow() {
		t.Error("second message allowed after one slot aged out")
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	eng := &fakeEngine{status: engine.Status{Running: true, Profile: "arena"}}
	srv, fanout := newTestServer(eng)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// A status round-trip proves the subscription is wired before
	// anything is published.
	if err := wsjson.Write(ctx, conn, inboundMessage{Type: "status"}); err != nil {
		t.Fatalf("write status request: %v", err)
	}
	var sm statusMessage
	if err := wsjson.Read(ctx, conn, &sm); err != nil {
		t.Fatalf("read status reply: %v", err)
	}
	if sm.Type != "status" || !sm.Status.Running || sm.Status.Profile != "arena" {
		t.Errorf("status reply = %+v, want running arena", sm)
	}
	if got := srv.met.WSClients.Load(); got != 1 {
		t.Errorf("ws client gauge = %d, want 1", got)
	}

	fanout.Publish([]event.Event{{
		Cmd:      event.KindHit,
		Detector: "left",
		Source:   "redness_rois",
		Value:    0.8,
		TS:       123,
	}})

	var ev event.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Cmd != event.KindHit || ev.Detector != "left" || ev.TS != 123 {
		t.Errorf("streamed event = %+v, want the published hit", ev)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for srv.met.WSClients.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("ws client gauge never returned to 0 after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
