package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/app"
	"github.com/bryanchriswhite/snapflow/internal/config"
	"github.com/bryanchriswhite/snapflow/internal/platform/virtual"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.NewManager(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("output.directory", filepath.Join(dir, "captures")); err != nil {
		t.Fatal(err)
	}
	a, err := app.New(cfg, virtual.Demo().Platform())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(a)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return s, srv
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	var body map[string]string
	if code := getJSON(t, srv.URL+"/api/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "healthy" || body["platform"] != "virtual" {
		t.Fatalf("body = %v", body)
	}
}

func TestDesktopEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	var surfaces []struct {
		Index   int      `json:"index"`
		Bounds  app.Rect `json:"bounds"`
		Primary bool     `json:"primary"`
	}
	getJSON(t, srv.URL+"/api/surfaces", &surfaces)
	if len(surfaces) != 2 || !surfaces[0].Primary || surfaces[1].Bounds.Width != 1280 {
		t.Fatalf("surfaces = %+v", surfaces)
	}

	var windows []windowInfo
	getJSON(t, srv.URL+"/api/windows", &windows)
	if len(windows) != 2 {
		t.Fatalf("windows = %+v", windows)
	}

	var active windowInfo
	getJSON(t, srv.URL+"/api/windows/active", &active)
	if active.Process != "editor" {
		t.Fatalf("active = %+v", active)
	}
}

func TestCaptureFlowOverHTTP(t *testing.T) {
	_, srv := newTestServer(t)

	if code := getJSON(t, srv.URL+"/api/captures/latest", nil); code != http.StatusNotFound {
		t.Fatalf("latest before any capture = %d", code)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	body := `{"source":"region","region":{"x":10,"y":20,"width":30,"height":40},"processors":[]}`
	resp, err := http.Post(srv.URL+"/api/captures", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res app.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Exported || res.Crop != (app.Rect{X: 10, Y: 20, Width: 30, Height: 40}) {
		t.Fatalf("result = %+v", res)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev app.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != app.EventCaptured || ev.Capture == nil || ev.Capture.Title != "Region" {
		t.Fatalf("event = %+v", ev)
	}

	latest, err := http.Get(srv.URL + "/api/captures/latest")
	if err != nil {
		t.Fatal(err)
	}
	defer latest.Body.Close()
	img, err := png.Decode(latest.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 40 {
		t.Fatalf("latest = %v", img.Bounds())
	}
}

func TestCaptureRejectsUnknownDestination(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/captures", "application/json",
		strings.NewReader(`{"source":"screen","destinations":["fax"]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestConfigEndpoints(t *testing.T) {
	s, srv := newTestServer(t)
	if err := s.app.Config.Set("tracker.token", "hunter2"); err != nil {
		t.Fatal(err)
	}

	var cfg config.Config
	getJSON(t, srv.URL+"/api/config", &cfg)
	if cfg.Tracker.Token != "********" {
		t.Fatalf("token leaked: %q", cfg.Tracker.Token)
	}

	cfg.Output.Format = "jpg"
	data, _ := json.Marshal(cfg)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/config", bytes.NewReader(data))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := s.app.Config.Get()
	if got.Output.Format != "jpg" || got.Tracker.Token != "hunter2" {
		t.Fatalf("format = %q token = %q", got.Output.Format, got.Tracker.Token)
	}

	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/api/config/keys/capture.screen_capture_mode",
		strings.NewReader(`{"value":"sideways"}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid value accepted: %d", resp.StatusCode)
	}

	var kv map[string]string
	getJSON(t, srv.URL+"/api/config/keys/output.format", &kv)
	if kv["value"] != "jpg" {
		t.Fatalf("value = %v", kv)
	}
}

func TestStreamRoutes(t *testing.T) {
	s, srv := newTestServer(t)
	if code := getJSON(t, srv.URL+"/stream/latest.jpg", nil); code != http.StatusNotFound {
		t.Fatalf("snapshot before frames = %d", code)
	}
	if err := s.app.Stream.Start(); err != nil {
		t.Fatal(err)
	}
	var stats map[string]interface{}
	getJSON(t, srv.URL+"/stream/stats", &stats)
	if stats["running"] != true {
		t.Fatalf("stats = %v", stats)
	}
}
