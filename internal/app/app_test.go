package app

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/config"
	"github.com/bryanchriswhite/snapflow/internal/engine"
	"github.com/bryanchriswhite/snapflow/internal/platform/virtual"
)

func newTestApp(t *testing.T) (*App, *virtual.Desktop, string) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.NewManager(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "captures")
	if err := cfg.Set("output.directory", out); err != nil {
		t.Fatal(err)
	}
	d := virtual.Demo()
	a, err := New(cfg, d.Platform())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a, d, out
}

func TestCapture_ScreenToFile(t *testing.T) {
	a, d, out := newTestApp(t)
	events := a.Events.Subscribe()
	defer a.Events.Unsubscribe(events)

	res, err := a.Capture(context.Background(), Request{Source: "screen"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Exported {
		t.Fatalf("nothing exported")
	}
	// The pointer is on the second surface.
	if want := (Rect{X: 1920, Y: 0, Width: 1280, Height: 1024}); res.Crop != want {
		t.Fatalf("crop = %+v, want %+v", res.Crop, want)
	}
	if res.Metadata["last_region"] != "1920,0,1280,1024" {
		t.Fatalf("last_region = %q", res.Metadata["last_region"])
	}
	path := res.Metadata["file_path"]
	if filepath.Dir(path) != out {
		t.Fatalf("file_path = %q, want inside %q", path, out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	if a.Latest() != res || res.Image == nil {
		t.Fatalf("latest capture not kept")
	}
	if h := d.Outstanding(); !h.Zero() {
		t.Fatalf("leaked handles: %+v", h)
	}

	select {
	case ev := <-events:
		if ev.Type != EventCaptured || ev.Capture != res {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event published")
	}
}

func TestCapture_ActiveWindowTitleIsTrimmed(t *testing.T) {
	a, _, _ := newTestApp(t)

	res, err := a.Capture(context.Background(), Request{Source: "window", Destinations: []string{"stream"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Notes - Editor" {
		t.Fatalf("title = %q", res.Title)
	}
	if res.Exported {
		t.Fatalf("exported to a stream that is not running")
	}
	if res.Metadata["window_process"] != "editor" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestCapture_RegionNeedsRect(t *testing.T) {
	a, _, _ := newTestApp(t)
	events := a.Events.Subscribe()
	defer a.Events.Unsubscribe(events)

	if _, err := a.Capture(context.Background(), Request{Source: "region"}); err == nil {
		t.Fatalf("region without rect accepted")
	}
	ev := <-events
	if ev.Type != EventFailed || ev.Error == "" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestCapture_Region(t *testing.T) {
	a, _, _ := newTestApp(t)
	res, err := a.Capture(context.Background(), Request{
		Source:       "region",
		Region:       &Rect{X: 100, Y: 100, Width: 64, Height: 32},
		Processors:   []string{},
		Destinations: []string{"stream"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Image.Bounds().Dx() != 64 || res.Image.Bounds().Dy() != 32 {
		t.Fatalf("image = %v", res.Image.Bounds())
	}
	if res.Title != "Region" {
		t.Fatalf("title = %q", res.Title)
	}
}

func TestCapture_UnknownStages(t *testing.T) {
	a, _, _ := newTestApp(t)
	tests := []Request{
		{Source: "printer"},
		{Source: "screen", Processors: []string{"sepia"}},
		{Source: "screen", Destinations: []string{"fax"}},
		{Source: "screen", Destinations: []string{"file/3"}},
	}
	for _, req := range tests {
		if _, err := a.Capture(context.Background(), req); err == nil {
			t.Fatalf("%+v accepted", req)
		}
	}
	_, err := a.Capture(context.Background(), Request{Source: "screen", Destinations: []string{"fax"}})
	if !errors.Is(err, capture.ErrUnknownDesignation) {
		t.Fatalf("err = %v", err)
	}
}

func TestCapture_TrackerWorkItem(t *testing.T) {
	var uploaded string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/workitems", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"42","title":"Crash on save","state":"open"}]`)
	})
	mux.HandleFunc("/api/workitems/42/attachments", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		uploaded = header.Filename
		json.NewEncoder(w).Encode(map[string]string{"url": "https://tracker.test/42/1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, _, _ := newTestApp(t)
	if err := a.Config.Set("tracker.base_url", srv.URL); err != nil {
		t.Fatal(err)
	}

	infos := a.ListDestinations(context.Background(), false)
	var tracker *DestinationInfo
	for i := range infos {
		if infos[i].Designation == "tracker" {
			tracker = &infos[i]
		}
	}
	if tracker == nil || len(tracker.Members) != 1 || tracker.Members[0].Designation != "tracker/42" {
		t.Fatalf("destinations = %+v", infos)
	}

	res, err := a.Capture(context.Background(), Request{
		Source:          "window",
		Destinations:    []string{"tracker/42"},
		FilenamePattern: "${title}",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Exported || res.Metadata["upload_url"] != "https://tracker.test/42/1" {
		t.Fatalf("result = %+v", res)
	}
	if uploaded != "Notes - Editor.png" {
		t.Fatalf("uploaded %q", uploaded)
	}
}

func TestCapture_SeveralWorkItems(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/workitems", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"1","title":"First","state":"open"},{"id":"2","title":"Second","state":"open"}]`)
	})
	for _, id := range []string{"1", "2"} {
		id := id
		mux.HandleFunc("/api/workitems/"+id+"/attachments", func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[id]++
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{"url": "https://tracker.test/" + id})
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, _, _ := newTestApp(t)
	if err := a.Config.Set("tracker.base_url", srv.URL); err != nil {
		t.Fatal(err)
	}
	res, err := a.Capture(context.Background(), Request{
		Source:       "screen",
		Destinations: []string{"tracker/1", "tracker/2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Exported {
		t.Fatalf("result = %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits["1"] != 1 || hits["2"] != 1 {
		t.Fatalf("attachment uploads = %v", hits)
	}

	_, err = a.Capture(context.Background(), Request{Source: "screen", Destinations: []string{"tracker/3"}})
	if !errors.Is(err, capture.ErrUnknownDesignation) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildSource_WindowNeedsWindowSource(t *testing.T) {
	a, _, _ := newTestApp(t)
	a.Sources = capture.NewRegistry[capture.Source]("source")
	err := a.Sources.Register("window", func() (capture.Source, error) {
		return capture.SourceFunc(func(context.Context, *capture.Context) (bool, error) { return true, nil }), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.buildSource(Request{Source: "window", Window: 7}); err == nil {
		t.Fatal("foreign window source accepted a window handle")
	}
}

func TestListDestinations_TrackerNotConfigured(t *testing.T) {
	a, _, _ := newTestApp(t)
	for _, info := range a.ListDestinations(context.Background(), true) {
		if info.Designation == "tracker" && info.Error == "" {
			t.Fatalf("unconfigured tracker listed without error")
		}
		if info.Designation == "file" && info.Description == "" {
			t.Fatalf("file destination has no description")
		}
	}
}

func TestWindowOptions(t *testing.T) {
	a, _, _ := newTestApp(t)
	if err := a.Config.Set("capture.window_capture_mode", "compositor_transparent"); err != nil {
		t.Fatal(err)
	}
	opts, err := a.WindowOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Mode != engine.ModeTransparent {
		t.Fatalf("mode = %q", opts.Mode)
	}
	if opts.Background != (color.RGBA{R: 0x2c, G: 0x3e, B: 0x50, A: 0xff}) {
		t.Fatalf("background = %v", opts.Background)
	}
	if opts.GDIAllowed("iexplore") {
		t.Fatalf("iexplore allowed a block copy")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#ff8000", color.RGBA{R: 0xff, G: 0x80, A: 0xff}, false},
		{"00FF00", color.RGBA{G: 0xff, A: 0xff}, false},
		{"", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, false},
		{"#fff", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseHexColor(%q) = %v, %v", tt.in, got, err)
		}
	}
}

type fakeNotifier struct {
	summaries, bodies []string
}

func (n *fakeNotifier) Notify(summary, body string) error {
	n.summaries = append(n.summaries, summary)
	n.bodies = append(n.bodies, body)
	return nil
}

func TestCapture_NotifiesAfterExport(t *testing.T) {
	a, _, _ := newTestApp(t)
	n := &fakeNotifier{}
	a.Notifier = n

	if _, err := a.Capture(context.Background(), Request{Source: "window"}); err != nil {
		t.Fatal(err)
	}
	if len(n.bodies) != 0 {
		t.Fatalf("notified while disabled: %v", n.bodies)
	}

	if err := a.Config.Set("notify", "true"); err != nil {
		t.Fatal(err)
	}
	res, err := a.Capture(context.Background(), Request{Source: "window"})
	if err != nil {
		t.Fatal(err)
	}
	if len(n.bodies) != 1 || n.summaries[0] != "Captured Notes - Editor" || n.bodies[0] != "Saved to "+res.Metadata["file_path"] {
		t.Fatalf("notifications = %v / %v", n.summaries, n.bodies)
	}

	// Nothing exported, nothing to tell.
	if _, err := a.Capture(context.Background(), Request{Source: "window", Destinations: []string{"stream"}}); err != nil {
		t.Fatal(err)
	}
	if len(n.bodies) != 1 {
		t.Fatalf("notified without an export: %v", n.bodies)
	}
}
