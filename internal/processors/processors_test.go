package processors

import (
	"context"
	"errors"
	"image"
	"image/color"
	"reflect"
	"testing"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/config"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/overlay"
	"github.com/bryanchriswhite/snapflow/internal/platform/virtual"
)

// desktopContext returns a context holding a blank capture of the whole demo
// desktop.
func desktopContext() *capture.Context {
	c := capture.NewContext(capture.Defaults{}, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c.SetCapture(capture.NewElement(image.NewRGBA(image.Rect(0, 0, 3200, 1080))), image.Point{})
	c.Title = "Desktop"
	return c
}

func TestActiveWindowProcessor(t *testing.T) {
	d := virtual.Demo()
	c := desktopContext()

	ok, err := NewActiveWindowProcessor(d).Process(context.Background(), c)
	if err != nil || !ok {
		t.Fatalf("Process = %v, %v", ok, err)
	}
	if want := image.Rect(2100, 120, 2900, 720); c.CropRect != want || c.ClipArea.Bounds() != want {
		t.Fatalf("crop = %v clip = %v, want %v", c.CropRect, c.ClipArea.Bounds(), want)
	}
	if c.Title != "  Notes - Editor  " {
		t.Fatalf("title = %q", c.Title)
	}
}

func TestActiveWindowProcessor_MaximizedDropsBorder(t *testing.T) {
	d := virtual.Demo()
	wins, _ := d.List()
	for _, w := range wins {
		if w.Maximized {
			d.SetActive(w.Handle)
		}
	}
	c := desktopContext()
	if ok, _ := NewActiveWindowProcessor(d).Process(context.Background(), c); !ok {
		t.Fatalf("Process reported failure")
	}
	if want := image.Rect(0, 0, 1920, 1040); c.CropRect != want {
		t.Fatalf("crop = %v, want %v", c.CropRect, want)
	}
}

func TestActiveWindowProcessor_FailureIsAdvisory(t *testing.T) {
	d := virtual.Demo()
	d.Fail("ActiveWindow", errors.New("no focus"), 1)
	c := desktopContext()
	before := c.CropRect

	ok, err := NewActiveWindowProcessor(d).Process(context.Background(), c)
	if err != nil || ok {
		t.Fatalf("Process = %v, %v; want false, nil", ok, err)
	}
	if c.CropRect != before {
		t.Fatalf("crop changed on failure")
	}
}

func TestTitleFixProcessor(t *testing.T) {
	catalog := []config.TitleFix{
		{Name: "firefox", Match: ` - Mozilla Firefox.*`},
		{Name: "prefix", Match: `^\[\d+\] `, Replace: ""},
		{Name: "shout", Match: `notes`, Replace: "NOTES"},
		{Name: "broken", Match: `(`},
	}
	p := NewTitleFixProcessor(catalog, []string{"missing", "firefox", "broken", "prefix", "shout"})
	if got, want := p.Active(), []string{"firefox", "prefix", "shout"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("active fixes = %v, want %v", got, want)
	}

	cases := map[string]string{
		"  [3] release notes - Mozilla Firefox Private  ": "release NOTES",
		"Terminal": "Terminal",
		"":         "",
	}
	for in, want := range cases {
		c := desktopContext()
		c.Title = in
		ok, err := p.Process(context.Background(), c)
		if err != nil || !ok {
			t.Fatalf("Process(%q) = %v, %v", in, ok, err)
		}
		if c.Title != want {
			t.Errorf("title %q -> %q, want %q", in, c.Title, want)
		}
	}
}

func TestTitleFixProcessor_OrderMatters(t *testing.T) {
	catalog := []config.TitleFix{
		{Name: "a", Match: "x", Replace: "y"},
		{Name: "b", Match: "y", Replace: "z"},
	}
	for _, tc := range []struct {
		active []string
		want   string
	}{
		{[]string{"a", "b"}, "zz"},
		{[]string{"b", "a"}, "yz"},
	} {
		c := desktopContext()
		c.Title = "xy"
		NewTitleFixProcessor(catalog, tc.active).Process(context.Background(), c)
		if c.Title != tc.want {
			t.Errorf("%v: title = %q, want %q", tc.active, c.Title, tc.want)
		}
	}
}

func TestScreenModeProcessor(t *testing.T) {
	full := image.Rect(0, 0, 3200, 1080)
	cases := []struct {
		name   string
		mode   ScreenMode
		index  int
		cursor image.Point
		want   image.Rectangle
	}{
		{"auto follows the pointer", ScreenAuto, 0, image.Pt(2400, 400), image.Rect(1920, 0, 3200, 1024)},
		{"auto on primary", ScreenAuto, 0, image.Pt(5, 5), image.Rect(0, 0, 1920, 1080)},
		{"auto pointer off-screen", ScreenAuto, 0, image.Pt(3000, 1060), full},
		{"fixed", ScreenFixed, 1, image.Point{}, image.Rect(1920, 0, 3200, 1024)},
		{"fixed out of range", ScreenFixed, 7, image.Point{}, full},
		{"full", ScreenFull, 1, image.Pt(2400, 400), full},
	}
	for _, tc := range cases {
		d := virtual.Demo()
		d.SetCursor(tc.cursor, nil, image.Point{})
		p := NewScreenModeProcessor(geometry.NewResolver(d), d, tc.mode, tc.index)

		c := desktopContext()
		ok, err := p.Process(context.Background(), c)
		if err != nil || !ok {
			t.Fatalf("%s: Process = %v, %v", tc.name, ok, err)
		}
		if c.CropRect != tc.want {
			t.Errorf("%s: crop = %v, want %v", tc.name, c.CropRect, tc.want)
		}
		if p.LastRegion() != tc.want {
			t.Errorf("%s: last region = %v", tc.name, p.LastRegion())
		}
		if v, _ := c.MetadataValue("last_region"); v != formatRect(tc.want) {
			t.Errorf("%s: last_region = %q", tc.name, v)
		}
	}
}

func TestParseScreenMode(t *testing.T) {
	for in, want := range map[string]ScreenMode{"": ScreenAuto, "Fixed": ScreenFixed, " full ": ScreenFull} {
		if got, err := ParseScreenMode(in); err != nil || got != want {
			t.Errorf("ParseScreenMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseScreenMode("primary"); err == nil {
		t.Errorf("unknown mode accepted")
	}
}

func TestOverlayProcessor_StampsCropArea(t *testing.T) {
	m := overlay.NewManager()
	m.LoadFromConfig([]map[string]interface{}{{
		"type":  "frame",
		"width": 1,
		"color": map[string]interface{}{"r": 0, "g": 255, "b": 0},
	}})

	content := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	c := capture.NewContext(capture.Defaults{}, time.Now())
	c.SetCapture(capture.NewElement(content), image.Pt(500, 300))
	c.Crop(image.Rect(510, 320, 560, 360))

	ok, err := NewOverlayProcessor(m).Process(context.Background(), c)
	if err != nil || !ok {
		t.Fatalf("Process = %v, %v", ok, err)
	}
	out, isNRGBA := c.Capture.Content.(*image.NRGBA)
	if !isNRGBA {
		t.Fatalf("content became %T, alpha must be preserved", c.Capture.Content)
	}
	green := color.NRGBA{G: 255, A: 255}
	if got := out.NRGBAAt(10, 20); got != green {
		t.Fatalf("crop corner = %v, want frame", got)
	}
	if got := out.NRGBAAt(9, 19); got.A != 0 {
		t.Fatalf("outside crop stamped: %v", got)
	}
	if content.NRGBAAt(10, 20).A != 0 {
		t.Fatalf("original capture modified")
	}
}

func TestOverlayProcessor_NoWidgetsIsNoop(t *testing.T) {
	c := desktopContext()
	before := c.Capture
	if ok, err := NewOverlayProcessor(overlay.NewManager()).Process(context.Background(), c); !ok || err != nil {
		t.Fatalf("Process = %v, %v", ok, err)
	}
	if c.Capture != before {
		t.Fatalf("capture replaced without widgets")
	}
}
