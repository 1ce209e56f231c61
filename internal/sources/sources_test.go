package sources

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/engine"
	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/bryanchriswhite/snapflow/internal/platform/virtual"
)

func newContext() *capture.Context {
	return capture.NewContext(capture.Defaults{}, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
}

func setup() (*virtual.Desktop, *engine.Capturer) {
	d := virtual.Demo()
	return d, engine.NewCapturer(d.Platform())
}

func samePixels(t *testing.T, got image.Image, want *image.RGBA, points ...image.Point) {
	t.Helper()
	for _, p := range points {
		g := color.RGBAModel.Convert(got.At(p.X, p.Y))
		w := want.RGBAAt(want.Rect.Min.X+p.X, want.Rect.Min.Y+p.Y)
		if g != w {
			t.Fatalf("pixel %v = %v, want %v", p, g, w)
		}
	}
}

func TestScreenSource_CapturesVirtualDesktop(t *testing.T) {
	d, capturer := setup()
	c := newContext()

	ok, err := NewScreenSource(capturer).Import(context.Background(), c)
	if err != nil || !ok {
		t.Fatalf("Import = %v, %v", ok, err)
	}
	if want := image.Rect(0, 0, 3200, 1080); c.CaptureRect() != want || c.CropRect != want {
		t.Fatalf("capture rect = %v crop = %v", c.CaptureRect(), c.CropRect)
	}
	if c.Title != "Desktop" {
		t.Fatalf("title = %q", c.Title)
	}
	// The second surface is shorter than the first.
	if !c.Capture.HasAlpha() {
		t.Fatalf("off-screen strip was not masked")
	}
	if _, _, _, a := c.Capture.Content.At(3000, 1050).RGBA(); a != 0 {
		t.Fatalf("off-screen pixel alpha = %d, want 0", a)
	}
	if h := d.Outstanding(); !h.Zero() {
		t.Fatalf("leaked handles: %+v", h)
	}
}

func TestRegionSource(t *testing.T) {
	d, capturer := setup()
	rect := image.Rect(1900, 500, 2000, 560)

	c := newContext()
	ok, err := NewRegionSource(capturer, rect).Import(context.Background(), c)
	if err != nil || !ok {
		t.Fatalf("Import = %v, %v", ok, err)
	}
	if c.Origin != rect.Min || c.Capture.Bounds != image.Rect(0, 0, 100, 60) {
		t.Fatalf("origin = %v bounds = %v", c.Origin, c.Capture.Bounds)
	}
	samePixels(t, c.Capture.Content, d.Screen(rect), image.Pt(0, 0), image.Pt(19, 30), image.Pt(20, 30), image.Pt(99, 59))
}

func TestRegionSource_EmptyRegionImportsNothing(t *testing.T) {
	_, capturer := setup()
	c := newContext()
	ok, err := NewRegionSource(capturer, image.Rect(10, 10, 10, 90)).Import(context.Background(), c)
	if err != nil || ok {
		t.Fatalf("Import = %v, %v; want false, nil", ok, err)
	}
	if c.Capture != nil {
		t.Fatalf("capture set for an empty region")
	}
}

func TestRegionSource_NativeFailure(t *testing.T) {
	d, capturer := setup()
	d.Fail("BitBlt", errors.New("device lost"), 1)

	_, err := NewRegionSource(capturer, image.Rect(0, 0, 50, 50)).Import(context.Background(), newContext())
	var nre *engine.NativeResourceError
	if !errors.As(err, &nre) || nre.Op != "BitBlt" {
		t.Fatalf("error = %v, want BitBlt NativeResourceError", err)
	}
}

func TestWindowSource_ActiveWindow(t *testing.T) {
	d, capturer := setup()
	opts := engine.WindowCaptureOptions{Mode: engine.ModeScreen}

	c := newContext()
	ok, err := NewWindowSource(capturer, d, opts).Import(context.Background(), c)
	if err != nil || !ok {
		t.Fatalf("Import = %v, %v", ok, err)
	}
	want := image.Rect(2100, 120, 2900, 720)
	if c.CaptureRect() != want {
		t.Fatalf("capture rect = %v, want %v", c.CaptureRect(), want)
	}
	if c.Title != "  Notes - Editor  " {
		t.Fatalf("title = %q", c.Title)
	}
	if v, _ := c.MetadataValue("window_process"); v != "editor" {
		t.Fatalf("window_process = %q", v)
	}
	samePixels(t, c.Capture.Content, d.Screen(want), image.Pt(0, 0), image.Pt(400, 300), image.Pt(799, 599))
}

func TestWindowSource_CompositorPath(t *testing.T) {
	d, capturer := setup()
	c := newContext()

	ok, err := NewWindowSource(capturer, d, engine.WindowCaptureOptions{Mode: engine.ModeCompositor}).Import(context.Background(), c)
	if err != nil || !ok {
		t.Fatalf("Import = %v, %v", ok, err)
	}
	if c.Capture.Bounds != image.Rect(0, 0, 800, 600) || c.Origin != image.Pt(2100, 120) {
		t.Fatalf("bounds = %v origin = %v", c.Capture.Bounds, c.Origin)
	}
	if d.Calls("CreateHost") != 1 {
		t.Fatalf("compositor not used")
	}
	if h := d.Outstanding(); !h.Zero() {
		t.Fatalf("leaked handles: %+v", h)
	}
}

func TestWindowSource_ForWindow(t *testing.T) {
	d, capturer := setup()
	wins, err := d.List()
	if err != nil {
		t.Fatal(err)
	}
	var terminal *platform.Window
	for _, w := range wins {
		if w.Title == "Terminal" {
			terminal = w
		}
	}
	if terminal == nil {
		t.Fatalf("demo terminal window missing")
	}

	src := NewWindowSource(capturer, d, engine.WindowCaptureOptions{Mode: engine.ModeScreen}).ForWindow(terminal.Handle)
	c := newContext()
	if ok, err := src.Import(context.Background(), c); err != nil || !ok {
		t.Fatalf("Import = %v, %v", ok, err)
	}
	if want := image.Rect(0, 0, 1920, 1040); c.CaptureRect() != want {
		t.Fatalf("maximized window rect = %v, want %v", c.CaptureRect(), want)
	}
}

func TestWindowSource_QueryFailure(t *testing.T) {
	d, capturer := setup()
	d.Fail("ActiveWindow", errors.New("no display"), 0)

	ok, err := NewWindowSource(capturer, d, engine.WindowCaptureOptions{}).Import(context.Background(), newContext())
	if err == nil || ok {
		t.Fatalf("Import = %v, %v; want an error", ok, err)
	}
}

func TestMouseSource(t *testing.T) {
	d := virtual.Demo()
	arrow := virtual.Arrow()

	cases := []struct {
		name    string
		enabled bool
		setup   func()
		want    *image.Rectangle
	}{
		{"disabled", false, func() {}, nil},
		{"visible", true, func() {}, &image.Rectangle{Min: image.Pt(2400, 400), Max: image.Pt(2400, 400).Add(arrow.Bounds().Size())}},
		{"hotspot", true, func() { d.SetCursor(image.Pt(100, 100), arrow, image.Pt(4, 2)) }, &image.Rectangle{Min: image.Pt(96, 98), Max: image.Pt(96, 98).Add(arrow.Bounds().Size())}},
		{"hidden", true, func() { d.SetCursor(image.Pt(100, 100), nil, image.Point{}) }, nil},
		{"failing", true, func() { d.Fail("CaptureCursor", errors.New("denied"), 1) }, nil},
	}
	for _, tc := range cases {
		tc.setup()
		c := newContext()
		c.MouseCursor = &capture.Element{}
		ok, err := NewMouseSource(d, tc.enabled).Import(context.Background(), c)
		if err != nil || !ok {
			t.Fatalf("%s: Import = %v, %v; the pointer never stops a flow", tc.name, ok, err)
		}
		switch {
		case tc.want == nil && c.MouseCursor != nil:
			t.Errorf("%s: cursor = %v, want none", tc.name, c.MouseCursor.Bounds)
		case tc.want != nil && (c.MouseCursor == nil || c.MouseCursor.Bounds != *tc.want):
			t.Errorf("%s: cursor = %+v, want bounds %v", tc.name, c.MouseCursor, *tc.want)
		}
	}
}

func TestStackedSources(t *testing.T) {
	d, capturer := setup()
	stack := capture.StackSource{
		NewScreenSource(capturer),
		NewMouseSource(d, true),
	}
	c := newContext()
	if ok, err := stack.Import(context.Background(), c); err != nil || !ok {
		t.Fatalf("Import = %v, %v", ok, err)
	}
	if c.Capture == nil || c.MouseCursor == nil {
		t.Fatalf("stack left capture=%v cursor=%v", c.Capture, c.MouseCursor)
	}
}
