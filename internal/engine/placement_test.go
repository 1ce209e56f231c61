package engine

import (
	"image"
	"testing"

	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

var twoSurfaces = []geometry.Surface{
	{Index: 0, Bounds: image.Rect(0, 0, 1920, 1080), WorkingArea: image.Rect(0, 0, 1920, 1040), Primary: true},
	{Index: 1, Bounds: image.Rect(1920, 0, 3200, 1024), WorkingArea: image.Rect(1920, 0, 3200, 1024)},
}

func TestComputePlacement_VisibleCornersKeepPosition(t *testing.T) {
	for _, bounds := range []image.Rectangle{
		image.Rect(100, 100, 900, 700),
		image.Rect(1500, 200, 2500, 900),
		image.Rect(0, 0, 1920, 1080),
		image.Rect(2000, 10, 3200, 1024),
	} {
		win := &platform.Window{Bounds: bounds}
		p := ComputePlacement(win, twoSurfaces, bounds.Size())
		if !p.Fits {
			t.Errorf("%v: fits = false", bounds)
		}
		if p.Host.Min != bounds.Min {
			t.Errorf("%v: placed at %v, want own position", bounds, p.Host.Min)
		}
		if p.Capture != bounds {
			t.Errorf("%v: capture = %v", bounds, p.Capture)
		}
	}
}

func TestComputePlacement_RelocatesToFirstFittingSurface(t *testing.T) {
	// Hangs off the bottom of the short right surface.
	win := &platform.Window{Bounds: image.Rect(2000, 800, 2800, 1300)}
	p := ComputePlacement(win, twoSurfaces, win.Bounds.Size())
	if !p.Fits {
		t.Fatalf("expected window to fit after relocation")
	}
	if p.Host.Min != image.Pt(0, 0) {
		t.Fatalf("relocated to %v, want working area of surface 0", p.Host.Min)
	}
	if p.Capture.Size() != win.Bounds.Size() {
		t.Fatalf("capture size = %v", p.Capture.Size())
	}
}

func TestComputePlacement_TooLargeDoesNotFit(t *testing.T) {
	win := &platform.Window{Bounds: image.Rect(-100, 100, 3400, 400)}
	p := ComputePlacement(win, twoSurfaces, win.Bounds.Size())
	if p.Fits {
		t.Fatalf("expected window wider than the desktop not to fit")
	}
	if p.Host.Min != win.Bounds.Min {
		t.Fatalf("non-fitting window moved to %v", p.Host.Min)
	}
}

func TestComputePlacement_MaximizedCutsBorder(t *testing.T) {
	for _, border := range []image.Point{{8, 8}, {4, 6}, {0, 0}} {
		bounds := image.Rectangle{Min: border.Mul(-1), Max: image.Pt(1920, 1040).Add(border)}
		win := &platform.Window{Bounds: bounds, Maximized: true, BorderSize: border}
		p := ComputePlacement(win, twoSurfaces, bounds.Size())

		if !p.Fits {
			t.Fatalf("maximized window reported as not fitting")
		}
		if p.Capture.Dx() != bounds.Dx()-2*border.X || p.Capture.Dy() != bounds.Dy()-2*border.Y {
			t.Fatalf("border %v: capture %v from raw %v", border, p.Capture, bounds)
		}
		if p.Capture != image.Rect(0, 0, 1920, 1040) {
			t.Fatalf("border %v: capture = %v, want visible area", border, p.Capture)
		}
	}
}
