package engine

import (
	"image"

	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// Placement is where the thumbnail host goes and which desktop rectangle is
// copied once the thumbnail is shown.
type Placement struct {
	Host    image.Rectangle
	Capture image.Rectangle
	// Fits is false when no surface could show all four window corners.
	Fits bool
}

// ComputePlacement positions the thumbnail host for win, whose compositor
// source is source pixels large.
//
// A normal window keeps its own position when all four corners are visible
// on the surfaces. Otherwise it is moved to the first surface whose working
// area can show it. A maximized window overhangs the screen by its border on
// every edge, so the border is cut from each side of the copied rectangle.
func ComputePlacement(win *platform.Window, surfaces []geometry.Surface, source image.Point) Placement {
	if win.Maximized {
		host := image.Rectangle{Min: win.Bounds.Min, Max: win.Bounds.Min.Add(source)}
		return Placement{
			Host:    host,
			Capture: geometry.WindowBounds(host, true, win.BorderSize),
			Fits:    true,
		}
	}

	at := win.Bounds.Min
	visible := geometry.Coverage(surfaces)
	fits := visible.CornersVisible(win.Bounds)
	if !fits {
		size := win.Bounds.Size()
		for _, s := range surfaces {
			candidate := image.Rectangle{Min: s.Work().Min, Max: s.Work().Min.Add(size)}
			if visible.CornersVisible(candidate) {
				at = candidate.Min
				fits = true
				break
			}
		}
	}

	host := image.Rectangle{Min: at, Max: at.Add(source)}
	return Placement{Host: host, Capture: host, Fits: fits}
}
