// Package geometry reasons about display surfaces and rectangles in the
// unified desktop coordinate space. The origin is the top-left corner of the
// primary surface; surfaces left of or above it have negative coordinates.
package geometry

import (
	"fmt"
	"image"
)

// Surface is one display area in the unified coordinate space.
type Surface struct {
	Index       int             `json:"index" yaml:"index"`
	Name        string          `json:"name,omitempty" yaml:"name,omitempty"`
	Bounds      image.Rectangle `json:"bounds" yaml:"bounds"`
	WorkingArea image.Rectangle `json:"working_area" yaml:"working_area"`
	Primary     bool            `json:"primary" yaml:"primary"`
}

func (s Surface) String() string {
	return fmt.Sprintf("surface %d %v primary=%v", s.Index, s.Bounds, s.Primary)
}

// Work returns the working area, or the full bounds when none is known.
func (s Surface) Work() image.Rectangle {
	if s.WorkingArea.Empty() {
		return s.Bounds
	}
	return s.WorkingArea
}

// SurfaceSource enumerates the active display surfaces.
type SurfaceSource interface {
	Surfaces() ([]Surface, error)
}

// StaticSurfaces is a fixed surface layout.
type StaticSurfaces []Surface

// Surfaces returns the layout.
func (s StaticSurfaces) Surfaces() ([]Surface, error) {
	return []Surface(s), nil
}

// VirtualDesktop returns the union bounding box of all surfaces.
func VirtualDesktop(surfaces []Surface) image.Rectangle {
	var r image.Rectangle
	for _, s := range surfaces {
		r = r.Union(s.Bounds)
	}
	return r
}

// Coverage returns the region covered by the surfaces.
func Coverage(surfaces []Surface) Region {
	var r Region
	for _, s := range surfaces {
		r = r.Union(s.Bounds)
	}
	return r
}

// Intersecting returns the surfaces whose bounds overlap rect.
func Intersecting(surfaces []Surface, rect image.Rectangle) []Surface {
	var out []Surface
	for _, s := range surfaces {
		if s.Bounds.Overlaps(rect) {
			out = append(out, s)
		}
	}
	return out
}

// Uncovered returns the part of rect that no surface displays.
func Uncovered(surfaces []Surface, rect image.Rectangle) Region {
	r := NewRegion(rect)
	for _, s := range Intersecting(surfaces, rect) {
		r = r.Subtract(s.Bounds)
	}
	return r
}
