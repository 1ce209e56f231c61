package geometry

import (
	"fmt"
	"image"
)

// Resolver computes capture rectangles from the current surface layout.
type Resolver struct {
	source SurfaceSource
}

// NewResolver creates a resolver over source.
func NewResolver(source SurfaceSource) *Resolver {
	return &Resolver{source: source}
}

func (r *Resolver) surfaces() ([]Surface, error) {
	surfaces, err := r.source.Surfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate surfaces: %w", err)
	}
	return surfaces, nil
}

// VirtualDesktop returns the union of every active surface.
func (r *Resolver) VirtualDesktop() (image.Rectangle, error) {
	surfaces, err := r.surfaces()
	if err != nil {
		return image.Rectangle{}, err
	}
	return VirtualDesktop(surfaces), nil
}

// Surface returns the bounds of the surface at index. An index out of range
// resolves to the full virtual desktop.
func (r *Resolver) Surface(index int) (image.Rectangle, error) {
	surfaces, err := r.surfaces()
	if err != nil {
		return image.Rectangle{}, err
	}
	for _, s := range surfaces {
		if s.Index == index {
			return s.Bounds, nil
		}
	}
	return VirtualDesktop(surfaces), nil
}

// SurfaceAt returns the surface containing p.
func (r *Resolver) SurfaceAt(p image.Point) (Surface, bool, error) {
	surfaces, err := r.surfaces()
	if err != nil {
		return Surface{}, false, err
	}
	for _, s := range surfaces {
		if p.In(s.Bounds) {
			return s, true, nil
		}
	}
	return Surface{}, false, nil
}

// WindowBounds returns the visible rectangle of a window. Maximized windows
// report bounds that overhang every screen edge by their border size, so the
// border is removed from each side.
func WindowBounds(bounds image.Rectangle, maximized bool, border image.Point) image.Rectangle {
	if !maximized {
		return bounds
	}
	r := image.Rectangle{
		Min: bounds.Min.Add(border),
		Max: bounds.Max.Sub(border),
	}
	if r.Dx() < 0 || r.Dy() < 0 {
		return image.Rectangle{Min: r.Min, Max: r.Min}
	}
	return r
}

// Window resolves the visible window rectangle clipped to the virtual desktop.
func (r *Resolver) Window(bounds image.Rectangle, maximized bool, border image.Point) (image.Rectangle, error) {
	desktop, err := r.VirtualDesktop()
	if err != nil {
		return image.Rectangle{}, err
	}
	return WindowBounds(bounds, maximized, border).Intersect(desktop), nil
}
