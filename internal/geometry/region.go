package geometry

import "image"

// Region is an area made of disjoint rectangles. The zero value is empty.
type Region struct {
	rects []image.Rectangle
}

// NewRegion returns the union of rs.
func NewRegion(rs ...image.Rectangle) Region {
	var r Region
	for _, rect := range rs {
		r = r.Union(rect)
	}
	return r
}

// Rects returns a copy of the disjoint rectangles making up the region.
func (r Region) Rects() []image.Rectangle {
	out := make([]image.Rectangle, len(r.rects))
	copy(out, r.rects)
	return out
}

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool {
	return len(r.rects) == 0
}

// Area returns the number of pixels covered.
func (r Region) Area() int {
	area := 0
	for _, rect := range r.rects {
		area += rect.Dx() * rect.Dy()
	}
	return area
}

// Bounds returns the smallest rectangle containing the region.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rect := range r.rects {
		b = b.Union(rect)
	}
	return b
}

// Union returns r with rect added.
func (r Region) Union(rect image.Rectangle) Region {
	rect = rect.Canon()
	if rect.Empty() {
		return r
	}
	// Keep rectangles disjoint: add only the parts of rect not yet covered.
	pieces := []image.Rectangle{rect}
	for _, existing := range r.rects {
		var next []image.Rectangle
		for _, p := range pieces {
			next = append(next, subtractRect(p, existing)...)
		}
		pieces = next
		if len(pieces) == 0 {
			return r
		}
	}
	out := make([]image.Rectangle, 0, len(r.rects)+len(pieces))
	out = append(out, r.rects...)
	out = append(out, pieces...)
	return Region{rects: out}
}

// Subtract returns r with rect removed.
func (r Region) Subtract(rect image.Rectangle) Region {
	rect = rect.Canon()
	if rect.Empty() || r.IsEmpty() {
		return r
	}
	out := make([]image.Rectangle, 0, len(r.rects))
	for _, existing := range r.rects {
		out = append(out, subtractRect(existing, rect)...)
	}
	return Region{rects: out}
}

// Intersect returns the part of r inside rect.
func (r Region) Intersect(rect image.Rectangle) Region {
	out := make([]image.Rectangle, 0, len(r.rects))
	for _, existing := range r.rects {
		if i := existing.Intersect(rect); !i.Empty() {
			out = append(out, i)
		}
	}
	return Region{rects: out}
}

// Translate returns r moved by d.
func (r Region) Translate(d image.Point) Region {
	out := make([]image.Rectangle, len(r.rects))
	for i, rect := range r.rects {
		out[i] = rect.Add(d)
	}
	return Region{rects: out}
}

// Contains reports whether pixel p lies inside the region.
func (r Region) Contains(p image.Point) bool {
	for _, rect := range r.rects {
		if p.In(rect) {
			return true
		}
	}
	return false
}

// CornersVisible reports whether all four corner pixels of rect lie inside the region.
func (r Region) CornersVisible(rect image.Rectangle) bool {
	if rect.Empty() {
		return false
	}
	corners := [4]image.Point{
		rect.Min,
		{X: rect.Max.X - 1, Y: rect.Min.Y},
		{X: rect.Min.X, Y: rect.Max.Y - 1},
		{X: rect.Max.X - 1, Y: rect.Max.Y - 1},
	}
	for _, c := range corners {
		if !r.Contains(c) {
			return false
		}
	}
	return true
}

// subtractRect returns a minus b as up to four disjoint rectangles.
func subtractRect(a, b image.Rectangle) []image.Rectangle {
	i := a.Intersect(b)
	if i.Empty() {
		return []image.Rectangle{a}
	}
	var out []image.Rectangle
	// band above the intersection
	if i.Min.Y > a.Min.Y {
		out = append(out, image.Rect(a.Min.X, a.Min.Y, a.Max.X, i.Min.Y))
	}
	// band below
	if i.Max.Y < a.Max.Y {
		out = append(out, image.Rect(a.Min.X, i.Max.Y, a.Max.X, a.Max.Y))
	}
	// left and right within the intersection rows
	if i.Min.X > a.Min.X {
		out = append(out, image.Rect(a.Min.X, i.Min.Y, i.Min.X, i.Max.Y))
	}
	if i.Max.X < a.Max.X {
		out = append(out, image.Rect(i.Max.X, i.Min.Y, a.Max.X, i.Max.Y))
	}
	return out
}
