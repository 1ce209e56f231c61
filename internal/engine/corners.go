package engine

import (
	"image"
)

// DefaultCornerCutShape is how many pixels are cleared on each of the first
// rows at every window corner.
var DefaultCornerCutShape = []int{5, 3, 2, 1, 1}

// RemoveCorners returns a copy of img with a small triangle at each corner
// made transparent. shape[y] pixels are cleared on row y, counted inwards
// from each corner.
func RemoveCorners(img image.Image, shape []int) *image.NRGBA {
	out := nrgba(img)
	w, h := out.Rect.Dx(), out.Rect.Dy()
	erase := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h {
			return
		}
		i := out.PixOffset(x, y)
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = 0, 0, 0, 0
	}
	for y, n := range shape {
		for x := 0; x < n; x++ {
			erase(x, y)
			erase(w-1-x, y)
			erase(x, h-1-y)
			erase(w-1-x, h-1-y)
		}
	}
	return out
}
