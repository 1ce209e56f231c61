package capture

import (
	"image"
)

// Element is a decoded bitmap and its placement rectangle. Capture stages
// produce elements rooted at (0,0); the desktop location lives on the Context.
//
// Content is an *image.RGBA when every pixel is opaque and an *image.NRGBA
// when the image carries real transparency.
type Element struct {
	Content image.Image
	Bounds  image.Rectangle
}

// NewElement wraps img with bounds rooted at (0,0).
func NewElement(img image.Image) *Element {
	return &Element{
		Content: img,
		Bounds:  image.Rectangle{Max: img.Bounds().Size()},
	}
}

// Size returns the element's width and height.
func (e *Element) Size() image.Point {
	if e == nil {
		return image.Point{}
	}
	return e.Bounds.Size()
}

// HasAlpha reports whether the content carries transparency.
func (e *Element) HasAlpha() bool {
	if e == nil {
		return false
	}
	switch e.Content.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.Alpha, *image.Alpha16:
		return true
	}
	return false
}
