package virtual

import (
	"image"
	"image/color"

	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

func init() {
	platform.Register("virtual", func() (*platform.Platform, error) {
		return Demo().Platform(), nil
	})
}

// Demo returns a two-surface desktop with a few windows on it, used when no
// real display is available.
func Demo() *Desktop {
	d := New(
		geometry.Surface{
			Index:       0,
			Name:        "virtual-0",
			Bounds:      image.Rect(0, 0, 1920, 1080),
			WorkingArea: image.Rect(0, 0, 1920, 1040),
			Primary:     true,
		},
		geometry.Surface{
			Index:       1,
			Name:        "virtual-1",
			Bounds:      image.Rect(1920, 0, 3200, 1024),
			WorkingArea: image.Rect(1920, 0, 3200, 1024),
		},
	)
	d.Rounded = true
	d.AddWindow(platform.Window{
		Title:      "Terminal",
		Class:      "terminal",
		Process:    "term",
		PID:        100,
		Bounds:     image.Rect(-8, -8, 1928, 1048),
		BorderSize: image.Pt(8, 8),
		Maximized:  true,
	}, Gradient(1936, 1056, color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff}))
	d.AddWindow(platform.Window{
		Title:   "  Notes - Editor  ",
		Class:   "editor",
		Process: "editor",
		PID:     200,
		Bounds:  image.Rect(2100, 120, 2900, 720),
	}, Gradient(800, 600, color.RGBA{R: 0xf0, G: 0xe0, B: 0xc0, A: 0xff}))
	d.SetCursor(image.Pt(2400, 400), Arrow(), image.Point{})
	return d
}

// Gradient returns an opaque test pattern shaded from base.
func Gradient(width, height int, base color.RGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: base.R ^ uint8(x),
				G: base.G ^ uint8(y),
				B: base.B,
				A: 0xff,
			})
		}
	}
	return img
}

// Arrow returns a small pointer image with its hotspot at the top-left.
func Arrow() *image.NRGBA {
	const size = 12
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x <= y && x < size; x++ {
			c := color.NRGBA{A: 0xff}
			if x > 0 && x < y && y < size-1 {
				c = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
