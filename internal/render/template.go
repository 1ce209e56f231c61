// Package render turns a capture context into the exported image and
// encodes it.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"golang.org/x/image/draw"
)

// ErrNothingToRender means the context holds no capture, or the crop does
// not overlap it.
var ErrNothingToRender = errors.New("nothing to render")

// Template renders a capture context into a single image.
type Template interface {
	Render(c *capture.Context) (image.Image, error)
}

// TemplateFunc adapts a function to Template.
type TemplateFunc func(c *capture.Context) (image.Image, error)

// Render calls f.
func (f TemplateFunc) Render(c *capture.Context) (image.Image, error) { return f(c) }

// Cropped renders the part of the capture inside CropRect. Pixels outside
// ClipArea are transparent and the mouse pointer is drawn on top.
var Cropped Template = TemplateFunc(func(c *capture.Context) (image.Image, error) {
	if c.Capture == nil {
		return nil, ErrNothingToRender
	}
	crop := c.CropRect.Intersect(c.CaptureRect())
	clip := c.ClipArea
	if clip.IsEmpty() {
		clip = geometry.NewRegion(crop)
	}
	return compose(c, crop, clip.Intersect(crop))
})

// Full renders the whole capture with the mouse pointer, ignoring the crop.
var Full Template = TemplateFunc(func(c *capture.Context) (image.Image, error) {
	if c.Capture == nil {
		return nil, ErrNothingToRender
	}
	rect := c.CaptureRect()
	return compose(c, rect, geometry.NewRegion(rect))
})

// Templates maps template names to templates.
var Templates = map[string]Template{
	"cropped": Cropped,
	"full":    Full,
}

// ByName returns the named template. An empty name selects Cropped.
func ByName(name string) (Template, error) {
	if name == "" {
		return Cropped, nil
	}
	t, ok := Templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	return t, nil
}

// compose draws the visible parts of the capture and pointer into a new
// image covering area. area and visible are in desktop coordinates.
func compose(c *capture.Context, area image.Rectangle, visible geometry.Region) (image.Image, error) {
	if area.Empty() {
		return nil, ErrNothingToRender
	}
	bounds := image.Rectangle{Max: area.Size()}

	var dst draw.Image
	if c.Capture.HasAlpha() || visible.Area() != area.Dx()*area.Dy() {
		dst = image.NewNRGBA(bounds)
	} else {
		dst = image.NewRGBA(bounds)
	}

	src := c.Capture.Content
	srcMin := src.Bounds().Min
	for _, r := range visible.Rects() {
		dr := r.Sub(area.Min)
		draw.Draw(dst, dr, src, srcMin.Add(r.Min.Sub(c.Origin)), draw.Src)
	}

	if cur := c.MouseCursor; cur != nil && cur.Content != nil {
		curMin := cur.Content.Bounds().Min
		for _, r := range visible.Rects() {
			r = r.Intersect(cur.Bounds)
			if r.Empty() {
				continue
			}
			draw.Draw(dst, r.Sub(area.Min), cur.Content, curMin.Add(r.Min.Sub(cur.Bounds.Min)), draw.Over)
		}
	}
	return dst, nil
}

// Flatten composites img onto an opaque background, for formats without
// transparency.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rectangle{Max: b.Size()})
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
