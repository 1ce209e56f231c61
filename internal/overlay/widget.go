// Package overlay stamps widgets such as captions onto captured images.
package overlay

import (
	"image"
	"image/color"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"golang.org/x/image/draw"
)

// Widget represents a renderable overlay widget
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Type returns the widget type name
	Type() string

	// Render draws the widget into area of dst. area is the part of the
	// capture that will be exported, in dst's coordinates.
	Render(dst draw.Image, area image.Rectangle, c *capture.Context) error

	// Config returns the widget's configuration as a map
	Config() map[string]interface{}

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool
}

// BaseWidget holds what every widget has: an identity, an anchor offset and
// an opacity.
type BaseWidget struct {
	id      string
	enabled bool
	// Non-negative offsets are measured from the area's top left corner,
	// negative ones from its right or bottom edge.
	x       int
	y       int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, x, y int, opacity float64) *BaseWidget {
	w := &BaseWidget{id: id, enabled: true, x: x, y: y}
	w.SetOpacity(opacity)
	return w
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// SetOpacity sets the widget's opacity, clamped to [0, 1].
func (w *BaseWidget) SetOpacity(opacity float64) {
	if opacity < 0.0 {
		opacity = 0.0
	}
	if opacity > 1.0 {
		opacity = 1.0
	}
	w.opacity = opacity
}

// Place returns where a widget of the given size goes inside area.
func (w *BaseWidget) Place(area image.Rectangle, size image.Point) image.Rectangle {
	p := image.Pt(area.Min.X+w.x, area.Min.Y+w.y)
	if w.x < 0 {
		p.X = area.Max.X + w.x - size.X + 1
	}
	if w.y < 0 {
		p.Y = area.Max.Y + w.y - size.Y + 1
	}
	return image.Rectangle{Min: p, Max: p.Add(size)}
}

func (w *BaseWidget) applyConfig(config map[string]interface{}) {
	if x, ok := number(config["x"]); ok {
		w.x = x
	}
	if y, ok := number(config["y"]); ok {
		w.y = y
	}
	if opacity, ok := config["opacity"].(float64); ok {
		w.SetOpacity(opacity)
	}
	if enabled, ok := config["enabled"].(bool); ok {
		w.SetEnabled(enabled)
	}
}

func (w *BaseWidget) baseConfig(kind string) map[string]interface{} {
	return map[string]interface{}{
		"id":      w.id,
		"type":    kind,
		"enabled": w.enabled,
		"x":       w.x,
		"y":       w.y,
		"opacity": w.opacity,
	}
}

// BlendImage draws src over dst with its top left corner at at, scaling
// src's alpha by opacity. Parts outside dst are clipped.
func BlendImage(dst draw.Image, src image.Image, at image.Point, opacity float64) {
	if opacity <= 0 {
		return
	}
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	if opacity >= 1 {
		draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, r, src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

// DrawRectangle fills r on dst with c at the given opacity.
func DrawRectangle(dst draw.Image, r image.Rectangle, c color.Color, opacity float64) {
	if opacity <= 0 {
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(min(opacity, 1)*255 + 0.5)})
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

// number extracts an integer from decoded YAML or JSON, which may be an int
// or a float64.
func number(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	}
	return 0, false
}

func parseColor(v interface{}) (color.RGBA, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return color.RGBA{}, false
	}
	channel := func(key string, def int) uint8 {
		if n, ok := number(m[key]); ok {
			return uint8(n)
		}
		return uint8(def)
	}
	return color.RGBA{R: channel("r", 0), G: channel("g", 0), B: channel("b", 0), A: channel("a", 255)}, true
}

func colorConfig(c color.RGBA) map[string]interface{} {
	return map[string]interface{}{"r": int(c.R), "g": int(c.G), "b": int(c.B), "a": int(c.A)}
}
