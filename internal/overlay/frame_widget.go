package overlay

import (
	"image"
	"image/color"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"golang.org/x/image/draw"
)

// FrameWidget draws a solid border just inside the exported area.
type FrameWidget struct {
	*BaseWidget
	width int
	color color.RGBA
}

// NewFrameWidget creates a frame widget
func NewFrameWidget(id string, config map[string]interface{}) (*FrameWidget, error) {
	w := &FrameWidget{
		BaseWidget: NewBaseWidget(id, 0, 0, 1.0),
		width:      2,
		color:      color.RGBA{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff},
	}
	w.applyConfig(config)
	if n, ok := number(config["width"]); ok && n > 0 {
		w.width = n
	}
	if c, ok := parseColor(config["color"]); ok {
		w.color = c
	}
	return w, nil
}

// Type returns the widget type
func (w *FrameWidget) Type() string {
	return "frame"
}

// Render draws the four edges of area.
func (w *FrameWidget) Render(dst draw.Image, area image.Rectangle, c *capture.Context) error {
	if !w.IsEnabled() || area.Empty() {
		return nil
	}
	n := min(w.width, area.Dx()/2, area.Dy()/2)
	for _, edge := range []image.Rectangle{
		{Min: area.Min, Max: image.Pt(area.Max.X, area.Min.Y+n)},
		{Min: image.Pt(area.Min.X, area.Max.Y-n), Max: area.Max},
		{Min: image.Pt(area.Min.X, area.Min.Y+n), Max: image.Pt(area.Min.X+n, area.Max.Y-n)},
		{Min: image.Pt(area.Max.X-n, area.Min.Y+n), Max: image.Pt(area.Max.X, area.Max.Y-n)},
	} {
		DrawRectangle(dst, edge, w.color, w.opacity)
	}
	return nil
}

// Config returns the widget configuration
func (w *FrameWidget) Config() map[string]interface{} {
	config := w.baseConfig(w.Type())
	config["width"] = w.width
	config["color"] = colorConfig(w.color)
	return config
}
