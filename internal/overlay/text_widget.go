package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextWidget stamps a caption. The text may use the file name variables,
// ${title} or ${YYYY} for example, which are filled from the capture.
type TextWidget struct {
	*BaseWidget
	text      string
	textColor color.RGBA
	bgColor   *color.RGBA // Optional background color
	padding   int
}

// NewTextWidget creates a new text widget
func NewTextWidget(id string, config map[string]interface{}) (*TextWidget, error) {
	w := &TextWidget{
		BaseWidget: NewBaseWidget(id, 0, 0, 1.0),
		text:       "${title}",
		textColor:  color.RGBA{255, 255, 255, 255},
		padding:    5,
	}
	w.UpdateConfig(config)
	if w.text == "" {
		return nil, fmt.Errorf("text widget requires non-empty text")
	}
	return w, nil
}

// Type returns the widget type
func (w *TextWidget) Type() string {
	return "text"
}

// Render draws the caption into area.
func (w *TextWidget) Render(dst draw.Image, area image.Rectangle, c *capture.Context) error {
	text := capture.ExpandText(w.text, c)
	if !w.IsEnabled() || text == "" {
		return nil
	}

	face := basicfont.Face7x13
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()

	width := font.MeasureString(face, text).Ceil()
	box := w.Place(area, image.Pt(width+w.padding*2, height+w.padding*2))

	if w.bgColor != nil {
		DrawRectangle(dst, box, *w.bgColor, w.opacity)
	}

	textImg := image.NewNRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(w.textColor),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)

	BlendImage(dst, textImg, box.Min.Add(image.Pt(w.padding, w.padding)), w.opacity)
	return nil
}

// Config returns the widget configuration
func (w *TextWidget) Config() map[string]interface{} {
	config := w.baseConfig(w.Type())
	config["text"] = w.text
	config["padding"] = w.padding
	config["color"] = colorConfig(w.textColor)
	if w.bgColor != nil {
		config["background"] = colorConfig(*w.bgColor)
	}
	return config
}

// UpdateConfig applies the keys present in config.
func (w *TextWidget) UpdateConfig(config map[string]interface{}) {
	w.applyConfig(config)
	if text, ok := config["text"].(string); ok {
		w.text = text
	}
	if padding, ok := number(config["padding"]); ok && padding >= 0 {
		w.padding = padding
	}
	if c, ok := parseColor(config["color"]); ok {
		w.textColor = c
	}
	if c, ok := parseColor(config["background"]); ok {
		w.bgColor = &c
	}
}
