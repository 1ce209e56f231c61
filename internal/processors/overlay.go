package processors

import (
	"context"
	"image"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/overlay"
	"golang.org/x/image/draw"
)

// OverlayProcessor stamps the overlay widgets onto the part of the capture
// that will be exported. The capture is replaced by a stamped copy of the
// same pixel type.
type OverlayProcessor struct {
	overlay *overlay.Manager
}

// NewOverlayProcessor creates the processor.
func NewOverlayProcessor(m *overlay.Manager) *OverlayProcessor {
	return &OverlayProcessor{overlay: m}
}

// Process implements capture.Processor.
func (p *OverlayProcessor) Process(ctx context.Context, c *capture.Context) (bool, error) {
	if c.Capture == nil || !p.overlay.IsEnabled() {
		return true, nil
	}

	src := c.Capture.Content
	bounds := image.Rectangle{Max: c.Capture.Size()}
	var dst draw.Image
	if c.Capture.HasAlpha() {
		dst = image.NewNRGBA(bounds)
	} else {
		dst = image.NewRGBA(bounds)
	}
	draw.Draw(dst, bounds, src, src.Bounds().Min, draw.Src)

	area := c.CropRect.Sub(c.Origin).Intersect(bounds)
	if area.Empty() {
		return true, nil
	}
	p.overlay.Render(dst, area, c)

	c.Capture = capture.NewElement(dst)
	return true, nil
}
