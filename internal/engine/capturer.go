package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// Capturer picks a capture path per request and falls back between them.
type Capturer struct {
	Resolver   *geometry.Resolver
	Surface    *SurfaceCapture
	Compositor *CompositorCapture
	Grabber    platform.WindowGrabber
}

// NewCapturer wires the capture paths p supports.
func NewCapturer(p *platform.Platform) *Capturer {
	surface := NewSurfaceCapture(p.GDI, p.Screens)
	c := &Capturer{
		Resolver: geometry.NewResolver(p.Screens),
		Surface:  surface,
		Grabber:  p.Grabber,
	}
	if p.Compositor != nil {
		c.Compositor = NewCompositorCapture(p.Compositor, p.Windows, p.Screens, surface)
	}
	return c
}

// CaptureRect copies a desktop rectangle.
func (c *Capturer) CaptureRect(ctx context.Context, rect image.Rectangle) (*capture.Element, error) {
	return c.Surface.Capture(ctx, rect)
}

// CaptureWindow captures win and returns the element together with the
// desktop rectangle it shows. The compositor is tried first unless the mode
// asks for a plain copy; declined or failing compositor captures fall back
// to the window's backing store or its screen area.
func (c *Capturer) CaptureWindow(ctx context.Context, win *platform.Window, opts WindowCaptureOptions) (*capture.Element, image.Rectangle, error) {
	log := logger.WithComponent("window-capture")
	visible := geometry.WindowBounds(win.Bounds, win.Maximized, win.BorderSize)

	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	opts.Auto = opts.Mode == ModeAuto

	switch opts.Mode {
	case ModeAuto, ModeCompositor, ModeTransparent:
		if c.Compositor == nil {
			break
		}
		el, err := c.Compositor.CaptureWindow(ctx, win, opts)
		if err == nil {
			return el, image.Rectangle{Min: visible.Min, Max: visible.Min.Add(el.Size())}, nil
		}
		if !ShouldFallback(err) {
			return nil, image.Rectangle{}, err
		}
		log.Info().Err(err).Str("title", win.Title).Msg("Compositor capture declined, falling back")
	}

	if opts.Mode != ModeScreen && c.Grabber != nil && !win.Maximized {
		img, err := c.Grabber.GrabWindow(win.Handle)
		if err == nil {
			return capture.NewElement(img), image.Rectangle{Min: visible.Min, Max: visible.Min.Add(img.Bounds().Size())}, nil
		}
		log.Debug().Err(err).Str("title", win.Title).Msg("Window grab failed, copying screen area")
	}

	rect, err := c.Resolver.Window(win.Bounds, win.Maximized, win.BorderSize)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	el, err := c.Surface.Capture(ctx, rect)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("failed to copy window area: %w", err)
	}
	return el, rect, nil
}
