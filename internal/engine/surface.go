package engine

import (
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// DecodeAttempts is how often a transient decode fault is retried.
const DecodeAttempts = 3

// SurfaceCapture copies rectangles of display memory through a compatible
// device context.
type SurfaceCapture struct {
	gdi     platform.GDI
	screens geometry.SurfaceSource
}

// NewSurfaceCapture creates a block-copy capturer.
func NewSurfaceCapture(gdi platform.GDI, screens geometry.SurfaceSource) *SurfaceCapture {
	return &SurfaceCapture{gdi: gdi, screens: screens}
}

// Capture copies rect (desktop coordinates) into an owned image. An empty
// rect yields (nil, nil). Parts of rect that no surface shows come back fully
// transparent in an *image.NRGBA; otherwise the content is an opaque
// *image.RGBA. The element bounds are local, rooted at (0,0).
func (c *SurfaceCapture) Capture(ctx context.Context, rect image.Rectangle) (_ *capture.Element, err error) {
	log := logger.WithComponent("surface-capture")

	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		log.Warn().Str("rect", rect.String()).Msg("Nothing to capture, ignoring")
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	arena := &Arena{}
	defer func() {
		if cerr := arena.Close(); cerr != nil {
			log.Error().Err(cerr).Str("rect", rect.String()).Msg("Failed to release capture resources")
			if err != nil {
				err = errors.Join(err, cerr)
			}
		}
	}()

	w, h := rect.Dx(), rect.Dy()
	fail := func(op string, err error) error {
		return &NativeResourceError{Op: op, Rect: rect, Err: err}
	}

	desktop, err := c.gdi.DesktopDC()
	if err != nil {
		return nil, fail("DesktopDC", err)
	}
	arena.Defer("ReleaseDC", func() error { return c.gdi.ReleaseDC(desktop) })

	mem, err := c.gdi.CreateCompatibleDC(desktop)
	if err != nil {
		return nil, fail("CreateCompatibleDC", err)
	}
	arena.Defer("DeleteDC", func() error { return c.gdi.DeleteDC(mem) })

	bmp, err := c.gdi.CreateDIBSection(desktop, w, h)
	if err != nil {
		return nil, fail("CreateDIBSection", err)
	}
	arena.Defer("DeleteObject", func() error { return c.gdi.DeleteObject(bmp) })

	prev, err := c.gdi.SelectObject(mem, bmp)
	if err != nil {
		return nil, fail("SelectObject", err)
	}
	deselect := arena.Defer("SelectObject", func() error {
		_, err := c.gdi.SelectObject(mem, prev)
		return err
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.gdi.BitBlt(mem, w, h, desktop, rect.Min.X, rect.Min.Y); err != nil {
		return nil, fail("BitBlt", err)
	}
	// The section must not be selected into a DC while it is decoded.
	if err := deselect(); err != nil {
		return nil, fail("SelectObject", err)
	}

	img, err := c.decode(ctx, bmp, w, h)
	if err != nil {
		return nil, err
	}

	surfaces, err := c.screens.Surfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate surfaces: %w", err)
	}
	content := image.Image(img)
	if gap := geometry.Uncovered(surfaces, rect); !gap.IsEmpty() {
		log.Debug().
			Str("rect", rect.String()).
			Int("offscreen_pixels", gap.Area()).
			Msg("Capture has off-screen content, masking")
		content = maskOffscreen(img, rect, surfaces)
	}

	return capture.NewElement(content), nil
}

func (c *SurfaceCapture) decode(ctx context.Context, bmp platform.Bitmap, w, h int) (*image.RGBA, error) {
	log := logger.WithComponent("surface-capture")

	var last error
	for attempt := 1; attempt <= DecodeAttempts; attempt++ {
		img, err := c.gdi.Decode(bmp, w, h)
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, platform.ErrTransient) {
			return nil, &NativeResourceError{Op: "Decode", Rect: image.Rect(0, 0, w, h), Err: err}
		}
		last = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("Problem decoding captured bitmap")
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	log.Error().Err(last).Msg("Still couldn't decode captured bitmap")
	return nil, &TransientDecodeError{Attempts: DecodeAttempts, Err: last}
}

// maskOffscreen keeps only the pixels of img that some surface displays.
func maskOffscreen(img *image.RGBA, rect image.Rectangle, surfaces []geometry.Surface) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	for _, s := range geometry.Intersecting(surfaces, rect) {
		visible := s.Bounds.Intersect(rect).Sub(rect.Min)
		draw.Draw(out, visible, img, visible.Min, draw.Src)
	}
	return out
}
