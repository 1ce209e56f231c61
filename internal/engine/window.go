package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// WindowMode selects how a single window is captured.
type WindowMode string

const (
	// ModeAuto tries the compositor and falls back to a block copy.
	ModeAuto WindowMode = "auto"
	// ModeCompositor copies the compositor thumbnail over a solid backdrop.
	ModeCompositor WindowMode = "compositor"
	// ModeTransparent recovers the window's real alpha with two passes.
	ModeTransparent WindowMode = "compositor_transparent"
	// ModeGDI grabs the window's backing store, or copies its screen area.
	ModeGDI WindowMode = "gdi"
	// ModeScreen copies the window's screen area.
	ModeScreen WindowMode = "screen"
)

// ParseWindowMode maps a config value to a mode.
func ParseWindowMode(s string) (WindowMode, error) {
	switch m := WindowMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeCompositor, ModeTransparent, ModeGDI, ModeScreen:
		return m, nil
	case "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown window capture mode %q", s)
}

// WindowCaptureOptions tunes one compositor capture.
type WindowCaptureOptions struct {
	Mode WindowMode
	// Auto derives the backdrop from the accent color and allows the
	// compositor path to decline windows that do not fit.
	Auto bool
	// Background is the backdrop when Auto is off.
	Background color.RGBA
	// RemoveCorners clears rounded corner antialiasing.
	RemoveCorners  bool
	CornerCutShape []int
	// NoGDIProcesses lists owning processes a block copy must not be used for.
	NoGDIProcesses []string
}

// GDIAllowed reports whether a block copy may stand in for the compositor
// for windows owned by process.
func (o WindowCaptureOptions) GDIAllowed(process string) bool {
	for _, p := range o.NoGDIProcesses {
		if strings.EqualFold(p, process) {
			return false
		}
	}
	return true
}

// CompositorCapture captures single windows through compositor thumbnails.
type CompositorCapture struct {
	compositor platform.Compositor
	windows    platform.Windows
	screens    geometry.SurfaceSource
	surface    *SurfaceCapture
}

// NewCompositorCapture creates a thumbnail based window capturer. Pixels are
// read back with surface.
func NewCompositorCapture(compositor platform.Compositor, windows platform.Windows, screens geometry.SurfaceSource, surface *SurfaceCapture) *CompositorCapture {
	return &CompositorCapture{
		compositor: compositor,
		windows:    windows,
		screens:    screens,
		surface:    surface,
	}
}

// CaptureWindow shows a live thumbnail of win in a temporary topmost host
// window and copies it off the screen. Errors for which ShouldFallback is
// true mean the window should be captured another way. The host and the
// thumbnail are released on every path.
func (c *CompositorCapture) CaptureWindow(ctx context.Context, win *platform.Window, opts WindowCaptureOptions) (_ *capture.Element, err error) {
	log := logger.WithComponent("compositor-capture")
	if c.compositor == nil {
		return nil, &CompositorAPIError{Op: "open", Err: platform.ErrUnsupported}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	arena := &Arena{}
	defer func() {
		if cerr := arena.Close(); cerr != nil {
			log.Error().Err(cerr).Uint64("window", uint64(win.Handle)).Msg("Failed to release compositor resources")
			if err != nil {
				err = errors.Join(err, cerr)
			}
		}
	}()
	apiErr := func(op string, err error) error {
		return &CompositorAPIError{Op: op, Err: err}
	}

	host, err := c.compositor.CreateHost()
	if err != nil {
		return nil, apiErr("CreateHost", err)
	}
	arena.Defer("DestroyHost", func() error { return c.compositor.DestroyHost(host) })

	thumb, err := c.compositor.Register(host, win.Handle)
	if err != nil {
		return nil, apiErr("Register", err)
	}
	arena.Defer("Unregister", func() error { return c.compositor.Unregister(thumb) })

	source, err := c.compositor.SourceSize(thumb)
	if err != nil {
		return nil, apiErr("SourceSize", err)
	}
	if source.X <= 0 || source.Y <= 0 {
		return nil, fmt.Errorf("window %#x reports %v: %w", win.Handle, source, ErrDegenerateSource)
	}

	surfaces, err := c.screens.Surfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate surfaces: %w", err)
	}
	place := ComputePlacement(win, surfaces, source)
	if !win.Maximized && opts.Auto && !place.Fits && !win.ModernApp && opts.GDIAllowed(win.Process) {
		log.Debug().Str("title", win.Title).Msg("Window does not fit, requesting block copy")
		return nil, ErrFallbackRequested
	}

	props := platform.ThumbnailProperties{
		Destination: image.Rectangle{Max: source},
		Opacity:     255,
		Visible:     true,
	}
	if err := c.compositor.Update(thumb, props); err != nil {
		return nil, apiErr("Update", err)
	}
	if err := c.compositor.PlaceHost(host, place.Host); err != nil {
		return nil, apiErr("PlaceHost", err)
	}
	if err := c.compositor.ShowHost(host); err != nil {
		return nil, apiErr("ShowHost", err)
	}

	rect := place.Capture.Intersect(geometry.VirtualDesktop(surfaces))
	if rect.Empty() {
		return nil, fmt.Errorf("window %#x is outside the desktop: %w", win.Handle, ErrFallbackRequested)
	}

	var img image.Image
	if opts.Mode == ModeTransparent {
		img, err = c.captureTransparent(ctx, host, win, rect)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Debug().Err(err).Msg("Transparent capture failed, using a solid backdrop")
			img = nil
		}
	}
	if img == nil {
		img, err = c.captureOpaque(ctx, host, win, rect, opts)
		if err != nil {
			return nil, err
		}
	}

	if opts.RemoveCorners && c.compositor.RoundsCorners() && !win.Maximized && !win.ToolWindow {
		shape := opts.CornerCutShape
		if len(shape) == 0 {
			shape = DefaultCornerCutShape
		}
		img = RemoveCorners(img, shape)
	}

	log.Debug().
		Str("title", win.Title).
		Str("rect", rect.String()).
		Bool("fits", place.Fits).
		Msg("Captured window through compositor")
	return capture.NewElement(img), nil
}

// captureTransparent copies rect over a white and then a black backdrop and
// mattes the two.
func (c *CompositorCapture) captureTransparent(ctx context.Context, host platform.Handle, win *platform.Window, rect image.Rectangle) (image.Image, error) {
	white, err := c.backdropPass(ctx, host, color.RGBA{R: 255, G: 255, B: 255, A: 255}, nil, rect)
	if err != nil {
		return nil, &TransientCaptureError{Pass: "white", Err: err}
	}
	black, err := c.backdropPass(ctx, host, color.RGBA{A: 255}, win, rect)
	if err != nil {
		return nil, &TransientCaptureError{Pass: "black", Err: err}
	}
	img, err := Matte(white.Content, black.Content)
	if err != nil {
		return nil, &TransientCaptureError{Pass: "matte", Err: err}
	}
	return img, nil
}

func (c *CompositorCapture) captureOpaque(ctx context.Context, host platform.Handle, win *platform.Window, rect image.Rectangle, opts WindowCaptureOptions) (image.Image, error) {
	bg := opts.Background
	bg.A = 255
	if opts.Auto {
		accent, err := c.compositor.AccentColor()
		if err != nil {
			return nil, &CompositorAPIError{Op: "AccentColor", Err: err}
		}
		bg = platform.Lighten(accent)
	}
	el, err := c.backdropPass(ctx, host, bg, win, rect)
	if err != nil {
		return nil, err
	}
	return el.Content, nil
}

// backdropPass repaints the host over bg, optionally raises target, and
// copies rect. The result is never nil on success.
func (c *CompositorCapture) backdropPass(ctx context.Context, host platform.Handle, bg color.RGBA, target *platform.Window, rect image.Rectangle) (*capture.Element, error) {
	if err := c.compositor.SetHostBackground(host, bg); err != nil {
		return nil, &CompositorAPIError{Op: "SetHostBackground", Err: err}
	}
	if err := c.compositor.Repaint(host); err != nil {
		return nil, &CompositorAPIError{Op: "Repaint", Err: err}
	}
	// Active windows are drawn with their focused colors and buttons.
	if target != nil && !target.ModernApp && c.windows != nil {
		if err := c.windows.ToForeground(target.Handle); err != nil {
			logger.WithComponent("compositor-capture").Debug().Err(err).Msg("Failed to raise window")
		}
	}
	el, err := c.surface.Capture(ctx, rect)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, fmt.Errorf("empty capture of %v", rect)
	}
	return el, nil
}
