// Package sources provides the capture.Source implementations that fill a
// capture context with pixels from the desktop.
package sources

import (
	"context"
	"fmt"
	"image"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/engine"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// ScreenSource captures the whole virtual desktop.
type ScreenSource struct {
	capturer *engine.Capturer
}

// NewScreenSource creates a source copying every surface at once.
func NewScreenSource(capturer *engine.Capturer) *ScreenSource {
	return &ScreenSource{capturer: capturer}
}

// Import implements capture.Source.
func (s *ScreenSource) Import(ctx context.Context, c *capture.Context) (bool, error) {
	rect, err := s.capturer.Resolver.VirtualDesktop()
	if err != nil {
		return false, fmt.Errorf("failed to resolve desktop bounds: %w", err)
	}
	return importRect(ctx, s.capturer, c, rect, "Desktop")
}

// Description implements capture.Describer.
func (s *ScreenSource) Description() string { return "Capture all screens" }

// RegionSource captures a fixed desktop rectangle.
type RegionSource struct {
	capturer *engine.Capturer
	rect     image.Rectangle
}

// NewRegionSource creates a source for rect, in desktop coordinates.
func NewRegionSource(capturer *engine.Capturer, rect image.Rectangle) *RegionSource {
	return &RegionSource{capturer: capturer, rect: rect}
}

// Import implements capture.Source.
func (s *RegionSource) Import(ctx context.Context, c *capture.Context) (bool, error) {
	return importRect(ctx, s.capturer, c, s.rect, "Region")
}

// Description implements capture.Describer.
func (s *RegionSource) Description() string {
	return fmt.Sprintf("Capture region %v", s.rect)
}

func importRect(ctx context.Context, capturer *engine.Capturer, c *capture.Context, rect image.Rectangle, title string) (bool, error) {
	el, err := capturer.CaptureRect(ctx, rect)
	if err != nil {
		return false, err
	}
	if el == nil {
		return false, nil
	}
	c.SetCapture(el, rect.Min)
	if c.Title == "" {
		c.Title = title
	}
	return true, nil
}

// WindowSource captures a single window, the active one unless a handle is
// given.
type WindowSource struct {
	capturer *engine.Capturer
	windows  platform.Windows
	opts     engine.WindowCaptureOptions
	handle   platform.Handle
}

// NewWindowSource creates a source for the active window.
func NewWindowSource(capturer *engine.Capturer, windows platform.Windows, opts engine.WindowCaptureOptions) *WindowSource {
	return &WindowSource{capturer: capturer, windows: windows, opts: opts}
}

// ForWindow returns a copy of s that captures h instead of the active window.
func (s *WindowSource) ForWindow(h platform.Handle) *WindowSource {
	cp := *s
	cp.handle = h
	return &cp
}

// Import implements capture.Source. It returns false when there is no window
// to capture or the window has no visible area.
func (s *WindowSource) Import(ctx context.Context, c *capture.Context) (bool, error) {
	log := logger.WithComponent("window-source")

	win, err := s.target()
	if err != nil {
		return false, err
	}
	if win == nil {
		log.Warn().Msg("No window to capture")
		return false, nil
	}

	el, rect, err := s.capturer.CaptureWindow(ctx, win, s.opts)
	if err != nil {
		return false, fmt.Errorf("failed to capture window %q: %w", win.Title, err)
	}
	if el == nil {
		return false, nil
	}

	c.SetCapture(el, rect.Min)
	c.Title = win.Title
	c.AddMetadata("window_class", win.Class)
	if win.Process != "" {
		c.AddMetadata("window_process", win.Process)
	}

	log.Debug().
		Str("title", win.Title).
		Str("rect", rect.String()).
		Bool("alpha", el.HasAlpha()).
		Msg("Window captured")
	return true, nil
}

func (s *WindowSource) target() (*platform.Window, error) {
	if s.handle != 0 {
		win, err := s.windows.Window(s.handle)
		if err != nil {
			return nil, fmt.Errorf("failed to query window %#x: %w", s.handle, err)
		}
		return win, nil
	}
	win, err := s.windows.ActiveWindow()
	if err != nil {
		return nil, fmt.Errorf("failed to query active window: %w", err)
	}
	return win, nil
}

// Description implements capture.Describer.
func (s *WindowSource) Description() string { return "Capture the active window" }

// MouseSource stores the mouse pointer in the context's MouseCursor. It never
// stops a flow: a hidden or unreadable pointer just leaves MouseCursor nil.
type MouseSource struct {
	cursor  platform.Cursor
	enabled bool
}

// NewMouseSource creates a pointer source. A disabled source or a nil
// cursor clears MouseCursor.
func NewMouseSource(cursor platform.Cursor, enabled bool) *MouseSource {
	return &MouseSource{cursor: cursor, enabled: enabled}
}

// Import implements capture.Source.
func (s *MouseSource) Import(ctx context.Context, c *capture.Context) (bool, error) {
	c.MouseCursor = nil
	if !s.enabled || s.cursor == nil {
		return true, nil
	}

	img, at, ok, err := s.cursor.CaptureCursor()
	if err != nil {
		logger.WithComponent("mouse-source").Warn().Err(err).Msg("Failed to capture mouse pointer")
		return true, nil
	}
	if !ok {
		return true, nil
	}
	size := img.Bounds().Size()
	c.MouseCursor = &capture.Element{
		Content: img,
		Bounds:  image.Rectangle{Min: at, Max: at.Add(size)},
	}
	return true, nil
}

// Description implements capture.Describer.
func (s *MouseSource) Description() string { return "Capture the mouse pointer" }
