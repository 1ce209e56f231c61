// Package platform defines the native graphics contracts the capture engine
// talks to, and a registry of backends that implement them.
package platform

import (
	"errors"
	"image"
	"image/color"

	"github.com/bryanchriswhite/snapflow/internal/geometry"
)

// ErrTransient marks a native fault worth retrying, such as a flaky decode
// of a device-independent bitmap.
var ErrTransient = errors.New("transient native fault")

// ErrUnsupported is returned by backends for calls they cannot serve.
var ErrUnsupported = errors.New("not supported by this platform")

// Handle identifies a top-level window.
type Handle uintptr

// DC is a device context handle.
type DC uintptr

// Bitmap is a bitmap section handle.
type Bitmap uintptr

// Thumbnail is a compositor thumbnail registration.
type Thumbnail uintptr

// Window describes a top-level window as the window system reports it.
type Window struct {
	Handle     Handle          `json:"handle"`
	Title      string          `json:"title"`
	Class      string          `json:"class"`
	PID        int             `json:"pid"`
	Process    string          `json:"process,omitempty"`
	Bounds     image.Rectangle `json:"bounds"`
	BorderSize image.Point     `json:"border_size"`
	Maximized  bool            `json:"maximized"`
	ModernApp  bool            `json:"modern_app"`
	ToolWindow bool            `json:"tool_window"`
	Desktop    int             `json:"desktop"`
	Focused    bool            `json:"focused"`
}

// Windows queries and manipulates top-level windows.
type Windows interface {
	// ActiveWindow returns the window that currently has focus.
	ActiveWindow() (*Window, error)

	// Window returns a fresh description of h.
	Window(h Handle) (*Window, error)

	// List returns all visible application windows.
	List() ([]*Window, error)

	// ToForeground activates h.
	ToForeground(h Handle) error
}

// GDI is the device-context level API used for block copies from display
// memory. Every successful allocation must be paired with its release call.
type GDI interface {
	DesktopDC() (DC, error)
	ReleaseDC(dc DC) error
	CreateCompatibleDC(dc DC) (DC, error)
	DeleteDC(dc DC) error
	CreateDIBSection(dc DC, width, height int) (Bitmap, error)
	DeleteObject(bmp Bitmap) error

	// SelectObject selects bmp into dc and returns the previously selected
	// bitmap, which the caller selects back when done.
	SelectObject(dc DC, bmp Bitmap) (Bitmap, error)

	// BitBlt copies width x height pixels from src at (x, y) into dst at (0, 0).
	BitBlt(dst DC, width, height int, src DC, x, y int) error

	// Decode converts the bitmap section into an owned opaque image.
	// Transient faults wrap ErrTransient.
	Decode(bmp Bitmap, width, height int) (*image.RGBA, error)
}

// ThumbnailProperties controls how a thumbnail is drawn in its host.
type ThumbnailProperties struct {
	Destination image.Rectangle
	Opacity     uint8
	Visible     bool
}

// Compositor exposes the compositor's live thumbnail API and the temporary
// host windows thumbnails are drawn into.
type Compositor interface {
	// CreateHost creates a hidden, borderless, topmost host window.
	CreateHost() (Handle, error)
	DestroyHost(host Handle) error

	Register(host, target Handle) (Thumbnail, error)
	Unregister(thumb Thumbnail) error
	SourceSize(thumb Thumbnail) (image.Point, error)
	Update(thumb Thumbnail, props ThumbnailProperties) error

	// PlaceHost moves and sizes the host window.
	PlaceHost(host Handle, bounds image.Rectangle) error
	ShowHost(host Handle) error
	SetHostBackground(host Handle, c color.RGBA) error

	// Repaint redraws the host and drains pending window messages so the
	// change is visible on screen before returning.
	Repaint(host Handle) error

	// AccentColor returns the compositor's current colorization color.
	AccentColor() (color.RGBA, error)

	// RoundsCorners reports whether this compositor draws antialiased rounded
	// window corners that leak the backdrop into captures.
	RoundsCorners() bool
}

// Cursor captures the mouse pointer.
type Cursor interface {
	// CursorPosition returns the pointer hotspot in desktop coordinates.
	CursorPosition() (image.Point, error)

	// CaptureCursor returns the pointer image and the desktop position of its
	// top-left pixel. ok is false when the pointer is hidden.
	CaptureCursor() (img image.Image, at image.Point, ok bool, err error)
}

// WindowGrabber captures a window's own backing store, independent of what
// covers it on screen.
type WindowGrabber interface {
	GrabWindow(h Handle) (*image.RGBA, error)
}

// Platform bundles the native services of one backend. Compositor, Cursor
// and Grabber are nil when the backend has no such facility.
type Platform struct {
	Name       string
	Screens    geometry.SurfaceSource
	Windows    Windows
	GDI        GDI
	Compositor Compositor
	Cursor     Cursor
	Grabber    WindowGrabber

	closers []func() error
}

// OnClose registers fn to run when the platform is closed.
func (p *Platform) OnClose(fn func() error) {
	p.closers = append(p.closers, fn)
}

// Close releases backend connections in reverse registration order.
func (p *Platform) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Lighten blends c halfway towards white and drops its transparency.
func Lighten(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8((uint16(c.R) + 255) >> 1),
		G: uint8((uint16(c.G) + 255) >> 1),
		B: uint8((uint16(c.B) + 255) >> 1),
		A: 255,
	}
}
