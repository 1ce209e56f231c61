package x11

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// CursorPosition implements platform.Cursor.
func (c *Conn) CursorPosition() (image.Point, error) {
	reply, err := xproto.QueryPointer(c.conn, c.root).Reply()
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to query pointer: %w", err)
	}
	return image.Pt(int(reply.RootX), int(reply.RootY)), nil
}

// CaptureCursor implements platform.Cursor through XFixes.
func (c *Conn) CaptureCursor() (image.Image, image.Point, bool, error) {
	if !c.xfixes {
		return nil, image.Point{}, false, platform.ErrUnsupported
	}
	reply, err := xfixes.GetCursorImage(c.conn).Reply()
	if err != nil {
		return nil, image.Point{}, false, fmt.Errorf("failed to get cursor image: %w", err)
	}
	if reply.Width == 0 || reply.Height == 0 {
		return nil, image.Point{}, false, nil
	}
	img := cursorImage(reply.CursorImage, int(reply.Width), int(reply.Height))
	at := image.Pt(int(reply.X)-int(reply.Xhot), int(reply.Y)-int(reply.Yhot))
	return img, at, true, nil
}

// cursorImage converts premultiplied ARGB words into an image.
func cursorImage(argb []uint32, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, px := range argb {
		if i >= width*height {
			break
		}
		img.SetRGBA(i%width, i/width, color.RGBA{
			R: uint8(px >> 16),
			G: uint8(px >> 8),
			B: uint8(px),
			A: uint8(px >> 24),
		})
	}
	return img
}

// GrabWindow implements platform.WindowGrabber by reading the window's
// off-screen pixmap through the Composite extension.
func (c *Conn) GrabWindow(h platform.Handle) (*image.RGBA, error) {
	if !c.composite {
		return nil, platform.ErrUnsupported
	}
	log := logger.WithComponent("x11")
	win := xproto.Window(h)

	attrs, err := xproto.GetWindowAttributes(c.conn, win).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get window attributes: %w", err)
	}
	if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
		child, err := c.findCapturableChild(win)
		if err != nil {
			return nil, fmt.Errorf("no capturable window found: %w", err)
		}
		win = child
	}

	geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get window geometry: %w", err)
	}

	if err := composite.RedirectWindowChecked(c.conn, win, composite.RedirectAutomatic).Check(); err != nil {
		return nil, fmt.Errorf("failed to redirect window: %w", err)
	}
	defer composite.UnredirectWindow(c.conn, win, composite.RedirectAutomatic)

	pixmap, err := xproto.NewPixmapId(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate pixmap: %w", err)
	}
	if err := composite.NameWindowPixmapChecked(c.conn, win, pixmap).Check(); err != nil {
		return nil, fmt.Errorf("failed to name window pixmap: %w", err)
	}
	defer xproto.FreePixmap(c.conn, pixmap)

	reply, err := xproto.GetImage(
		c.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(pixmap),
		0, 0,
		geom.Width, geom.Height,
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if geom.Depth != 24 && geom.Depth != 32 {
		return nil, fmt.Errorf("unsupported window depth %d", geom.Depth)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(geom.Width), int(geom.Height)))
	copyBGRX(img, image.Point{}, reply.Data, int(geom.Width), int(geom.Height))
	log.Debug().Uint32("window", uint32(win)).Uint16("width", geom.Width).Uint16("height", geom.Height).Msg("Grabbed window pixmap")
	return img, nil
}

var errNoChild = errors.New("no capturable child found")

// findCapturableChild searches depth-first for a mapped InputOutput child
// larger than 10x10.
func (c *Conn) findCapturableChild(parent xproto.Window) (xproto.Window, error) {
	tree, err := xproto.QueryTree(c.conn, parent).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query tree: %w", err)
	}
	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(c.conn, child).Reply()
		if err != nil {
			continue
		}
		geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(child)).Reply()
		if err != nil {
			continue
		}
		if attrs.Class == xproto.WindowClassInputOutput && attrs.MapState == xproto.MapStateViewable &&
			geom.Width > 10 && geom.Height > 10 {
			return child, nil
		}
		if grandchild, err := c.findCapturableChild(child); err == nil {
			return grandchild, nil
		}
	}
	return 0, errNoChild
}
