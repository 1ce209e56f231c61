package x11

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

var errBadHandle = errors.New("invalid handle")

// memoryDC is a compatible DC: a holder for the selected bitmap.
type memoryDC struct {
	selected platform.Bitmap
}

// gdi emulates the device context API on top of GetImage. The desktop DC
// reads the root window; bitmaps are client-side pixel buffers.
type gdi struct {
	c *Conn

	mu      sync.Mutex
	next    uintptr
	desktop map[platform.DC]bool
	dcs     map[platform.DC]*memoryDC
	bitmaps map[platform.Bitmap]*image.RGBA
}

func newGDI(c *Conn) *gdi {
	return &gdi{
		c:       c,
		next:    1,
		desktop: make(map[platform.DC]bool),
		dcs:     make(map[platform.DC]*memoryDC),
		bitmaps: make(map[platform.Bitmap]*image.RGBA),
	}
}

func (g *gdi) alloc() uintptr {
	g.next++
	return g.next
}

func (g *gdi) DesktopDC() (platform.DC, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := platform.DC(g.alloc())
	g.desktop[h] = true
	return h, nil
}

func (g *gdi) ReleaseDC(dc platform.DC) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.desktop[dc] {
		return fmt.Errorf("ReleaseDC %#x: %w", uintptr(dc), errBadHandle)
	}
	delete(g.desktop, dc)
	return nil
}

func (g *gdi) CreateCompatibleDC(dc platform.DC) (platform.DC, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.desktop[dc] {
		return 0, fmt.Errorf("CreateCompatibleDC %#x: %w", uintptr(dc), errBadHandle)
	}
	h := platform.DC(g.alloc())
	g.dcs[h] = &memoryDC{}
	return h, nil
}

func (g *gdi) DeleteDC(dc platform.DC) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dcs[dc]; !ok {
		return fmt.Errorf("DeleteDC %#x: %w", uintptr(dc), errBadHandle)
	}
	delete(g.dcs, dc)
	return nil
}

func (g *gdi) CreateDIBSection(dc platform.DC, width, height int) (platform.Bitmap, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("CreateDIBSection %dx%d: invalid size", width, height)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	h := platform.Bitmap(g.alloc())
	g.bitmaps[h] = image.NewRGBA(image.Rect(0, 0, width, height))
	return h, nil
}

func (g *gdi) DeleteObject(bmp platform.Bitmap) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.bitmaps[bmp]; !ok {
		return fmt.Errorf("DeleteObject %#x: %w", uintptr(bmp), errBadHandle)
	}
	for _, dc := range g.dcs {
		if dc.selected == bmp {
			return fmt.Errorf("DeleteObject %#x: bitmap is selected into a DC", uintptr(bmp))
		}
	}
	delete(g.bitmaps, bmp)
	return nil
}

func (g *gdi) SelectObject(dc platform.DC, bmp platform.Bitmap) (platform.Bitmap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.dcs[dc]
	if !ok {
		return 0, fmt.Errorf("SelectObject %#x: %w", uintptr(dc), errBadHandle)
	}
	if _, ok := g.bitmaps[bmp]; bmp != 0 && !ok {
		return 0, fmt.Errorf("SelectObject bitmap %#x: %w", uintptr(bmp), errBadHandle)
	}
	prev := m.selected
	m.selected = bmp
	return prev, nil
}

// BitBlt reads the root window area at (x, y) into the bitmap selected into
// dst. Parts outside the root window are left black.
func (g *gdi) BitBlt(dst platform.DC, width, height int, src platform.DC, x, y int) error {
	g.mu.Lock()
	m, ok := g.dcs[dst]
	if !ok || !g.desktop[src] {
		g.mu.Unlock()
		return fmt.Errorf("BitBlt: %w", errBadHandle)
	}
	bmp := g.bitmaps[m.selected]
	g.mu.Unlock()
	if bmp == nil {
		return errors.New("BitBlt: no bitmap selected")
	}

	root := image.Rect(0, 0, int(g.c.screen.WidthInPixels), int(g.c.screen.HeightInPixels))
	want := image.Rect(x, y, x+width, y+height)
	area := want.Intersect(root)
	if area.Empty() {
		return nil
	}

	reply, err := xproto.GetImage(
		g.c.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(g.c.root),
		int16(area.Min.X), int16(area.Min.Y),
		uint16(area.Dx()), uint16(area.Dy()),
		0xffffffff,
	).Reply()
	if err != nil {
		return fmt.Errorf("failed to get image: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	copyBGRX(bmp, area.Sub(want.Min).Min, reply.Data, area.Dx(), area.Dy())
	return nil
}

// Decode returns a copy of the bitmap's pixels.
func (g *gdi) Decode(bmp platform.Bitmap, width, height int) (*image.RGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	img, ok := g.bitmaps[bmp]
	if !ok {
		return nil, fmt.Errorf("Decode %#x: %w", uintptr(bmp), errBadHandle)
	}
	if img.Rect.Dx() != width || img.Rect.Dy() != height {
		return nil, fmt.Errorf("Decode %#x: size %v, want %dx%d", uintptr(bmp), img.Rect.Size(), width, height)
	}
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out, nil
}

// copyBGRX writes ZPixmap data of a 24/32 bit visual into dst at p.
func copyBGRX(dst *image.RGBA, p image.Point, data []byte, width, height int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			if i+3 >= len(data) {
				return
			}
			o := dst.PixOffset(p.X+x, p.Y+y)
			dst.Pix[o+0] = data[i+2]
			dst.Pix[o+1] = data[i+1]
			dst.Pix[o+2] = data[i]
			dst.Pix[o+3] = 0xff
		}
	}
}
