//go:build windows

package win32

import (
	"fmt"
	"image"
	"sync"
	"unsafe"

	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/lxn/win"
)

// captureBlt includes layered windows in block copies.
const captureBlt = 0x40000000

type dib struct {
	bits          unsafe.Pointer
	width, height int
}

// gdi wraps the GDI calls of a block copy. It remembers the pixel memory of
// every DIB section it creates so Decode can read it.
type gdi struct {
	mu   sync.Mutex
	dibs map[platform.Bitmap]dib
}

func newGDI() *gdi {
	return &gdi{dibs: make(map[platform.Bitmap]dib)}
}

func (g *gdi) DesktopDC() (platform.DC, error) {
	dc := win.GetDC(0)
	if dc == 0 {
		return 0, fmt.Errorf("GetDC failed: %d", win.GetLastError())
	}
	return platform.DC(dc), nil
}

func (g *gdi) ReleaseDC(dc platform.DC) error {
	if !win.ReleaseDC(0, win.HDC(dc)) {
		return fmt.Errorf("ReleaseDC %#x failed", uintptr(dc))
	}
	return nil
}

func (g *gdi) CreateCompatibleDC(dc platform.DC) (platform.DC, error) {
	mem := win.CreateCompatibleDC(win.HDC(dc))
	if mem == 0 {
		return 0, fmt.Errorf("CreateCompatibleDC failed: %d", win.GetLastError())
	}
	return platform.DC(mem), nil
}

func (g *gdi) DeleteDC(dc platform.DC) error {
	if !win.DeleteDC(win.HDC(dc)) {
		return fmt.Errorf("DeleteDC %#x failed", uintptr(dc))
	}
	return nil
}

func (g *gdi) CreateDIBSection(dc platform.DC, width, height int) (platform.Bitmap, error) {
	header := win.BITMAPINFOHEADER{
		BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
		BiWidth:       int32(width),
		BiHeight:      int32(-height),
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: win.BI_RGB,
	}
	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(win.HDC(dc), &header, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 || bits == nil {
		return 0, fmt.Errorf("CreateDIBSection %dx%d failed: %d", width, height, win.GetLastError())
	}
	g.mu.Lock()
	g.dibs[platform.Bitmap(bmp)] = dib{bits: bits, width: width, height: height}
	g.mu.Unlock()
	return platform.Bitmap(bmp), nil
}

func (g *gdi) DeleteObject(bmp platform.Bitmap) error {
	if !win.DeleteObject(win.HGDIOBJ(bmp)) {
		return fmt.Errorf("DeleteObject %#x failed", uintptr(bmp))
	}
	g.mu.Lock()
	delete(g.dibs, bmp)
	g.mu.Unlock()
	return nil
}

func (g *gdi) SelectObject(dc platform.DC, bmp platform.Bitmap) (platform.Bitmap, error) {
	prev := win.SelectObject(win.HDC(dc), win.HGDIOBJ(bmp))
	if prev == 0 {
		return 0, fmt.Errorf("SelectObject failed: %d", win.GetLastError())
	}
	return platform.Bitmap(prev), nil
}

func (g *gdi) BitBlt(dst platform.DC, width, height int, src platform.DC, x, y int) error {
	if !win.BitBlt(win.HDC(dst), 0, 0, int32(width), int32(height), win.HDC(src), int32(x), int32(y), win.SRCCOPY|captureBlt) {
		return fmt.Errorf("BitBlt failed: %d", win.GetLastError())
	}
	return nil
}

// Decode converts the BGRX pixels of the section. A missing section is
// transient: the engine retries before giving up.
func (g *gdi) Decode(bmp platform.Bitmap, width, height int) (*image.RGBA, error) {
	g.mu.Lock()
	d, ok := g.dibs[bmp]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("bitmap %#x has no pixel memory: %w", uintptr(bmp), platform.ErrTransient)
	}
	if d.width != width || d.height != height {
		return nil, fmt.Errorf("bitmap %#x is %dx%d, want %dx%d", uintptr(bmp), d.width, d.height, width, height)
	}

	src := unsafe.Slice((*byte)(d.bits), width*height*4)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(src); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = src[i+2], src[i+1], src[i], 255
	}
	return img, nil
}
