//go:build windows

package win32

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/lxn/win"
)

const cursorShowing = 0x1

type cursorInfo struct {
	Size     uint32
	Flags    uint32
	Cursor   win.HCURSOR
	Position win.POINT
}

type cursor struct{}

// CursorPosition implements platform.Cursor.
func (cursor) CursorPosition() (image.Point, error) {
	var pt win.POINT
	if !win.GetCursorPos(&pt) {
		return image.Point{}, fmt.Errorf("GetCursorPos failed: %d", win.GetLastError())
	}
	return image.Pt(int(pt.X), int(pt.Y)), nil
}

// CaptureCursor draws the current cursor into a 32-bit DIB. Cursors
// without an alpha channel are treated as opaque wherever they drew.
func (cursor) CaptureCursor() (image.Image, image.Point, bool, error) {
	ci := cursorInfo{}
	ci.Size = uint32(unsafe.Sizeof(ci))
	if ret, _, err := procGetCursorInfo.Call(uintptr(unsafe.Pointer(&ci))); ret == 0 {
		return nil, image.Point{}, false, fmt.Errorf("GetCursorInfo failed: %w", err)
	}
	if ci.Flags&cursorShowing == 0 || ci.Cursor == 0 {
		return nil, image.Point{}, false, nil
	}

	var info win.ICONINFO
	if !win.GetIconInfo(win.HICON(ci.Cursor), &info) {
		return nil, image.Point{}, false, fmt.Errorf("GetIconInfo failed: %d", win.GetLastError())
	}
	if info.HbmMask != 0 {
		defer win.DeleteObject(win.HGDIOBJ(info.HbmMask))
	}
	if info.HbmColor != 0 {
		defer win.DeleteObject(win.HGDIOBJ(info.HbmColor))
	}

	w := int(win.GetSystemMetrics(win.SM_CXCURSOR))
	h := int(win.GetSystemMetrics(win.SM_CYCURSOR))

	screen := win.GetDC(0)
	defer win.ReleaseDC(0, screen)
	mem := win.CreateCompatibleDC(screen)
	defer win.DeleteDC(mem)

	header := win.BITMAPINFOHEADER{
		BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
		BiWidth:       int32(w),
		BiHeight:      int32(-h),
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: win.BI_RGB,
	}
	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(mem, &header, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 || bits == nil {
		return nil, image.Point{}, false, fmt.Errorf("CreateDIBSection failed: %d", win.GetLastError())
	}
	defer win.DeleteObject(win.HGDIOBJ(bmp))
	prev := win.SelectObject(mem, win.HGDIOBJ(bmp))
	defer win.SelectObject(mem, prev)

	if !win.DrawIconEx(mem, 0, 0, win.HICON(ci.Cursor), int32(w), int32(h), 0, 0, win.DI_NORMAL) {
		return nil, image.Point{}, false, fmt.Errorf("DrawIconEx failed: %d", win.GetLastError())
	}

	img := bgraImage(unsafe.Slice((*byte)(bits), w*h*4), w, h)
	at := image.Pt(int(ci.Position.X)-int(info.XHotspot), int(ci.Position.Y)-int(info.YHotspot))
	return img, at, true, nil
}

// bgraImage converts premultiplied BGRA pixels. When no pixel carries
// alpha, every drawn pixel becomes opaque.
func bgraImage(src []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	hasAlpha := false
	for i := 3; i < len(src); i += 4 {
		if src[i] != 0 {
			hasAlpha = true
			break
		}
	}
	for i := 0; i+3 < len(src); i += 4 {
		a := src[i+3]
		if !hasAlpha && (src[i] != 0 || src[i+1] != 0 || src[i+2] != 0) {
			a = 255
		}
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = src[i+2], src[i+1], src[i], a
	}
	return img
}
