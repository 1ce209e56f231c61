//go:build windows

package win32

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/kbinani/screenshot"
	"github.com/lxn/win"
)

const monitorDefaultToNull = 0

type screens struct{}

// Surfaces implements geometry.SurfaceSource.
func (screens) Surfaces() ([]geometry.Surface, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	out := make([]geometry.Surface, 0, n)
	for i := 0; i < n; i++ {
		s := geometry.Surface{
			Index:  i,
			Name:   fmt.Sprintf("display-%d", i),
			Bounds: screenshot.GetDisplayBounds(i),
		}
		if mi, ok := monitorInfo(s.Bounds); ok {
			s.WorkingArea = rectOf(mi.RcWork)
			s.Primary = mi.DwFlags&win.MONITORINFOF_PRIMARY != 0
		}
		out = append(out, s)
	}
	return out, nil
}

// monitorInfo looks up the monitor whose bounds contain the center of r.
func monitorInfo(r image.Rectangle) (win.MONITORINFO, bool) {
	c := r.Min.Add(r.Size().Div(2))
	pt := uintptr(uint32(int32(c.X))) | uintptr(uint32(int32(c.Y)))<<32
	hmon, _, _ := procMonitorFromPoint.Call(pt, monitorDefaultToNull)
	if hmon == 0 {
		return win.MONITORINFO{}, false
	}
	mi := win.MONITORINFO{}
	mi.CbSize = uint32(unsafe.Sizeof(mi))
	if !win.GetMonitorInfo(win.HMONITOR(hmon), &mi) {
		return win.MONITORINFO{}, false
	}
	return mi, true
}

func rectOf(r win.RECT) image.Rectangle {
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom))
}
