//go:build windows

package win32

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/lxn/win"
)

const (
	wsExNoActivate = 0x08000000

	dwmTNPRectDestination = 0x1
	dwmTNPOpacity         = 0x4
	dwmTNPVisible         = 0x8
)

type dwmThumbnailProperties struct {
	Flags                uint32
	Destination          win.RECT
	Source               win.RECT
	Opacity              byte
	Visible              int32
	SourceClientAreaOnly int32
}

// uiThread runs window calls on one locked OS thread. Host windows belong
// to the thread that created them and only receive messages there.
type uiThread struct {
	calls chan func()
	done  chan struct{}
}

func newUIThread() *uiThread {
	t := &uiThread{calls: make(chan func()), done: make(chan struct{})}
	go t.loop()
	return t
}

func (t *uiThread) loop() {
	runtime.LockOSThread()
	defer close(t.done)
	for fn := range t.calls {
		fn()
	}
}

func (t *uiThread) do(fn func() error) error {
	errc := make(chan error, 1)
	t.calls <- func() { errc <- fn() }
	return <-errc
}

func (t *uiThread) stop() {
	close(t.calls)
	<-t.done
}

var (
	hostClass     *uint16
	hostClassOnce sync.Once
	hostClassErr  error

	backgrounds sync.Map // win.HWND -> color.RGBA
)

var hostProc = syscall.NewCallback(func(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_ERASEBKGND:
		c, ok := backgrounds.Load(hwnd)
		if !ok {
			break
		}
		fill(win.HDC(wParam), hwnd, c.(color.RGBA))
		return 1
	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		win.BeginPaint(hwnd, &ps)
		win.EndPaint(hwnd, &ps)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
})

func fill(hdc win.HDC, hwnd win.HWND, c color.RGBA) {
	var r win.RECT
	win.GetClientRect(hwnd, &r)
	colorref := uintptr(c.R) | uintptr(c.G)<<8 | uintptr(c.B)<<16
	brush, _, _ := procCreateSolidBrush.Call(colorref)
	if brush == 0 {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(brush))
	procFillRect.Call(uintptr(hdc), uintptr(unsafe.Pointer(&r)), brush)
}

func registerHostClass() error {
	hostClassOnce.Do(func() {
		name, err := syscall.UTF16PtrFromString("SnapflowThumbnailHost")
		if err != nil {
			hostClassErr = err
			return
		}
		wc := win.WNDCLASSEX{
			LpfnWndProc:   hostProc,
			HInstance:     win.GetModuleHandle(nil),
			LpszClassName: name,
		}
		wc.CbSize = uint32(unsafe.Sizeof(wc))
		if win.RegisterClassEx(&wc) == 0 {
			hostClassErr = fmt.Errorf("RegisterClassEx failed: %d", win.GetLastError())
			return
		}
		hostClass = name
	})
	return hostClassErr
}

// compositor implements platform.Compositor on DWM thumbnails.
type compositor struct {
	ui      *uiThread
	rounded bool
}

func (c *compositor) CreateHost() (platform.Handle, error) {
	var hwnd win.HWND
	err := c.ui.do(func() error {
		if err := registerHostClass(); err != nil {
			return err
		}
		hwnd = win.CreateWindowEx(
			win.WS_EX_TOOLWINDOW|win.WS_EX_TOPMOST|wsExNoActivate,
			hostClass, nil,
			win.WS_POPUP,
			0, 0, 1, 1,
			0, 0, win.GetModuleHandle(nil), nil,
		)
		if hwnd == 0 {
			return fmt.Errorf("CreateWindowEx failed: %d", win.GetLastError())
		}
		return nil
	})
	return platform.Handle(hwnd), err
}

func (c *compositor) DestroyHost(host platform.Handle) error {
	return c.ui.do(func() error {
		backgrounds.Delete(win.HWND(host))
		if !win.DestroyWindow(win.HWND(host)) {
			return fmt.Errorf("DestroyWindow %#x failed: %d", uintptr(host), win.GetLastError())
		}
		return nil
	})
}

func (c *compositor) Register(host, target platform.Handle) (platform.Thumbnail, error) {
	var thumb uintptr
	hr, _, _ := procDwmRegisterThumbnail.Call(uintptr(host), uintptr(target), uintptr(unsafe.Pointer(&thumb)))
	if err := hresult("DwmRegisterThumbnail", hr); err != nil {
		return 0, err
	}
	return platform.Thumbnail(thumb), nil
}

func (c *compositor) Unregister(thumb platform.Thumbnail) error {
	hr, _, _ := procDwmUnregisterThumbnail.Call(uintptr(thumb))
	return hresult("DwmUnregisterThumbnail", hr)
}

func (c *compositor) SourceSize(thumb platform.Thumbnail) (image.Point, error) {
	var size win.SIZE
	hr, _, _ := procDwmQueryThumbnailSourceSize.Call(uintptr(thumb), uintptr(unsafe.Pointer(&size)))
	if err := hresult("DwmQueryThumbnailSourceSize", hr); err != nil {
		return image.Point{}, err
	}
	return image.Pt(int(size.CX), int(size.CY)), nil
}

func (c *compositor) Update(thumb platform.Thumbnail, props platform.ThumbnailProperties) error {
	p := dwmThumbnailProperties{
		Flags: dwmTNPRectDestination | dwmTNPOpacity | dwmTNPVisible,
		Destination: win.RECT{
			Left:   int32(props.Destination.Min.X),
			Top:    int32(props.Destination.Min.Y),
			Right:  int32(props.Destination.Max.X),
			Bottom: int32(props.Destination.Max.Y),
		},
		Opacity: props.Opacity,
	}
	if props.Visible {
		p.Visible = 1
	}
	hr, _, _ := procDwmUpdateThumbnailProperties.Call(uintptr(thumb), uintptr(unsafe.Pointer(&p)))
	return hresult("DwmUpdateThumbnailProperties", hr)
}

func (c *compositor) PlaceHost(host platform.Handle, bounds image.Rectangle) error {
	return c.ui.do(func() error {
		if !win.SetWindowPos(win.HWND(host), win.HWND_TOPMOST,
			int32(bounds.Min.X), int32(bounds.Min.Y), int32(bounds.Dx()), int32(bounds.Dy()),
			win.SWP_NOACTIVATE) {
			return fmt.Errorf("SetWindowPos failed: %d", win.GetLastError())
		}
		return nil
	})
}

func (c *compositor) ShowHost(host platform.Handle) error {
	return c.ui.do(func() error {
		win.ShowWindow(win.HWND(host), win.SW_SHOWNOACTIVATE)
		return nil
	})
}

func (c *compositor) SetHostBackground(host platform.Handle, col color.RGBA) error {
	backgrounds.Store(win.HWND(host), col)
	return nil
}

func (c *compositor) Repaint(host platform.Handle) error {
	err := c.ui.do(func() error {
		hwnd := win.HWND(host)
		win.InvalidateRect(hwnd, nil, true)
		win.UpdateWindow(hwnd)
		var msg win.MSG
		for win.PeekMessage(&msg, 0, 0, 0, win.PM_REMOVE) {
			win.TranslateMessage(&msg)
			win.DispatchMessage(&msg)
		}
		return nil
	})
	if err != nil {
		return err
	}
	hr, _, _ := procDwmFlush.Call()
	return hresult("DwmFlush", hr)
}

func (c *compositor) AccentColor() (color.RGBA, error) {
	var argb uint32
	var opaque int32
	hr, _, _ := procDwmGetColorizationColor.Call(uintptr(unsafe.Pointer(&argb)), uintptr(unsafe.Pointer(&opaque)))
	if err := hresult("DwmGetColorizationColor", hr); err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{
		R: uint8(argb >> 16),
		G: uint8(argb >> 8),
		B: uint8(argb),
		A: uint8(argb >> 24),
	}, nil
}

func (c *compositor) RoundsCorners() bool {
	return c.rounded
}

func hresult(call string, hr uintptr) error {
	if int32(hr) < 0 {
		return fmt.Errorf("%s failed: HRESULT %#08x", call, uint32(hr))
	}
	return nil
}
