//go:build windows

package win32

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var errNoWindow = errors.New("window no longer exists")

var enumCallback = syscall.NewCallback(func(h windows.HWND, lparam uintptr) uintptr {
	list := (*[]windows.HWND)(unsafe.Pointer(lparam))
	*list = append(*list, h)
	return 1
})

// modernAppClasses host UWP applications.
var modernAppClasses = map[string]bool{
	"ApplicationFrameWindow":     true,
	"Windows.UI.Core.CoreWindow": true,
}

type windowList struct{}

// ActiveWindow implements platform.Windows.
func (windowList) ActiveWindow() (*platform.Window, error) {
	h := windows.GetForegroundWindow()
	if h == 0 {
		return nil, nil
	}
	return describe(h, h)
}

// Window implements platform.Windows.
func (windowList) Window(h platform.Handle) (*platform.Window, error) {
	return describe(windows.HWND(h), windows.GetForegroundWindow())
}

// List implements platform.Windows. EnumWindows reports windows in z-order,
// topmost first.
func (windowList) List() ([]*platform.Window, error) {
	var handles []windows.HWND
	if err := windows.EnumWindows(enumCallback, unsafe.Pointer(&handles)); err != nil {
		return nil, fmt.Errorf("failed to enumerate windows: %w", err)
	}

	fg := windows.GetForegroundWindow()
	out := make([]*platform.Window, 0, len(handles))
	for _, h := range handles {
		if !windows.IsWindowVisible(h) || cloaked(h) {
			continue
		}
		if win.GetWindowLong(win.HWND(h), win.GWL_STYLE)&win.WS_MINIMIZE != 0 {
			continue
		}
		w, err := describe(h, fg)
		if err != nil || strings.TrimSpace(w.Title) == "" {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// ToForeground implements platform.Windows.
func (windowList) ToForeground(h platform.Handle) error {
	hwnd := win.HWND(h)
	if win.GetWindowLong(hwnd, win.GWL_STYLE)&win.WS_MINIMIZE != 0 {
		win.ShowWindow(hwnd, win.SW_RESTORE)
	}
	if !win.SetForegroundWindow(hwnd) {
		return fmt.Errorf("SetForegroundWindow %#x failed", uintptr(h))
	}
	return nil
}

func describe(h, foreground windows.HWND) (*platform.Window, error) {
	if !windows.IsWindow(h) {
		return nil, errNoWindow
	}
	var rect win.RECT
	if !win.GetWindowRect(win.HWND(h), &rect) {
		return nil, fmt.Errorf("GetWindowRect %#x failed", uintptr(h))
	}

	style := win.GetWindowLong(win.HWND(h), win.GWL_STYLE)
	exStyle := win.GetWindowLong(win.HWND(h), win.GWL_EXSTYLE)

	w := &platform.Window{
		Handle:     platform.Handle(h),
		Title:      windowText(h),
		Class:      className(h),
		Bounds:     rectOf(rect),
		Maximized:  style&win.WS_MAXIMIZE != 0,
		ToolWindow: exStyle&win.WS_EX_TOOLWINDOW != 0,
		Focused:    h == foreground,
	}
	w.ModernApp = modernAppClasses[w.Class]

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(h, &pid); err == nil {
		w.PID = int(pid)
		w.Process = processName(pid)
	}

	// The extended frame excludes the invisible resize border.
	var frame windows.Rect
	if err := windows.DwmGetWindowAttribute(h, windows.DWMWA_EXTENDED_FRAME_BOUNDS,
		unsafe.Pointer(&frame), uint32(unsafe.Sizeof(frame))); err == nil {
		if bx := int(frame.Left - rect.Left); bx > 0 {
			w.BorderSize.X = bx
		}
		if by := int(rect.Bottom - frame.Bottom); by > 0 {
			w.BorderSize.Y = by
		}
	}
	if w.BorderSize == (image.Point{}) && w.Maximized {
		w.BorderSize = image.Pt(
			int(win.GetSystemMetrics(win.SM_CXFRAME)),
			int(win.GetSystemMetrics(win.SM_CYFRAME)),
		)
	}
	return w, nil
}

func cloaked(h windows.HWND) bool {
	var v uint32
	err := windows.DwmGetWindowAttribute(h, windows.DWMWA_CLOAKED, unsafe.Pointer(&v), uint32(unsafe.Sizeof(v)))
	return err == nil && v != 0
}

func windowText(h windows.HWND) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

func className(h windows.HWND) string {
	buf := make([]uint16, 256)
	n, _ := windows.GetClassName(h, &buf[0], int32(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

// processName returns the executable base name of pid without extension.
func processName(pid uint32) string {
	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(proc)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return ""
	}
	base := filepath.Base(windows.UTF16ToString(buf[:size]))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
