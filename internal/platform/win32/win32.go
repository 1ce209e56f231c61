//go:build windows

package win32

import (
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
	"golang.org/x/sys/windows"
)

func init() {
	platform.Register("win32", Open)
}

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")
	dwmapi = windows.NewLazySystemDLL("dwmapi.dll")

	procMonitorFromPoint = user32.NewProc("MonitorFromPoint")
	procGetCursorInfo    = user32.NewProc("GetCursorInfo")
	procFillRect         = user32.NewProc("FillRect")
	procGetWindowTextW   = user32.NewProc("GetWindowTextW")
	procCreateSolidBrush = gdi32.NewProc("CreateSolidBrush")

	procDwmRegisterThumbnail         = dwmapi.NewProc("DwmRegisterThumbnail")
	procDwmUnregisterThumbnail       = dwmapi.NewProc("DwmUnregisterThumbnail")
	procDwmQueryThumbnailSourceSize  = dwmapi.NewProc("DwmQueryThumbnailSourceSize")
	procDwmUpdateThumbnailProperties = dwmapi.NewProc("DwmUpdateThumbnailProperties")
	procDwmGetColorizationColor      = dwmapi.NewProc("DwmGetColorizationColor")
	procDwmFlush                     = dwmapi.NewProc("DwmFlush")
)

// Open starts the UI thread that owns host windows and returns the
// backend. The DWM is required: without it there are no thumbnails.
func Open() (*platform.Platform, error) {
	log := logger.WithComponent("win32")

	ui := newUIThread()
	comp := &compositor{ui: ui, rounded: roundedCorners()}
	if err := dwmapi.Load(); err != nil {
		log.Warn().Err(err).Msg("DWM not available, window captures fall back to block copies")
		comp = nil
	}

	p := &platform.Platform{
		Name:    "win32",
		Screens: screens{},
		Windows: windowList{},
		GDI:     newGDI(),
		Cursor:  cursor{},
	}
	if comp != nil {
		p.Compositor = comp
	}
	p.OnClose(func() error {
		ui.stop()
		return nil
	})

	log.Info().Bool("dwm", comp != nil).Msg("Opened Windows platform")
	return p, nil
}

// roundedCorners reports whether the DWM draws rounded window corners,
// which started with Windows 11 (build 22000).
func roundedCorners() bool {
	return windows.RtlGetVersion().BuildNumber >= 22000
}
