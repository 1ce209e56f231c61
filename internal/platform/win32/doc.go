// Package win32 implements the platform contracts on Windows. Window
// enumeration and process lookups use golang.org/x/sys/windows, block
// copies and host windows use lxn/win, screen bounds come from
// kbinani/screenshot and live thumbnails from the DWM.
//
// The backend registers itself as "win32" on Windows builds only.
package win32
