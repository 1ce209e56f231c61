package x11

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// ActiveWindow implements platform.Windows through _NET_ACTIVE_WINDOW,
// falling back to the input focus.
func (c *Conn) ActiveWindow() (*platform.Window, error) {
	if vals, err := c.cardinals(c.root, "_NET_ACTIVE_WINDOW"); err == nil && len(vals) > 0 && vals[0] != 0 {
		win, err := c.describe(xproto.Window(vals[0]))
		if err == nil {
			win.Focused = true
		}
		return win, err
	}

	focus, err := xproto.GetInputFocus(c.conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get input focus: %w", err)
	}
	if focus.Focus == xproto.WindowNone || focus.Focus == c.root {
		return nil, nil
	}
	win, err := c.describe(focus.Focus)
	if err == nil {
		win.Focused = true
	}
	return win, err
}

// Window implements platform.Windows.
func (c *Conn) Window(h platform.Handle) (*platform.Window, error) {
	return c.describe(xproto.Window(h))
}

// List implements platform.Windows using EWMH _NET_CLIENT_LIST_STACKING,
// topmost first, with a QueryTree fallback.
func (c *Conn) List() ([]*platform.Window, error) {
	log := logger.WithComponent("x11")

	ids, err := c.cardinals(c.root, "_NET_CLIENT_LIST_STACKING")
	if err != nil || len(ids) == 0 {
		ids, err = c.cardinals(c.root, "_NET_CLIENT_LIST")
	}
	if err != nil || len(ids) == 0 {
		log.Debug().Err(err).Msg("EWMH client list unavailable, falling back to QueryTree")
		tree, err := xproto.QueryTree(c.conn, c.root).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to query window tree: %w", err)
		}
		ids = ids[:0]
		for _, child := range tree.Children {
			ids = append(ids, uint32(child))
		}
	}

	active := xproto.Window(0)
	if vals, err := c.cardinals(c.root, "_NET_ACTIVE_WINDOW"); err == nil && len(vals) > 0 {
		active = xproto.Window(vals[0])
	}

	windows := make([]*platform.Window, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		win, err := c.describe(xproto.Window(ids[i]))
		if err != nil {
			log.Debug().Uint32("window", ids[i]).Err(err).Msg("Skipping window")
			continue
		}
		// Skip windows without titles or class (usually not user windows)
		if win.Title == "" && win.Class == "" {
			continue
		}
		win.Focused = xproto.Window(win.Handle) == active
		windows = append(windows, win)
	}
	return windows, nil
}

// ToForeground implements platform.Windows by asking the window manager to
// activate h.
func (c *Conn) ToForeground(h platform.Handle) error {
	a, err := c.atom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return err
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: xproto.Window(h),
		Type:   a,
		// Source indication 2: request from a pager.
		Data: xproto.ClientMessageDataUnionData32New([]uint32{2, uint32(xproto.TimeCurrentTime), 0, 0, 0}),
	}
	mask := uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify)
	if err := xproto.SendEventChecked(c.conn, false, c.root, mask, string(ev.Bytes())).Check(); err != nil {
		return fmt.Errorf("failed to activate window %#x: %w", uint32(h), err)
	}
	return nil
}

// describe reads the window's EWMH hints. Bounds include the frame the
// window manager reports in _NET_FRAME_EXTENTS.
func (c *Conn) describe(win xproto.Window) (*platform.Window, error) {
	geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get geometry of %#x: %w", uint32(win), err)
	}
	pos, err := xproto.TranslateCoordinates(c.conn, win, c.root, 0, 0).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to translate coordinates of %#x: %w", uint32(win), err)
	}

	info := &platform.Window{
		Handle: platform.Handle(win),
		Bounds: image.Rect(int(pos.DstX), int(pos.DstY), int(pos.DstX)+int(geom.Width), int(pos.DstY)+int(geom.Height)),
	}

	if extents, err := c.cardinals(win, "_NET_FRAME_EXTENTS"); err == nil && len(extents) >= 4 {
		left, right, top, bottom := int(extents[0]), int(extents[1]), int(extents[2]), int(extents[3])
		info.Bounds = image.Rect(info.Bounds.Min.X-left, info.Bounds.Min.Y-top, info.Bounds.Max.X+right, info.Bounds.Max.Y+bottom)
	}

	if data, err := c.property(win, "_NET_WM_NAME", xproto.GetPropertyTypeAny); err == nil {
		info.Title = string(data)
	} else if data, err := c.property(win, "WM_NAME", xproto.GetPropertyTypeAny); err == nil {
		info.Title = string(data)
	}

	if data, err := c.property(win, "WM_CLASS", xproto.GetPropertyTypeAny); err == nil {
		info.Class = parseClass(data)
	}

	if vals, err := c.cardinals(win, "_NET_WM_PID"); err == nil && len(vals) > 0 {
		info.PID = int(vals[0])
		info.Process = processName(info.PID)
	}

	if vals, err := c.cardinals(win, "_NET_WM_DESKTOP"); err == nil && len(vals) > 0 {
		info.Desktop = int(int32(vals[0]))
	}

	if states, err := c.cardinals(win, "_NET_WM_STATE"); err == nil {
		vert, _ := c.atom("_NET_WM_STATE_MAXIMIZED_VERT")
		horz, _ := c.atom("_NET_WM_STATE_MAXIMIZED_HORZ")
		info.Maximized = hasAtoms(states, vert, horz)
	}

	if types, err := c.cardinals(win, "_NET_WM_WINDOW_TYPE"); err == nil {
		utility, _ := c.atom("_NET_WM_WINDOW_TYPE_UTILITY")
		toolbar, _ := c.atom("_NET_WM_WINDOW_TYPE_TOOLBAR")
		info.ToolWindow = hasAtoms(types, utility) || hasAtoms(types, toolbar)
	}

	return info, nil
}

// parseClass returns the class part of WM_CLASS, which holds instance and
// class as two NUL-terminated strings.
func parseClass(raw []byte) string {
	parts := strings.Split(string(raw), "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	if len(parts) >= 1 {
		return parts[0]
	}
	return ""
}

// hasAtoms reports whether every atom in want appears in list.
func hasAtoms(list []uint32, want ...xproto.Atom) bool {
	for _, w := range want {
		if w == 0 {
			return false
		}
		found := false
		for _, a := range list {
			if xproto.Atom(a) == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// processName reads the executable name of pid from procfs.
func processName(pid int) string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
