package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xinerama"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/logger"
)

// Surfaces implements geometry.SurfaceSource. Without Xinerama the root
// window is the only surface. The first Xinerama head is the primary one.
func (c *Conn) Surfaces() ([]geometry.Surface, error) {
	root := image.Rect(0, 0, int(c.screen.WidthInPixels), int(c.screen.HeightInPixels))

	heads := []image.Rectangle{root}
	if c.xinerama {
		reply, err := xinerama.QueryScreens(c.conn).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to query xinerama screens: %w", err)
		}
		if len(reply.ScreenInfo) > 0 {
			heads = heads[:0]
			for _, s := range reply.ScreenInfo {
				heads = append(heads, image.Rect(int(s.XOrg), int(s.YOrg), int(s.XOrg)+int(s.Width), int(s.YOrg)+int(s.Height)))
			}
		}
	}

	var work image.Rectangle
	if vals, err := c.cardinals(c.root, "_NET_WORKAREA"); err == nil && len(vals) >= 4 {
		work = workArea(vals, c.currentDesktop())
	} else if err != nil {
		logger.WithComponent("x11").Debug().Err(err).Msg("No work area hint, using screen bounds")
	}
	return buildSurfaces(heads, work), nil
}

// currentDesktop returns _NET_CURRENT_DESKTOP, or 0.
func (c *Conn) currentDesktop() int {
	vals, err := c.cardinals(c.root, "_NET_CURRENT_DESKTOP")
	if err != nil || len(vals) == 0 {
		return 0
	}
	return int(vals[0])
}

// workArea picks the x, y, width, height quadruple of desktop from a
// _NET_WORKAREA value.
func workArea(vals []uint32, desktop int) image.Rectangle {
	i := desktop * 4
	if i < 0 || i+4 > len(vals) {
		i = 0
	}
	x, y := int(int32(vals[i])), int(int32(vals[i+1]))
	return image.Rect(x, y, x+int(vals[i+2]), y+int(vals[i+3]))
}

// buildSurfaces clips the desktop-wide work area to every head. Heads with
// duplicate bounds (cloned outputs) are reported once.
func buildSurfaces(heads []image.Rectangle, work image.Rectangle) []geometry.Surface {
	surfaces := make([]geometry.Surface, 0, len(heads))
	seen := make(map[image.Rectangle]bool, len(heads))
	for _, b := range heads {
		if b.Empty() || seen[b] {
			continue
		}
		seen[b] = true
		s := geometry.Surface{
			Index:   len(surfaces),
			Name:    fmt.Sprintf("xinerama-%d", len(surfaces)),
			Bounds:  b,
			Primary: len(surfaces) == 0,
		}
		if !work.Empty() {
			s.WorkingArea = b.Intersect(work)
		}
		surfaces = append(surfaces, s)
	}
	return surfaces
}
