// Package x11 implements the platform contracts on an X server through
// BurntSushi/xgb. Screens come from Xinerama, windows from EWMH hints, block
// copies from GetImage on the root window, the pointer from XFixes and
// window backing stores from the Composite extension. There is no
// compositor thumbnail API, so window captures fall back to the backing
// store or the window's screen area.
package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xinerama"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

func init() {
	platform.Register("x11", Open)
}

// Conn is a connection to the X server shared by every service of the
// backend.
type Conn struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo

	xinerama  bool
	composite bool
	xfixes    bool

	atomsMu sync.Mutex
	atoms   map[string]xproto.Atom

	gdi *gdi
}

// Open connects to $DISPLAY and initializes the extensions the backend
// uses. Missing extensions degrade the backend instead of failing it.
func Open() (*platform.Platform, error) {
	log := logger.WithComponent("x11")

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)
	c := &Conn{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		atoms:  make(map[string]xproto.Atom),
	}
	c.gdi = newGDI(c)

	if err := xinerama.Init(conn); err != nil {
		log.Warn().Err(err).Msg("Xinerama not available, treating the root window as one screen")
	} else if reply, err := xinerama.IsActive(conn).Reply(); err == nil && reply.State != 0 {
		c.xinerama = true
	}

	if err := composite.Init(conn); err != nil {
		log.Warn().Err(err).Msg("Composite extension not available, obscured windows cannot be grabbed")
	} else if _, err := composite.QueryVersion(conn, 0, 4).Reply(); err == nil {
		c.composite = true
	}

	if err := xfixes.Init(conn); err != nil {
		log.Warn().Err(err).Msg("XFixes extension not available, the pointer cannot be captured")
	} else if _, err := xfixes.QueryVersion(conn, 4, 0).Reply(); err == nil {
		c.xfixes = true
	}

	log.Info().
		Uint16("width", screen.WidthInPixels).
		Uint16("height", screen.HeightInPixels).
		Bool("xinerama", c.xinerama).
		Bool("composite", c.composite).
		Bool("xfixes", c.xfixes).
		Msg("Connected to X server")

	p := &platform.Platform{
		Name:    "x11",
		Screens: c,
		Windows: c,
		GDI:     c.gdi,
		Cursor:  c,
	}
	if c.composite {
		p.Grabber = c
	}
	p.OnClose(func() error {
		conn.Close()
		return nil
	})
	return p, nil
}

// atom interns name, caching the result.
func (c *Conn) atom(name string) (xproto.Atom, error) {
	c.atomsMu.Lock()
	defer c.atomsMu.Unlock()
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	c.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// property reads a whole property of win.
func (c *Conn) property(win xproto.Window, name string, typ xproto.Atom) ([]byte, error) {
	a, err := c.atom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(c.conn, false, win, a, typ, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("%s is not set", name)
	}
	return reply.Value, nil
}

// cardinals reads a 32-bit list property.
func (c *Conn) cardinals(win xproto.Window, name string) ([]uint32, error) {
	data, err := c.property(win, name, xproto.GetPropertyTypeAny)
	if err != nil {
		return nil, err
	}
	return decodeCardinals(data), nil
}

// decodeCardinals splits little-endian 32-bit values.
func decodeCardinals(data []byte) []uint32 {
	out := make([]uint32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		out = append(out, uint32(data[i])|
			uint32(data[i+1])<<8|
			uint32(data[i+2])<<16|
			uint32(data[i+3])<<24)
	}
	return out
}
