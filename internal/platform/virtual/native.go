package virtual

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/bryanchriswhite/snapflow/internal/platform"
)

var errInvalidHandle = errors.New("invalid handle")

// ActiveWindow implements platform.Windows.
func (d *Desktop) ActiveWindow() (*platform.Window, error) {
	if err := d.enter("ActiveWindow"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(d.active)
	if w == nil {
		return nil, fmt.Errorf("no active window: %w", errInvalidHandle)
	}
	return d.describe(w), nil
}

// Window implements platform.Windows.
func (d *Desktop) Window(h platform.Handle) (*platform.Window, error) {
	if err := d.enter("Window"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(h)
	if w == nil {
		return nil, fmt.Errorf("window %#x: %w", h, errInvalidHandle)
	}
	return d.describe(w), nil
}

// List implements platform.Windows, topmost first.
func (d *Desktop) List() ([]*platform.Window, error) {
	if err := d.enter("List"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*platform.Window, 0, len(d.windows))
	for i := len(d.windows) - 1; i >= 0; i-- {
		out = append(out, d.describe(d.windows[i]))
	}
	return out, nil
}

// ToForeground raises h to the top of the stack and focuses it.
func (d *Desktop) ToForeground(h platform.Handle) error {
	if err := d.enter("ToForeground"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = append(d.foreground, h)
	for i, w := range d.windows {
		if w.info.Handle == h {
			d.windows = append(append(d.windows[:i:i], d.windows[i+1:]...), w)
			d.active = h
			return nil
		}
	}
	return fmt.Errorf("window %#x: %w", h, errInvalidHandle)
}

func (d *Desktop) describe(w *window) *platform.Window {
	info := w.info
	info.Focused = info.Handle == d.active
	return &info
}

// DesktopDC implements platform.GDI.
func (d *Desktop) DesktopDC() (platform.DC, error) {
	if err := d.enter("DesktopDC"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := platform.DC(d.alloc())
	d.dcs[h] = &dc{desktop: true}
	return h, nil
}

// ReleaseDC implements platform.GDI.
func (d *Desktop) ReleaseDC(h platform.DC) error {
	if err := d.enter("ReleaseDC"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.dcs[h]
	if !ok || !c.desktop {
		return fmt.Errorf("ReleaseDC %#x: %w", h, errInvalidHandle)
	}
	delete(d.dcs, h)
	return nil
}

// CreateCompatibleDC implements platform.GDI.
func (d *Desktop) CreateCompatibleDC(src platform.DC) (platform.DC, error) {
	if err := d.enter("CreateCompatibleDC"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.dcs[src]; !ok {
		return 0, fmt.Errorf("CreateCompatibleDC %#x: %w", src, errInvalidHandle)
	}
	h := platform.DC(d.alloc())
	d.dcs[h] = &dc{}
	return h, nil
}

// DeleteDC implements platform.GDI.
func (d *Desktop) DeleteDC(h platform.DC) error {
	if err := d.enter("DeleteDC"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.dcs[h]
	if !ok || c.desktop {
		return fmt.Errorf("DeleteDC %#x: %w", h, errInvalidHandle)
	}
	delete(d.dcs, h)
	return nil
}

// CreateDIBSection implements platform.GDI.
func (d *Desktop) CreateDIBSection(src platform.DC, width, height int) (platform.Bitmap, error) {
	if err := d.enter("CreateDIBSection"); err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("CreateDIBSection %dx%d: invalid size", width, height)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.dcs[src]; !ok {
		return 0, fmt.Errorf("CreateDIBSection %#x: %w", src, errInvalidHandle)
	}
	h := platform.Bitmap(d.alloc())
	d.bitmaps[h] = image.NewRGBA(image.Rect(0, 0, width, height))
	return h, nil
}

// DeleteObject fails while the bitmap is still selected into a DC.
func (d *Desktop) DeleteObject(h platform.Bitmap) error {
	if err := d.enter("DeleteObject"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.bitmaps[h]; !ok {
		return fmt.Errorf("DeleteObject %#x: %w", h, errInvalidHandle)
	}
	for _, c := range d.dcs {
		if c.selected == h {
			return fmt.Errorf("DeleteObject %#x: bitmap is selected", h)
		}
	}
	delete(d.bitmaps, h)
	return nil
}

// SelectObject implements platform.GDI.
func (d *Desktop) SelectObject(h platform.DC, bmp platform.Bitmap) (platform.Bitmap, error) {
	if err := d.enter("SelectObject"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.dcs[h]
	if !ok {
		return 0, fmt.Errorf("SelectObject %#x: %w", h, errInvalidHandle)
	}
	if _, ok := d.bitmaps[bmp]; bmp != 0 && !ok {
		return 0, fmt.Errorf("SelectObject bitmap %#x: %w", bmp, errInvalidHandle)
	}
	prev := c.selected
	c.selected = bmp
	return prev, nil
}

// BitBlt copies from the desktop DC into the bitmap selected in dst.
func (d *Desktop) BitBlt(dst platform.DC, width, height int, src platform.DC, x, y int) error {
	if err := d.enter("BitBlt"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.dcs[src]
	if !ok || !s.desktop {
		return fmt.Errorf("BitBlt source %#x: %w", src, errInvalidHandle)
	}
	t, ok := d.dcs[dst]
	if !ok || t.selected == 0 {
		return fmt.Errorf("BitBlt destination %#x: %w", dst, errInvalidHandle)
	}
	bmp := d.bitmaps[t.selected]
	frame := d.render(image.Rect(x, y, x+width, y+height))
	draw.Draw(bmp, bmp.Bounds(), frame, image.Point{}, draw.Src)
	return nil
}

// Decode copies the bitmap out. Injected decode faults wrap ErrTransient.
func (d *Desktop) Decode(h platform.Bitmap, width, height int) (*image.RGBA, error) {
	if err := d.enter("Decode"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decodeFaults > 0 {
		d.decodeFaults--
		return nil, fmt.Errorf("decode %#x: %w", h, platform.ErrTransient)
	}
	bmp, ok := d.bitmaps[h]
	if !ok {
		return nil, fmt.Errorf("decode %#x: %w", h, errInvalidHandle)
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), bmp, image.Point{}, draw.Src)
	return out, nil
}

// CreateHost implements platform.Compositor.
func (d *Desktop) CreateHost() (platform.Handle, error) {
	if err := d.enter("CreateHost"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := platform.Handle(d.alloc())
	d.hosts[h] = &host{pending: color.RGBA{A: 255}, painted: color.RGBA{A: 255}}
	return h, nil
}

// DestroyHost fails while thumbnails are still registered on the host.
func (d *Desktop) DestroyHost(h platform.Handle) error {
	if err := d.enter("DestroyHost"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.hosts[h]; !ok {
		return fmt.Errorf("DestroyHost %#x: %w", h, errInvalidHandle)
	}
	for _, t := range d.thumbs {
		if t.host == h {
			return fmt.Errorf("DestroyHost %#x: thumbnail still registered", h)
		}
	}
	delete(d.hosts, h)
	return nil
}

// Register implements platform.Compositor.
func (d *Desktop) Register(hostHandle, target platform.Handle) (platform.Thumbnail, error) {
	if err := d.enter("Register"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.hosts[hostHandle]; !ok {
		return 0, fmt.Errorf("Register host %#x: %w", hostHandle, errInvalidHandle)
	}
	if d.find(target) == nil {
		return 0, fmt.Errorf("Register target %#x: %w", target, errInvalidHandle)
	}
	t := platform.Thumbnail(d.alloc())
	d.thumbs[t] = &thumbnail{host: hostHandle, target: target}
	return t, nil
}

// Unregister implements platform.Compositor.
func (d *Desktop) Unregister(t platform.Thumbnail) error {
	if err := d.enter("Unregister"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.thumbs[t]; !ok {
		return fmt.Errorf("Unregister %#x: %w", t, errInvalidHandle)
	}
	delete(d.thumbs, t)
	return nil
}

// SourceSize implements platform.Compositor.
func (d *Desktop) SourceSize(t platform.Thumbnail) (image.Point, error) {
	if err := d.enter("SourceSize"); err != nil {
		return image.Point{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	th, ok := d.thumbs[t]
	if !ok {
		return image.Point{}, fmt.Errorf("SourceSize %#x: %w", t, errInvalidHandle)
	}
	w := d.find(th.target)
	if w == nil {
		return image.Point{}, fmt.Errorf("SourceSize target %#x: %w", th.target, errInvalidHandle)
	}
	if w.sourceSize != nil {
		return *w.sourceSize, nil
	}
	return w.content.Bounds().Size(), nil
}

// Update implements platform.Compositor.
func (d *Desktop) Update(t platform.Thumbnail, props platform.ThumbnailProperties) error {
	if err := d.enter("Update"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	th, ok := d.thumbs[t]
	if !ok {
		return fmt.Errorf("Update %#x: %w", t, errInvalidHandle)
	}
	th.props = props
	return nil
}

// PlaceHost implements platform.Compositor.
func (d *Desktop) PlaceHost(h platform.Handle, bounds image.Rectangle) error {
	if err := d.enter("PlaceHost"); err != nil {
		return err
	}
	return d.withHost(h, func(hst *host) { hst.bounds = bounds })
}

// ShowHost implements platform.Compositor.
func (d *Desktop) ShowHost(h platform.Handle) error {
	if err := d.enter("ShowHost"); err != nil {
		return err
	}
	return d.withHost(h, func(hst *host) { hst.visible = true })
}

// SetHostBackground takes effect on the next Repaint.
func (d *Desktop) SetHostBackground(h platform.Handle, c color.RGBA) error {
	if err := d.enter("SetHostBackground"); err != nil {
		return err
	}
	return d.withHost(h, func(hst *host) { hst.pending = c })
}

// Repaint implements platform.Compositor.
func (d *Desktop) Repaint(h platform.Handle) error {
	if err := d.enter("Repaint"); err != nil {
		return err
	}
	return d.withHost(h, func(hst *host) { hst.painted = hst.pending })
}

func (d *Desktop) withHost(h platform.Handle, fn func(*host)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	hst, ok := d.hosts[h]
	if !ok {
		return fmt.Errorf("host %#x: %w", h, errInvalidHandle)
	}
	fn(hst)
	return nil
}

// AccentColor implements platform.Compositor.
func (d *Desktop) AccentColor() (color.RGBA, error) {
	if err := d.enter("AccentColor"); err != nil {
		return color.RGBA{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Accent, nil
}

// RoundsCorners implements platform.Compositor.
func (d *Desktop) RoundsCorners() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Rounded
}

// CursorPosition implements platform.Cursor.
func (d *Desktop) CursorPosition() (image.Point, error) {
	if err := d.enter("CursorPosition"); err != nil {
		return image.Point{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursorPos, nil
}

// CaptureCursor implements platform.Cursor.
func (d *Desktop) CaptureCursor() (image.Image, image.Point, bool, error) {
	if err := d.enter("CaptureCursor"); err != nil {
		return nil, image.Point{}, false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursorImg == nil {
		return nil, image.Point{}, false, nil
	}
	return d.cursorImg, d.cursorPos.Sub(d.cursorHotspot), true, nil
}

// GrabWindow returns the window content flattened onto black.
func (d *Desktop) GrabWindow(h platform.Handle) (*image.RGBA, error) {
	if err := d.enter("GrabWindow"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(h)
	if w == nil {
		return nil, fmt.Errorf("GrabWindow %#x: %w", h, errInvalidHandle)
	}
	out := image.NewRGBA(w.content.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), w.content, image.Point{}, draw.Over)
	return out, nil
}
