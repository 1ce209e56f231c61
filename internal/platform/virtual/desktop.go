// Package virtual implements every platform contract on top of an in-memory
// desktop. It renders windows, compositor hosts and thumbnails the way a real
// compositor would, counts outstanding native handles, and can inject faults
// into any native call.
package virtual

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"

	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// Default colors of the simulated display.
var (
	Wallpaper = color.RGBA{R: 0x20, G: 0x40, B: 0x60, A: 0xff}
	Garbage   = color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff}
	Accent    = color.RGBA{R: 0x00, G: 0x78, B: 0xd7, A: 0xc0}
)

type window struct {
	info    platform.Window
	content *image.NRGBA
	// sourceSize overrides the thumbnail source size when non-nil.
	sourceSize *image.Point
}

type host struct {
	bounds  image.Rectangle
	visible bool
	pending color.RGBA
	painted color.RGBA
}

type thumbnail struct {
	host   platform.Handle
	target platform.Handle
	props  platform.ThumbnailProperties
}

type dc struct {
	desktop  bool
	selected platform.Bitmap
}

type fault struct {
	err   error
	times int
}

// Handles counts native objects that have been allocated and not released.
type Handles struct {
	DCs        int
	Bitmaps    int
	Hosts      int
	Thumbnails int
}

// Zero reports whether nothing is outstanding.
func (h Handles) Zero() bool {
	return h == Handles{}
}

// Desktop is a simulated window system.
type Desktop struct {
	mu sync.Mutex

	surfaces []geometry.Surface
	windows  []*window // bottom to top
	active   platform.Handle

	cursorPos     image.Point
	cursorImg     image.Image
	cursorHotspot image.Point

	hosts   map[platform.Handle]*host
	thumbs  map[platform.Thumbnail]*thumbnail
	dcs     map[platform.DC]*dc
	bitmaps map[platform.Bitmap]*image.RGBA

	next         uintptr
	faults       map[string]*fault
	decodeFaults int
	calls        map[string]int
	foreground   []platform.Handle

	// Wallpaper fills every surface behind the windows.
	Wallpaper color.RGBA
	// Offscreen is what display memory holds outside every surface.
	Offscreen color.RGBA
	// Accent is the compositor colorization color.
	Accent color.RGBA
	// Rounded makes the compositor report rounded window corners.
	Rounded bool
	// OnCall runs before every native call, outside the desktop lock.
	OnCall func(op string)
}

// New creates a desktop with the given surfaces.
func New(surfaces ...geometry.Surface) *Desktop {
	return &Desktop{
		surfaces:  surfaces,
		hosts:     make(map[platform.Handle]*host),
		thumbs:    make(map[platform.Thumbnail]*thumbnail),
		dcs:       make(map[platform.DC]*dc),
		bitmaps:   make(map[platform.Bitmap]*image.RGBA),
		faults:    make(map[string]*fault),
		calls:     make(map[string]int),
		next:      0x1000,
		Wallpaper: Wallpaper,
		Offscreen: Garbage,
		Accent:    Accent,
	}
}

// Platform exposes the desktop through the platform contracts.
func (d *Desktop) Platform() *platform.Platform {
	return &platform.Platform{
		Name:       "virtual",
		Screens:    d,
		Windows:    d,
		GDI:        d,
		Compositor: d,
		Cursor:     d,
		Grabber:    d,
	}
}

// AddWindow places a window on top of the stack and returns its handle. A nil
// content draws the window as a solid white rectangle.
func (d *Desktop) AddWindow(info platform.Window, content image.Image) platform.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info.Handle == 0 {
		info.Handle = platform.Handle(d.alloc())
	}
	size := info.Bounds.Size()
	img := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if content == nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	} else {
		draw.Draw(img, img.Bounds(), content, content.Bounds().Min, draw.Src)
	}
	d.windows = append(d.windows, &window{info: info, content: img})
	d.active = info.Handle
	return info.Handle
}

// SetSourceSize overrides the size the compositor reports for h.
func (d *Desktop) SetSourceSize(h platform.Handle, size image.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.find(h); w != nil {
		w.sourceSize = &size
	}
}

// SetActive gives h the focus without recording a foreground request.
func (d *Desktop) SetActive(h platform.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = h
}

// SetCursor places the pointer. img may be nil to hide it.
func (d *Desktop) SetCursor(pos image.Point, img image.Image, hotspot image.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursorPos = pos
	d.cursorImg = img
	d.cursorHotspot = hotspot
}

// Fail makes the next times calls of op fail with err. times <= 0 fails every
// call until Fail is called again with a nil err.
func (d *Desktop) Fail(op string, err error, times int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, op)
		return
	}
	d.faults[op] = &fault{err: err, times: times}
}

// SetDecodeFaults makes the next n decodes fail with a transient fault.
func (d *Desktop) SetDecodeFaults(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decodeFaults = n
}

// Outstanding returns the native objects not yet released.
func (d *Desktop) Outstanding() Handles {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Handles{
		DCs:        len(d.dcs),
		Bitmaps:    len(d.bitmaps),
		Hosts:      len(d.hosts),
		Thumbnails: len(d.thumbs),
	}
}

// Calls returns how often op was invoked.
func (d *Desktop) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// ForegroundRequests returns the handles passed to ToForeground, in order.
func (d *Desktop) ForegroundRequests() []platform.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]platform.Handle(nil), d.foreground...)
}

// Screen renders what the display currently shows inside rect.
func (d *Desktop) Screen(rect image.Rectangle) *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.render(rect)
}

// enter records a call and returns the injected fault, if any. It must be
// called without holding the lock.
func (d *Desktop) enter(op string) error {
	if d.OnCall != nil {
		d.OnCall(op)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++
	f, ok := d.faults[op]
	if !ok {
		return nil
	}
	if f.times > 0 {
		f.times--
		if f.times == 0 {
			delete(d.faults, op)
		}
	}
	return fmt.Errorf("%s: %w", op, f.err)
}

func (d *Desktop) alloc() uintptr {
	d.next += 4
	return d.next
}

func (d *Desktop) find(h platform.Handle) *window {
	for _, w := range d.windows {
		if w.info.Handle == h {
			return w
		}
	}
	return nil
}

// render composes the frame buffer for rect: garbage outside the surfaces,
// wallpaper on them, then windows bottom to top, then visible hosts with
// their thumbnails.
func (d *Desktop) render(rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(d.Offscreen), image.Point{}, draw.Src)

	local := func(r image.Rectangle) image.Rectangle {
		return r.Sub(rect.Min).Intersect(out.Bounds())
	}
	for _, s := range d.surfaces {
		draw.Draw(out, local(s.Bounds), image.NewUniform(d.Wallpaper), image.Point{}, draw.Src)
	}
	for _, w := range d.windows {
		d.paint(out, rect, w.content, w.info.Bounds, 255)
	}
	for h, hst := range d.hosts {
		if !hst.visible || hst.bounds.Empty() {
			continue
		}
		draw.Draw(out, local(hst.bounds), image.NewUniform(hst.painted), image.Point{}, draw.Src)
		for _, t := range d.thumbs {
			if t.host != h || !t.props.Visible {
				continue
			}
			target := d.find(t.target)
			if target == nil {
				continue
			}
			dest := t.props.Destination.Add(hst.bounds.Min)
			d.paint(out, rect, target.content, dest, t.props.Opacity)
		}
	}

	// Only surfaces show pixels; everything else stays as display garbage.
	for _, r := range geometry.Uncovered(d.surfaces, rect).Rects() {
		draw.Draw(out, local(r), image.NewUniform(d.Offscreen), image.Point{}, draw.Src)
	}
	return out
}

// paint draws src scaled into dest (desktop coordinates) over out, which
// shows the desktop area view.
func (d *Desktop) paint(out *image.RGBA, view image.Rectangle, src *image.NRGBA, dest image.Rectangle, opacity uint8) {
	if dest.Empty() || src.Bounds().Empty() {
		return
	}
	img := image.Image(src)
	if src.Bounds().Size() != dest.Size() {
		scaled := image.NewNRGBA(image.Rect(0, 0, dest.Dx(), dest.Dy()))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
		img = scaled
	}
	r := dest.Sub(view.Min)
	clipped := r.Intersect(out.Bounds())
	if clipped.Empty() {
		return
	}
	sp := clipped.Min.Sub(r.Min)
	if opacity == 255 {
		draw.Draw(out, clipped, img, sp, draw.Over)
		return
	}
	draw.DrawMask(out, clipped, img, sp, image.NewUniform(color.Alpha{A: opacity}), image.Point{}, draw.Over)
}

// Surfaces implements geometry.SurfaceSource.
func (d *Desktop) Surfaces() ([]geometry.Surface, error) {
	if err := d.enter("Surfaces"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]geometry.Surface(nil), d.surfaces...), nil
}
