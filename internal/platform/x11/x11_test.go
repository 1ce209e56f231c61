package x11

import (
	"image"
	"image/color"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestDecodeCardinals(t *testing.T) {
	got := decodeCardinals([]byte{1, 0, 0, 0, 0x80, 0x07, 0, 0, 0xff})
	if len(got) != 2 || got[0] != 1 || got[1] != 1920 {
		t.Fatalf("decodeCardinals = %v", got)
	}
}

func TestWorkArea(t *testing.T) {
	vals := []uint32{0, 0, 1920, 1040, 0, 40, 1920, 1040}
	tests := []struct {
		desktop int
		want    image.Rectangle
	}{
		{0, image.Rect(0, 0, 1920, 1040)},
		{1, image.Rect(0, 40, 1920, 1080)},
		{5, image.Rect(0, 0, 1920, 1040)},
	}
	for _, tt := range tests {
		if got := workArea(vals, tt.desktop); got != tt.want {
			t.Errorf("workArea(desktop %d) = %v, want %v", tt.desktop, got, tt.want)
		}
	}
}

func TestBuildSurfaces(t *testing.T) {
	heads := []image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(0, 0, 1920, 1080),
		image.Rect(1920, 0, 3200, 1024),
		{},
	}
	got := buildSurfaces(heads, image.Rect(0, 0, 3200, 1040))
	if len(got) != 2 {
		t.Fatalf("surfaces = %+v", got)
	}
	if !got[0].Primary || got[1].Primary {
		t.Fatalf("primary flags = %v, %v", got[0].Primary, got[1].Primary)
	}
	if got[1].Index != 1 || got[1].Name != "xinerama-1" {
		t.Fatalf("second surface = %+v", got[1])
	}
	if want := image.Rect(1920, 0, 3200, 1024); got[1].WorkingArea != want {
		t.Fatalf("working area = %v, want %v", got[1].WorkingArea, want)
	}
	if want := image.Rect(0, 0, 1920, 1040); got[0].WorkingArea != want {
		t.Fatalf("working area = %v, want %v", got[0].WorkingArea, want)
	}

	noWork := buildSurfaces(heads[:1], image.Rectangle{})
	if !noWork[0].WorkingArea.Empty() {
		t.Fatalf("working area without hint = %v", noWork[0].WorkingArea)
	}
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"navigator\x00Firefox\x00", "Firefox"},
		{"xterm\x00", "xterm"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseClass([]byte(tt.raw)); got != tt.want {
			t.Errorf("parseClass(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestHasAtoms(t *testing.T) {
	list := []uint32{10, 20, 30}
	if !hasAtoms(list, xproto.Atom(10), xproto.Atom(30)) {
		t.Fatalf("expected all atoms present")
	}
	if hasAtoms(list, xproto.Atom(10), xproto.Atom(40)) {
		t.Fatalf("expected missing atom")
	}
}

func TestCopyBGRX(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 3, 1))
	// two pixels: blue, red in BGRX order
	data := []byte{0xff, 0, 0, 0, 0, 0, 0xff, 0}
	copyBGRX(dst, image.Pt(1, 0), data, 2, 1)

	if got := dst.RGBAAt(0, 0); got != (color.RGBA{}) {
		t.Fatalf("untouched pixel = %v", got)
	}
	if got := dst.RGBAAt(1, 0); got != (color.RGBA{B: 0xff, A: 0xff}) {
		t.Fatalf("blue pixel = %v", got)
	}
	if got := dst.RGBAAt(2, 0); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Fatalf("red pixel = %v", got)
	}
}

func TestCopyBGRX_ShortData(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 2, 2))
	copyBGRX(dst, image.Point{}, []byte{1, 2, 3, 4}, 2, 2)
	if got := dst.RGBAAt(0, 0); got != (color.RGBA{R: 3, G: 2, B: 1, A: 0xff}) {
		t.Fatalf("first pixel = %v", got)
	}
	if got := dst.RGBAAt(1, 1); got != (color.RGBA{}) {
		t.Fatalf("pixel past data = %v", got)
	}
}

func TestCursorImage(t *testing.T) {
	img := cursorImage([]uint32{0x80402010, 0xff0000ff, 0x00000000}, 2, 1)
	if img.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 0x40, G: 0x20, B: 0x10, A: 0x80}) {
		t.Fatalf("pixel 0 = %v", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{B: 0xff, A: 0xff}) {
		t.Fatalf("pixel 1 = %v", got)
	}
}

func TestGDIHandleLifecycle(t *testing.T) {
	g := newGDI(&Conn{})

	desktop, err := g.DesktopDC()
	if err != nil {
		t.Fatal(err)
	}
	mem, err := g.CreateCompatibleDC(desktop)
	if err != nil {
		t.Fatal(err)
	}
	bmp, err := g.CreateDIBSection(desktop, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	prev, err := g.SelectObject(mem, bmp)
	if err != nil || prev != 0 {
		t.Fatalf("SelectObject = %v, %v", prev, err)
	}
	if err := g.DeleteObject(bmp); err == nil {
		t.Fatalf("deleted a selected bitmap")
	}
	if _, err := g.SelectObject(mem, prev); err != nil {
		t.Fatal(err)
	}

	img, err := g.Decode(bmp, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Fatalf("decoded bounds = %v", img.Bounds())
	}
	if _, err := g.Decode(bmp, 2, 2); err == nil {
		t.Fatalf("decoded with the wrong size")
	}

	if err := g.DeleteObject(bmp); err != nil {
		t.Fatal(err)
	}
	if err := g.DeleteDC(mem); err != nil {
		t.Fatal(err)
	}
	if err := g.ReleaseDC(desktop); err != nil {
		t.Fatal(err)
	}
	if err := g.ReleaseDC(desktop); err == nil {
		t.Fatalf("released a desktop DC twice")
	}
	if _, err := g.CreateDIBSection(0, 0, 5); err == nil {
		t.Fatalf("created an empty bitmap")
	}
}
