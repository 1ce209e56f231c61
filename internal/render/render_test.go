package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// checker returns an opaque pattern where every pixel encodes its position.
func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	return img
}

func newContext(content image.Image, origin image.Point) *capture.Context {
	c := capture.NewContext(capture.Defaults{}, time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC))
	c.SetCapture(capture.NewElement(content), origin)
	return c
}

func TestCropped_CropsInDesktopCoordinates(t *testing.T) {
	c := newContext(checker(100, 50), image.Pt(-200, 30))
	c.Crop(image.Rect(-190, 40, -150, 60))

	img, err := Cropped.Render(c)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		t.Fatalf("opaque crop rendered as %T", img)
	}
	if rgba.Bounds() != image.Rect(0, 0, 40, 20) {
		t.Fatalf("bounds = %v", rgba.Bounds())
	}
	if got := rgba.RGBAAt(0, 0); got.R != 10 || got.G != 10 {
		t.Fatalf("top left = %v, want source (10,10)", got)
	}
	if got := rgba.RGBAAt(39, 19); got.R != 49 || got.G != 29 {
		t.Fatalf("bottom right = %v, want source (49,29)", got)
	}
}

func TestCropped_ClipAreaBecomesTransparent(t *testing.T) {
	c := newContext(checker(40, 40), image.Point{})
	c.ClipArea = geometry.NewRegion(image.Rect(0, 0, 40, 40)).Subtract(image.Rect(10, 10, 20, 20))

	img, err := Cropped.Render(c)
	if err != nil {
		t.Fatal(err)
	}
	n, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("clipped render is %T, want *image.NRGBA", img)
	}
	if n.NRGBAAt(15, 15).A != 0 {
		t.Fatalf("clipped pixel visible")
	}
	if got := n.NRGBAAt(25, 5); got.A != 255 || got.R != 25 {
		t.Fatalf("unclipped pixel = %v", got)
	}
}

func TestTemplates_DrawPointer(t *testing.T) {
	cursor := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(cursor.Pix); i += 4 {
		cursor.Pix[i], cursor.Pix[i+3] = 0xff, 0xff
	}
	cursor.SetNRGBA(3, 3, color.NRGBA{})

	c := newContext(checker(50, 50), image.Pt(100, 100))
	c.MouseCursor = &capture.Element{Content: cursor, Bounds: image.Rect(120, 120, 124, 124)}
	c.Crop(image.Rect(110, 110, 130, 130))

	for name, tmpl := range Templates {
		img, err := tmpl.Render(c)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		off := image.Pt(10, 10)
		if name == "full" {
			off = image.Pt(20, 20)
		}
		red := color.RGBAModel.Convert(img.At(off.X, off.Y)).(color.RGBA)
		if red != (color.RGBA{R: 0xff, A: 0xff}) {
			t.Errorf("%s: pointer pixel = %v", name, red)
		}
		under := color.RGBAModel.Convert(img.At(off.X+3, off.Y+3)).(color.RGBA)
		if under.R != 23 || under.G != 23 {
			t.Errorf("%s: transparent pointer pixel hid the capture: %v", name, under)
		}
	}
}

func TestFull_IgnoresCrop(t *testing.T) {
	c := newContext(checker(30, 20), image.Pt(5, 5))
	c.Crop(image.Rect(6, 6, 8, 8))
	img, err := Full.Render(c)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 30, 20) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
}

func TestTemplates_NothingToRender(t *testing.T) {
	empty := capture.NewContext(capture.Defaults{}, time.Now())
	if _, err := Cropped.Render(empty); !errors.Is(err, ErrNothingToRender) {
		t.Fatalf("no capture: %v", err)
	}
	c := newContext(checker(10, 10), image.Point{})
	c.Crop(image.Rect(50, 50, 60, 60))
	if _, err := Cropped.Render(c); !errors.Is(err, ErrNothingToRender) {
		t.Fatalf("disjoint crop: %v", err)
	}
}

func TestByName(t *testing.T) {
	if tmpl, err := ByName(""); err != nil || tmpl == nil {
		t.Fatalf("default template: %v", err)
	}
	if _, err := ByName("poster"); err == nil {
		t.Fatalf("unknown template accepted")
	}
}

func TestEncoders(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 0x20, 0x40, 0x60, 0xff
	}
	src.SetNRGBA(0, 0, color.NRGBA{})

	decoders := map[string]func(b []byte) (image.Image, error){
		"png":  func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) },
		"jpg":  func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) },
		"bmp":  func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) },
		"tiff": func(b []byte) (image.Image, error) { return tiff.Decode(bytes.NewReader(b)) },
	}
	for _, format := range Formats() {
		enc, err := NewEncoder(format, 90)
		if err != nil {
			t.Fatalf("NewEncoder(%s): %v", format, err)
		}
		var buf bytes.Buffer
		if err := enc.Encode(&buf, src); err != nil {
			t.Fatalf("%s: encode: %v", format, err)
		}
		if enc.Extension() != format {
			t.Errorf("%s: extension = %q", format, enc.Extension())
		}
		if format == "pdf" {
			if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
				t.Errorf("pdf output lacks header")
			}
			continue
		}
		img, err := decoders[format](buf.Bytes())
		if err != nil {
			t.Fatalf("%s: decode: %v", format, err)
		}
		if img.Bounds().Size() != src.Bounds().Size() {
			t.Errorf("%s: size = %v", format, img.Bounds().Size())
		}
	}
}

func TestNewEncoder_Aliases(t *testing.T) {
	for in, want := range map[string]string{"": "png", "JPEG": "jpg", ".tif": "tiff"} {
		enc, err := NewEncoder(in, 0)
		if err != nil || enc.Extension() != want {
			t.Errorf("NewEncoder(%q) = %v, %v; want %s", in, enc, err, want)
		}
	}
	if _, err := NewEncoder("webp", 0); err == nil {
		t.Errorf("webp accepted")
	}
}
