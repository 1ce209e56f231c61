package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 85

// Encoder writes an image in one file format.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
	// Extension is the file name extension, without the dot.
	Extension() string
	ContentType() string
}

type encoder struct {
	ext         string
	contentType string
	encode      func(w io.Writer, img image.Image) error
}

func (e encoder) Encode(w io.Writer, img image.Image) error { return e.encode(w, img) }
func (e encoder) Extension() string                         { return e.ext }
func (e encoder) ContentType() string                       { return e.contentType }

// Formats lists the supported output formats.
func Formats() []string {
	return []string{"bmp", "jpg", "pdf", "png", "tiff"}
}

// NewEncoder returns the encoder for format. jpegQuality applies to jpg and
// pdf output; values outside 1..100 select DefaultJPEGQuality.
func NewEncoder(format string, jpegQuality int) (Encoder, error) {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "", "png":
		return encoder{"png", "image/png", png.Encode}, nil
	case "jpg", "jpeg":
		return encoder{"jpg", "image/jpeg", func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, Flatten(img, color.White), &jpeg.Options{Quality: jpegQuality})
		}}, nil
	case "bmp":
		return encoder{"bmp", "image/bmp", bmp.Encode}, nil
	case "tiff", "tif":
		return encoder{"tiff", "image/tiff", func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}}, nil
	case "pdf":
		return encoder{"pdf", "application/pdf", func(w io.Writer, img image.Image) error {
			return encodePDF(w, img, jpegQuality)
		}}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q", format)
}

const (
	pixelsPerInch = 96
	mmPerInch     = 25.4
)

func pixelsToMm(pixels int) float64 {
	return float64(pixels) * mmPerInch / pixelsPerInch
}

// encodePDF writes a single page sized to the image at 96 DPI.
func encodePDF(w io.Writer, img image.Image, quality int) error {
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("cannot encode empty image as pdf")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img, color.White), &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}

	wMm, hMm := pixelsToMm(size.X), pixelsToMm(size.Y)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: wMm, Ht: hMm},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opt := gofpdf.ImageOptions{ImageType: "JPEG"}
	pdf.RegisterImageOptionsReader("capture", opt, &buf)
	pdf.ImageOptions("capture", 0, 0, wMm, hMm, false, opt, 0, "")
	return pdf.Output(w)
}
