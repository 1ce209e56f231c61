package engine

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Matte recovers color and alpha from two captures of the same pixels, one
// composited over white and one over black.
//
// Over white a pixel reads W = aC + (1-a)255, over black B = aC. Hence
// a = 1 - (W-B)/255 and C = B/a. The channel differences are averaged to
// absorb rounding. Pixels transparent in either capture stay transparent.
func Matte(white, black image.Image) (*image.NRGBA, error) {
	if white.Bounds().Size() != black.Bounds().Size() {
		return nil, fmt.Errorf("matte: size mismatch %v vs %v", white.Bounds().Size(), black.Bounds().Size())
	}
	w, b := rgba(white), rgba(black)
	out := image.NewNRGBA(image.Rectangle{Max: white.Bounds().Size()})

	for y := 0; y < out.Rect.Dy(); y++ {
		wrow := w.Pix[y*w.Stride:]
		brow := b.Pix[y*b.Stride:]
		orow := out.Pix[y*out.Stride:]
		for x := 0; x < out.Rect.Dx(); x++ {
			i := x * 4
			if wrow[i+3] == 0 || brow[i+3] == 0 {
				continue
			}
			diff := 0
			for ch := 0; ch < 3; ch++ {
				if d := int(wrow[i+ch]) - int(brow[i+ch]); d > 0 {
					diff += d
				}
			}
			alpha := 255 - (diff+1)/3
			if alpha <= 0 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				v := (int(brow[i+ch])*255 + alpha/2) / alpha
				if v > 255 {
					v = 255
				}
				orow[i+ch] = uint8(v)
			}
			orow[i+3] = uint8(alpha)
		}
	}
	return out, nil
}

// rgba returns img as an *image.RGBA rooted at (0,0), copying only when needed.
func rgba(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) {
		return r
	}
	out := image.NewRGBA(image.Rectangle{Max: img.Bounds().Size()})
	draw.Draw(out, out.Rect, img, img.Bounds().Min, draw.Src)
	return out
}

// nrgba returns a copy of img as an *image.NRGBA rooted at (0,0).
func nrgba(img image.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rectangle{Max: img.Bounds().Size()})
	draw.Draw(out, out.Rect, img, img.Bounds().Min, draw.Src)
	return out
}
