package palette

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
)

// A palette round-trips as a 256×1 (or narrower) RGBA raster where the pixel
// column equals the palette index.

// EncodePNG writes the live entries as a count×1 RGBA PNG.
func (p *Palette) EncodePNG(w io.Writer) error {
	width := p.count
	if width == 0 {
		width = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, 1))
	for i := 0; i < p.count; i++ {
		c := p.colors[i]
		o := i * 4
		img.Pix[o] = c.R
		img.Pix[o+1] = c.G
		img.Pix[o+2] = c.B
		img.Pix[o+3] = c.A
	}
	return png.Encode(w, img)
}

// DecodePNG loads a palette from a raster. The source must decode to 4 bytes
// per pixel; more than 256 pixels are clamped with a warning.
func DecodePNG(r io.Reader) (*Palette, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("palette image: %w", err)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		b := img.Bounds()
		nrgba = image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				nrgba.Set(x, y, img.At(x, y))
			}
		}
	}
	b := nrgba.Bounds()
	total := b.Dx() * b.Dy()
	if total > MaxColors {
		slog.Warn("palette image has too many pixels, clamping", "pixels", total, "max", MaxColors)
		total = MaxColors
	}
	p := New()
	for i := 0; i < total; i++ {
		x := b.Min.X + i%b.Dx()
		y := b.Min.Y + i/b.Dx()
		o := nrgba.PixOffset(x, y)
		p.SetColor(uint8(i), RGBA{
			R: nrgba.Pix[o],
			G: nrgba.Pix[o+1],
			B: nrgba.Pix[o+2],
			A: nrgba.Pix[o+3],
		})
	}
	return p, nil
}
