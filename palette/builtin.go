package palette

// The built-in constant table used when a file carries no palette of its own.

// Default returns the conventional 256-color table: a six-level RGB cube
// followed by red, green, blue and gray ramps. Entry 0 is reserved for air
// by several palette-indexed formats and stays transparent here.
func Default() *Palette {
	p := New()
	levels := [6]uint8{255, 204, 153, 102, 51, 0}
	p.SetColor(0, RGBA{})
	i := 1
	for _, r := range levels {
		for _, g := range levels {
			for _, b := range levels {
				if r == 0 && g == 0 && b == 0 {
					continue // black lives in the gray ramp
				}
				if i >= MaxColors {
					break
				}
				p.SetColor(uint8(i), RGBA{R: r, G: g, B: b, A: 255})
				i++
			}
		}
	}
	ramp := func(set func(v uint8) RGBA) {
		for s := 10; s >= 1 && i < MaxColors; s-- {
			v := uint8(s * 255 / 11)
			p.SetColor(uint8(i), set(v))
			i++
		}
	}
	ramp(func(v uint8) RGBA { return RGBA{R: v, A: 255} })
	ramp(func(v uint8) RGBA { return RGBA{G: v, A: 255} })
	ramp(func(v uint8) RGBA { return RGBA{B: v, A: 255} })
	for ; i < MaxColors; i++ {
		v := uint8((MaxColors - i) * 255 / 11)
		p.SetColor(uint8(i), RGBA{R: v, G: v, B: v, A: 255})
	}
	p.SetColorCount(MaxColors)
	return p
}
