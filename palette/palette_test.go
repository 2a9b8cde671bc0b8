package palette

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddColorIdempotent(t *testing.T) {
	p := New()
	c := RGBA{R: 10, G: 20, B: 30, A: 255}

	idx, added := p.AddColor(c, false)
	require.True(t, added)
	require.Equal(t, 1, p.ColorCount())

	again, added := p.AddColor(c, false)
	assert.False(t, added, "exact duplicate must be rejected")
	assert.Equal(t, idx, again)
	assert.Equal(t, 1, p.ColorCount())
}

func TestAddColorSkipSimilar(t *testing.T) {
	p := New()
	p.AddColor(RGBA{R: 100, G: 100, B: 100, A: 255}, false)

	// one step in a single channel is below the similarity threshold
	idx, added := p.AddColor(RGBA{R: 101, G: 100, B: 100, A: 255}, true)
	assert.False(t, added)
	assert.Equal(t, uint8(0), idx)

	// the same color is accepted without the similarity check
	_, added = p.AddColor(RGBA{R: 101, G: 100, B: 100, A: 255}, false)
	assert.True(t, added)
}

func TestAddColorNeverExceedsCap(t *testing.T) {
	p := New()
	for r := 0; r < 16; r++ {
		for g := 0; g < 16; g++ {
			for b := 0; b < 2; b++ {
				p.AddColor(RGBA{R: uint8(r * 16), G: uint8(g * 16), B: uint8(b * 128), A: 255}, false)
				require.LessOrEqual(t, p.ColorCount(), MaxColors)
			}
		}
	}
	assert.Equal(t, MaxColors, p.ColorCount())
}

func TestClosestMatch(t *testing.T) {
	p := New()
	assert.Equal(t, -1, p.ClosestMatch(RGBA{}, -1), "empty palette has no match")

	red, _ := p.AddColor(RGBA{R: 255, A: 255}, false)
	green, _ := p.AddColor(RGBA{G: 255, A: 255}, false)

	assert.Equal(t, int(red), p.ClosestMatch(RGBA{R: 255, A: 255}, -1))
	assert.Equal(t, int(red), p.ClosestMatch(RGBA{R: 200, G: 10, B: 10, A: 255}, -1))
	assert.Equal(t, int(green), p.ClosestMatch(RGBA{R: 255, A: 255}, int(red)),
		"skipIndex excludes the exact match")
}

func TestHashTracksContent(t *testing.T) {
	p := New()
	p.AddColor(RGBA{R: 1, A: 255}, false)
	h1 := p.Hash()
	assert.Equal(t, h1, p.Hash(), "hash is stable without changes")

	p.AddColor(RGBA{R: 2, A: 255}, false)
	assert.NotEqual(t, h1, p.Hash())

	q := New()
	q.AddColor(RGBA{R: 1, A: 255}, false)
	q.AddColor(RGBA{R: 2, A: 255}, false)
	assert.Equal(t, p.Hash(), q.Hash(), "same content, same hash")

	q.SetGlowColor(1, RGBA{R: 255})
	assert.NotEqual(t, p.Hash(), q.Hash(), "glow participates in the hash")
}

func TestCopyIsDeep(t *testing.T) {
	p := New()
	p.AddColor(RGBA{R: 9, A: 255}, false)
	p.SetMaterial(0, Material{Metal: 1})

	c := p.Copy()
	c.SetColor(0, RGBA{R: 200, A: 255})
	c.SetMaterial(0, Material{Metal: 0.5})

	assert.Equal(t, RGBA{R: 9, A: 255}, p.Color(0))
	m, ok := p.Material(0)
	require.True(t, ok)
	assert.Equal(t, float32(1), m.Metal)
}

func TestPNGRoundTrip(t *testing.T) {
	p := New()
	p.AddColor(RGBA{}, false)
	p.AddColor(RGBA{R: 255, G: 128, B: 3, A: 255}, false)
	p.AddColor(RGBA{R: 0, G: 0, B: 255, A: 100}, false)

	var buf bytes.Buffer
	require.NoError(t, p.EncodePNG(&buf))

	q, err := DecodePNG(&buf)
	require.NoError(t, err)
	require.Equal(t, p.ColorCount(), q.ColorCount())
	for i := 0; i < p.ColorCount(); i++ {
		assert.Equal(t, p.Color(uint8(i)), q.Color(uint8(i)), "entry %d", i)
	}
}

func TestDefaultPalette(t *testing.T) {
	p := Default()
	assert.Equal(t, MaxColors, p.ColorCount())
	assert.Equal(t, RGBA{}, p.Color(0), "entry 0 is transparent")

	seen := map[RGBA]int{}
	for i := 0; i < p.ColorCount(); i++ {
		seen[p.Color(uint8(i))]++
	}
	for c, n := range seen {
		assert.Equal(t, 1, n, "duplicate default entry %v", c)
	}
}
