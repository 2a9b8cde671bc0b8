// Package palette implements the bounded color table voxel volumes index
// into, including perceptual similarity matching and color reduction.
package palette

import (
	"encoding/binary"
	"log/slog"

	xxhash "github.com/cespare/xxhash/v2"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// MaxColors is the hard entry limit every supported file format shares.
const MaxColors = 256

// similarityThreshold is the normalized perceptual distance below which two
// colors are considered interchangeable.
const similarityThreshold = 1.4e-4

// RGBA is one palette entry.
type RGBA struct {
	R, G, B, A uint8
}

// Material carries the optional per-entry surface properties a few formats
// persist alongside the color itself.
type Material struct {
	Metal             float32
	Roughness         float32
	Emit              float32
	IndexOfRefraction float32
}

// Palette is an ordered table of at most MaxColors colors with a parallel
// glow table and optional material properties. A content hash over the live
// entries detects identity for merge and dedup decisions.
type Palette struct {
	colors [MaxColors]RGBA
	glow   [MaxColors]RGBA
	mats   map[uint8]Material
	count  int
	hash   uint64
	dirty  bool
}

// New returns an empty palette.
func New() *Palette {
	return &Palette{dirty: true}
}

func (p *Palette) ColorCount() int { return p.count }

// SetColorCount clamps the live entry count. Growing exposes zero entries.
func (p *Palette) SetColorCount(n int) {
	if n < 0 {
		n = 0
	}
	if n > MaxColors {
		slog.Warn("palette color count clamped", "requested", n, "max", MaxColors)
		n = MaxColors
	}
	p.count = n
	p.dirty = true
}

func (p *Palette) Color(i uint8) RGBA { return p.colors[i] }

// SetColor overwrites an entry, growing the live count to include it.
func (p *Palette) SetColor(i uint8, c RGBA) {
	p.colors[i] = c
	if int(i) >= p.count {
		p.count = int(i) + 1
	}
	p.dirty = true
}

func (p *Palette) GlowColor(i uint8) RGBA { return p.glow[i] }

func (p *Palette) SetGlowColor(i uint8, c RGBA) {
	p.glow[i] = c
	p.dirty = true
}

// HasGlow reports whether any glow entry is set.
func (p *Palette) HasGlow() bool {
	for i := 0; i < p.count; i++ {
		if p.glow[i] != (RGBA{}) {
			return true
		}
	}
	return false
}

func (p *Palette) Material(i uint8) (Material, bool) {
	m, ok := p.mats[i]
	return m, ok
}

func (p *Palette) SetMaterial(i uint8, m Material) {
	if p.mats == nil {
		p.mats = make(map[uint8]Material)
	}
	p.mats[i] = m
	p.dirty = true
}

// MaterialIndices returns the entries that carry material properties, in
// ascending index order.
func (p *Palette) MaterialIndices() []uint8 {
	out := make([]uint8, 0, len(p.mats))
	for i := 0; i < p.count; i++ {
		if _, ok := p.mats[uint8(i)]; ok {
			out = append(out, uint8(i))
		}
	}
	return out
}

// Hash returns the content hash over the live color and glow entries. It is
// recomputed lazily after structural changes.
func (p *Palette) Hash() uint64 {
	if p.dirty {
		d := xxhash.New()
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(p.count))
		_, _ = d.Write(buf[:])
		for i := 0; i < p.count; i++ {
			c := p.colors[i]
			g := p.glow[i]
			_, _ = d.Write([]byte{c.R, c.G, c.B, c.A, g.R, g.G, g.B, g.A})
		}
		p.hash = d.Sum64()
		p.dirty = false
	}
	return p.hash
}

// AddColor inserts a color and returns its index. Exact duplicates are
// rejected (the existing index is returned, added=false). With skipSimilar a
// perceptually near-identical color is rejected the same way. When the
// palette is full, the new color replaces the entry whose nearest neighbour
// is closest — the most redundant one — but only if the new color is farther
// from it than the similarity threshold; this keeps a saturated palette
// maximally diverse under continual additions.
func (p *Palette) AddColor(c RGBA, skipSimilar bool) (uint8, bool) {
	for i := 0; i < p.count; i++ {
		if p.colors[i] == c {
			return uint8(i), false
		}
	}
	if skipSimilar && p.count > 0 {
		best := p.ClosestMatch(c, -1)
		if best >= 0 && colorDistance(c, p.colors[best]) < similarityThreshold {
			return uint8(best), false
		}
	}
	if p.count < MaxColors {
		i := uint8(p.count)
		p.colors[i] = c
		p.count++
		p.dirty = true
		return i, true
	}
	victim := p.mostRedundantIndex()
	if colorDistance(c, p.colors[victim]) > similarityThreshold {
		p.colors[victim] = c
		p.dirty = true
		return victim, true
	}
	best := p.ClosestMatch(c, -1)
	if best < 0 {
		best = 0
	}
	return uint8(best), false
}

// mostRedundantIndex finds the member of the mutually closest pair of live
// entries.
func (p *Palette) mostRedundantIndex() uint8 {
	bestI := 0
	bestDist := -1.0
	for i := 0; i < p.count; i++ {
		for j := i + 1; j < p.count; j++ {
			d := colorDistance(p.colors[i], p.colors[j])
			if bestDist < 0 || d < bestDist {
				bestDist = d
				bestI = i
			}
		}
	}
	return uint8(bestI)
}

// ClosestMatch returns the live entry index nearest to c by perceptual
// distance, or -1 for an empty palette. An exact match short-circuits the
// search. skipIndex excludes one entry, used when replacing it.
func (p *Palette) ClosestMatch(c RGBA, skipIndex int) int {
	best := -1
	bestDist := 0.0
	for i := 0; i < p.count; i++ {
		if i == skipIndex {
			continue
		}
		if p.colors[i] == c {
			return i
		}
		d := colorDistance(c, p.colors[i])
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// Copy returns a deep copy.
func (p *Palette) Copy() *Palette {
	c := &Palette{
		colors: p.colors,
		glow:   p.glow,
		count:  p.count,
		hash:   p.hash,
		dirty:  p.dirty,
	}
	if p.mats != nil {
		c.mats = make(map[uint8]Material, len(p.mats))
		for k, v := range p.mats {
			c.mats[k] = v
		}
	}
	return c
}

// colorDistance is a hue/saturation/value weighted distance on a normalized
// 0..1 scale. Alpha mismatches dominate so translucent entries never merge
// with opaque ones.
func colorDistance(a, b RGBA) float64 {
	if a == b {
		return 0
	}
	ca := colorful.Color{R: float64(a.R) / 255, G: float64(a.G) / 255, B: float64(a.B) / 255}
	cb := colorful.Color{R: float64(b.R) / 255, G: float64(b.G) / 255, B: float64(b.B) / 255}
	ha, sa, va := ca.Hsv()
	hb, sb, vb := cb.Hsv()
	dh := (ha - hb) / 360.0
	if dh < 0 {
		dh = -dh
	}
	if dh > 0.5 {
		dh = 1.0 - dh
	}
	ds := sa - sb
	dv := va - vb
	da := (float64(a.A) - float64(b.A)) / 255.0
	return 0.5*dh*dh + 0.25*ds*ds + 0.25*dv*dv + da*da
}
