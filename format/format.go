// Package format defines the codec capability interface, the registry that
// dispatches on file extension or magic bytes, and the shared load/save
// policy (validation, repair, merge-before-save, volume splitting).
package format

import (
	"context"
	"image"
	"runtime"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
)

// LoadContext carries per-load resources and options. The default palette is
// an explicit resource handed in by the caller, never process-global state.
type LoadContext struct {
	Ctx context.Context
	// DefaultPalette backs formats without palette data; nil falls back to
	// the built-in table.
	DefaultPalette *palette.Palette
	// FlattenFactor is the bit count RGBA formats strip from each channel
	// before quantization, so separately loaded assets share palette entries.
	FlattenFactor uint8
	// FillHollow closes voxelized meshes into solids.
	FillHollow bool
	// Workers bounds parallel voxelization; 0 means GOMAXPROCS.
	Workers int
}

// Palette resolves the fallback palette.
func (lc *LoadContext) Palette() *palette.Palette {
	if lc != nil && lc.DefaultPalette != nil {
		return lc.DefaultPalette
	}
	return palette.Default()
}

func (lc *LoadContext) Context() context.Context {
	if lc != nil && lc.Ctx != nil {
		return lc.Ctx
	}
	return context.Background()
}

func (lc *LoadContext) WorkerCount() int {
	if lc != nil && lc.Workers > 0 {
		return lc.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// SaveContext carries per-save resources and options.
type SaveContext struct {
	Ctx     context.Context
	Workers int
}

func (sc *SaveContext) Context() context.Context {
	if sc != nil && sc.Ctx != nil {
		return sc.Ctx
	}
	return context.Background()
}

func (sc *SaveContext) WorkerCount() int {
	if sc != nil && sc.Workers > 0 {
		return sc.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Format is the capability interface every codec implements.
type Format interface {
	// Name is the human-readable codec name.
	Name() string
	// Extensions lists the file extensions (without dot) the codec claims.
	Extensions() []string
	// Magics lists magic byte prefixes for content sniffing; may be empty.
	Magics() [][]byte

	// LoadGroups parses the stream at path into the scene graph.
	LoadGroups(path string, a Archive, g *scenegraph.SceneGraph, lc *LoadContext) error
	// SaveGroups serializes the scene graph to path.
	SaveGroups(g *scenegraph.SceneGraph, path string, a Archive, sc *SaveContext) error
	// LoadPalette performs cheap palette-only introspection and returns the
	// color count.
	LoadPalette(path string, a Archive, p *palette.Palette, lc *LoadContext) (int, error)
	// LoadScreenshot extracts the embedded thumbnail if the format carries
	// one.
	LoadScreenshot(path string, a Archive, lc *LoadContext) (image.Image, error)

	// MaxVolumeSize is the per-axis chunk ceiling the format imposes; zero
	// means unlimited. Oversized volumes are split automatically on save.
	MaxVolumeSize() [3]int32
	// SingleVolume formats trigger an automatic merge before saving.
	SingleVolume() bool
}

// PaletteCarrier is implemented by palette-indexed formats.
type PaletteCarrier interface {
	// OnlyOnePalette reports whether the whole scene must be remapped to one
	// shared palette before saving.
	OnlyOnePalette() bool
	// EmptyIndex is the palette slot the format reserves for air, or -1.
	EmptyIndex() int
}

// PaletteFormat provides the default policy for palette-indexed codecs.
// Codecs embed it and override what differs.
type PaletteFormat struct{}

func (PaletteFormat) LoadScreenshot(string, Archive, *LoadContext) (image.Image, error) {
	return nil, ErrScreenshotUnsupported
}
func (PaletteFormat) MaxVolumeSize() [3]int32 { return [3]int32{} }
func (PaletteFormat) SingleVolume() bool      { return false }
func (PaletteFormat) OnlyOnePalette() bool    { return true }
func (PaletteFormat) EmptyIndex() int         { return 0 }

// RGBAFormat provides the default policy for codecs storing literal colors
// per voxel: on load colors are flattened and folded into a palette.
type RGBAFormat struct{}

func (RGBAFormat) LoadScreenshot(string, Archive, *LoadContext) (image.Image, error) {
	return nil, ErrScreenshotUnsupported
}
func (RGBAFormat) MaxVolumeSize() [3]int32 { return [3]int32{} }
func (RGBAFormat) SingleVolume() bool      { return false }

// FlattenColor strips the low bits of each channel so near-identical source
// colors collapse onto the same palette entry deterministically.
func FlattenColor(c palette.RGBA, factor uint8) palette.RGBA {
	if factor == 0 {
		return c
	}
	if factor > 7 {
		factor = 7
	}
	half := uint8(1 << (factor - 1))
	flatten := func(v uint8) uint8 {
		f := v &^ (1<<factor - 1)
		if f <= 0xFF-half { // re-center the bucket, saturating
			f += half
		}
		return f
	}
	return palette.RGBA{R: flatten(c.R), G: flatten(c.G), B: flatten(c.B), A: c.A}
}

// MeshFormat provides the default policy for codecs whose source is a
// triangulated surface rather than voxel data.
type MeshFormat struct{}

func (MeshFormat) LoadScreenshot(string, Archive, *LoadContext) (image.Image, error) {
	return nil, ErrScreenshotUnsupported
}
func (MeshFormat) MaxVolumeSize() [3]int32 { return [3]int32{} }
func (MeshFormat) SingleVolume() bool      { return false }
func (MeshFormat) LoadPalette(string, Archive, *palette.Palette, *LoadContext) (int, error) {
	return 0, nil // mesh sources carry no palette of their own
}
