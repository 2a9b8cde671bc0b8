// Package api exposes byte-in/byte-out conversion entry points for embedders
// that have no filesystem, such as the wasm build. Codec resolution runs on
// the provided file names.
package api

import (
	"bytes"
	"fmt"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"

	_ "github.com/voxelforge/voxconv/format/gltfvox"
	_ "github.com/voxelforge/voxconv/format/mcworld"
	_ "github.com/voxelforge/voxconv/format/qbcl"
	_ "github.com/voxelforge/voxconv/format/vpak"
	_ "github.com/voxelforge/voxconv/format/vxck"
)

// Options tunes a conversion.
type Options struct {
	// FillHollow closes voxelized meshes into solids.
	FillHollow bool
}

// Convert reads inData as the format named by inName and returns it encoded
// as the format named by outName.
func Convert(inData []byte, inName, outName string, opts Options) ([]byte, error) {
	if len(inData) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	a := format.NewMemoryArchive()
	if err := format.WriteAll(a, inName, inData); err != nil {
		return nil, err
	}

	g := scenegraph.New()
	if err := format.Load(inName, a, g, &format.LoadContext{FillHollow: opts.FillHollow}); err != nil {
		return nil, err
	}
	if err := format.Save(g, outName, a, nil); err != nil {
		return nil, err
	}
	out := a.Bytes(outName)
	if out == nil {
		return nil, fmt.Errorf("codec wrote no output for %s", outName)
	}
	return out, nil
}

// PalettePNG extracts the palette of the stream named by name and renders it
// as a 16x16 PNG swatch.
func PalettePNG(inData []byte, name string) ([]byte, error) {
	a := format.NewMemoryArchive()
	if err := format.WriteAll(a, name, inData); err != nil {
		return nil, err
	}
	p := palette.New()
	if _, err := format.LoadPalette(name, a, p, nil); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := p.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Formats lists the registered codec names.
func Formats() []string {
	var out []string
	for _, f := range format.All() {
		out = append(out, f.Name())
	}
	return out
}
