// Package mcworld reads region files of the tag-tree world format: a
// 4KiB-sector index, per-chunk compressed NBT trees and bit-packed block
// state arrays decoded lazily per section. The codec is load-only.
package mcworld

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/bits"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxel"
)

const (
	sectorSize   = 4096
	regionChunks = 32 * 32

	compGzip = 1
	compZlib = 2
	compNone = 3
)

type Format struct {
	format.PaletteFormat
}

func New() *Format { return &Format{} }

func (*Format) Name() string         { return "mcworld" }
func (*Format) Extensions() []string { return []string{"mca", "mcr"} }
func (*Format) Magics() [][]byte     { return nil } // the sector index has no magic
func (*Format) EmptyIndex() int      { return 0 }

func (*Format) SaveGroups(*scenegraph.SceneGraph, string, format.Archive, *format.SaveContext) error {
	return format.ErrSaveUnsupported
}

func init() { format.Register(New()) }

var regionNameRe = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mc[ar]$`)

// regionOrigin derives the region's world chunk origin from the conventional
// r.X.Z file name; unparseable names map to the origin region.
func regionOrigin(path string) (int32, int32) {
	m := regionNameRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, 0
	}
	rx, _ := strconv.Atoi(m[1])
	rz, _ := strconv.Atoi(m[2])
	return int32(rx * 32), int32(rz * 32)
}

func (f *Format) LoadGroups(path string, a format.Archive, g *scenegraph.SceneGraph, lc *format.LoadContext) error {
	data, err := format.ReadAll(a, path)
	if err != nil {
		return err
	}
	chunks, err := readChunks(data)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: region holds no chunks", format.ErrMalformed)
	}

	originX, originZ := regionOrigin(path)

	// first pass: collect every color in use so the scene shares one palette
	colorIndex := make(map[palette.RGBA]uint8)
	pal := palette.New()
	pal.SetColor(0, palette.RGBA{}) // reserved air slot
	for _, ch := range chunks {
		ch.forEachBlock(func(_, _, _ int32, name string) {
			c := blockColor(name)
			if _, ok := colorIndex[c]; ok {
				return
			}
			idx, _ := pal.AddColor(c, false)
			colorIndex[c] = idx
		})
	}

	for _, ch := range chunks {
		region := ch.bounds()
		if !region.IsValid() {
			continue
		}
		baseX := (originX + ch.x) * 16
		baseZ := (originZ + ch.z) * 16
		region = region.Shift(baseX, 0, baseZ)
		vol, err := voxel.NewVolume(region)
		if err != nil {
			return err
		}
		ch.forEachBlock(func(x, y, z int32, name string) {
			vol.SetVoxel(baseX+x, y, baseZ+z, colorIndex[blockColor(name)])
		})
		n := scenegraph.NewNode(scenegraph.NodeTypeModel)
		n.SetName(fmt.Sprintf("chunk.%d.%d", originX+ch.x, originZ+ch.z))
		n.SetVolume(vol)
		n.SetPalette(pal)
		if _, err := g.Emplace(n, scenegraph.RootNodeID); err != nil {
			return err
		}
	}
	return nil
}

func (f *Format) LoadPalette(path string, a format.Archive, p *palette.Palette, lc *format.LoadContext) (int, error) {
	data, err := format.ReadAll(a, path)
	if err != nil {
		return 0, err
	}
	chunks, err := readChunks(data)
	if err != nil {
		return 0, err
	}
	p.SetColor(0, palette.RGBA{})
	for _, ch := range chunks {
		for _, sec := range ch.sections {
			for _, name := range sec.names {
				if !isAir(name) {
					p.AddColor(blockColor(name), false)
				}
			}
		}
	}
	return p.ColorCount(), nil
}

func (f *Format) LoadScreenshot(string, format.Archive, *format.LoadContext) (image.Image, error) {
	return nil, format.ErrScreenshotUnsupported
}

// chunk is one parsed 16×16 column of sections.
type chunk struct {
	x, z     int32 // chunk coordinates relative to the region
	sections []section
}

// section keeps the block-state palette names and the packed index longs;
// indices are unpacked lazily in forEachBlock.
type section struct {
	y     int32
	names []string
	data  []int64
}

func readChunks(data []byte) ([]chunk, error) {
	if len(data) < 2*sectorSize {
		return nil, fmt.Errorf("%w: region header", format.ErrTruncated)
	}
	var out []chunk
	for slot := 0; slot < regionChunks; slot++ {
		loc := binary.BigEndian.Uint32(data[slot*4 : slot*4+4])
		offset := int64(loc>>8) * sectorSize
		sectors := int64(loc & 0xFF)
		if offset == 0 || sectors == 0 {
			continue
		}
		if offset+5 > int64(len(data)) {
			return nil, fmt.Errorf("%w: chunk slot %d offset", format.ErrTruncated, slot)
		}
		length := int64(binary.BigEndian.Uint32(data[offset : offset+4]))
		comp := data[offset+4]
		if length < 1 || offset+4+length > int64(len(data)) {
			return nil, fmt.Errorf("%w: chunk slot %d payload", format.ErrTruncated, slot)
		}
		payload := data[offset+5 : offset+4+length]
		raw, err := decompressChunk(comp, payload)
		if err != nil {
			return nil, err
		}
		root, err := parseNBT(raw)
		if err != nil {
			return nil, err
		}
		ch, ok := parseChunk(root, slot)
		if !ok {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

func decompressChunk(comp uint8, payload []byte) ([]byte, error) {
	switch comp {
	case compGzip:
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip chunk: %v", format.ErrMalformed, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case compZlib:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib chunk: %v", format.ErrMalformed, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case compNone:
		return payload, nil
	}
	return nil, fmt.Errorf("%w: chunk compression %d", format.ErrMalformed, comp)
}

func parseChunk(root Compound, slot int) (chunk, bool) {
	// 1.18+ keeps sections at the top level; older writers nest them under
	// "Level"
	body := root
	if level := root.Compound("Level"); level != nil {
		body = level
	}
	ch := chunk{x: int32(slot % 32), z: int32(slot / 32)}
	if x, ok := body.Int("xPos"); ok {
		ch.x = x & 31
	}
	if z, ok := body.Int("zPos"); ok {
		ch.z = z & 31
	}
	secList := body.List("sections")
	if secList == nil {
		secList = body.List("Sections")
	}
	for _, raw := range secList {
		sc, ok := raw.(Compound)
		if !ok {
			continue
		}
		y, _ := sc.Int("Y")
		states := sc.Compound("block_states")
		if states == nil {
			continue // no block data in this section
		}
		palList := states.List("palette")
		if len(palList) == 0 {
			continue
		}
		names := make([]string, 0, len(palList))
		for _, entry := range palList {
			ec, ok := entry.(Compound)
			if !ok {
				continue
			}
			names = append(names, ec.String("Name"))
		}
		allAir := true
		for _, name := range names {
			if !isAir(name) {
				allAir = false
				break
			}
		}
		if allAir {
			continue // lazy: packed data of pure-air sections is never touched
		}
		ch.sections = append(ch.sections, section{
			y:     y,
			names: names,
			data:  states.LongArray("data"),
		})
	}
	return ch, len(ch.sections) > 0
}

// bounds returns the chunk-local region covered by the parsed sections.
func (ch *chunk) bounds() voxel.Region {
	r := voxel.InvalidRegion()
	for _, sec := range ch.sections {
		r = r.AccumulateRegion(voxel.NewRegion(0, sec.y*16, 0, 15, sec.y*16+15, 15))
	}
	return r
}

// forEachBlock visits every non-air block with chunk-local x/z and world y.
// Block-state indices are unpacked from the 64-bit longs here; indices never
// span a long boundary.
func (ch *chunk) forEachBlock(fn func(x, y, z int32, name string)) {
	for _, sec := range ch.sections {
		if len(sec.names) == 1 {
			name := sec.names[0]
			if isAir(name) {
				continue
			}
			for y := int32(0); y < 16; y++ {
				for z := int32(0); z < 16; z++ {
					for x := int32(0); x < 16; x++ {
						fn(x, sec.y*16+y, z, name)
					}
				}
			}
			continue
		}
		bitsPerBlock := bits.Len(uint(len(sec.names) - 1))
		if bitsPerBlock < 4 {
			bitsPerBlock = 4
		}
		perLong := 64 / bitsPerBlock
		mask := int64(1)<<bitsPerBlock - 1
		if len(sec.data)*perLong < 4096 {
			slog.Warn("section block states truncated, skipping", "y", sec.y)
			continue
		}
		for i := 0; i < 4096; i++ {
			l := sec.data[i/perLong]
			idx := l >> (uint(i%perLong) * uint(bitsPerBlock)) & mask
			if int(idx) >= len(sec.names) {
				continue
			}
			name := sec.names[idx]
			if isAir(name) {
				continue
			}
			x := int32(i & 15)
			z := int32(i >> 4 & 15)
			y := int32(i >> 8)
			fn(x, sec.y*16+y, z, name)
		}
	}
}
