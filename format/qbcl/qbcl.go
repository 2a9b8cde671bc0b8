// Package qbcl implements the RLE column format: literal RGBA voxels stored
// per (x,z) column with a count-prefixed run-length scheme. The byte format
// carries colors, not palette indices, so loads fold the colors into a
// palette after deterministic flattening.
package qbcl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxel"
)

const (
	magic   = "VCOL"
	version = uint32(1)

	// runs longer than two voxels are stored as {count, 0, 0, runFlag}
	// followed by a single literal color
	runFlag = uint8(2)
	// longest run one sentinel can express
	maxRun = 255
)

type Format struct {
	format.RGBAFormat
}

func New() *Format { return &Format{} }

func (*Format) Name() string         { return "qbcl" }
func (*Format) Extensions() []string { return []string{"vcol"} }
func (*Format) Magics() [][]byte     { return [][]byte{[]byte(magic)} }
func (*Format) SingleVolume() bool   { return true }

func init() { format.Register(New()) }

func (f *Format) LoadGroups(path string, a format.Archive, g *scenegraph.SceneGraph, lc *format.LoadContext) error {
	data, err := format.ReadAll(a, path)
	if err != nil {
		return err
	}
	region, colors, err := decode(data)
	if err != nil {
		return err
	}

	flatten := uint8(3)
	if lc != nil && lc.FlattenFactor > 0 {
		flatten = lc.FlattenFactor
	}
	var samples []palette.RGBA
	for _, c := range colors {
		if c.A == 0 {
			continue
		}
		samples = append(samples, format.FlattenColor(c, flatten))
	}
	pal, err := palette.FromColors(samples, palette.ReductionOctree)
	if err != nil {
		return err
	}

	vol, err := voxel.NewVolume(region)
	if err != nil {
		return err
	}
	w, h := int64(region.Width()), int64(region.Height())
	for i, c := range colors {
		if c.A == 0 {
			continue
		}
		x := region.Mins[0] + int32(int64(i)%w)
		y := region.Mins[1] + int32(int64(i)/w%h)
		z := region.Mins[2] + int32(int64(i)/(w*h))
		flat := format.FlattenColor(c, flatten)
		best := pal.ClosestMatch(flat, -1)
		if best < 0 {
			best = 0
		}
		vol.SetVoxel(x, y, z, uint8(best))
	}

	n := scenegraph.NewNode(scenegraph.NodeTypeModel)
	n.SetName("model")
	n.SetVolume(vol)
	n.SetPalette(pal)
	_, err = g.Emplace(n, scenegraph.RootNodeID)
	return err
}

func (f *Format) SaveGroups(g *scenegraph.SceneGraph, path string, a format.Archive, sc *format.SaveContext) error {
	n := g.FirstModelNode()
	if n == nil || n.Volume() == nil {
		return scenegraph.ErrNoModels
	}
	pal := n.Palette()
	if pal == nil {
		pal = palette.Default()
	}
	return format.WriteAll(a, path, encode(n.Volume(), pal))
}

func (f *Format) LoadPalette(path string, a format.Archive, p *palette.Palette, lc *format.LoadContext) (int, error) {
	data, err := format.ReadAll(a, path)
	if err != nil {
		return 0, err
	}
	_, colors, err := decode(data)
	if err != nil {
		return 0, err
	}
	for _, c := range colors {
		if c.A == 0 {
			continue
		}
		p.AddColor(c, true)
	}
	return p.ColorCount(), nil
}

// encode writes the header and one run-length column per (x,z) pair, bottom
// up along y. Air cells are literal {0,0,0,0} voxels.
func encode(v *voxel.Volume, pal *palette.Palette) []byte {
	r := v.Region()
	var buf bytes.Buffer
	buf.WriteString(magic)
	_ = binary.Write(&buf, binary.LittleEndian, version)
	for i := 0; i < 3; i++ {
		_ = binary.Write(&buf, binary.LittleEndian, r.Mins[i])
	}
	for i := 0; i < 3; i++ {
		_ = binary.Write(&buf, binary.LittleEndian, r.Maxs[i])
	}

	column := make([]palette.RGBA, r.Height())
	for x := r.Mins[0]; x <= r.Maxs[0]; x++ {
		for z := r.Mins[2]; z <= r.Maxs[2]; z++ {
			for y := r.Mins[1]; y <= r.Maxs[1]; y++ {
				if idx, ok := v.Voxel(x, y, z); ok {
					column[y-r.Mins[1]] = pal.Color(idx)
				} else {
					column[y-r.Mins[1]] = palette.RGBA{}
				}
			}
			writeColumn(&buf, column)
		}
	}
	return buf.Bytes()
}

func writeColumn(buf *bytes.Buffer, column []palette.RGBA) {
	var words [][4]byte
	i := 0
	for i < len(column) {
		c := column[i]
		run := 1
		for i+run < len(column) && column[i+run] == c && run < maxRun {
			run++
		}
		if run > 2 {
			words = append(words, [4]byte{uint8(run), 0, 0, runFlag})
			words = append(words, [4]byte{c.R, c.G, c.B, c.A})
		} else {
			for j := 0; j < run; j++ {
				words = append(words, [4]byte{c.R, c.G, c.B, c.A})
			}
		}
		i += run
	}
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(words)))
	for _, w := range words {
		buf.Write(w[:])
	}
}

// decode returns the region and one color per cell in x-fastest order.
func decode(data []byte) (voxel.Region, []palette.RGBA, error) {
	var region voxel.Region
	if len(data) < 8 || string(data[:4]) != magic {
		return region, nil, fmt.Errorf("%w: bad magic", format.ErrMalformed)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != version {
		return region, nil, fmt.Errorf("%w: unsupported version %d", format.ErrMalformed, v)
	}
	r := bytes.NewReader(data[8:])
	for i := 0; i < 3; i++ {
		if err := binary.Read(r, binary.LittleEndian, &region.Mins[i]); err != nil {
			return region, nil, fmt.Errorf("%w: region bounds", format.ErrTruncated)
		}
	}
	for i := 0; i < 3; i++ {
		if err := binary.Read(r, binary.LittleEndian, &region.Maxs[i]); err != nil {
			return region, nil, fmt.Errorf("%w: region bounds", format.ErrTruncated)
		}
	}
	if !region.IsValid() {
		return region, nil, fmt.Errorf("%w: %s", voxel.ErrRegionInvalid, region)
	}

	colors := make([]palette.RGBA, region.VoxelCount())
	w, h := int64(region.Width()), int64(region.Height())
	for x := int64(0); x < w; x++ {
		for z := int64(0); z < int64(region.Depth()); z++ {
			column, err := readColumn(r, int(h))
			if err != nil {
				return region, nil, err
			}
			for y, c := range column {
				colors[x+int64(y)*w+z*w*h] = c
			}
		}
	}
	return region, colors, nil
}

func readColumn(r *bytes.Reader, height int) ([]palette.RGBA, error) {
	var wordCount uint16
	if err := binary.Read(r, binary.LittleEndian, &wordCount); err != nil {
		return nil, fmt.Errorf("%w: column run count", format.ErrTruncated)
	}
	column := make([]palette.RGBA, 0, height)
	var word [4]byte
	for i := uint16(0); i < wordCount; i++ {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return nil, fmt.Errorf("%w: column run", format.ErrTruncated)
		}
		if word[3] == runFlag && word[1] == 0 && word[2] == 0 {
			count := int(word[0])
			if i+1 >= wordCount {
				return nil, fmt.Errorf("%w: run sentinel without color", format.ErrMalformed)
			}
			i++
			if _, err := io.ReadFull(r, word[:]); err != nil {
				return nil, fmt.Errorf("%w: run color", format.ErrTruncated)
			}
			c := palette.RGBA{R: word[0], G: word[1], B: word[2], A: word[3]}
			for j := 0; j < count; j++ {
				column = append(column, c)
			}
			continue
		}
		column = append(column, palette.RGBA{R: word[0], G: word[1], B: word[2], A: word[3]})
	}
	if len(column) != height {
		return nil, fmt.Errorf("%w: column holds %d voxels, want %d", format.ErrMalformed, len(column), height)
	}
	return column, nil
}
