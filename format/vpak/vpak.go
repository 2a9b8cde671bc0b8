// Package vpak implements the zip-contained asset format: the palette is
// stored as a 256×1 raster entry and each model's voxels as per-chunk
// zstd-compressed entries named by Morton-coded chunk coordinates.
package vpak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/format/internal/voxpack"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxel"
)

const (
	paletteEntry = "palette.png"
	sceneEntry   = "scene.bin"
	chunkPrefix  = "chunks/"

	sceneVersion = uint32(1)
	chunkSize    = int32(32)
)

type Format struct {
	format.PaletteFormat
}

func New() *Format { return &Format{} }

func (*Format) Name() string         { return "vpak" }
func (*Format) Extensions() []string { return []string{"vpak"} }

// Magics returns the zip local file header signature; dispatch normally
// happens via the extension.
func (*Format) Magics() [][]byte { return [][]byte{{0x50, 0x4B, 0x03, 0x04}} }

func (*Format) MaxVolumeSize() [3]int32 { return [3]int32{2048, 2048, 2048} }
func (*Format) EmptyIndex() int         { return -1 }

func init() { format.Register(New()) }

type nodeIndex struct {
	name   string
	region voxel.Region
}

func (f *Format) LoadGroups(p string, a format.Archive, g *scenegraph.SceneGraph, lc *format.LoadContext) error {
	data, err := format.ReadAll(a, p)
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", format.ErrMalformed, err)
	}

	pal := lc.Palette().Copy()
	if pr, err := openEntry(zr, paletteEntry); err == nil {
		loaded, err := palette.DecodePNG(pr)
		pr.Close()
		if err != nil {
			return err
		}
		pal = loaded
	} else {
		slog.Warn("archive carries no palette, using fallback", "path", p)
	}

	index, err := readScene(zr)
	if err != nil {
		return err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer dec.Close()

	for i, ni := range index {
		vol, err := voxel.NewVolume(ni.region)
		if err != nil {
			return err
		}
		prefix := chunkPrefix + strconv.Itoa(i) + "/"
		for _, zf := range zr.File {
			if !strings.HasPrefix(zf.Name, prefix) {
				continue
			}
			key, err := parseChunkName(zf.Name)
			if err != nil {
				slog.Warn("skipping unrecognized chunk entry", "entry", zf.Name)
				continue
			}
			sub, err := chunkRegion(ni.region, key)
			if err != nil {
				return err
			}
			er, err := zf.Open()
			if err != nil {
				return err
			}
			packed, err := io.ReadAll(er)
			er.Close()
			if err != nil {
				return err
			}
			raw, err := dec.DecodeAll(packed, nil)
			if err != nil {
				return fmt.Errorf("%w: chunk %s: %v", format.ErrMalformed, zf.Name, err)
			}
			if err := voxpack.Decode(raw, vol, sub); err != nil {
				return fmt.Errorf("%w: chunk %s", format.ErrTruncated, zf.Name)
			}
		}
		n := scenegraph.NewNode(scenegraph.NodeTypeModel)
		n.SetName(ni.name)
		n.SetVolume(vol)
		n.SetPalette(pal)
		if _, err := g.Emplace(n, scenegraph.RootNodeID); err != nil {
			return err
		}
	}
	return nil
}

func (f *Format) SaveGroups(g *scenegraph.SceneGraph, p string, a format.Archive, sc *format.SaveContext) error {
	w, err := a.WriteStream(p)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)

	models := g.ModelNodes()
	var pal *palette.Palette
	for _, n := range models {
		if n.Palette() != nil {
			pal = n.Palette()
			break
		}
	}
	if pal == nil {
		pal = palette.Default()
	}
	pw, err := zw.Create(paletteEntry)
	if err != nil {
		return err
	}
	if err := pal.EncodePNG(pw); err != nil {
		return err
	}

	var withVolumes []*scenegraph.Node
	for _, n := range models {
		if n.Volume() != nil {
			withVolumes = append(withVolumes, n)
		}
	}
	sw, err := zw.Create(sceneEntry)
	if err != nil {
		return err
	}
	if err := writeScene(sw, withVolumes); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	for i, n := range withVolumes {
		vol := n.Volume()
		region := vol.Region()
		for _, sub := range chunkRegions(region) {
			raw := voxpack.Encode(vol, sub)
			if allZero(raw) {
				continue // empty chunk, no entry
			}
			key := chunkKey(region, sub)
			cw, err := zw.Create(chunkPrefix + strconv.Itoa(i) + "/" + fmt.Sprintf("%016x", key) + ".vx")
			if err != nil {
				return err
			}
			if _, err := cw.Write(enc.EncodeAll(raw, nil)); err != nil {
				return err
			}
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return w.Close()
}

func (f *Format) LoadPalette(p string, a format.Archive, pal *palette.Palette, lc *format.LoadContext) (int, error) {
	data, err := format.ReadAll(a, p)
	if err != nil {
		return 0, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", format.ErrMalformed, err)
	}
	pr, err := openEntry(zr, paletteEntry)
	if err != nil {
		return 0, nil
	}
	defer pr.Close()
	loaded, err := palette.DecodePNG(pr)
	if err != nil {
		return 0, err
	}
	for i := 0; i < loaded.ColorCount(); i++ {
		pal.SetColor(uint8(i), loaded.Color(uint8(i)))
	}
	pal.SetColorCount(loaded.ColorCount())
	return pal.ColorCount(), nil
}

func openEntry(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, zf := range zr.File {
		if zf.Name == name {
			return zf.Open()
		}
	}
	return nil, fmt.Errorf("%w: missing entry %q", format.ErrMalformed, name)
}

func readScene(zr *zip.Reader) ([]nodeIndex, error) {
	sr, err := openEntry(zr, sceneEntry)
	if err != nil {
		return nil, err
	}
	defer sr.Close()
	data, err := io.ReadAll(sr)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var ver, count uint32
	if err := binary.Read(r, binary.LittleEndian, &ver); err != nil {
		return nil, fmt.Errorf("%w: scene index", format.ErrTruncated)
	}
	if ver != sceneVersion {
		return nil, fmt.Errorf("%w: scene index version %d", format.ErrMalformed, ver)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: scene index", format.ErrTruncated)
	}
	out := make([]nodeIndex, 0, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("%w: node name", format.ErrTruncated)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("%w: node name", format.ErrTruncated)
		}
		var region voxel.Region
		for j := 0; j < 3; j++ {
			if err := binary.Read(r, binary.LittleEndian, &region.Mins[j]); err != nil {
				return nil, fmt.Errorf("%w: node region", format.ErrTruncated)
			}
		}
		for j := 0; j < 3; j++ {
			if err := binary.Read(r, binary.LittleEndian, &region.Maxs[j]); err != nil {
				return nil, fmt.Errorf("%w: node region", format.ErrTruncated)
			}
		}
		if !region.IsValid() {
			return nil, fmt.Errorf("%w: %s", voxel.ErrRegionInvalid, region)
		}
		out = append(out, nodeIndex{name: string(name), region: region})
	}
	return out, nil
}

func writeScene(w io.Writer, nodes []*scenegraph.Node) error {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, sceneVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(nodes)))
	for _, n := range nodes {
		name := n.Name()
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
		buf.WriteString(name)
		r := n.Volume().Region()
		for i := 0; i < 3; i++ {
			_ = binary.Write(&buf, binary.LittleEndian, r.Mins[i])
		}
		for i := 0; i < 3; i++ {
			_ = binary.Write(&buf, binary.LittleEndian, r.Maxs[i])
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// chunkRegions tiles a region into chunkSize aligned pieces relative to its
// mins.
func chunkRegions(r voxel.Region) []voxel.Region {
	var out []voxel.Region
	for z := r.Mins[2]; z <= r.Maxs[2]; z += chunkSize {
		for y := r.Mins[1]; y <= r.Maxs[1]; y += chunkSize {
			for x := r.Mins[0]; x <= r.Maxs[0]; x += chunkSize {
				out = append(out, voxel.NewRegion(x, y, z,
					minI32(x+chunkSize-1, r.Maxs[0]),
					minI32(y+chunkSize-1, r.Maxs[1]),
					minI32(z+chunkSize-1, r.Maxs[2])))
			}
		}
	}
	return out
}

// chunkKey Morton-codes the chunk's grid coordinates relative to the node
// region origin.
func chunkKey(nodeRegion, sub voxel.Region) uint64 {
	cx := uint32((sub.Mins[0] - nodeRegion.Mins[0]) / chunkSize)
	cy := uint32((sub.Mins[1] - nodeRegion.Mins[1]) / chunkSize)
	cz := uint32((sub.Mins[2] - nodeRegion.Mins[2]) / chunkSize)
	return voxel.Morton3D64(cx, cy, cz)
}

// chunkRegion reverses chunkKey, clamped to the node region.
func chunkRegion(nodeRegion voxel.Region, key uint64) (voxel.Region, error) {
	cx, cy, cz := voxel.MortonDecode3D64(key)
	sub := voxel.NewRegion(
		nodeRegion.Mins[0]+int32(cx)*chunkSize,
		nodeRegion.Mins[1]+int32(cy)*chunkSize,
		nodeRegion.Mins[2]+int32(cz)*chunkSize,
		0, 0, 0)
	for i := 0; i < 3; i++ {
		sub.Maxs[i] = minI32(sub.Mins[i]+chunkSize-1, nodeRegion.Maxs[i])
	}
	if !sub.IsValid() || !nodeRegion.ContainsRegion(sub) {
		return sub, fmt.Errorf("%w: chunk key %016x outside node region", format.ErrMalformed, key)
	}
	return sub, nil
}

func parseChunkName(name string) (uint64, error) {
	base := path.Base(name)
	base = strings.TrimSuffix(base, ".vx")
	return strconv.ParseUint(base, 16, 64)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
