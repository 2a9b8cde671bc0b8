// Package vxck implements the native chunked container: a fourcc record
// stream carrying the palette, the node tree, keyframes and zstd-compressed
// voxel payloads.
package vxck

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"

	"github.com/klauspost/compress/zstd"
	"goki.dev/mat32/v2"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/format/internal/voxpack"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxel"
)

const (
	magic   = "VXCK"
	version = uint32(1)

	chunkPalette    = "PALT"
	chunkGlow       = "GLOW"
	chunkMaterial   = "MATL"
	chunkNode       = "NODE"
	chunkKeyFrame   = "KFRM"
	chunkVolume     = "VOXL"
	chunkScreenshot = "SCRN"

	compNone = uint8(0)
	compZstd = uint8(1)
)

const (
	flagVisible = 1 << 0
	flagLocked  = 1 << 1
)

type Format struct {
	format.PaletteFormat
}

func New() *Format { return &Format{} }

func (*Format) Name() string          { return "vxck" }
func (*Format) Extensions() []string  { return []string{"vxck"} }
func (*Format) Magics() [][]byte      { return [][]byte{[]byte(magic)} }
func (*Format) EmptyIndex() int       { return -1 } // solidity is explicit in the payload

func init() { format.Register(New()) }

// record is one {fourcc, length, payload, crc} entry. The trailing crc is a
// placeholder: written as zero, never checked on read.
type record struct {
	fourcc  string
	payload []byte
}

func readRecords(data []byte) ([]record, error) {
	if len(data) < 8 || string(data[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", format.ErrMalformed)
	}
	ver := binary.LittleEndian.Uint32(data[4:8])
	if ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", format.ErrMalformed, ver)
	}
	var out []record
	pos := 8
	for pos < len(data) {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("%w: record header", format.ErrTruncated)
		}
		fourcc := string(data[pos : pos+4])
		plen := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		pos += 8
		if pos+int(plen)+4 > len(data) {
			return nil, fmt.Errorf("%w: record %s payload", format.ErrTruncated, fourcc)
		}
		out = append(out, record{fourcc: fourcc, payload: data[pos : pos+int(plen)]})
		pos += int(plen) + 4 // skip the crc placeholder
	}
	return out, nil
}

func writeRecord(w *bytes.Buffer, fourcc string, payload []byte) {
	w.WriteString(fourcc)
	_ = binary.Write(w, binary.LittleEndian, uint32(len(payload)))
	w.Write(payload)
	_ = binary.Write(w, binary.LittleEndian, uint32(0))
}

func (f *Format) LoadGroups(path string, a format.Archive, g *scenegraph.SceneGraph, lc *format.LoadContext) error {
	data, err := format.ReadAll(a, path)
	if err != nil {
		return err
	}
	records, err := readRecords(data)
	if err != nil {
		return err
	}

	pal := palette.New()
	havePalette := false
	idMap := map[int32]int32{scenegraph.RootNodeID: scenegraph.RootNodeID}
	// keyframes may precede their NODE record in a foreign writer's output;
	// ours never does, but buffer them anyway
	type pendingKF struct {
		nodeID int32
		kf     scenegraph.KeyFrame
	}
	var pending []pendingKF
	var volumes []record

	for _, rec := range records {
		switch rec.fourcc {
		case chunkPalette:
			if err := parsePalette(rec.payload, pal); err != nil {
				return err
			}
			havePalette = true
		case chunkGlow:
			if err := parseGlow(rec.payload, pal); err != nil {
				return err
			}
		case chunkMaterial:
			if err := parseMaterials(rec.payload, pal); err != nil {
				return err
			}
		case chunkNode:
			if err := parseNode(rec.payload, g, idMap); err != nil {
				return err
			}
		case chunkKeyFrame:
			nodeID, kf, err := parseKeyFrame(rec.payload)
			if err != nil {
				return err
			}
			pending = append(pending, pendingKF{nodeID: nodeID, kf: kf})
		case chunkVolume:
			volumes = append(volumes, rec)
		case chunkScreenshot:
			// consumed by LoadScreenshot only
		default:
			slog.Warn("skipping unknown chunk", "fourcc", rec.fourcc, "bytes", len(rec.payload))
		}
	}

	if !havePalette {
		pal = lc.Palette().Copy()
	}
	g.ForEach(func(n *scenegraph.Node) {
		if n.Type() == scenegraph.NodeTypeModel {
			n.SetPalette(pal)
		}
	})
	for _, p := range pending {
		mapped, ok := idMap[p.nodeID]
		if !ok {
			slog.Warn("keyframe for unknown node", "node", p.nodeID)
			continue
		}
		n := g.Node(mapped)
		kf := n.AddKeyFrame(p.kf.Frame)
		*kf = p.kf
	}
	for _, rec := range volumes {
		if err := parseVolume(rec.payload, g, idMap); err != nil {
			return err
		}
	}
	return nil
}

func (f *Format) SaveGroups(g *scenegraph.SceneGraph, path string, a format.Archive, sc *format.SaveContext) error {
	var buf bytes.Buffer
	buf.WriteString(magic)
	_ = binary.Write(&buf, binary.LittleEndian, version)

	var pal *palette.Palette
	for _, n := range g.ModelNodes() {
		if n.Palette() != nil {
			pal = n.Palette()
			break
		}
	}
	if pal != nil {
		writeRecord(&buf, chunkPalette, encodePalette(pal))
		if pal.HasGlow() {
			writeRecord(&buf, chunkGlow, encodeGlow(pal))
		}
		if mats := pal.MaterialIndices(); len(mats) > 0 {
			writeRecord(&buf, chunkMaterial, encodeMaterials(pal, mats))
		}
	}

	g.ForEach(func(n *scenegraph.Node) {
		if n.ID() == scenegraph.RootNodeID {
			return
		}
		writeRecord(&buf, chunkNode, encodeNode(n))
		for _, kf := range n.KeyFrames() {
			writeRecord(&buf, chunkKeyFrame, encodeKeyFrame(n.ID(), kf))
		}
		if n.Volume() != nil {
			writeRecord(&buf, chunkVolume, encodeVolume(n.ID(), n.Volume()))
		}
	})
	return format.WriteAll(a, path, buf.Bytes())
}

func (f *Format) LoadPalette(path string, a format.Archive, p *palette.Palette, lc *format.LoadContext) (int, error) {
	data, err := format.ReadAll(a, path)
	if err != nil {
		return 0, err
	}
	records, err := readRecords(data)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if rec.fourcc == chunkPalette {
			if err := parsePalette(rec.payload, p); err != nil {
				return 0, err
			}
			return p.ColorCount(), nil
		}
	}
	return 0, nil
}

func (f *Format) LoadScreenshot(path string, a format.Archive, lc *format.LoadContext) (image.Image, error) {
	data, err := format.ReadAll(a, path)
	if err != nil {
		return nil, err
	}
	records, err := readRecords(data)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.fourcc == chunkScreenshot {
			return png.Decode(bytes.NewReader(rec.payload))
		}
	}
	return nil, format.ErrScreenshotUnsupported
}

// --- chunk payload codecs ---

func encodePalette(p *palette.Palette) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(p.ColorCount()))
	for i := 0; i < p.ColorCount(); i++ {
		c := p.Color(uint8(i))
		buf.Write([]byte{c.R, c.G, c.B, c.A})
	}
	return buf.Bytes()
}

func parsePalette(payload []byte, p *palette.Palette) error {
	if len(payload) < 4 {
		return fmt.Errorf("%w: palette chunk", format.ErrTruncated)
	}
	count := binary.LittleEndian.Uint32(payload)
	if count > palette.MaxColors {
		slog.Warn("palette chunk has too many colors, clamping", "count", count)
		count = palette.MaxColors
	}
	if len(payload) < 4+int(count)*4 {
		return fmt.Errorf("%w: palette colors", format.ErrTruncated)
	}
	for i := uint32(0); i < count; i++ {
		o := 4 + i*4
		p.SetColor(uint8(i), palette.RGBA{
			R: payload[o], G: payload[o+1], B: payload[o+2], A: payload[o+3],
		})
	}
	p.SetColorCount(int(count))
	return nil
}

func encodeGlow(p *palette.Palette) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(p.ColorCount()))
	for i := 0; i < p.ColorCount(); i++ {
		c := p.GlowColor(uint8(i))
		buf.Write([]byte{c.R, c.G, c.B, c.A})
	}
	return buf.Bytes()
}

func parseGlow(payload []byte, p *palette.Palette) error {
	if len(payload) < 4 {
		return fmt.Errorf("%w: glow chunk", format.ErrTruncated)
	}
	count := binary.LittleEndian.Uint32(payload)
	if count > palette.MaxColors {
		count = palette.MaxColors
	}
	if len(payload) < 4+int(count)*4 {
		return fmt.Errorf("%w: glow colors", format.ErrTruncated)
	}
	for i := uint32(0); i < count; i++ {
		o := 4 + i*4
		p.SetGlowColor(uint8(i), palette.RGBA{
			R: payload[o], G: payload[o+1], B: payload[o+2], A: payload[o+3],
		})
	}
	return nil
}

func encodeMaterials(p *palette.Palette, indices []uint8) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(indices)))
	for _, i := range indices {
		m, _ := p.Material(i)
		buf.WriteByte(i)
		_ = binary.Write(&buf, binary.LittleEndian, m.Metal)
		_ = binary.Write(&buf, binary.LittleEndian, m.Roughness)
		_ = binary.Write(&buf, binary.LittleEndian, m.Emit)
		_ = binary.Write(&buf, binary.LittleEndian, m.IndexOfRefraction)
	}
	return buf.Bytes()
}

func parseMaterials(payload []byte, p *palette.Palette) error {
	r := bytes.NewReader(payload)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("%w: material count", format.ErrTruncated)
	}
	for i := uint32(0); i < count; i++ {
		var idx uint8
		var m palette.Material
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return fmt.Errorf("%w: material index", format.ErrTruncated)
		}
		for _, fp := range []*float32{&m.Metal, &m.Roughness, &m.Emit, &m.IndexOfRefraction} {
			if err := binary.Read(r, binary.LittleEndian, fp); err != nil {
				return fmt.Errorf("%w: material fields", format.ErrTruncated)
			}
		}
		p.SetMaterial(idx, m)
	}
	return nil
}

func encodeNode(n *scenegraph.Node) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(n.ID()))
	_ = binary.Write(&buf, binary.LittleEndian, n.Parent())
	buf.WriteByte(uint8(n.Type()))
	var flags uint8
	if n.Visible() {
		flags |= flagVisible
	}
	if n.Locked() {
		flags |= flagLocked
	}
	buf.WriteByte(flags)
	writeString(&buf, n.Name())
	props := n.Properties()
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(props)))
	for _, k := range props {
		v, _ := n.Property(k)
		writeString(&buf, k)
		writeString(&buf, v)
	}
	return buf.Bytes()
}

func parseNode(payload []byte, g *scenegraph.SceneGraph, idMap map[int32]int32) error {
	r := bytes.NewReader(payload)
	var id uint32
	var parent int32
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return fmt.Errorf("%w: node id", format.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &parent); err != nil {
		return fmt.Errorf("%w: node parent", format.ErrTruncated)
	}
	typ, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: node type", format.ErrTruncated)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: node flags", format.ErrTruncated)
	}
	name, err := readString(r)
	if err != nil {
		return fmt.Errorf("%w: node name", format.ErrTruncated)
	}
	var propCount uint32
	if err := binary.Read(r, binary.LittleEndian, &propCount); err != nil {
		return fmt.Errorf("%w: node properties", format.ErrTruncated)
	}

	nodeType := scenegraph.NodeType(typ)
	if nodeType > scenegraph.NodeTypeUnknown {
		nodeType = scenegraph.NodeTypeUnknown
	}
	n := scenegraph.NewNode(nodeType)
	n.SetName(name)
	n.SetVisible(flags&flagVisible != 0)
	n.SetLocked(flags&flagLocked != 0)
	for i := uint32(0); i < propCount; i++ {
		k, err := readString(r)
		if err != nil {
			return fmt.Errorf("%w: property key", format.ErrTruncated)
		}
		v, err := readString(r)
		if err != nil {
			return fmt.Errorf("%w: property value", format.ErrTruncated)
		}
		n.SetProperty(k, v)
	}

	mappedParent, ok := idMap[parent]
	if !ok {
		slog.Warn("node references unknown parent, attaching to root", "node", id, "parent", parent)
		mappedParent = scenegraph.RootNodeID
	}
	newID, err := g.Emplace(n, mappedParent)
	if err != nil {
		return err
	}
	idMap[int32(id)] = newID
	return nil
}

func encodeKeyFrame(nodeID int32, kf scenegraph.KeyFrame) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(nodeID))
	_ = binary.Write(&buf, binary.LittleEndian, kf.Frame)
	buf.WriteByte(uint8(kf.Interpolation))
	if kf.LongRotation {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	t := kf.Transform
	tr := t.LocalTranslation()
	q := t.LocalOrientation()
	pv := t.Pivot()
	for _, v := range []float32{tr.X, tr.Y, tr.Z, q.X, q.Y, q.Z, q.W, t.LocalScale(), pv.X, pv.Y, pv.Z} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
	}
	return buf.Bytes()
}

func parseKeyFrame(payload []byte) (int32, scenegraph.KeyFrame, error) {
	var kf scenegraph.KeyFrame
	r := bytes.NewReader(payload)
	var nodeID uint32
	if err := binary.Read(r, binary.LittleEndian, &nodeID); err != nil {
		return 0, kf, fmt.Errorf("%w: keyframe node", format.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &kf.Frame); err != nil {
		return 0, kf, fmt.Errorf("%w: keyframe frame", format.ErrTruncated)
	}
	interp, err := r.ReadByte()
	if err != nil {
		return 0, kf, fmt.Errorf("%w: keyframe interpolation", format.ErrTruncated)
	}
	longRot, err := r.ReadByte()
	if err != nil {
		return 0, kf, fmt.Errorf("%w: keyframe rotation flag", format.ErrTruncated)
	}
	var f [11]float32
	for i := range f {
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return 0, kf, fmt.Errorf("%w: keyframe transform", format.ErrTruncated)
		}
		f[i] = math.Float32frombits(bits)
	}
	kf.Interpolation = scenegraph.Interpolation(interp)
	kf.LongRotation = longRot != 0
	tr := scenegraph.NewTransform()
	tr.SetLocalTranslation(mat32.V3(f[0], f[1], f[2]))
	tr.SetLocalOrientation(mat32.NewQuat(f[3], f[4], f[5], f[6]))
	tr.SetLocalScale(f[7])
	tr.SetPivot(mat32.V3(f[8], f[9], f[10]))
	kf.Transform = tr
	return int32(nodeID), kf, nil
}

func encodeVolume(nodeID int32, v *voxel.Volume) []byte {
	raw := voxpack.Encode(v, v.Region())
	comp := compNone
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	packed := enc.EncodeAll(raw, nil)
	_ = enc.Close()
	payload := raw
	if len(packed) < len(raw) {
		comp = compZstd
		payload = packed
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(nodeID))
	r := v.Region()
	for i := 0; i < 3; i++ {
		_ = binary.Write(&buf, binary.LittleEndian, r.Mins[i])
	}
	for i := 0; i < 3; i++ {
		_ = binary.Write(&buf, binary.LittleEndian, r.Maxs[i])
	}
	buf.WriteByte(comp)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(raw)))
	buf.Write(payload)
	return buf.Bytes()
}

func parseVolume(payload []byte, g *scenegraph.SceneGraph, idMap map[int32]int32) error {
	r := bytes.NewReader(payload)
	var nodeID uint32
	if err := binary.Read(r, binary.LittleEndian, &nodeID); err != nil {
		return fmt.Errorf("%w: volume node", format.ErrTruncated)
	}
	var region voxel.Region
	for i := 0; i < 3; i++ {
		if err := binary.Read(r, binary.LittleEndian, &region.Mins[i]); err != nil {
			return fmt.Errorf("%w: volume region", format.ErrTruncated)
		}
	}
	for i := 0; i < 3; i++ {
		if err := binary.Read(r, binary.LittleEndian, &region.Maxs[i]); err != nil {
			return fmt.Errorf("%w: volume region", format.ErrTruncated)
		}
	}
	if !region.IsValid() {
		return fmt.Errorf("%w: %s", voxel.ErrRegionInvalid, region)
	}
	comp, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: volume compression", format.ErrTruncated)
	}
	var rawLen uint32
	if err := binary.Read(r, binary.LittleEndian, &rawLen); err != nil {
		return fmt.Errorf("%w: volume length", format.ErrTruncated)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if comp == compZstd {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return err
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("%w: volume payload: %v", format.ErrMalformed, err)
		}
	}
	if uint32(len(data)) != rawLen {
		return fmt.Errorf("%w: volume payload length %d != %d", format.ErrMalformed, len(data), rawLen)
	}

	vol, err := voxel.NewVolume(region)
	if err != nil {
		return err
	}
	if err := voxpack.Decode(data, vol, region); err != nil {
		return fmt.Errorf("%w: voxel payload: %v", format.ErrTruncated, err)
	}

	mapped, ok := idMap[int32(nodeID)]
	if !ok {
		slog.Warn("volume for unknown node", "node", nodeID)
		return nil
	}
	g.Node(mapped).SetVolume(vol)
	return nil
}

func writeString(w *bytes.Buffer, s string) {
	_ = binary.Write(w, binary.LittleEndian, uint16(len(s)))
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
