package mcworld

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
)

// nbt test builder

type nbtBuf struct{ bytes.Buffer }

func (b *nbtBuf) tag(typ byte, name string) {
	b.WriteByte(typ)
	_ = binary.Write(b, binary.BigEndian, uint16(len(name)))
	b.WriteString(name)
}

func (b *nbtBuf) str(s string) {
	_ = binary.Write(b, binary.BigEndian, uint16(len(s)))
	b.WriteString(s)
}

// buildChunkNBT emits one chunk with a single section at Y 0. With
// sparse=true the section palette is [air, stone] and only (0,0,0) holds
// stone; otherwise the palette is [stone] alone and the section is full.
func buildChunkNBT(sparse bool) []byte {
	var b nbtBuf
	b.tag(tagCompound, "")

	b.tag(tagInt, "xPos")
	_ = binary.Write(&b, binary.BigEndian, int32(0))
	b.tag(tagInt, "zPos")
	_ = binary.Write(&b, binary.BigEndian, int32(0))

	b.tag(tagList, "sections")
	b.WriteByte(tagCompound)
	_ = binary.Write(&b, binary.BigEndian, int32(1))

	// section compound
	b.tag(tagByte, "Y")
	b.WriteByte(0)
	b.tag(tagCompound, "block_states")
	{
		b.tag(tagList, "palette")
		b.WriteByte(tagCompound)
		if sparse {
			_ = binary.Write(&b, binary.BigEndian, int32(2))
			b.tag(tagString, "Name")
			b.str("minecraft:air")
			b.WriteByte(tagEnd)
			b.tag(tagString, "Name")
			b.str("minecraft:stone")
			b.WriteByte(tagEnd)

			// 4 bits per index, 16 per long, 256 longs; only index 0 is set
			b.tag(tagLongArray, "data")
			_ = binary.Write(&b, binary.BigEndian, int32(256))
			_ = binary.Write(&b, binary.BigEndian, int64(1))
			for i := 1; i < 256; i++ {
				_ = binary.Write(&b, binary.BigEndian, int64(0))
			}
		} else {
			_ = binary.Write(&b, binary.BigEndian, int32(1))
			b.tag(tagString, "Name")
			b.str("minecraft:stone")
			b.WriteByte(tagEnd)
		}
		b.WriteByte(tagEnd) // block_states
	}
	b.WriteByte(tagEnd) // section

	b.WriteByte(tagEnd) // root
	return b.Bytes()
}

// buildRegion wraps one zlib chunk at slot 0 in a sector-indexed region file.
func buildRegion(t *testing.T, chunkNBT []byte) []byte {
	t.Helper()
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(chunkNBT)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := make([]byte, 2*sectorSize)
	binary.BigEndian.PutUint32(data[0:4], 2<<8|1) // sector 2, one sector long

	var chunk bytes.Buffer
	_ = binary.Write(&chunk, binary.BigEndian, uint32(z.Len()+1))
	chunk.WriteByte(compZlib)
	chunk.Write(z.Bytes())
	data = append(data, chunk.Bytes()...)
	return data
}

func TestLoadSparseSection(t *testing.T) {
	a := format.NewMemoryArchive()
	require.NoError(t, format.WriteAll(a, "r.0.0.mca", buildRegion(t, buildChunkNBT(true))))

	g := scenegraph.New()
	require.NoError(t, format.Load("r.0.0.mca", a, g, nil))

	models := g.ModelNodes()
	require.Len(t, models, 1)
	assert.Equal(t, "chunk.0.0", models[0].Name())

	vol := models[0].Volume()
	require.NotNil(t, vol)
	assert.Equal(t, 1, vol.SolidCount())
	idx, solid := vol.Voxel(0, 0, 0)
	require.True(t, solid)

	pal := models[0].Palette()
	require.NotNil(t, pal)
	assert.Equal(t, blockColors["minecraft:stone"], pal.Color(idx))
	assert.Equal(t, palette.RGBA{}, pal.Color(0), "slot 0 stays reserved for air")
}

func TestLoadFullSection(t *testing.T) {
	a := format.NewMemoryArchive()
	require.NoError(t, format.WriteAll(a, "r.0.0.mca", buildRegion(t, buildChunkNBT(false))))

	g := scenegraph.New()
	require.NoError(t, format.Load("r.0.0.mca", a, g, nil))

	vol := g.FirstModelNode().Volume()
	require.NotNil(t, vol)
	assert.Equal(t, 16*16*16, vol.SolidCount(), "a single-entry palette fills the section")
}

func TestRegionOriginOffsetsChunks(t *testing.T) {
	a := format.NewMemoryArchive()
	require.NoError(t, format.WriteAll(a, "r.1.-1.mca", buildRegion(t, buildChunkNBT(true))))

	g := scenegraph.New()
	require.NoError(t, format.Load("r.1.-1.mca", a, g, nil))

	model := g.FirstModelNode()
	require.NotNil(t, model)
	assert.Equal(t, "chunk.32.-32", model.Name())
	_, solid := model.Volume().Voxel(32*16, 0, -32*16)
	assert.True(t, solid, "block lands at the region's world offset")
}

func TestSaveUnsupported(t *testing.T) {
	a := format.NewMemoryArchive()
	require.NoError(t, format.WriteAll(a, "r.0.0.mca", buildRegion(t, buildChunkNBT(true))))

	g := scenegraph.New()
	require.NoError(t, format.Load("r.0.0.mca", a, g, nil))

	err := format.Save(g, "out.mca", a, nil)
	assert.ErrorIs(t, err, format.ErrSaveUnsupported)
}

func TestLoadPaletteCounts(t *testing.T) {
	a := format.NewMemoryArchive()
	require.NoError(t, format.WriteAll(a, "r.0.0.mca", buildRegion(t, buildChunkNBT(true))))

	p := palette.New()
	count, err := format.LoadPalette("r.0.0.mca", a, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "air slot plus stone")
}

func TestTruncatedRegion(t *testing.T) {
	a := format.NewMemoryArchive()
	require.NoError(t, format.WriteAll(a, "r.0.0.mca", []byte{1, 2, 3}))

	g := scenegraph.New()
	err := format.Load("r.0.0.mca", a, g, nil)
	assert.ErrorIs(t, err, format.ErrTruncated)
}

func TestNBTParsesNestedStructure(t *testing.T) {
	root, err := parseNBT(buildChunkNBT(true))
	require.NoError(t, err)

	x, ok := root.Int("xPos")
	require.True(t, ok)
	assert.Equal(t, int32(0), x)

	sections := root.List("sections")
	require.Len(t, sections, 1)
	sec, ok := sections[0].(Compound)
	require.True(t, ok)
	states := sec.Compound("block_states")
	require.NotNil(t, states)
	assert.Len(t, states.List("palette"), 2)
	assert.Len(t, states.LongArray("data"), 256)
}
