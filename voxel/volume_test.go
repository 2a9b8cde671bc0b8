package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVolumeInvalidRegion(t *testing.T) {
	_, err := NewVolume(InvalidRegion())
	assert.ErrorIs(t, err, ErrRegionInvalid)
}

func TestVolumeSetGetClear(t *testing.T) {
	v, err := NewVolume(NewRegion(-2, -2, -2, 2, 2, 2))
	require.NoError(t, err)

	assert.True(t, v.SetVoxel(0, 0, 0, 7))
	idx, solid := v.Voxel(0, 0, 0)
	assert.True(t, solid)
	assert.Equal(t, uint8(7), idx)

	// index 0 is a real color, not air
	assert.True(t, v.SetVoxel(1, 0, 0, 0))
	idx, solid = v.Voxel(1, 0, 0)
	assert.True(t, solid)
	assert.Equal(t, uint8(0), idx)

	assert.True(t, v.ClearVoxel(0, 0, 0))
	_, solid = v.Voxel(0, 0, 0)
	assert.False(t, solid)

	// out of bounds writes are rejected
	assert.False(t, v.SetVoxel(3, 0, 0, 1))
	_, solid = v.Voxel(100, 0, 0)
	assert.False(t, solid)
}

func TestVolumeSolidCount(t *testing.T) {
	v, err := NewVolume(NewRegion(0, 0, 0, 3, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, v.SolidCount())

	v.SetVoxel(0, 0, 0, 1)
	v.SetVoxel(3, 3, 3, 2)
	v.SetVoxel(0, 0, 0, 3) // overwrite, not a new voxel
	assert.Equal(t, 2, v.SolidCount())

	v.ClearVoxel(3, 3, 3)
	assert.Equal(t, 1, v.SolidCount())
}

func TestVolumeForEachSolidOrder(t *testing.T) {
	v, err := NewVolume(NewRegion(0, 0, 0, 1, 1, 1))
	require.NoError(t, err)
	v.SetVoxel(1, 0, 0, 1)
	v.SetVoxel(0, 0, 0, 2)
	v.SetVoxel(0, 1, 1, 3)

	var visited [][4]int32
	v.ForEachSolid(func(x, y, z int32, color uint8) {
		visited = append(visited, [4]int32{x, y, z, int32(color)})
	})
	// x varies fastest, then y, then z
	assert.Equal(t, [][4]int32{
		{0, 0, 0, 2},
		{1, 0, 0, 1},
		{0, 1, 1, 3},
	}, visited)
}

func TestVolumeCopyIndependent(t *testing.T) {
	v, err := NewVolume(NewRegion(0, 0, 0, 1, 1, 1))
	require.NoError(t, err)
	v.SetVoxel(0, 0, 0, 5)

	c := v.Copy()
	c.SetVoxel(0, 0, 0, 9)
	c.SetVoxel(1, 1, 1, 1)

	idx, _ := v.Voxel(0, 0, 0)
	assert.Equal(t, uint8(5), idx)
	assert.Equal(t, 1, v.SolidCount())
	assert.Equal(t, 2, c.SolidCount())
}

func TestVolumeTranslate(t *testing.T) {
	v, err := NewVolume(NewRegion(0, 0, 0, 1, 1, 1))
	require.NoError(t, err)
	v.SetVoxel(1, 1, 1, 4)

	v.Translate(10, 0, -5)
	assert.Equal(t, NewRegion(10, 0, -5, 11, 1, -4), v.Region())
	idx, solid := v.Voxel(11, 1, -4)
	assert.True(t, solid)
	assert.Equal(t, uint8(4), idx)
}

func TestVolumeRemapIndices(t *testing.T) {
	v, err := NewVolume(NewRegion(0, 0, 0, 1, 0, 0))
	require.NoError(t, err)
	v.SetVoxel(0, 0, 0, 3)
	v.SetVoxel(1, 0, 0, 200)

	var table [256]uint8
	for i := range table {
		table[i] = uint8(i)
	}
	table[3] = 30
	table[200] = 2
	v.RemapIndices(table)

	idx, _ := v.Voxel(0, 0, 0)
	assert.Equal(t, uint8(30), idx)
	idx, _ = v.Voxel(1, 0, 0)
	assert.Equal(t, uint8(2), idx)
}

func TestMortonRoundTrip(t *testing.T) {
	coords := [][3]uint32{
		{0, 0, 0}, {1, 2, 3}, {31, 31, 31}, {1023, 0, 512}, {123456, 654, 3},
	}
	for _, c := range coords {
		key := Morton3D64(c[0], c[1], c[2])
		x, y, z := MortonDecode3D64(key)
		assert.Equal(t, c[0], x)
		assert.Equal(t, c[1], y)
		assert.Equal(t, c[2], z)
	}
}

func TestMortonOrdering(t *testing.T) {
	// within one octant the key preserves locality: (0,0,0) is always first
	assert.Equal(t, uint64(0), Morton3D64(0, 0, 0))
	assert.Less(t, Morton3D64(1, 0, 0), Morton3D64(0, 0, 2))
}
