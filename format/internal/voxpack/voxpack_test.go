package voxpack

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/voxconv/voxel"
)

func TestEncodeLayout(t *testing.T) {
	r := voxel.CubeRegion(0, 1)
	vol, err := voxel.NewVolume(r)
	require.NoError(t, err)
	vol.SetVoxel(0, 0, 0, 5) // cell offset 0
	vol.SetVoxel(1, 1, 0, 6) // cell offset 3
	vol.SetVoxel(0, 0, 1, 7) // cell offset 4

	// one bitmap byte, occupancy bits LSB-first, then colors in cell order
	assert.Equal(t, []byte{0x19, 5, 6, 7}, Encode(vol, r))
}

func TestEncodePadsPartialBitmapByte(t *testing.T) {
	r := voxel.NewRegion(0, 0, 0, 8, 0, 0) // 9 cells, 2 bitmap bytes
	vol, err := voxel.NewVolume(r)
	require.NoError(t, err)
	vol.SetVoxel(8, 0, 0, 9)

	assert.Equal(t, []byte{0x00, 0x01, 9}, Encode(vol, r))
}

func TestRoundTrip(t *testing.T) {
	r := voxel.NewRegion(-2, 0, 3, 4, 5, 6)
	vol, err := voxel.NewVolume(r)
	require.NoError(t, err)
	c := uint8(1)
	for x := r.Mins[0]; x <= r.Maxs[0]; x += 2 {
		for y := r.Mins[1]; y <= r.Maxs[1]; y += 3 {
			vol.SetVoxel(x, y, r.Mins[2], c)
			c++
		}
	}

	out, err := voxel.NewVolume(r)
	require.NoError(t, err)
	require.NoError(t, Decode(Encode(vol, r), out, r))

	assert.Equal(t, vol.SolidCount(), out.SolidCount())
	for x := r.Mins[0]; x <= r.Maxs[0]; x++ {
		for y := r.Mins[1]; y <= r.Maxs[1]; y++ {
			for z := r.Mins[2]; z <= r.Maxs[2]; z++ {
				wi, ws := vol.Voxel(x, y, z)
				gi, gs := out.Voxel(x, y, z)
				require.Equal(t, ws, gs, "cell %d,%d,%d", x, y, z)
				require.Equal(t, wi, gi, "cell %d,%d,%d", x, y, z)
			}
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	r := voxel.CubeRegion(0, 3) // 64 cells, 8 bitmap bytes
	vol, err := voxel.NewVolume(r)
	require.NoError(t, err)

	err = Decode([]byte{0xFF, 0xFF}, vol, r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeShortColorStream(t *testing.T) {
	r := voxel.CubeRegion(0, 1)
	vol, err := voxel.NewVolume(r)
	require.NoError(t, err)

	// two occupancy bits set, only one color byte
	err = Decode([]byte{0x03, 5}, vol, r)
	assert.ErrorIs(t, err, errColorStream)
}
