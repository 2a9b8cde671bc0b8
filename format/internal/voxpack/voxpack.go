// Package voxpack encodes volume contents as an occupancy bitmap followed by
// one color byte per solid cell, the payload layout the container codecs
// share.
package voxpack

import (
	"errors"
	"io"

	"github.com/voxelforge/voxconv/format/internal/bitio"
	"github.com/voxelforge/voxconv/voxel"
)

var errColorStream = errors.New("voxpack: color stream shorter than occupancy bitmap")

// Encode serializes the cells of v inside region in x-fastest order: one
// occupancy bit per cell, then one color byte per solid cell. region must be
// contained in v's region.
func Encode(v *voxel.Volume, region voxel.Region) []byte {
	w := bitio.NewWriter()
	colors := make([]byte, 0, region.VoxelCount()/8)
	for z := region.Mins[2]; z <= region.Maxs[2]; z++ {
		for y := region.Mins[1]; y <= region.Maxs[1]; y++ {
			for x := region.Mins[0]; x <= region.Maxs[0]; x++ {
				if c, ok := v.Voxel(x, y, z); ok {
					w.WriteBits(1, 1)
					colors = append(colors, c)
				} else {
					w.WriteBits(0, 1)
				}
			}
		}
	}
	return append(w.Bytes(), colors...)
}

// Decode writes a payload produced by Encode into v at region.
func Decode(data []byte, v *voxel.Volume, region voxel.Region) error {
	total := region.VoxelCount()
	bitmapLen := int((total + 7) / 8)
	if len(data) < bitmapLen {
		return io.ErrUnexpectedEOF
	}
	r := bitio.NewReader(data[:bitmapLen])
	colors := data[bitmapLen:]
	ci := 0
	for z := region.Mins[2]; z <= region.Maxs[2]; z++ {
		for y := region.Mins[1]; y <= region.Maxs[1]; y++ {
			for x := region.Mins[0]; x <= region.Maxs[0]; x++ {
				bit, err := r.ReadBits(1)
				if err != nil {
					return err
				}
				if bit == 0 {
					continue
				}
				if ci >= len(colors) {
					return errColorStream
				}
				v.SetVoxel(x, y, z, colors[ci])
				ci++
			}
		}
	}
	return nil
}
