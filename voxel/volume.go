package voxel

import "errors"

// ErrRegionInvalid is returned when a volume is sized from a region whose
// bounds fail IsValid.
var ErrRegionInvalid = errors.New("region bounds are invalid")

// Volume is a dense voxel container addressed within a Region. Each cell
// stores an 8-bit palette index; solidity is tracked separately in an
// occupancy bitmap, so index 0 carries no air semantics by itself.
type Volume struct {
	region Region
	idx    []uint8
	occ    []uint8 // 1 bit per cell
}

// NewVolume allocates a volume spanning the given region.
func NewVolume(r Region) (*Volume, error) {
	if !r.IsValid() {
		return nil, ErrRegionInvalid
	}
	n := r.VoxelCount()
	return &Volume{
		region: r,
		idx:    make([]uint8, n),
		occ:    make([]uint8, (n+7)/8),
	}, nil
}

func (v *Volume) Region() Region { return v.region }

func (v *Volume) offset(x, y, z int32) int64 {
	r := v.region
	lx := int64(x - r.Mins[0])
	ly := int64(y - r.Mins[1])
	lz := int64(z - r.Mins[2])
	return lx + ly*int64(r.Width()) + lz*int64(r.Width())*int64(r.Height())
}

// Voxel returns the palette index at (x,y,z) and whether the cell is solid.
// Out-of-region coordinates read as air.
func (v *Volume) Voxel(x, y, z int32) (uint8, bool) {
	if !v.region.ContainsPoint(x, y, z) {
		return 0, false
	}
	o := v.offset(x, y, z)
	return v.idx[o], v.occ[o>>3]&(1<<(uint(o)&7)) != 0
}

// SetVoxel marks the cell solid with the given palette index. It reports
// whether the coordinate lies inside the volume's region.
func (v *Volume) SetVoxel(x, y, z int32, color uint8) bool {
	if !v.region.ContainsPoint(x, y, z) {
		return false
	}
	o := v.offset(x, y, z)
	v.idx[o] = color
	v.occ[o>>3] |= 1 << (uint(o) & 7)
	return true
}

// ClearVoxel marks the cell as air.
func (v *Volume) ClearVoxel(x, y, z int32) bool {
	if !v.region.ContainsPoint(x, y, z) {
		return false
	}
	o := v.offset(x, y, z)
	v.idx[o] = 0
	v.occ[o>>3] &^= 1 << (uint(o) & 7)
	return true
}

// SolidCount returns the number of non-air cells.
func (v *Volume) SolidCount() int {
	n := 0
	total := v.region.VoxelCount()
	for o := int64(0); o < total; o++ {
		if v.occ[o>>3]&(1<<(uint(o)&7)) != 0 {
			n++
		}
	}
	return n
}

// ForEachSolid visits every solid cell in x-fastest order.
func (v *Volume) ForEachSolid(fn func(x, y, z int32, color uint8)) {
	r := v.region
	o := int64(0)
	for z := r.Mins[2]; z <= r.Maxs[2]; z++ {
		for y := r.Mins[1]; y <= r.Maxs[1]; y++ {
			for x := r.Mins[0]; x <= r.Maxs[0]; x++ {
				if v.occ[o>>3]&(1<<(uint(o)&7)) != 0 {
					fn(x, y, z, v.idx[o])
				}
				o++
			}
		}
	}
}

// Copy returns a deep copy of the volume.
func (v *Volume) Copy() *Volume {
	c := &Volume{
		region: v.region,
		idx:    make([]uint8, len(v.idx)),
		occ:    make([]uint8, len(v.occ)),
	}
	copy(c.idx, v.idx)
	copy(c.occ, v.occ)
	return c
}

// Translate moves the volume's region without touching cell contents.
func (v *Volume) Translate(dx, dy, dz int32) {
	v.region = v.region.Shift(dx, dy, dz)
}

// RemapIndices rewrites every solid cell's palette index through the given
// table. Used when a scene is folded onto one shared palette before saving.
func (v *Volume) RemapIndices(table [256]uint8) {
	total := v.region.VoxelCount()
	for o := int64(0); o < total; o++ {
		if v.occ[o>>3]&(1<<(uint(o)&7)) != 0 {
			v.idx[o] = table[v.idx[o]]
		}
	}
}
