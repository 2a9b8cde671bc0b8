package voxel

import "fmt"

// Region is an inclusive axis-aligned integer bounding box. It is a plain
// value type: every mutator returns a new Region.
type Region struct {
	Mins [3]int32
	Maxs [3]int32
}

// NewRegion builds a region from inclusive per-axis bounds.
func NewRegion(minX, minY, minZ, maxX, maxY, maxZ int32) Region {
	return Region{Mins: [3]int32{minX, minY, minZ}, Maxs: [3]int32{maxX, maxY, maxZ}}
}

// CubeRegion builds a region spanning [mins..maxs] on every axis.
func CubeRegion(mins, maxs int32) Region {
	return NewRegion(mins, mins, mins, maxs, maxs, maxs)
}

// InvalidRegion returns a region for which IsValid reports false. Useful as
// the zero element for accumulation.
func InvalidRegion() Region {
	return NewRegion(0, 0, 0, -1, -1, -1)
}

// IsValid reports whether maxs >= mins on every axis. Callers must check this
// after deriving a region from untrusted file contents before sizing a Volume
// from it.
func (r Region) IsValid() bool {
	return r.Maxs[0] >= r.Mins[0] && r.Maxs[1] >= r.Mins[1] && r.Maxs[2] >= r.Mins[2]
}

// Width, Height and Depth are measured in voxels (inclusive bounds).
func (r Region) Width() int32  { return r.Maxs[0] - r.Mins[0] + 1 }
func (r Region) Height() int32 { return r.Maxs[1] - r.Mins[1] + 1 }
func (r Region) Depth() int32  { return r.Maxs[2] - r.Mins[2] + 1 }

// CellsX/Y/Z are the voxel counts minus one.
func (r Region) CellsX() int32 { return r.Maxs[0] - r.Mins[0] }
func (r Region) CellsY() int32 { return r.Maxs[1] - r.Mins[1] }
func (r Region) CellsZ() int32 { return r.Maxs[2] - r.Mins[2] }

// VoxelCount returns the number of cells the region spans.
func (r Region) VoxelCount() int64 {
	if !r.IsValid() {
		return 0
	}
	return int64(r.Width()) * int64(r.Height()) * int64(r.Depth())
}

func (r Region) ContainsPoint(x, y, z int32) bool {
	return x >= r.Mins[0] && x <= r.Maxs[0] &&
		y >= r.Mins[1] && y <= r.Maxs[1] &&
		z >= r.Mins[2] && z <= r.Maxs[2]
}

func (r Region) ContainsRegion(o Region) bool {
	return r.ContainsPoint(o.Mins[0], o.Mins[1], o.Mins[2]) &&
		r.ContainsPoint(o.Maxs[0], o.Maxs[1], o.Maxs[2])
}

// Intersects performs a per-component separating axis test.
func Intersects(a, b Region) bool {
	for i := 0; i < 3; i++ {
		if a.Maxs[i] < b.Mins[i] || a.Mins[i] > b.Maxs[i] {
			return false
		}
	}
	return true
}

// Accumulate grows the region to cover the given point. An invalid region
// collapses onto the point.
func (r Region) Accumulate(x, y, z int32) Region {
	if !r.IsValid() {
		return NewRegion(x, y, z, x, y, z)
	}
	p := [3]int32{x, y, z}
	for i := 0; i < 3; i++ {
		if p[i] < r.Mins[i] {
			r.Mins[i] = p[i]
		}
		if p[i] > r.Maxs[i] {
			r.Maxs[i] = p[i]
		}
	}
	return r
}

// AccumulateRegion grows the region to cover another region.
func (r Region) AccumulateRegion(o Region) Region {
	if !o.IsValid() {
		return r
	}
	r = r.Accumulate(o.Mins[0], o.Mins[1], o.Mins[2])
	return r.Accumulate(o.Maxs[0], o.Maxs[1], o.Maxs[2])
}

// CropTo intersects the region with another. The result may be invalid when
// the two regions do not overlap.
func (r Region) CropTo(o Region) Region {
	for i := 0; i < 3; i++ {
		if o.Mins[i] > r.Mins[i] {
			r.Mins[i] = o.Mins[i]
		}
		if o.Maxs[i] < r.Maxs[i] {
			r.Maxs[i] = o.Maxs[i]
		}
	}
	return r
}

// Shift translates the region by the given delta.
func (r Region) Shift(dx, dy, dz int32) Region {
	d := [3]int32{dx, dy, dz}
	for i := 0; i < 3; i++ {
		r.Mins[i] += d[i]
		r.Maxs[i] += d[i]
	}
	return r
}

// Grow expands the region by amount on every axis. Negative amounts shrink.
func (r Region) Grow(amount int32) Region {
	return r.GrowXYZ(amount, amount, amount)
}

// GrowXYZ expands the region per axis. Negative amounts shrink.
func (r Region) GrowXYZ(dx, dy, dz int32) Region {
	d := [3]int32{dx, dy, dz}
	for i := 0; i < 3; i++ {
		r.Mins[i] -= d[i]
		r.Maxs[i] += d[i]
	}
	return r
}

func (r Region) String() string {
	return fmt.Sprintf("region[mins(%d,%d,%d) maxs(%d,%d,%d)]",
		r.Mins[0], r.Mins[1], r.Mins[2], r.Maxs[0], r.Maxs[1], r.Maxs[2])
}
