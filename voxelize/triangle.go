package voxelize

import (
	"goki.dev/mat32/v2"

	"github.com/voxelforge/voxconv/palette"
)

// Triangle is one colored input face.
type Triangle struct {
	A, B, C mat32.Vec3
	Color   palette.RGBA
}

const alignEps = 1e-4

func (t Triangle) Bounds() (lo, hi mat32.Vec3) {
	lo = t.A
	hi = t.A
	lo.SetMin(t.B)
	lo.SetMin(t.C)
	hi.SetMax(t.B)
	hi.SetMax(t.C)
	return lo, hi
}

func (t Triangle) Normal() mat32.Vec3 {
	n := t.B.Sub(t.A).Cross(t.C.Sub(t.A))
	return n.Normal()
}

func (t Triangle) Area() float32 {
	return t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Length() * 0.5
}

func (t Triangle) Centroid() mat32.Vec3 {
	return t.A.Add(t.B).Add(t.C).MulScalar(1.0 / 3.0)
}

// flatAxis reports the axis the triangle is perpendicular to, if all three
// vertices share that coordinate.
func (t Triangle) flatAxis() (int, bool) {
	for axis := 0; axis < 3; axis++ {
		d := mat32.Dims(axis)
		a, b, c := t.A.Dim(d), t.B.Dim(d), t.C.Dim(d)
		if mat32.Abs(a-b) < alignEps && mat32.Abs(a-c) < alignEps {
			return axis, true
		}
	}
	return 0, false
}

// aligned reports whether the triangle looks voxel-exported: flat on one axis
// with an area that is a multiple of one half.
func (t Triangle) aligned() bool {
	if _, ok := t.flatAxis(); !ok {
		return false
	}
	area := t.Area()
	doubled := area * 2
	return mat32.Abs(doubled-mat32.Round(doubled)) < alignEps
}

// AxisAligned reports whether every triangle in the mesh is voxel-exported.
func AxisAligned(tris []Triangle) bool {
	for _, t := range tris {
		if !t.aligned() {
			return false
		}
	}
	return len(tris) > 0
}

// covers2D tests the point (pu, pv) against the triangle projected onto the
// u/v axes, bounds inclusive up to alignEps.
func (t Triangle) covers2D(u, v int, pu, pv float32) bool {
	du, dv := mat32.Dims(u), mat32.Dims(v)
	ax, ay := t.A.Dim(du), t.A.Dim(dv)
	bx, by := t.B.Dim(du), t.B.Dim(dv)
	cx, cy := t.C.Dim(du), t.C.Dim(dv)

	d1 := edgeSign(pu, pv, ax, ay, bx, by)
	d2 := edgeSign(pu, pv, bx, by, cx, cy)
	d3 := edgeSign(pu, pv, cx, cy, ax, ay)
	hasNeg := d1 < -alignEps || d2 < -alignEps || d3 < -alignEps
	hasPos := d1 > alignEps || d2 > alignEps || d3 > alignEps
	return !(hasNeg && hasPos)
}

func edgeSign(px, py, ax, ay, bx, by float32) float32 {
	return (px-bx)*(ay-by) - (ax-bx)*(py-by)
}
