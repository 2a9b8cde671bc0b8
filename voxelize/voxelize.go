// Package voxelize rasterizes triangulated surfaces into palette-indexed
// volumes. Axis-aligned meshes (voxel exports) take a direct per-cell path;
// general meshes are quartered down to sub-voxel micro-triangles whose
// centroids feed an area-weighted color sample map.
package voxelize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"goki.dev/mat32/v2"
	"golang.org/x/sync/errgroup"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/voxel"
)

var ErrEmptyMesh = errors.New("mesh holds no triangles")

// warnVolume is the projected cell count above which voxelization logs a
// performance warning instead of silently stalling.
const warnVolume = 512 * 512 * 512

// Options controls a voxelization run.
type Options struct {
	Ctx context.Context
	// FillHollow closes the shell into a solid by filling interior cells.
	FillHollow bool
	// Workers bounds the sampling pool; 0 means GOMAXPROCS.
	Workers int
	// Algorithm reduces the sampled colors when they exceed the palette.
	Algorithm palette.Reduction
}

func (o *Options) ctx() context.Context {
	if o != nil && o.Ctx != nil {
		return o.Ctx
	}
	return context.Background()
}

func (o *Options) workers() int {
	if o != nil && o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Mesh voxelizes tris into a volume with a palette synthesized from the
// sampled colors.
func Mesh(tris []Triangle, opts Options) (*voxel.Volume, *palette.Palette, error) {
	if len(tris) == 0 {
		return nil, nil, ErrEmptyMesh
	}
	region := meshRegion(tris)
	if !region.IsValid() {
		return nil, nil, fmt.Errorf("%w: mesh bounds %s", voxel.ErrRegionInvalid, region)
	}
	if region.VoxelCount() > warnVolume {
		slog.Warn("voxelizing a very large mesh",
			"region", region.String(), "cells", region.VoxelCount())
	}

	var samples map[[3]int32]*cellSamples
	var err error
	if AxisAligned(tris) {
		samples = rasterizeAligned(tris)
	} else {
		samples, err = sampleGeneral(tris, &opts)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(samples) == 0 {
		return nil, nil, ErrEmptyMesh
	}

	colors := make([]palette.RGBA, 0, len(samples))
	for _, cs := range samples {
		colors = append(colors, cs.average())
	}
	pal, err := palette.FromColors(colors, opts.Algorithm)
	if err != nil {
		return nil, nil, err
	}

	// size the volume from the cells actually hit: aligned faces on a min
	// bound land one cell below the geometric mesh bounds
	bounds := voxel.InvalidRegion()
	for pos := range samples {
		bounds = bounds.Accumulate(pos[0], pos[1], pos[2])
	}
	vol, err := voxel.NewVolume(bounds)
	if err != nil {
		return nil, nil, err
	}
	for pos, cs := range samples {
		idx := pal.ClosestMatch(cs.average(), 0)
		if idx < 0 {
			idx = 1
		}
		vol.SetVoxel(pos[0], pos[1], pos[2], uint8(idx))
	}
	if opts.FillHollow {
		fillHollow(vol)
	}
	return vol, pal, nil
}

// meshRegion floors the mesh bounds onto the voxel grid.
func meshRegion(tris []Triangle) voxel.Region {
	lo, hi := tris[0].Bounds()
	for _, t := range tris[1:] {
		tlo, thi := t.Bounds()
		lo.SetMin(tlo)
		hi.SetMax(thi)
	}
	r := voxel.NewRegion(
		int32(mat32.Floor(lo.X)), int32(mat32.Floor(lo.Y)), int32(mat32.Floor(lo.Z)),
		int32(mat32.Ceil(hi.X))-1, int32(mat32.Ceil(hi.Y))-1, int32(mat32.Ceil(hi.Z))-1)
	for i := 0; i < 3; i++ {
		if r.Maxs[i] < r.Mins[i] {
			r.Maxs[i] = r.Mins[i]
		}
	}
	return r
}

// cellSamples keeps up to four distinct colors per cell, each weighted by the
// contributing triangle area.
type cellSamples struct {
	colors  [4]palette.RGBA
	weights [4]float32
	n       int
}

func (cs *cellSamples) add(c palette.RGBA, weight float32) {
	for i := 0; i < cs.n; i++ {
		if cs.colors[i] == c {
			cs.weights[i] += weight
			return
		}
	}
	if cs.n < len(cs.colors) {
		cs.colors[cs.n] = c
		cs.weights[cs.n] = weight
		cs.n++
	}
}

func (cs *cellSamples) merge(other *cellSamples) {
	for i := 0; i < other.n; i++ {
		cs.add(other.colors[i], other.weights[i])
	}
}

// average returns the area-weighted mean color.
func (cs *cellSamples) average() palette.RGBA {
	if cs.n == 1 {
		return cs.colors[0]
	}
	var r, g, b, a, total float32
	for i := 0; i < cs.n; i++ {
		w := cs.weights[i]
		r += float32(cs.colors[i].R) * w
		g += float32(cs.colors[i].G) * w
		b += float32(cs.colors[i].B) * w
		a += float32(cs.colors[i].A) * w
		total += w
	}
	if total <= 0 {
		return palette.RGBA{}
	}
	return palette.RGBA{
		R: uint8(r/total + 0.5),
		G: uint8(g/total + 0.5),
		B: uint8(b/total + 0.5),
		A: uint8(a/total + 0.5),
	}
}

// rasterizeAligned marks every unit cell an axis-flat triangle covers,
// offsetting along the face normal's sign so front and back faces of the same
// solid land in the same cell.
func rasterizeAligned(tris []Triangle) map[[3]int32]*cellSamples {
	out := make(map[[3]int32]*cellSamples)
	for _, t := range tris {
		axis, _ := t.flatAxis()
		u, v := tangentAxes(axis)
		plane := t.A.Dim(mat32.Dims(axis))
		p := int32(mat32.Round(plane))
		if t.Normal().Dim(mat32.Dims(axis)) > 0 {
			p--
		}

		lo, hi := t.Bounds()
		u0 := int32(mat32.Floor(lo.Dim(mat32.Dims(u))))
		u1 := int32(mat32.Ceil(hi.Dim(mat32.Dims(u)))) - 1
		v0 := int32(mat32.Floor(lo.Dim(mat32.Dims(v))))
		v1 := int32(mat32.Ceil(hi.Dim(mat32.Dims(v)))) - 1
		area := t.Area()
		for cu := u0; cu <= u1; cu++ {
			for cv := v0; cv <= v1; cv++ {
				if !t.covers2D(u, v, float32(cu)+0.5, float32(cv)+0.5) {
					continue
				}
				var pos [3]int32
				pos[axis] = p
				pos[u] = cu
				pos[v] = cv
				cell := out[pos]
				if cell == nil {
					cell = &cellSamples{}
					out[pos] = cell
				}
				cell.add(t.Color, area)
			}
		}
	}
	return out
}

// sampleGeneral quarters every triangle to sub-voxel size and accumulates
// centroid samples, sharded across a bounded worker pool. Shard results merge
// in shard order so the sample cap stays deterministic.
func sampleGeneral(tris []Triangle, opts *Options) (map[[3]int32]*cellSamples, error) {
	workers := opts.workers()
	if workers > len(tris) {
		workers = len(tris)
	}
	shards := make([]map[[3]int32]*cellSamples, workers)
	ctx := opts.ctx()

	g, ctx := errgroup.WithContext(ctx)
	per := (len(tris) + workers - 1) / workers
	for s := 0; s < workers; s++ {
		s := s
		start := s * per
		end := start + per
		if end > len(tris) {
			end = len(tris)
		}
		if start >= end {
			shards[s] = map[[3]int32]*cellSamples{}
			continue
		}
		g.Go(func() error {
			local := make(map[[3]int32]*cellSamples)
			for i, t := range tris[start:end] {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				subdivide(t, 0, func(micro Triangle) {
					c := micro.Centroid()
					pos := [3]int32{
						int32(mat32.Floor(c.X)),
						int32(mat32.Floor(c.Y)),
						int32(mat32.Floor(c.Z)),
					}
					cell := local[pos]
					if cell == nil {
						cell = &cellSamples{}
						local[pos] = cell
					}
					cell.add(micro.Color, micro.Area())
				})
			}
			shards[s] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[[3]int32]*cellSamples)
	for _, shard := range shards {
		for pos, cs := range shard {
			if cell := out[pos]; cell != nil {
				cell.merge(cs)
			} else {
				out[pos] = cs
			}
		}
	}
	return out, nil
}

// maxSubdivDepth caps quartering; 24 levels shrink any finite triangle below
// one unit.
const maxSubdivDepth = 24

// subdivide quarters t until its extents fit one unit per axis, then emits it.
// Quartering by edge midpoints keeps the original midpoint, so samples stay
// anchored to the source surface.
func subdivide(t Triangle, depth int, emit func(Triangle)) {
	lo, hi := t.Bounds()
	if depth >= maxSubdivDepth ||
		(hi.X-lo.X <= 1 && hi.Y-lo.Y <= 1 && hi.Z-lo.Z <= 1) {
		emit(t)
		return
	}
	ab := t.A.Add(t.B).MulScalar(0.5)
	bc := t.B.Add(t.C).MulScalar(0.5)
	ca := t.C.Add(t.A).MulScalar(0.5)
	subdivide(Triangle{A: t.A, B: ab, C: ca, Color: t.Color}, depth+1, emit)
	subdivide(Triangle{A: ab, B: t.B, C: bc, Color: t.Color}, depth+1, emit)
	subdivide(Triangle{A: ca, B: bc, C: t.C, Color: t.Color}, depth+1, emit)
	subdivide(Triangle{A: ab, B: bc, C: ca, Color: t.Color}, depth+1, emit)
}

// fillHollow closes the shell: cells a 6-neighbour flood from outside the
// region cannot reach are interior and get filled with the nearest shell
// index.
func fillHollow(vol *voxel.Volume) {
	r := vol.Region()
	w, h, d := r.Width(), r.Height(), r.Depth()
	outside := make([]bool, int(w)*int(h)*int(d))
	at := func(x, y, z int32) int {
		return int((z-r.Mins[2])*w*h + (y-r.Mins[1])*w + (x - r.Mins[0]))
	}

	var queue [][3]int32
	push := func(x, y, z int32) {
		if !r.ContainsPoint(x, y, z) {
			return
		}
		i := at(x, y, z)
		if outside[i] {
			return
		}
		if _, solid := vol.Voxel(x, y, z); solid {
			return
		}
		outside[i] = true
		queue = append(queue, [3]int32{x, y, z})
	}

	// seed with every boundary cell
	for y := r.Mins[1]; y <= r.Maxs[1]; y++ {
		for x := r.Mins[0]; x <= r.Maxs[0]; x++ {
			push(x, y, r.Mins[2])
			push(x, y, r.Maxs[2])
		}
	}
	for z := r.Mins[2]; z <= r.Maxs[2]; z++ {
		for x := r.Mins[0]; x <= r.Maxs[0]; x++ {
			push(x, r.Mins[1], z)
			push(x, r.Maxs[1], z)
		}
		for y := r.Mins[1]; y <= r.Maxs[1]; y++ {
			push(r.Mins[0], y, z)
			push(r.Maxs[0], y, z)
		}
	}
	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		push(p[0]+1, p[1], p[2])
		push(p[0]-1, p[1], p[2])
		push(p[0], p[1]+1, p[2])
		push(p[0], p[1]-1, p[2])
		push(p[0], p[1], p[2]+1)
		push(p[0], p[1], p[2]-1)
	}

	for z := r.Mins[2]; z <= r.Maxs[2]; z++ {
		for y := r.Mins[1]; y <= r.Maxs[1]; y++ {
			for x := r.Mins[0]; x <= r.Maxs[0]; x++ {
				if outside[at(x, y, z)] {
					continue
				}
				if _, solid := vol.Voxel(x, y, z); solid {
					continue
				}
				vol.SetVoxel(x, y, z, interiorIndex(vol, x, y, z))
			}
		}
	}
}

// interiorIndex picks the index of the nearest solid neighbour along each
// axis, falling back to 1.
func interiorIndex(vol *voxel.Volume, x, y, z int32) uint8 {
	neighbours := [6][3]int32{
		{x + 1, y, z}, {x - 1, y, z},
		{x, y + 1, z}, {x, y - 1, z},
		{x, y, z + 1}, {x, y, z - 1},
	}
	for _, n := range neighbours {
		if idx, solid := vol.Voxel(n[0], n[1], n[2]); solid {
			return idx
		}
	}
	return 1
}

func tangentAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}
