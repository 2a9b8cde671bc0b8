package gltfvox

import (
	"math"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/voxel"
)

// meshData is one node's extracted surface, indexed triangles with per-vertex
// colors.
type meshData struct {
	positions [][3]float32
	colors    [][4]float32
	indices   []uint32
	hasAlpha  bool
}

type dirSpec struct {
	normal [3]float32
	u, v   int
	du, dv [3]int
}

var directions = []dirSpec{
	{[3]float32{1, 0, 0}, 1, 2, [3]int{0, 1, 0}, [3]int{0, 0, 1}},
	{[3]float32{-1, 0, 0}, 1, 2, [3]int{0, 1, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, 1, 0}, 0, 2, [3]int{1, 0, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, -1, 0}, 0, 2, [3]int{1, 0, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, 0, 1}, 0, 1, [3]int{1, 0, 0}, [3]int{0, 1, 0}},
	{[3]float32{0, 0, -1}, 0, 1, [3]int{1, 0, 0}, [3]int{0, 1, 0}},
}

// greedyMesh merges coplanar same-colored faces into maximal quads. Output
// positions are in world coordinates (region mins offset applied).
func greedyMesh(vol *voxel.Volume, pal *palette.Palette) *meshData {
	mesh := &meshData{}
	region := vol.Region()
	dims := [3]int{int(region.Width()), int(region.Height()), int(region.Depth())}

	// 0 marks air in the face masks; voxel indices shift up by one so index 0
	// stays usable.
	at := func(x, y, z int) uint16 {
		idx, solid := vol.Voxel(
			region.Mins[0]+int32(x),
			region.Mins[1]+int32(y),
			region.Mins[2]+int32(z))
		if !solid {
			return 0
		}
		return uint16(idx) + 1
	}

	for _, dir := range directions {
		perp := 3 - dir.u - dir.v

		for p := 0; p < dims[perp]; p++ {
			mask := make([][]uint16, dims[dir.u])
			visited := make([][]bool, dims[dir.u])
			for i := range mask {
				mask[i] = make([]uint16, dims[dir.v])
				visited[i] = make([]bool, dims[dir.v])
			}

			for u := 0; u < dims[dir.u]; u++ {
				for v := 0; v < dims[dir.v]; v++ {
					pos := [3]int{}
					pos[dir.u] = u
					pos[dir.v] = v
					pos[perp] = p

					cell := at(pos[0], pos[1], pos[2])
					if cell == 0 {
						continue
					}

					adj := pos
					if dir.normal[perp] < 0 {
						adj[perp] = p - 1
					} else {
						adj[perp] = p + 1
					}

					if adj[perp] < 0 || adj[perp] >= dims[perp] || at(adj[0], adj[1], adj[2]) == 0 {
						mask[u][v] = cell
					}
				}
			}

			for u := 0; u < dims[dir.u]; u++ {
				for v := 0; v < dims[dir.v]; {
					if mask[u][v] == 0 || visited[u][v] {
						v++
						continue
					}
					cell := mask[u][v]
					width := 1
					for w := v + 1; w < dims[dir.v] && mask[u][w] == cell && !visited[u][w]; w++ {
						width++
					}
					height := 1
					stop := false
					for h := u + 1; h < dims[dir.u] && !stop; h++ {
						for w := v; w < v+width; w++ {
							if mask[h][w] != cell || visited[h][w] {
								stop = true
								break
							}
						}
						if !stop {
							height++
						}
					}
					for hu := u; hu < u+height; hu++ {
						for hv := v; hv < v+width; hv++ {
							visited[hu][hv] = true
						}
					}
					mesh.addQuad(dir, [3]int{p, u, v}, width, height, perp, region, colorOf(pal, uint8(cell-1)))
					v += width
				}
			}
		}
	}
	return mesh
}

func colorOf(pal *palette.Palette, idx uint8) [4]float32 {
	c := pal.Color(idx)
	return [4]float32{
		float32(c.R) / 255,
		float32(c.G) / 255,
		float32(c.B) / 255,
		float32(c.A) / 255,
	}
}

func (m *meshData) addQuad(dir dirSpec, start [3]int, w, h, perp int, region voxel.Region, color [4]float32) {
	base := [3]float32{}
	base[perp] = float32(start[0])
	if dir.normal[perp] > 0 {
		base[perp] += 1
	}
	base[dir.u] = float32(start[1])
	base[dir.v] = float32(start[2])
	base[0] += float32(region.Mins[0])
	base[1] += float32(region.Mins[1])
	base[2] += float32(region.Mins[2])

	verts := [4][3]float32{
		base,
		{base[0] + float32(dir.du[0]*h), base[1] + float32(dir.du[1]*h), base[2] + float32(dir.du[2]*h)},
		{base[0] + float32(dir.du[0]*h) + float32(dir.dv[0]*w), base[1] + float32(dir.du[1]*h) + float32(dir.dv[1]*w), base[2] + float32(dir.du[2]*h) + float32(dir.dv[2]*w)},
		{base[0] + float32(dir.dv[0]*w), base[1] + float32(dir.dv[1]*w), base[2] + float32(dir.dv[2]*w)},
	}

	swap := (dir.normal[perp] < 0) != (perp == 1)
	if swap {
		verts[1], verts[3] = verts[3], verts[1]
	}

	baseIdx := uint32(len(m.positions))
	for _, v := range verts {
		m.positions = append(m.positions, v)
		m.colors = append(m.colors, color)
	}
	if color[3] < 1 {
		m.hasAlpha = true
	}
	m.indices = append(m.indices,
		baseIdx, baseIdx+1, baseIdx+2, baseIdx, baseIdx+2, baseIdx+3)
}

// flatNormals assigns each face's cross-product normal to its vertices; quads
// never share vertices so the per-face overwrite is exact.
func (m *meshData) flatNormals() [][3]float32 {
	normals := make([][3]float32, len(m.positions))
	for i := 0; i+2 < len(m.indices); i += 3 {
		v0, v1, v2 := m.indices[i], m.indices[i+1], m.indices[i+2]
		p0, p1, p2 := m.positions[v0], m.positions[v1], m.positions[v2]
		vec1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		vec2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		cross := [3]float32{
			vec1[1]*vec2[2] - vec1[2]*vec2[1],
			vec1[2]*vec2[0] - vec1[0]*vec2[2],
			vec1[0]*vec2[1] - vec1[1]*vec2[0],
		}
		length := float32(math.Sqrt(float64(cross[0]*cross[0] + cross[1]*cross[1] + cross[2]*cross[2])))
		if length > 0 {
			cross[0] /= length
			cross[1] /= length
			cross[2] /= length
		}
		normals[v0] = cross
		normals[v1] = cross
		normals[v2] = cross
	}
	return normals
}
