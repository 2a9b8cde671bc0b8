package voxelize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goki.dev/mat32/v2"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/voxel"
)

var shellColor = palette.RGBA{R: 200, G: 40, B: 40, A: 255}

// quad splits four corners into two triangles with a shared winding.
func quad(a, b, c, d mat32.Vec3, col palette.RGBA) []Triangle {
	return []Triangle{
		{A: a, B: b, C: c, Color: col},
		{A: a, B: c, C: d, Color: col},
	}
}

// floorQuad is a 10x10 unit quad at y=0 facing down.
func floorQuad() []Triangle {
	return quad(
		mat32.V3(0, 0, 0), mat32.V3(10, 0, 0),
		mat32.V3(10, 0, 10), mat32.V3(0, 0, 10),
		shellColor)
}

// cubeShell is a closed 3x3x3 box with outward-facing quads.
func cubeShell() []Triangle {
	var tris []Triangle
	tris = append(tris, quad( // bottom, -y
		mat32.V3(0, 0, 0), mat32.V3(3, 0, 0), mat32.V3(3, 0, 3), mat32.V3(0, 0, 3), shellColor)...)
	tris = append(tris, quad( // top, +y
		mat32.V3(0, 3, 0), mat32.V3(0, 3, 3), mat32.V3(3, 3, 3), mat32.V3(3, 3, 0), shellColor)...)
	tris = append(tris, quad( // -x
		mat32.V3(0, 0, 0), mat32.V3(0, 0, 3), mat32.V3(0, 3, 3), mat32.V3(0, 3, 0), shellColor)...)
	tris = append(tris, quad( // +x
		mat32.V3(3, 0, 0), mat32.V3(3, 3, 0), mat32.V3(3, 3, 3), mat32.V3(3, 0, 3), shellColor)...)
	tris = append(tris, quad( // -z
		mat32.V3(0, 0, 0), mat32.V3(0, 3, 0), mat32.V3(3, 3, 0), mat32.V3(3, 0, 0), shellColor)...)
	tris = append(tris, quad( // +z
		mat32.V3(0, 0, 3), mat32.V3(3, 0, 3), mat32.V3(3, 3, 3), mat32.V3(0, 3, 3), shellColor)...)
	return tris
}

func TestAlignedQuadFillsEveryCell(t *testing.T) {
	vol, pal, err := Mesh(floorQuad(), Options{})
	require.NoError(t, err)

	assert.Equal(t, voxel.NewRegion(0, 0, 0, 9, 0, 9), vol.Region())
	assert.Equal(t, 100, vol.SolidCount())
	for x := int32(0); x < 10; x++ {
		for z := int32(0); z < 10; z++ {
			idx, solid := vol.Voxel(x, 0, z)
			require.True(t, solid, "cell %d,%d", x, z)
			assert.Equal(t, shellColor, pal.Color(idx), "the source color carries through unquantized")
		}
	}
}

func TestAlignedQuadFacingUpAtLowerBound(t *testing.T) {
	// an up-facing quad at y=0 fills the cells below the plane
	up := quad(
		mat32.V3(0, 0, 0), mat32.V3(0, 0, 10),
		mat32.V3(10, 0, 10), mat32.V3(10, 0, 0),
		shellColor)
	vol, _, err := Mesh(up, Options{})
	require.NoError(t, err)

	assert.Equal(t, voxel.NewRegion(0, -1, 0, 9, -1, 9), vol.Region())
	assert.Equal(t, 100, vol.SolidCount())
	_, solid := vol.Voxel(0, -1, 0)
	assert.True(t, solid)
}

func TestAxisAlignedClassification(t *testing.T) {
	assert.True(t, AxisAligned(floorQuad()))

	tilted := []Triangle{{
		A: mat32.V3(0, 0, 0), B: mat32.V3(4, 0, 0), C: mat32.V3(0, 3, 2),
		Color: shellColor,
	}}
	assert.False(t, AxisAligned(tilted))
	assert.False(t, AxisAligned(nil))
}

func TestGeneralMeshSampling(t *testing.T) {
	tilted := []Triangle{{
		A: mat32.V3(0, 0, 0), B: mat32.V3(4, 0, 0), C: mat32.V3(0, 3, 2),
		Color: shellColor,
	}}
	vol, pal, err := Mesh(tilted, Options{Workers: 2})
	require.NoError(t, err)

	assert.Greater(t, vol.SolidCount(), 0)
	idx, solid := vol.Voxel(0, 0, 0)
	require.True(t, solid, "the corner at the origin samples into its cell")
	assert.Equal(t, shellColor, pal.Color(idx))
}

func TestFillHollowClosesShell(t *testing.T) {
	vol, _, err := Mesh(cubeShell(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 26, vol.SolidCount(), "the shell leaves the center empty")
	_, solid := vol.Voxel(1, 1, 1)
	assert.False(t, solid)

	vol, pal, err := Mesh(cubeShell(), Options{FillHollow: true})
	require.NoError(t, err)
	assert.Equal(t, 27, vol.SolidCount())
	idx, solid := vol.Voxel(1, 1, 1)
	require.True(t, solid)
	assert.Equal(t, shellColor, pal.Color(idx), "interior cells borrow the shell color")
}

func TestEmptyMesh(t *testing.T) {
	_, _, err := Mesh(nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyMesh)
}

func TestSubdivideEmitsSubUnitTriangles(t *testing.T) {
	big := Triangle{
		A: mat32.V3(0, 0, 0), B: mat32.V3(8, 0, 0), C: mat32.V3(0, 8, 0),
		Color: shellColor,
	}
	count := 0
	subdivide(big, 0, func(micro Triangle) {
		count++
		lo, hi := micro.Bounds()
		assert.LessOrEqual(t, hi.X-lo.X, float32(1))
		assert.LessOrEqual(t, hi.Y-lo.Y, float32(1))
		assert.LessOrEqual(t, hi.Z-lo.Z, float32(1))
	})
	assert.Greater(t, count, 1)
}

func TestCellSamplesAverageWeights(t *testing.T) {
	var cs cellSamples
	cs.add(palette.RGBA{R: 100, A: 255}, 3)
	cs.add(palette.RGBA{R: 200, A: 255}, 1)
	avg := cs.average()
	assert.Equal(t, uint8(125), avg.R)
	assert.Equal(t, uint8(255), avg.A)

	// a repeated color accumulates weight instead of a new slot
	cs.add(palette.RGBA{R: 100, A: 255}, 5)
	assert.Equal(t, 2, cs.n)
}
