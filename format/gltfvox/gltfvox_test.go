package gltfvox

import (
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxel"
)

// pure channel values survive the float round trip through vertex colors
// exactly.
var red = palette.RGBA{R: 255, A: 255}

func redPalette() *palette.Palette {
	p := palette.New()
	p.AddColor(palette.RGBA{}, false)
	p.AddColor(red, false)
	return p
}

func singleVoxelScene(t *testing.T) *scenegraph.SceneGraph {
	t.Helper()
	g := scenegraph.New()
	vol, err := voxel.NewVolume(voxel.CubeRegion(0, 0))
	require.NoError(t, err)
	vol.SetVoxel(0, 0, 0, 1)
	n := scenegraph.NewNode(scenegraph.NodeTypeModel)
	n.SetName("model")
	n.SetVolume(vol)
	n.SetPalette(redPalette())
	_, err = g.Emplace(n, scenegraph.RootNodeID)
	require.NoError(t, err)
	return g
}

func TestGreedyMeshSingleVoxel(t *testing.T) {
	g := singleVoxelScene(t)
	m := greedyMesh(g.FirstModelNode().Volume(), g.FirstModelNode().Palette())

	assert.Len(t, m.positions, 24, "six quads, no shared vertices")
	assert.Len(t, m.indices, 36)
	assert.False(t, m.hasAlpha)

	normals := m.flatNormals()
	require.Len(t, normals, 24)
	var sum [3]float32
	for _, n := range normals {
		lenSq := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]
		assert.InDelta(t, 1, lenSq, 1e-5, "face normals are unit length")
		sum[0] += n[0]
		sum[1] += n[1]
		sum[2] += n[2]
	}
	assert.Equal(t, [3]float32{}, sum, "a closed cube's normals cancel out")
}

func TestGreedyMeshMergesSlab(t *testing.T) {
	vol, err := voxel.NewVolume(voxel.NewRegion(0, 0, 0, 1, 1, 0))
	require.NoError(t, err)
	for x := int32(0); x < 2; x++ {
		for y := int32(0); y < 2; y++ {
			vol.SetVoxel(x, y, 0, 1)
		}
	}
	m := greedyMesh(vol, redPalette())
	assert.Len(t, m.positions, 24, "same-colored faces merge into one quad per side")
	assert.Len(t, m.indices, 36)
}

func TestGreedyMeshSplitsOnColor(t *testing.T) {
	pal := redPalette()
	pal.AddColor(palette.RGBA{G: 255, A: 255}, false)

	vol, err := voxel.NewVolume(voxel.NewRegion(0, 0, 0, 1, 0, 0))
	require.NoError(t, err)
	vol.SetVoxel(0, 0, 0, 1)
	vol.SetVoxel(1, 0, 0, 2)

	m := greedyMesh(vol, pal)
	// two quads on each of the four long sides, one per end cap
	assert.Len(t, m.positions, 40)
	assert.Len(t, m.indices, 60)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := singleVoxelScene(t)
	a := format.NewMemoryArchive()
	require.NoError(t, format.Save(g, "model.glb", a, nil))

	loaded := scenegraph.New()
	require.NoError(t, format.Load("model.glb", a, loaded, nil))

	model := loaded.FirstModelNode()
	require.NotNil(t, model)
	assert.Equal(t, "model", model.Name())

	vol := model.Volume()
	require.NotNil(t, vol)
	assert.Equal(t, 1, vol.SolidCount())
	idx, solid := vol.Voxel(0, 0, 0)
	require.True(t, solid)
	assert.Equal(t, red, model.Palette().Color(idx))
}

func TestLoadRejectsGarbage(t *testing.T) {
	a := format.NewMemoryArchive()
	require.NoError(t, format.WriteAll(a, "junk.glb", []byte("glTFgarbage")))

	g := scenegraph.New()
	err := format.Load("junk.glb", a, g, nil)
	assert.ErrorIs(t, err, format.ErrMalformed)
}

func TestSaveWithoutModels(t *testing.T) {
	a := format.NewMemoryArchive()
	err := format.Save(scenegraph.New(), "empty.glb", a, nil)
	assert.ErrorIs(t, err, scenegraph.ErrNoModels)
}

func TestNodeMatrixTranslation(t *testing.T) {
	n := &gltf.Node{
		Matrix:      gltf.DefaultMatrix,
		Rotation:    [4]float64{0, 0, 0, 1},
		Scale:       [3]float64{1, 1, 1},
		Translation: [3]float64{3, -2, 5},
	}
	m := nodeMatrix(n)
	p := m.apply([3]float32{1, 1, 1})
	assert.InDelta(t, 4, p.X, 1e-6)
	assert.InDelta(t, -1, p.Y, 1e-6)
	assert.InDelta(t, 6, p.Z, 1e-6)
}

func TestAffineCompose(t *testing.T) {
	translate := affineIdentity
	translate[12], translate[13], translate[14] = 1, 2, 3
	scale := affineIdentity
	scale[0], scale[5], scale[10] = 2, 2, 2

	// translate after scaling
	p := translate.mul(scale).apply([3]float32{1, 1, 1})
	assert.InDelta(t, 3, p.X, 1e-6)
	assert.InDelta(t, 4, p.Y, 1e-6)
	assert.InDelta(t, 5, p.Z, 1e-6)
}
