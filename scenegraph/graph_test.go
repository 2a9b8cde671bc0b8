package scenegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goki.dev/mat32/v2"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/voxel"
)

func newModel(t *testing.T, region voxel.Region) *Node {
	t.Helper()
	vol, err := voxel.NewVolume(region)
	require.NoError(t, err)
	n := NewNode(NodeTypeModel)
	n.SetVolume(vol)
	return n
}

func TestEmplaceAssignsIncreasingIDs(t *testing.T) {
	g := New()
	require.NotNil(t, g.Root())
	assert.Equal(t, RootNodeID, g.Root().ID())

	group := NewNode(NodeTypeGroup)
	groupID, err := g.Emplace(group, RootNodeID)
	require.NoError(t, err)
	assert.Greater(t, groupID, RootNodeID)

	model := newModel(t, voxel.CubeRegion(0, 1))
	modelID, err := g.Emplace(model, groupID)
	require.NoError(t, err)
	assert.Greater(t, modelID, groupID, "child id always exceeds parent id")

	assert.NoError(t, g.Validate())
}

func TestEmplaceRejects(t *testing.T) {
	g := New()
	_, err := g.Emplace(NewNode(NodeTypeGroup), 99)
	assert.ErrorIs(t, err, ErrParentMissing)

	_, err = g.Emplace(NewNode(NodeTypeRoot), RootNodeID)
	assert.Error(t, err)
}

func TestRemoveNodeRecursive(t *testing.T) {
	g := New()
	groupID, _ := g.Emplace(NewNode(NodeTypeGroup), RootNodeID)
	childID, _ := g.Emplace(newModel(t, voxel.CubeRegion(0, 0)), groupID)

	require.True(t, g.RemoveNode(groupID, true))
	assert.Nil(t, g.Node(groupID))
	assert.Nil(t, g.Node(childID))
	assert.NoError(t, g.Validate())
}

func TestRemoveNodeReparents(t *testing.T) {
	g := New()
	groupID, _ := g.Emplace(NewNode(NodeTypeGroup), RootNodeID)
	childID, _ := g.Emplace(newModel(t, voxel.CubeRegion(0, 0)), groupID)

	require.True(t, g.RemoveNode(groupID, false))
	child := g.Node(childID)
	require.NotNil(t, child)
	assert.Equal(t, RootNodeID, child.Parent())
	assert.NoError(t, g.Validate())
}

func TestRemoveRootResetsGraph(t *testing.T) {
	g := New()
	g.Emplace(NewNode(NodeTypeGroup), RootNodeID)
	g.Emplace(newModel(t, voxel.CubeRegion(0, 0)), RootNodeID)
	require.Equal(t, 3, g.NodeCount())

	require.True(t, g.RemoveNode(RootNodeID, false))
	assert.Equal(t, 1, g.NodeCount())
	root := g.Root()
	require.NotNil(t, root)
	assert.Equal(t, NodeTypeRoot, root.Type())
	assert.Empty(t, root.Children())
	assert.NoError(t, g.Validate())
}

func TestValidateCatchesCorruption(t *testing.T) {
	g := New()
	id, _ := g.Emplace(NewNode(NodeTypeGroup), RootNodeID)

	// simulate a codec writing a dangling parent reference
	g.Node(id).parent = 42
	assert.Error(t, g.Validate())

	g.FixErrors()
	assert.NoError(t, g.Validate())
	assert.Equal(t, RootNodeID, g.Node(id).Parent(), "orphan reattached to root")
}

func TestActiveNodeFallsBackToFirstModel(t *testing.T) {
	g := New()
	assert.Equal(t, g.Root(), g.ActiveNode(), "empty graph falls back to root")

	g.Emplace(NewNode(NodeTypeGroup), RootNodeID)
	modelID, _ := g.Emplace(newModel(t, voxel.CubeRegion(0, 0)), RootNodeID)
	assert.Equal(t, modelID, g.ActiveNode().ID())

	require.True(t, g.SetActiveNode(RootNodeID+1))
	assert.Equal(t, RootNodeID+1, g.ActiveNode().ID())
	assert.False(t, g.SetActiveNode(99))
}

func TestCloneIsIndependent(t *testing.T) {
	g := New()
	model := newModel(t, voxel.CubeRegion(0, 1))
	model.Volume().SetVoxel(0, 0, 0, 5)
	pal := palette.New()
	pal.AddColor(palette.RGBA{R: 1, A: 255}, false)
	model.SetPalette(pal)
	id, _ := g.Emplace(model, RootNodeID)

	c := g.Clone()
	c.Node(id).Volume().SetVoxel(0, 0, 0, 9)
	c.Node(id).Palette().SetColor(0, palette.RGBA{R: 200, A: 255})

	idx, _ := g.Node(id).Volume().Voxel(0, 0, 0)
	assert.Equal(t, uint8(5), idx)
	assert.Equal(t, palette.RGBA{R: 1, A: 255}, g.Node(id).Palette().Color(0))
	assert.NoError(t, c.Validate())
}

func TestVolumeOwnershipMoves(t *testing.T) {
	g := New()
	model := newModel(t, voxel.CubeRegion(0, 0))
	id, _ := g.Emplace(model, RootNodeID)

	vol := g.Node(id).ReleaseVolume()
	require.NotNil(t, vol)
	assert.Nil(t, g.Node(id).Volume())

	other := NewNode(NodeTypeModel)
	other.SetVolume(vol)
	assert.Equal(t, vol, other.Volume())
}

func TestMergeModelsUnionAndLaterWins(t *testing.T) {
	g := New()

	a := newModel(t, voxel.NewRegion(0, 0, 0, 1, 0, 0))
	a.Volume().SetVoxel(0, 0, 0, 1)
	a.Volume().SetVoxel(1, 0, 0, 1)
	pal := palette.New()
	pal.AddColor(palette.RGBA{}, false)
	pal.AddColor(palette.RGBA{R: 255, A: 255}, false)
	pal.AddColor(palette.RGBA{G: 255, A: 255}, false)
	a.SetPalette(pal)
	g.Emplace(a, RootNodeID)

	b := newModel(t, voxel.NewRegion(1, 0, 0, 3, 0, 0))
	b.Volume().SetVoxel(1, 0, 0, 2) // overlaps a at (1,0,0)
	b.Volume().SetVoxel(3, 0, 0, 2)
	b.SetPalette(pal.Copy())
	g.Emplace(b, RootNodeID)

	merged, mergedPal, err := g.MergeModels()
	require.NoError(t, err)
	require.NotNil(t, mergedPal)

	assert.Equal(t, voxel.NewRegion(0, 0, 0, 3, 0, 0), merged.Region(),
		"merged region is the union of the world regions")

	idx, solid := merged.Voxel(1, 0, 0)
	require.True(t, solid)
	assert.Equal(t, uint8(2), idx, "the later node wins the overlap")

	idx, _ = merged.Voxel(0, 0, 0)
	assert.Equal(t, uint8(1), idx)
	assert.Equal(t, 3, merged.SolidCount())
}

func TestMergeModelsEmptyGraph(t *testing.T) {
	g := New()
	_, _, err := g.MergeModels()
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestMergeModelsAppliesTranslation(t *testing.T) {
	g := New()
	n := newModel(t, voxel.CubeRegion(0, 0))
	n.Volume().SetVoxel(0, 0, 0, 1)
	kf := n.KeyFrame(0)
	require.NotNil(t, kf)
	kf.Transform.SetLocalTranslation(mat32.V3(10, 0, 0))
	g.Emplace(n, RootNodeID)

	merged, _, err := g.MergeModels()
	require.NoError(t, err)
	_, solid := merged.Voxel(10, 0, 0)
	assert.True(t, solid, "voxel lands at its world position")
}
