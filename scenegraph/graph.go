package scenegraph

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"goki.dev/mat32/v2"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/voxel"
)

// RootNodeID is fixed: the root always exists and always has id 0.
const RootNodeID int32 = 0

var (
	ErrParentMissing = errors.New("parent node does not exist")
	ErrNoModels      = errors.New("scene graph contains no model nodes")
)

// SceneGraph owns every node of a loaded document. Node ids are handed out
// monotonically, so a parent id is always strictly smaller than any of its
// children's ids — the invariant that keeps the tree acyclic.
type SceneGraph struct {
	nodes  map[int32]*Node
	nextID int32
	active int32
}

// New returns a graph holding a fresh root node.
func New() *SceneGraph {
	g := &SceneGraph{}
	g.Clear()
	return g
}

// Clear resets the graph to a single fresh root.
func (g *SceneGraph) Clear() {
	root := NewNode(NodeTypeRoot)
	root.id = RootNodeID
	root.name = "root"
	g.nodes = map[int32]*Node{RootNodeID: root}
	g.nextID = RootNodeID + 1
	g.active = RootNodeID
}

func (g *SceneGraph) Root() *Node { return g.nodes[RootNodeID] }

func (g *SceneGraph) Node(id int32) *Node { return g.nodes[id] }

func (g *SceneGraph) NodeCount() int { return len(g.nodes) }

// Emplace attaches an unattached node under the given parent and returns the
// assigned id. The new id is always greater than the parent's.
func (g *SceneGraph) Emplace(n *Node, parentID int32) (int32, error) {
	parent, ok := g.nodes[parentID]
	if !ok {
		return UnattachedID, fmt.Errorf("%w: %d", ErrParentMissing, parentID)
	}
	if n.typ == NodeTypeRoot {
		return UnattachedID, errors.New("only one root node is allowed")
	}
	id := g.nextID
	g.nextID++
	n.id = id
	n.parent = parentID
	g.nodes[id] = n
	parent.children = append(parent.children, id)
	return id, nil
}

// RemoveNode detaches a node. With recursive the whole subtree is removed;
// otherwise children are reparented to the removed node's parent. Removing
// the root resets the graph. Owned volumes are released.
func (g *SceneGraph) RemoveNode(id int32, recursive bool) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	if id == RootNodeID {
		g.Clear()
		return true
	}
	parent := g.nodes[n.parent]
	if recursive {
		for _, child := range append([]int32(nil), n.children...) {
			g.RemoveNode(child, true)
		}
	} else {
		for _, child := range n.children {
			c := g.nodes[child]
			c.parent = n.parent
			parent.children = append(parent.children, child)
		}
	}
	parent.children = removeID(parent.children, id)
	n.volume = nil
	delete(g.nodes, id)
	if g.active == id {
		g.active = RootNodeID
	}
	return true
}

func removeID(ids []int32, id int32) []int32 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// ForEach visits all nodes in ascending id order.
func (g *SceneGraph) ForEach(fn func(*Node)) {
	for _, id := range g.sortedIDs() {
		fn(g.nodes[id])
	}
}

func (g *SceneGraph) sortedIDs() []int32 {
	ids := make([]int32, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ModelNodes returns all model nodes in ascending id order.
func (g *SceneGraph) ModelNodes() []*Node {
	var out []*Node
	g.ForEach(func(n *Node) {
		if n.typ == NodeTypeModel {
			out = append(out, n)
		}
	})
	return out
}

func (g *SceneGraph) FirstModelNode() *Node {
	models := g.ModelNodes()
	if len(models) == 0 {
		return nil
	}
	return models[0]
}

// ActiveNode returns the current active node, defaulting to the first model
// node when none was set explicitly.
func (g *SceneGraph) ActiveNode() *Node {
	if g.active != RootNodeID {
		if n, ok := g.nodes[g.active]; ok {
			return n
		}
	}
	if m := g.FirstModelNode(); m != nil {
		return m
	}
	return g.Root()
}

func (g *SceneGraph) SetActiveNode(id int32) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	g.active = id
	return true
}

// UpdateTransforms recomputes every keyframe's world transform top-down from
// the root. It must run after structural or transform edits and before any
// consumer reads world-space positions.
func (g *SceneGraph) UpdateTransforms() {
	g.updateNode(g.Root(), nil)
}

func (g *SceneGraph) updateNode(n *Node, parent *Node) {
	for i := range n.keyFrames {
		kf := &n.keyFrames[i]
		if parent == nil {
			kf.Transform.Update(nil)
			continue
		}
		pt := parent.TransformAtFrame(kf.Frame)
		kf.Transform.Update(&pt)
	}
	for _, child := range n.children {
		if c, ok := g.nodes[child]; ok {
			g.updateNode(c, n)
		}
	}
}

// Validate checks the structural invariants: a root at id 0, every non-root
// parent present with a strictly smaller id, and consistent child lists.
func (g *SceneGraph) Validate() error {
	root, ok := g.nodes[RootNodeID]
	if !ok || root.typ != NodeTypeRoot {
		return errors.New("missing root node at id 0")
	}
	for id, n := range g.nodes {
		if id == RootNodeID {
			continue
		}
		if n.typ == NodeTypeRoot {
			return fmt.Errorf("extra root node %d", id)
		}
		parent, ok := g.nodes[n.parent]
		if !ok {
			return fmt.Errorf("node %d references missing parent %d", id, n.parent)
		}
		if n.parent >= id {
			return fmt.Errorf("node %d has parent %d with a larger or equal id", id, n.parent)
		}
		if !containsID(parent.children, id) {
			return fmt.Errorf("node %d missing from parent %d child list", id, n.parent)
		}
	}
	for id, n := range g.nodes {
		for _, child := range n.children {
			c, ok := g.nodes[child]
			if !ok {
				return fmt.Errorf("node %d lists missing child %d", id, child)
			}
			if c.parent != id {
				return fmt.Errorf("child %d does not point back at parent %d", child, id)
			}
		}
	}
	return nil
}

func containsID(ids []int32, id int32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// FixErrors performs a best-effort structural repair: dangling child ids are
// dropped, orphaned nodes are reattached to the root and child lists are
// rebuilt from the parent fields.
func (g *SceneGraph) FixErrors() {
	root := g.nodes[RootNodeID]
	if root == nil {
		root = NewNode(NodeTypeRoot)
		root.id = RootNodeID
		root.name = "root"
		g.nodes[RootNodeID] = root
	}
	for id, n := range g.nodes {
		if id == RootNodeID {
			n.parent = UnattachedID
			continue
		}
		if _, ok := g.nodes[n.parent]; !ok || n.parent >= id {
			slog.Warn("reattaching orphaned node to root", "node", id, "parent", n.parent)
			n.parent = RootNodeID
		}
	}
	for _, n := range g.nodes {
		n.children = n.children[:0]
	}
	for _, id := range g.sortedIDs() {
		if id == RootNodeID {
			continue
		}
		parent := g.nodes[g.nodes[id].parent]
		parent.children = append(parent.children, id)
	}
}

// Clone returns a deep copy of the graph preserving node ids. Volumes and
// palettes are copied, so mutating the clone never touches the source.
func (g *SceneGraph) Clone() *SceneGraph {
	c := &SceneGraph{
		nodes:  make(map[int32]*Node, len(g.nodes)),
		nextID: g.nextID,
		active: g.active,
	}
	for id, n := range g.nodes {
		cn := &Node{
			id:        n.id,
			parent:    n.parent,
			typ:       n.typ,
			name:      n.name,
			visible:   n.visible,
			locked:    n.locked,
			children:  append([]int32(nil), n.children...),
			keyFrames: append([]KeyFrame(nil), n.keyFrames...),
		}
		if n.volume != nil {
			cn.volume = n.volume.Copy()
		}
		if n.palette != nil {
			cn.palette = n.palette.Copy()
		}
		if n.props != nil {
			cn.props = make(map[string]string, len(n.props))
			for k, v := range n.props {
				cn.props[k] = v
			}
		}
		c.nodes[id] = cn
	}
	return c
}

// WorldRegion returns the node's volume region transformed by its keyframe-0
// world transform, accumulated over the eight region corners.
func (g *SceneGraph) WorldRegion(n *Node) voxel.Region {
	if n.volume == nil {
		return voxel.InvalidRegion()
	}
	r := n.volume.Region()
	tr := n.TransformAtFrame(0)
	dims := n.dims()
	out := voxel.InvalidRegion()
	for i := 0; i < 8; i++ {
		corner := mat32.V3(
			float32(pick(r.Mins[0], r.Maxs[0], i&1 != 0)),
			float32(pick(r.Mins[1], r.Maxs[1], i&2 != 0)),
			float32(pick(r.Mins[2], r.Maxs[2], i&4 != 0)),
		)
		p := tr.Apply(corner, dims)
		out = out.Accumulate(floor32(p.X), floor32(p.Y), floor32(p.Z))
	}
	return out
}

func pick(lo, hi int32, takeHi bool) int32 {
	if takeHi {
		return hi
	}
	return lo
}

func floor32(v float32) int32 {
	return int32(math.Floor(float64(v) + 0.5))
}

// MergeModels folds every model node into one volume. The output region is
// the union of all world-transformed model regions; on overlap the later
// node in id order wins. The first encountered palette becomes the merged
// palette; differing palettes trigger a fidelity warning.
func (g *SceneGraph) MergeModels() (*voxel.Volume, *palette.Palette, error) {
	models := g.ModelNodes()
	if len(models) == 0 {
		return nil, nil, ErrNoModels
	}
	g.UpdateTransforms()

	region := voxel.InvalidRegion()
	for _, n := range models {
		region = region.AccumulateRegion(g.WorldRegion(n))
	}
	if !region.IsValid() {
		return nil, nil, voxel.ErrRegionInvalid
	}
	merged, err := voxel.NewVolume(region)
	if err != nil {
		return nil, nil, err
	}

	var pal *palette.Palette
	for _, n := range models {
		if n.palette != nil {
			if pal == nil {
				pal = n.palette.Copy()
			} else if pal.Hash() != n.palette.Hash() {
				slog.Warn("merging nodes with differing palettes loses fidelity",
					"node", n.id, "name", n.name)
			}
		}
		if n.volume == nil {
			continue
		}
		tr := n.TransformAtFrame(0)
		dims := n.dims()
		n.volume.ForEachSolid(func(x, y, z int32, color uint8) {
			p := tr.Apply(mat32.V3(float32(x), float32(y), float32(z)), dims)
			merged.SetVoxel(floor32(p.X), floor32(p.Y), floor32(p.Z), color)
		})
	}
	if pal == nil {
		pal = palette.Default()
	}
	return merged, pal, nil
}
