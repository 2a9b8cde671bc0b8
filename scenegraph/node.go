package scenegraph

import (
	"sort"

	"goki.dev/mat32/v2"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/voxel"
)

// NodeType identifies what a node contributes to the document.
type NodeType uint8

const (
	NodeTypeRoot NodeType = iota
	NodeTypeModel
	NodeTypeGroup
	NodeTypeCamera
	NodeTypeUnknown
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeRoot:
		return "root"
	case NodeTypeModel:
		return "model"
	case NodeTypeGroup:
		return "group"
	case NodeTypeCamera:
		return "camera"
	}
	return "unknown"
}

// UnattachedID marks a node not yet emplaced into a graph.
const UnattachedID int32 = -1

// Node is one entry of the scene graph. A node optionally owns a Volume
// exclusively; ownership moves with ReleaseVolume/SetVolume.
type Node struct {
	id        int32
	parent    int32
	typ       NodeType
	name      string
	visible   bool
	locked    bool
	children  []int32
	volume    *voxel.Volume
	palette   *palette.Palette
	keyFrames []KeyFrame
	props     map[string]string
}

// NewNode returns an unattached node with a single identity keyframe.
func NewNode(typ NodeType) *Node {
	return &Node{
		id:      UnattachedID,
		parent:  UnattachedID,
		typ:     typ,
		visible: true,
		keyFrames: []KeyFrame{{
			Frame:         0,
			Interpolation: InterpolationLinear,
			Transform:     NewTransform(),
		}},
	}
}

func (n *Node) ID() int32          { return n.id }
func (n *Node) Parent() int32      { return n.parent }
func (n *Node) Type() NodeType     { return n.typ }
func (n *Node) Name() string       { return n.name }
func (n *Node) SetName(s string)   { n.name = s }
func (n *Node) Visible() bool      { return n.visible }
func (n *Node) SetVisible(v bool)  { n.visible = v }
func (n *Node) Locked() bool       { return n.locked }
func (n *Node) SetLocked(v bool)   { n.locked = v }
func (n *Node) Children() []int32  { return n.children }

// Volume returns a borrowed view of the owned volume; the node keeps
// ownership.
func (n *Node) Volume() *voxel.Volume { return n.volume }

// SetVolume transfers ownership of v to the node, dropping any previously
// owned volume.
func (n *Node) SetVolume(v *voxel.Volume) { n.volume = v }

// ReleaseVolume moves the owned volume out of the node.
func (n *Node) ReleaseVolume() *voxel.Volume {
	v := n.volume
	n.volume = nil
	return v
}

// Palette returns the node's palette override, or nil.
func (n *Node) Palette() *palette.Palette { return n.palette }

func (n *Node) SetPalette(p *palette.Palette) { n.palette = p }

func (n *Node) Property(key string) (string, bool) {
	v, ok := n.props[key]
	return v, ok
}

func (n *Node) SetProperty(key, value string) {
	if n.props == nil {
		n.props = make(map[string]string)
	}
	n.props[key] = value
}

// Properties returns the property keys in sorted order.
func (n *Node) Properties() []string {
	keys := make([]string, 0, len(n.props))
	for k := range n.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (n *Node) KeyFrames() []KeyFrame { return n.keyFrames }

// KeyFrame returns the keyframe stored exactly at frame, or nil.
func (n *Node) KeyFrame(frame int32) *KeyFrame {
	for i := range n.keyFrames {
		if n.keyFrames[i].Frame == frame {
			return &n.keyFrames[i]
		}
	}
	return nil
}

// AddKeyFrame inserts a keyframe at frame, keeping the sequence sorted.
// Adding at an occupied frame returns the existing keyframe.
func (n *Node) AddKeyFrame(frame int32) *KeyFrame {
	if kf := n.KeyFrame(frame); kf != nil {
		return kf
	}
	kf := KeyFrame{Frame: frame, Interpolation: InterpolationLinear, Transform: NewTransform()}
	n.keyFrames = append(n.keyFrames, kf)
	sort.Slice(n.keyFrames, func(i, j int) bool {
		return n.keyFrames[i].Frame < n.keyFrames[j].Frame
	})
	return n.KeyFrame(frame)
}

// TransformAtFrame samples the keyframe sequence at frame, blending between
// the surrounding keyframes with the leading keyframe's interpolation kind.
func (n *Node) TransformAtFrame(frame int32) Transform {
	if len(n.keyFrames) == 0 {
		return NewTransform()
	}
	prev := 0
	for i := range n.keyFrames {
		if n.keyFrames[i].Frame > frame {
			break
		}
		prev = i
	}
	a := n.keyFrames[prev]
	if prev+1 >= len(n.keyFrames) || a.Frame >= frame {
		return a.Transform
	}
	b := n.keyFrames[prev+1]
	span := b.Frame - a.Frame
	if span <= 0 {
		return a.Transform
	}
	t := float32(frame-a.Frame) / float32(span)
	return blend(a.Transform, b.Transform, t, a.Interpolation)
}

// dims returns the voxel extents of the owned volume, used to anchor the
// normalized pivot.
func (n *Node) dims() mat32.Vec3 {
	if n.volume == nil {
		return mat32.Vec3{}
	}
	r := n.volume.Region()
	return mat32.V3(float32(r.Width()), float32(r.Height()), float32(r.Depth()))
}
