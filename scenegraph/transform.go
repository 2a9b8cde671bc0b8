// Package scenegraph implements the hierarchical document model shared by
// all format codecs: an id-indexed tree of nodes owning voxel volumes,
// palettes and keyframed transforms.
package scenegraph

import (
	"goki.dev/mat32/v2"
)

// Interpolation governs blending between consecutive keyframes.
type Interpolation uint8

const (
	InterpolationInstant Interpolation = iota
	InterpolationLinear
	InterpolationQuadEaseIn
	InterpolationQuadEaseOut
	InterpolationQuadEaseInOut
	InterpolationCubicEaseIn
	InterpolationCubicEaseOut
	InterpolationCubicEaseInOut
	interpolationMax
)

func (i Interpolation) String() string {
	switch i {
	case InterpolationInstant:
		return "instant"
	case InterpolationLinear:
		return "linear"
	case InterpolationQuadEaseIn:
		return "quad-ease-in"
	case InterpolationQuadEaseOut:
		return "quad-ease-out"
	case InterpolationQuadEaseInOut:
		return "quad-ease-in-out"
	case InterpolationCubicEaseIn:
		return "cubic-ease-in"
	case InterpolationCubicEaseOut:
		return "cubic-ease-out"
	case InterpolationCubicEaseInOut:
		return "cubic-ease-in-out"
	}
	return "unknown"
}

// ease maps a linear 0..1 factor through the interpolation curve.
func (i Interpolation) ease(t float32) float32 {
	switch i {
	case InterpolationInstant:
		return 0
	case InterpolationQuadEaseIn:
		return t * t
	case InterpolationQuadEaseOut:
		return t * (2 - t)
	case InterpolationQuadEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	case InterpolationCubicEaseIn:
		return t * t * t
	case InterpolationCubicEaseOut:
		u := t - 1
		return u*u*u + 1
	case InterpolationCubicEaseInOut:
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := 2*t - 2
		return 0.5*u*u*u + 1
	}
	return t
}

// Transform carries the local and derived world translation, orientation and
// uniform scale of one keyframe, plus the normalized pivot (0..1 per axis)
// that anchors rotation and scaling.
type Transform struct {
	localTranslation mat32.Vec3
	localOrientation mat32.Quat
	localScale       float32
	worldTranslation mat32.Vec3
	worldOrientation mat32.Quat
	worldScale       float32
	pivot            mat32.Vec3
}

// NewTransform returns an identity transform.
func NewTransform() Transform {
	return Transform{
		localOrientation: mat32.NewQuat(0, 0, 0, 1),
		localScale:       1,
		worldOrientation: mat32.NewQuat(0, 0, 0, 1),
		worldScale:       1,
	}
}

func (t *Transform) LocalTranslation() mat32.Vec3  { return t.localTranslation }
func (t *Transform) LocalOrientation() mat32.Quat  { return t.localOrientation }
func (t *Transform) LocalScale() float32           { return t.localScale }
func (t *Transform) WorldTranslation() mat32.Vec3  { return t.worldTranslation }
func (t *Transform) WorldOrientation() mat32.Quat  { return t.worldOrientation }
func (t *Transform) WorldScale() float32           { return t.worldScale }
func (t *Transform) Pivot() mat32.Vec3             { return t.pivot }
func (t *Transform) SetPivot(p mat32.Vec3)         { t.pivot = p }
func (t *Transform) SetLocalTranslation(v mat32.Vec3) { t.localTranslation = v }
func (t *Transform) SetLocalOrientation(q mat32.Quat) { t.localOrientation = q }
func (t *Transform) SetLocalScale(s float32) {
	if s > 0 {
		t.localScale = s
	}
}

// Update recomputes the world transform from the parent's already-updated
// world transform. The root passes nil.
func (t *Transform) Update(parent *Transform) {
	if parent == nil {
		t.worldTranslation = t.localTranslation
		t.worldOrientation = t.localOrientation
		t.worldScale = t.localScale
		return
	}
	t.worldScale = parent.worldScale * t.localScale
	t.worldOrientation = parent.worldOrientation.Mul(t.localOrientation)
	offset := t.localTranslation.MulScalar(parent.worldScale).MulQuat(parent.worldOrientation)
	t.worldTranslation = parent.worldTranslation.Add(offset)
}

// Apply maps a model-space point into world space. dims are the voxel extents
// of the owning volume, scaling the normalized pivot into model units.
func (t *Transform) Apply(pos, dims mat32.Vec3) mat32.Vec3 {
	anchored := pos.Sub(t.pivot.Mul(dims))
	return anchored.MulScalar(t.worldScale).MulQuat(t.worldOrientation).Add(t.worldTranslation)
}

// blend interpolates between two keyframe transforms. Only local components
// blend; callers must run Update afterwards.
func blend(a, b Transform, t float32, kind Interpolation) Transform {
	f := kind.ease(clamp01(t))
	out := a
	out.localTranslation = a.localTranslation.Add(b.localTranslation.Sub(a.localTranslation).MulScalar(f))
	out.localScale = a.localScale + (b.localScale-a.localScale)*f
	q := a.localOrientation
	q.Slerp(b.localOrientation, f)
	out.localOrientation = q
	return out
}

func clamp01(t float32) float32 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// KeyFrame is a timestamped transform sample.
type KeyFrame struct {
	Frame         int32
	Interpolation Interpolation
	LongRotation  bool
	Transform     Transform
}
