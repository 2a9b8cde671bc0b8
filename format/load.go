package format

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxel"
)

// Load resolves a codec for path and parses the stream into g. After the
// codec ran, transforms are updated and the document is validated; a failed
// validation triggers one structural repair pass before giving up.
func Load(path string, a Archive, g *scenegraph.SceneGraph, lc *LoadContext) error {
	f, err := resolve(path, a)
	if err != nil {
		return err
	}
	if err := f.LoadGroups(path, a, g, lc); err != nil {
		return fmt.Errorf("%s: %w", f.Name(), err)
	}
	g.UpdateTransforms()
	if err := g.Validate(); err != nil {
		slog.Warn("loaded scene graph failed validation, repairing", "error", err)
		g.FixErrors()
		if err := g.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
	}
	return nil
}

// LoadPalette performs cheap palette-only introspection without building a
// scene graph. It returns the number of colors found.
func LoadPalette(path string, a Archive, p *palette.Palette, lc *LoadContext) (int, error) {
	f, err := resolve(path, a)
	if err != nil {
		return 0, err
	}
	return f.LoadPalette(path, a, p, lc)
}

// LoadScreenshot extracts the embedded thumbnail from formats that carry one.
func LoadScreenshot(path string, a Archive, lc *LoadContext) (image.Image, error) {
	f, err := resolve(path, a)
	if err != nil {
		return nil, err
	}
	return f.LoadScreenshot(path, a, lc)
}

// Save serializes g through the codec matching path, applying the codec's
// policy first: merge for single-volume formats, shared-palette remapping for
// palette formats, and chunk splitting when a size ceiling applies.
func Save(g *scenegraph.SceneGraph, path string, a Archive, sc *SaveContext) error {
	f := ByExtension(path)
	if f == nil {
		return ErrUnknownFormat
	}
	g.UpdateTransforms()

	work := g
	if f.SingleVolume() && len(g.ModelNodes()) > 1 {
		work = mergeForSave(g)
	}
	if pc, ok := f.(PaletteCarrier); ok && pc.OnlyOnePalette() {
		work = remapToSharedPalette(work, pc.EmptyIndex())
	}
	if max := f.MaxVolumeSize(); max != [3]int32{} {
		work = splitOversized(work, max)
	}
	if err := f.SaveGroups(work, path, a, sc); err != nil {
		return fmt.Errorf("%s: %w", f.Name(), err)
	}
	return nil
}

// mergeForSave folds all model nodes of g into a single-model clone.
func mergeForSave(g *scenegraph.SceneGraph) *scenegraph.SceneGraph {
	merged, pal, err := g.MergeModels()
	if err != nil {
		return g
	}
	out := scenegraph.New()
	n := scenegraph.NewNode(scenegraph.NodeTypeModel)
	n.SetName("merged")
	n.SetVolume(merged)
	n.SetPalette(pal)
	_, _ = out.Emplace(n, scenegraph.RootNodeID)
	out.UpdateTransforms()
	return out
}

// remapToSharedPalette folds every node palette into one table and rewrites
// voxel indices accordingly. emptyIndex, when >= 0, is kept clear for the
// format's reserved air slot.
func remapToSharedPalette(g *scenegraph.SceneGraph, emptyIndex int) *scenegraph.SceneGraph {
	models := g.ModelNodes()
	if len(models) == 0 {
		return g
	}
	// identical palettes by content hash need no work
	shared := true
	var hash uint64
	for i, n := range models {
		if n.Palette() == nil {
			shared = false
			break
		}
		if i == 0 {
			hash = n.Palette().Hash()
		} else if n.Palette().Hash() != hash {
			shared = false
			break
		}
	}
	if shared {
		return g
	}

	out := g.Clone()
	merged := palette.New()
	if emptyIndex >= 0 {
		merged.SetColor(uint8(emptyIndex), palette.RGBA{})
	}
	for _, n := range out.ModelNodes() {
		src := n.Palette()
		if src == nil {
			src = palette.Default()
		}
		var table [256]uint8
		for i := 0; i < src.ColorCount(); i++ {
			if i == emptyIndex {
				table[i] = uint8(emptyIndex)
				continue
			}
			idx, added := merged.AddColor(src.Color(uint8(i)), true)
			if !added && int(idx) == emptyIndex {
				// never map a solid color onto the reserved slot
				best := merged.ClosestMatch(src.Color(uint8(i)), emptyIndex)
				if best >= 0 {
					idx = uint8(best)
				}
			}
			table[i] = idx
		}
		if n.Volume() != nil {
			n.Volume().RemapIndices(table)
		}
		n.SetPalette(merged)
	}
	return out
}

// splitOversized replaces every model volume exceeding the per-axis ceiling
// with child model nodes holding chunk-sized pieces.
func splitOversized(g *scenegraph.SceneGraph, max [3]int32) *scenegraph.SceneGraph {
	needs := false
	for _, n := range g.ModelNodes() {
		if n.Volume() != nil && exceeds(n.Volume().Region(), max) {
			needs = true
			break
		}
	}
	if !needs {
		return g
	}
	out := g.Clone()
	for _, n := range out.ModelNodes() {
		v := n.Volume()
		if v == nil || !exceeds(v.Region(), max) {
			continue
		}
		pieces := SplitVolume(v, max)
		slog.Info("splitting oversized volume", "node", n.Name(), "pieces", len(pieces))
		n.ReleaseVolume()
		for i, piece := range pieces {
			child := scenegraph.NewNode(scenegraph.NodeTypeModel)
			child.SetName(fmt.Sprintf("%s-%d", n.Name(), i))
			child.SetVolume(piece)
			child.SetPalette(n.Palette())
			_, _ = out.Emplace(child, n.ID())
		}
	}
	out.UpdateTransforms()
	return out
}

func exceeds(r voxel.Region, max [3]int32) bool {
	return (max[0] > 0 && r.Width() > max[0]) ||
		(max[1] > 0 && r.Height() > max[1]) ||
		(max[2] > 0 && r.Depth() > max[2])
}

// SplitVolume cuts a volume into region-aligned pieces no larger than max on
// any axis. Pieces keep absolute coordinates; empty pieces are dropped.
func SplitVolume(v *voxel.Volume, max [3]int32) []*voxel.Volume {
	r := v.Region()
	step := max
	for i := range step {
		if step[i] <= 0 {
			step[i] = 1<<31 - 1
		}
	}
	var out []*voxel.Volume
	for z := r.Mins[2]; z <= r.Maxs[2]; z += step[2] {
		for y := r.Mins[1]; y <= r.Maxs[1]; y += step[1] {
			for x := r.Mins[0]; x <= r.Maxs[0]; x += step[0] {
				sub := voxel.NewRegion(x, y, z,
					min32(x+step[0]-1, r.Maxs[0]),
					min32(y+step[1]-1, r.Maxs[1]),
					min32(z+step[2]-1, r.Maxs[2]))
				piece, err := voxel.NewVolume(sub)
				if err != nil {
					continue
				}
				solid := false
				for zz := sub.Mins[2]; zz <= sub.Maxs[2]; zz++ {
					for yy := sub.Mins[1]; yy <= sub.Maxs[1]; yy++ {
						for xx := sub.Mins[0]; xx <= sub.Maxs[0]; xx++ {
							if c, ok := v.Voxel(xx, yy, zz); ok {
								piece.SetVoxel(xx, yy, zz, c)
								solid = true
							}
						}
					}
				}
				if solid {
					out = append(out, piece)
				}
			}
		}
	}
	return out
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
