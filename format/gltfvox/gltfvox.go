// Package gltfvox bridges triangulated glTF scenes and voxel volumes: loading
// rasterizes the mesh through the voxelizer, saving extracts a greedy surface
// mesh per model and writes it with vertex colors and flat normals.
package gltfvox

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"goki.dev/mat32/v2"
	"golang.org/x/sync/errgroup"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxelize"
)

type Format struct {
	format.MeshFormat
}

func New() *Format { return &Format{} }

func (*Format) Name() string         { return "gltf" }
func (*Format) Extensions() []string { return []string{"gltf", "glb"} }
func (*Format) Magics() [][]byte     { return [][]byte{[]byte("glTF")} }

func init() { format.Register(New()) }

func (f *Format) LoadGroups(p string, a format.Archive, g *scenegraph.SceneGraph, lc *format.LoadContext) error {
	data, err := format.ReadAll(a, p)
	if err != nil {
		return err
	}
	var doc gltf.Document
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", format.ErrMalformed, err)
	}

	tris, err := collectTriangles(&doc)
	if err != nil {
		return err
	}
	vol, pal, err := voxelize.Mesh(tris, voxelize.Options{
		Ctx:        lc.Context(),
		FillHollow: lc != nil && lc.FillHollow,
		Workers:    lc.WorkerCount(),
		Algorithm:  palette.ReductionOctree,
	})
	if err != nil {
		return err
	}

	n := scenegraph.NewNode(scenegraph.NodeTypeModel)
	name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	if name == "" {
		name = "mesh"
	}
	n.SetName(name)
	n.SetVolume(vol)
	n.SetPalette(pal)
	_, err = g.Emplace(n, scenegraph.RootNodeID)
	return err
}

func (f *Format) SaveGroups(g *scenegraph.SceneGraph, p string, a format.Archive, sc *format.SaveContext) error {
	var models []*scenegraph.Node
	for _, n := range g.ModelNodes() {
		if n.Volume() != nil {
			models = append(models, n)
		}
	}
	if len(models) == 0 {
		return scenegraph.ErrNoModels
	}

	// extract in parallel, fold back in node order
	meshes := make([]*meshData, len(models))
	eg, _ := errgroup.WithContext(sc.Context())
	eg.SetLimit(sc.WorkerCount())
	for i, n := range models {
		i, n := i, n
		eg.Go(func() error {
			pal := n.Palette()
			if pal == nil {
				pal = palette.Default()
			}
			meshes[i] = greedyMesh(n.Volume(), pal)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxconv"

	hasAlpha := false
	for _, m := range meshes {
		if m.hasAlpha {
			hasAlpha = true
		}
	}
	pbr := &gltf.PBRMetallicRoughness{
		BaseColorFactor: &[4]float64{1, 1, 1, 1},
		MetallicFactor:  gltf.Float(0),
		RoughnessFactor: gltf.Float(1),
	}
	material := &gltf.Material{PBRMetallicRoughness: pbr}
	if hasAlpha {
		material.AlphaMode = gltf.AlphaBlend
	} else {
		material.AlphaMode = gltf.AlphaOpaque
	}
	doc.Materials = []*gltf.Material{material}

	for i, m := range meshes {
		posAccessor := modeler.WritePosition(doc, m.positions)
		normalAccessor := modeler.WriteNormal(doc, m.flatNormals())
		colorAccessor := modeler.WriteColor(doc, m.colors)
		indicesAccessor := modeler.WriteIndices(doc, m.indices)
		prim := &gltf.Primitive{
			Attributes: map[string]uint32{
				gltf.POSITION: uint32(posAccessor),
				gltf.NORMAL:   uint32(normalAccessor),
				gltf.COLOR_0:  uint32(colorAccessor),
			},
			Indices:  gltf.Index(uint32(indicesAccessor)),
			Material: gltf.Index(0),
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name:       models[i].Name(),
			Primitives: []*gltf.Primitive{prim},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: models[i].Name(),
			Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	w, err := a.WriteStream(p)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = strings.EqualFold(filepath.Ext(p), ".glb")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return w.Close()
}

// affine is a column-major 4×4 transform, the glTF matrix layout.
type affine [16]float32

var affineIdentity = affine{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func (a affine) mul(b affine) affine {
	var c affine
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			c[col*4+row] = sum
		}
	}
	return c
}

func (a affine) apply(p [3]float32) mat32.Vec3 {
	return mat32.V3(
		a[0]*p[0]+a[4]*p[1]+a[8]*p[2]+a[12],
		a[1]*p[0]+a[5]*p[1]+a[9]*p[2]+a[13],
		a[2]*p[0]+a[6]*p[1]+a[10]*p[2]+a[14])
}

// collectTriangles walks the default scene and flattens every triangle
// primitive into world space.
func collectTriangles(doc *gltf.Document) ([]voxelize.Triangle, error) {
	var tris []voxelize.Triangle
	var walk func(idx uint32, parent affine) error
	walk = func(idx uint32, parent affine) error {
		if int(idx) >= len(doc.Nodes) {
			return fmt.Errorf("%w: node index %d", format.ErrMalformed, idx)
		}
		node := doc.Nodes[idx]
		world := parent.mul(nodeMatrix(node))
		if node.Mesh != nil {
			if int(*node.Mesh) >= len(doc.Meshes) {
				return fmt.Errorf("%w: mesh index %d", format.ErrMalformed, *node.Mesh)
			}
			for _, prim := range doc.Meshes[*node.Mesh].Primitives {
				pt, err := primitiveTriangles(doc, prim, world)
				if err != nil {
					return err
				}
				tris = append(tris, pt...)
			}
		}
		for _, child := range node.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	scene := doc.Scenes
	if len(scene) == 0 {
		return nil, fmt.Errorf("%w: document has no scene", format.ErrMalformed)
	}
	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = int(*doc.Scene)
	}
	if sceneIdx >= len(scene) {
		return nil, fmt.Errorf("%w: scene index %d", format.ErrMalformed, sceneIdx)
	}
	for _, root := range scene[sceneIdx].Nodes {
		if err := walk(root, affineIdentity); err != nil {
			return nil, err
		}
	}
	return tris, nil
}

func primitiveTriangles(doc *gltf.Document, prim *gltf.Primitive, world affine) ([]voxelize.Triangle, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil // points/lines or malformed, nothing to rasterize
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: positions: %v", format.ErrMalformed, err)
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: indices: %v", format.ErrMalformed, err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	var colors [][4]uint8
	if colIdx, ok := prim.Attributes[gltf.COLOR_0]; ok {
		colors, err = modeler.ReadColor(doc, doc.Accessors[colIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: vertex colors: %v", format.ErrMalformed, err)
		}
	}
	base := baseColor(doc, prim)

	out := make([]voxelize.Triangle, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= len(positions) || int(i1) >= len(positions) || int(i2) >= len(positions) {
			return nil, fmt.Errorf("%w: index out of range", format.ErrMalformed)
		}
		t := voxelize.Triangle{
			A:     world.apply(positions[i0]),
			B:     world.apply(positions[i1]),
			C:     world.apply(positions[i2]),
			Color: base,
		}
		if colors != nil {
			t.Color = averageColor(colors[i0], colors[i1], colors[i2])
		}
		out = append(out, t)
	}
	return out, nil
}

func baseColor(doc *gltf.Document, prim *gltf.Primitive) palette.RGBA {
	c := palette.RGBA{R: 255, G: 255, B: 255, A: 255}
	if prim.Material == nil || int(*prim.Material) >= len(doc.Materials) {
		return c
	}
	pbr := doc.Materials[*prim.Material].PBRMetallicRoughness
	if pbr == nil || pbr.BaseColorFactor == nil {
		return c
	}
	f := *pbr.BaseColorFactor
	return palette.RGBA{
		R: uint8(f[0]*255 + 0.5),
		G: uint8(f[1]*255 + 0.5),
		B: uint8(f[2]*255 + 0.5),
		A: uint8(f[3]*255 + 0.5),
	}
}

func averageColor(a, b, c [4]uint8) palette.RGBA {
	return palette.RGBA{
		R: uint8((uint16(a[0]) + uint16(b[0]) + uint16(c[0])) / 3),
		G: uint8((uint16(a[1]) + uint16(b[1]) + uint16(c[1])) / 3),
		B: uint8((uint16(a[2]) + uint16(b[2]) + uint16(c[2])) / 3),
		A: uint8((uint16(a[3]) + uint16(b[3]) + uint16(c[3])) / 3),
	}
}

// nodeMatrix composes the node's local transform; an explicit matrix wins
// over TRS.
func nodeMatrix(n *gltf.Node) affine {
	if n.Matrix != gltf.DefaultMatrix {
		var m affine
		for i, v := range n.Matrix {
			m[i] = float32(v)
		}
		return m
	}
	x := float32(n.Rotation[0])
	y := float32(n.Rotation[1])
	z := float32(n.Rotation[2])
	w := float32(n.Rotation[3])
	sx := float32(n.Scale[0])
	sy := float32(n.Scale[1])
	sz := float32(n.Scale[2])

	m := affineIdentity
	m[0] = (1 - 2*(y*y+z*z)) * sx
	m[1] = 2 * (x*y + z*w) * sx
	m[2] = 2 * (x*z - y*w) * sx
	m[4] = 2 * (x*y - z*w) * sy
	m[5] = (1 - 2*(x*x+z*z)) * sy
	m[6] = 2 * (y*z + x*w) * sy
	m[8] = 2 * (x*z + y*w) * sz
	m[9] = 2 * (y*z - x*w) * sz
	m[10] = (1 - 2*(x*x+y*y)) * sz
	m[12] = float32(n.Translation[0])
	m[13] = float32(n.Translation[1])
	m[14] = float32(n.Translation[2])
	return m
}
