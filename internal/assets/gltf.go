package assets

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// ParseGLTF decodes a glTF JSON or GLB document. Buffers must be embedded
// (GLB chunk or data URI). The default scene's node hierarchy is kept
// under a synthetic root with identity transform.
func ParseGLTF(data []byte) (*scene.Node, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding gltf: %w", err)
	}

	b := &gltfBuilder{
		doc:    doc,
		meshes: make(map[int][]*model.Mesh),
		active: make(map[int]bool),
	}
	root := scene.NewNode("asset")
	for _, idx := range b.rootNodes() {
		child, err := b.buildNode(idx)
		if err != nil {
			return nil, err
		}
		root.Add(child)
	}
	if root.MeshCount() == 0 {
		return nil, errors.New("gltf has no triangle geometry")
	}
	return root, nil
}

type gltfBuilder struct {
	doc    *gltf.Document
	meshes map[int][]*model.Mesh
	active map[int]bool
}

// rootNodes returns the nodes of the default scene, falling back to every
// node that is nobody's child.
func (b *gltfBuilder) rootNodes() []int {
	doc := b.doc
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			s = int(*doc.Scene)
		}
		var out []int
		for _, n := range doc.Scenes[s].Nodes {
			out = append(out, int(n))
		}
		return out
	}

	isChild := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[int(c)] = true
		}
	}
	var out []int
	for i := range doc.Nodes {
		if !isChild[i] {
			out = append(out, i)
		}
	}
	return out
}

func (b *gltfBuilder) buildNode(idx int) (*scene.Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	if b.active[idx] {
		return nil, fmt.Errorf("node %d is its own ancestor", idx)
	}
	b.active[idx] = true
	defer delete(b.active, idx)

	gn := b.doc.Nodes[idx]
	n := scene.NewNode(gn.Name)
	applyNodeTransform(n, gn)

	if gn.Mesh != nil {
		meshes, err := b.buildMesh(int(*gn.Mesh))
		if err != nil {
			return nil, err
		}
		n.Meshes = meshes
	}

	for _, c := range gn.Children {
		child, err := b.buildNode(int(c))
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

// applyNodeTransform copies TRS or matrix. Zero-valued fields mean the
// property was absent and leave the identity in place.
func applyNodeTransform(n *scene.Node, gn *gltf.Node) {
	var m math.Mat4
	zero, identity := true, true
	id := math.Identity()
	for i, v := range gn.Matrix {
		m[i] = float32(v)
		if m[i] != 0 {
			zero = false
		}
		if m[i] != id[i] {
			identity = false
		}
	}
	if !zero && !identity {
		n.Matrix = &m
		return
	}

	n.Position = math.Vec3{X: float32(gn.Translation[0]), Y: float32(gn.Translation[1]), Z: float32(gn.Translation[2])}

	r := gn.Rotation
	if r[0] != 0 || r[1] != 0 || r[2] != 0 || r[3] != 0 {
		n.Rotation = math.Quat{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}.Normalize()
	}

	s := gn.Scale
	if s[0] != 0 || s[1] != 0 || s[2] != 0 {
		n.Scale = math.Vec3{X: float32(s[0]), Y: float32(s[1]), Z: float32(s[2])}
	}
}

func (b *gltfBuilder) buildMesh(idx int) ([]*model.Mesh, error) {
	if meshes, ok := b.meshes[idx]; ok {
		return meshes, nil
	}
	if idx < 0 || idx >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", idx)
	}

	gm := b.doc.Meshes[idx]
	var meshes []*model.Mesh
	for pi, prim := range gm.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		mesh, err := b.buildPrimitive(prim)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
		}
		if mesh == nil {
			continue
		}
		mesh.Name = gm.Name
		meshes = append(meshes, mesh)
	}
	b.meshes[idx] = meshes
	return meshes, nil
}

// accessor returns accessor idx after checking it and the buffer view and
// buffer it points at, since all three come straight from the file.
func (b *gltfBuilder) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(b.doc.Accessors) || b.doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("accessor %d out of range (%d accessors)", idx, len(b.doc.Accessors))
	}
	acc := b.doc.Accessors[idx]
	if acc.BufferView != nil {
		bv := int(*acc.BufferView)
		if bv < 0 || bv >= len(b.doc.BufferViews) || b.doc.BufferViews[bv] == nil {
			return nil, fmt.Errorf("accessor %d: buffer view %d out of range (%d views)", idx, bv, len(b.doc.BufferViews))
		}
		if buf := int(b.doc.BufferViews[bv].Buffer); buf < 0 || buf >= len(b.doc.Buffers) {
			return nil, fmt.Errorf("accessor %d: buffer %d out of range (%d buffers)", idx, buf, len(b.doc.Buffers))
		}
	}
	return acc, nil
}

func (b *gltfBuilder) buildPrimitive(prim *gltf.Primitive) (*model.Mesh, error) {
	doc := b.doc
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	posAcc, err := b.accessor(int(posIdx))
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	positions, err := modeler.ReadPosition(doc, posAcc, nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	var normals [][3]float32
	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acc, err := b.accessor(int(normIdx))
		if err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
		if normals, err = modeler.ReadNormal(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading normals: %w", err)
		}
	}
	var texCoords [][2]float32
	if texIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acc, err := b.accessor(int(texIdx))
		if err != nil {
			return nil, fmt.Errorf("texcoords: %w", err)
		}
		if texCoords, err = modeler.ReadTextureCoord(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading texcoords: %w", err)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		acc, err := b.accessor(int(*prim.Indices))
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		if indices, err = modeler.ReadIndices(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for k := range indices {
			indices[k] = uint32(k)
		}
	}
	indices = indices[:len(indices)-len(indices)%3]

	mesh := &model.Mesh{
		Vertices: make([]model.Vertex, len(positions)),
		Indices:  indices,
		Material: b.material(prim),
	}
	for i, p := range positions {
		mesh.Vertices[i].Position = p
		if i < len(normals) {
			mesh.Vertices[i].Normal = normals[i]
		}
		if i < len(texCoords) {
			mesh.Vertices[i].TexCoord = texCoords[i]
		}
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if !mesh.HasNormals() {
		mesh.ComputeNormals()
	}
	return mesh, nil
}

func (b *gltfBuilder) material(prim *gltf.Primitive) model.Material {
	mat := model.DefaultMaterial()
	if prim.Material == nil || int(*prim.Material) >= len(b.doc.Materials) {
		return mat
	}
	gm := b.doc.Materials[*prim.Material]
	mat.Name = gm.Name
	mat.DoubleSided = gm.DoubleSided
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		f := pbr.BaseColorFactorOrDefault()
		mat.BaseColor = [4]float32{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
	}
	return mat
}
