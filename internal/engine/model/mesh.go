package model

import (
	"errors"
	"fmt"
)

// ErrEmptyMesh is returned for meshes without triangles.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// TriangleCount returns the number of indexed triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Validate checks the index list against the vertex list.
func (m *Mesh) Validate() error {
	if len(m.Indices) < 3 {
		return ErrEmptyMesh
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(m.Indices))
	}
	n := uint32(len(m.Vertices))
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("index %d at %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// Bounds returns the local-space bounding box of all indexed vertices.
// ok is false for a mesh without vertices.
func (m *Mesh) Bounds() (Bounds, bool) {
	if len(m.Vertices) == 0 {
		return Bounds{}, false
	}
	b := Bounds{Min: m.Vertices[0].Position, Max: m.Vertices[0].Position}
	for _, v := range m.Vertices[1:] {
		for a := 0; a < 3; a++ {
			if v.Position[a] < b.Min[a] {
				b.Min[a] = v.Position[a]
			}
			if v.Position[a] > b.Max[a] {
				b.Max[a] = v.Position[a]
			}
		}
	}
	return b, true
}

// ComputeNormals replaces vertex normals with area-weighted face normals
// accumulated per vertex. Degenerate triangles contribute nothing.
func (m *Mesh) ComputeNormals() {
	acc := make([][3]float32, len(m.Vertices))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		i0, i1, i2 := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		p0 := m.Vertices[i0].Position
		n := Cross(sub(m.Vertices[i1].Position, p0), sub(m.Vertices[i2].Position, p0))
		for _, idx := range [3]uint32{i0, i1, i2} {
			acc[idx][0] += n[0]
			acc[idx][1] += n[1]
			acc[idx][2] += n[2]
		}
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = Normalize(acc[i])
	}
}

// HasNormals reports whether any vertex carries a non-zero normal.
func (m *Mesh) HasNormals() bool {
	for _, v := range m.Vertices {
		if v.Normal != ([3]float32{}) {
			return true
		}
	}
	return false
}
