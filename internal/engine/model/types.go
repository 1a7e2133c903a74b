// Package model holds triangle mesh data ready for GPU upload or software
// rasterization.
package model

// Vertex represents a mesh vertex with position, normal, and texture coordinates.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Material is the flat surface description used for shading.
type Material struct {
	Name        string
	BaseColor   [4]float32
	DoubleSided bool
}

// DefaultMaterial is used for primitives without a material.
func DefaultMaterial() Material {
	return Material{Name: "default", BaseColor: [4]float32{0.8, 0.8, 0.8, 1}}
}

// Mesh holds one indexed triangle list in local space.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Material Material
}

// Bounds holds an axis-aligned bounding box in mesh-local space.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}
