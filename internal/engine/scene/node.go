// Package scene provides the scene graph: transform nodes carrying meshes,
// the lights that shade them, and world-space bounds queries.
package scene

import (
	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// Node is a transform in the scene graph with an optional mesh.
// Local transform is T * R * S unless Matrix is set, in which case
// Matrix replaces it.
type Node struct {
	Name     string
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3
	Matrix   *math.Mat4
	Meshes   []*model.Mesh
	Children []*Node
	Visible  bool

	parent *Node
}

// NewNode returns a visible node with identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Visible:  true,
	}
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
}

// Remove detaches child. It reports whether child was attached to n.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the node n is attached to, or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// LocalMatrix returns the node's transform relative to its parent.
func (n *Node) LocalMatrix() math.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	return math.Compose(n.Position, n.Rotation, n.Scale)
}

// WorldMatrix returns the node's transform relative to the graph root.
func (n *Node) WorldMatrix() math.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul(m)
	}
	return m
}

// Walk visits n and its visible descendants depth-first with each node's
// world matrix. parentWorld is the world matrix of n's parent.
func (n *Node) Walk(parentWorld math.Mat4, fn func(node *Node, world math.Mat4)) {
	if !n.Visible {
		return
	}
	world := parentWorld.Mul(n.LocalMatrix())
	fn(n, world)
	for _, c := range n.Children {
		c.Walk(world, fn)
	}
}

// MeshCount returns the number of meshes in the subtree.
func (n *Node) MeshCount() int {
	count := len(n.Meshes)
	for _, c := range n.Children {
		count += c.MeshCount()
	}
	return count
}

// Find returns the first node in the subtree with the given name.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}
