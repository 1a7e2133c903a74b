package scene

import (
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// BoundingBox returns the box enclosing every vertex of the subtree,
// transformed into the space of n's parent (or world space when n is
// detached). The result is empty when the subtree has no vertices.
func BoundingBox(n *Node) math.Box3 {
	parentWorld := math.Identity()
	if n.parent != nil {
		parentWorld = n.parent.WorldMatrix()
	}
	box := math.EmptyBox()
	n.Walk(parentWorld, func(node *Node, world math.Mat4) {
		for _, mesh := range node.Meshes {
			for _, v := range mesh.Vertices {
				p := math.Vec3{X: v.Position[0], Y: v.Position[1], Z: v.Position[2]}
				box = box.ExpandByPoint(world.TransformVec3(p))
			}
		}
	})
	return box
}
