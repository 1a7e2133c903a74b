package scene

import "github.com/Faultbox/fitme-ar/pkg/math"

// AmbientLight lights every surface uniformly.
type AmbientLight struct {
	Color     [3]float32
	Intensity float32
}

// DirectionalLight shines from Position toward the origin.
type DirectionalLight struct {
	Color     [3]float32
	Intensity float32
	Position  math.Vec3
}

// Direction returns the unit vector from the surface toward the light.
func (l DirectionalLight) Direction() math.Vec3 {
	return l.Position.Normalize()
}

// Scene is the root of everything drawn over the video background.
type Scene struct {
	Root        *Node
	Ambient     AmbientLight
	Directional DirectionalLight
}

// New creates an empty scene with a soft white ambient light and a key
// light above and in front of the subject.
func New() *Scene {
	return &Scene{
		Root: NewNode("root"),
		Ambient: AmbientLight{
			Color:     [3]float32{1, 1, 1},
			Intensity: 0.7,
		},
		Directional: DirectionalLight{
			Color:     [3]float32{1, 1, 1},
			Intensity: 1.0,
			Position:  math.Vec3{X: 0, Y: 200, Z: 100},
		},
	}
}

// Add inserts n under the scene root.
func (s *Scene) Add(n *Node) {
	s.Root.Add(n)
}

// Remove detaches n from the scene root.
func (s *Scene) Remove(n *Node) bool {
	return s.Root.Remove(n)
}

// Walk visits every visible node with its world matrix.
func (s *Scene) Walk(fn func(node *Node, world math.Mat4)) {
	s.Root.Walk(math.Identity(), fn)
}
