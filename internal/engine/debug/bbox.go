// Package debug provides debug visualization utilities.
package debug

import "github.com/Faultbox/fitme-ar/pkg/math"

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// DefaultBBoxPadding is the default padding around the fitted mesh box.
const DefaultBBoxPadding = 1.0

// boxEdges indexes Box3.Corners pairwise.
var boxEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0}, // bottom
	{4, 5}, {5, 6}, {6, 7}, {7, 4}, // top
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // verticals
}

// BoxWireframe returns the 24 line endpoints of b grown by padding.
// An empty box yields nil.
func BoxWireframe(b math.Box3, padding float32) []math.Vec3 {
	if b.IsEmpty() {
		return nil
	}
	pad := math.Vec3{X: padding, Y: padding, Z: padding}
	b.Min = b.Min.Sub(pad)
	b.Max = b.Max.Add(pad)
	corners := b.Corners()
	out := make([]math.Vec3, 0, BBoxWireframeVertexCount)
	for _, e := range boxEdges {
		out = append(out, corners[e[0]], corners[e[1]])
	}
	return out
}
