package debug

import "github.com/Faultbox/fitme-ar/pkg/math"

// DefaultGridStep is the floor grid cell size in scene units (cm).
const DefaultGridStep = 10.0

// maxGridLines caps lines per axis so a huge box cannot flood the overlay.
const maxGridLines = 64

// FloorGrid returns line endpoints for a grid on the plane y = b.Min.Y
// covering the footprint of b, snapped outward to multiples of step.
// Returns nil for an empty box or a non-positive step.
func FloorGrid(b math.Box3, step float32) []math.Vec3 {
	if b.IsEmpty() || step <= 0 {
		return nil
	}
	minX, maxX := snapDown(b.Min.X, step), snapUp(b.Max.X, step)
	minZ, maxZ := snapDown(b.Min.Z, step), snapUp(b.Max.Z, step)
	y := b.Min.Y

	var pts []math.Vec3
	for i, x := 0, minX; x <= maxX+step/2 && i < maxGridLines; i, x = i+1, x+step {
		pts = append(pts, math.Vec3{X: x, Y: y, Z: minZ}, math.Vec3{X: x, Y: y, Z: maxZ})
	}
	for i, z := 0, minZ; z <= maxZ+step/2 && i < maxGridLines; i, z = i+1, z+step {
		pts = append(pts, math.Vec3{X: minX, Y: y, Z: z}, math.Vec3{X: maxX, Y: y, Z: z})
	}
	return pts
}

// Overlay is the fitted-mesh debug overlay: the padded bounding box plus
// the floor grid beneath it.
func Overlay(b math.Box3) []math.Vec3 {
	return append(BoxWireframe(b, DefaultBBoxPadding), FloorGrid(b, DefaultGridStep)...)
}

// Flatten converts points to [x, y, z] per vertex for GPU upload.
func Flatten(pts []math.Vec3) []float32 {
	out := make([]float32, 0, len(pts)*3)
	for _, p := range pts {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

func snapDown(v, step float32) float32 {
	n := int(v / step)
	if float32(n)*step > v {
		n--
	}
	return float32(n) * step
}

func snapUp(v, step float32) float32 {
	n := int(v / step)
	if float32(n)*step < v {
		n++
	}
	return float32(n) * step
}
