// Package camera provides camera implementations for 3D rendering.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/fitme-ar/pkg/math"
)

// Perspective is a pinhole camera looking from Position at Target.
type Perspective struct {
	FOV    float32 // vertical field of view, degrees
	Aspect float32
	Near   float32
	Far    float32

	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	projection math.Mat4
}

// NewPerspective creates a camera at z=300 looking at the origin with a
// 45 degree field of view.
func NewPerspective(aspect float32) *Perspective {
	c := &Perspective{
		FOV:      45,
		Aspect:   aspect,
		Near:     1,
		Far:      2000,
		Position: math.Vec3{X: 0, Y: 0, Z: 300},
		Target:   math.Vec3{},
		Up:       math.Vec3{X: 0, Y: 1, Z: 0},
	}
	c.UpdateProjection()
	return c
}

// SetAspect updates the aspect ratio from a surface size and recomputes the
// projection. Degenerate sizes are ignored.
func (c *Perspective) SetAspect(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
	c.UpdateProjection()
}

// UpdateProjection recomputes the projection matrix after FOV, Aspect,
// Near or Far change.
func (c *Perspective) UpdateProjection() {
	c.projection = math.Perspective(c.FOV*math32.Pi/180, c.Aspect, c.Near, c.Far)
}

// ProjectionMatrix returns the cached projection matrix.
func (c *Perspective) ProjectionMatrix() math.Mat4 {
	return c.projection
}

// ViewMatrix returns the view matrix for this camera.
func (c *Perspective) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position, c.Target, c.Up)
}

// ViewProjection returns projection * view.
func (c *Perspective) ViewProjection() math.Mat4 {
	return c.projection.Mul(c.ViewMatrix())
}

// Project maps a world point to normalized device coordinates.
func (c *Perspective) Project(p math.Vec3) math.Vec3 {
	return c.ViewProjection().TransformVec3(p)
}
