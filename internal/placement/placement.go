// Package placement moves the fitted mesh to follow the tracked body.
package placement

import (
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/fit"
	"github.com/Faultbox/fitme-ar/internal/tracking"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// Scales map normalized landmark offsets to scene units.
type Scales struct {
	Horizontal float32
	Vertical   float32
	Depth      float32
}

// DefaultScales returns the mapping for a human-sized mesh viewed from
// z=300.
func DefaultScales() Scales {
	return Scales{Horizontal: 500, Vertical: 500, Depth: 300}
}

// Controller writes the mesh translation from the anchor landmark. It is
// not safe for concurrent use; call it from the render goroutine.
type Controller struct {
	scales  Scales
	node    *scene.Node
	fit     *fit.Result
	updates uint64
}

// New creates a controller with no target.
func New(scales Scales) *Controller {
	return &Controller{scales: scales}
}

// Attach sets the mesh to move and the fit it was sized with.
func (c *Controller) Attach(node *scene.Node, res *fit.Result) {
	c.node = node
	c.fit = res
}

// Detach clears the target. Later updates are ignored.
func (c *Controller) Detach() {
	c.node = nil
	c.fit = nil
}

// Target returns the attached mesh, or nil.
func (c *Controller) Target() *scene.Node {
	return c.node
}

// Offset maps a landmark to the translation added to the fit pivot.
// A landmark at (0.5, 0.5, 0) yields (0, height/2, 0).
func (c *Controller) Offset(lm tracking.Landmark, height float32) math.Vec3 {
	return math.Vec3{
		X: (lm.X - 0.5) * c.scales.Horizontal,
		Y: (0.5-lm.Y)*c.scales.Vertical + height/2,
		Z: -lm.Z * c.scales.Depth,
	}
}

// Update moves the mesh for f. It reports whether the transform changed;
// without a target or an anchor the previous transform is kept.
func (c *Controller) Update(f *tracking.LandmarkFrame) bool {
	if c.node == nil || c.fit == nil {
		return false
	}
	lm, ok := tracking.AnchorLandmark(f)
	if !ok {
		return false
	}
	// The pivot already lifts the mesh by height/2.
	p := c.fit.Pivot.Add(c.Offset(lm, c.fit.Height))
	p.Y -= c.fit.Height / 2
	if !p.IsFinite() {
		return false
	}
	c.node.Position = p
	c.updates++
	return true
}

// Updates returns the number of applied updates.
func (c *Controller) Updates() uint64 {
	return c.updates
}
