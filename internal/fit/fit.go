// Package fit sizes a loaded mesh to a user's body measurements.
//
// The mapping is fixed and axis-aligned: waist to width (X), height to
// height (Y), chest to depth (Z). Hips are validated but not used.
package fit

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/logger"
	"github.com/Faultbox/fitme-ar/internal/measure"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// ScaleFactors are per-axis multipliers applied to the mesh.
type ScaleFactors struct {
	X, Y, Z float32
}

// Vec3 returns the factors as a scale vector.
func (s ScaleFactors) Vec3() math.Vec3 {
	return math.Vec3{X: s.X, Y: s.Y, Z: s.Z}
}

// Result is the transform state left on a fitted mesh.
type Result struct {
	Factors ScaleFactors
	// Pivot is the node position after recentering. Placement offsets are
	// added to it.
	Pivot  math.Vec3
	Height float32
	// Bounds is the fitted mesh's box in its parent's space.
	Bounds math.Box3
}

// ScalingError is returned when a mesh cannot be sized to a record.
type ScalingError struct {
	Reason string
	Err    error
}

func (e *ScalingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scaling: %s: %v", e.Reason, e.Err)
	}
	return "scaling: " + e.Reason
}

func (e *ScalingError) Unwrap() error {
	return e.Err
}

// Compute derives the scale factors for a mesh with bounding box box.
func Compute(box math.Box3, rec measure.Record) (ScaleFactors, error) {
	if err := rec.Validate(); err != nil {
		return ScaleFactors{}, &ScalingError{Reason: "invalid measurements", Err: err}
	}
	if box.IsEmpty() {
		return ScaleFactors{}, &ScalingError{Reason: "mesh has no vertices"}
	}

	size := box.Size()
	for _, ext := range []struct {
		axis string
		v    float32
	}{{"width", size.X}, {"height", size.Y}, {"depth", size.Z}} {
		if !math.IsFinite(ext.v) || ext.v <= 0 {
			return ScaleFactors{}, &ScalingError{Reason: fmt.Sprintf("mesh %s is %v", ext.axis, ext.v)}
		}
	}

	f := ScaleFactors{
		X: rec.Waist / size.X,
		Y: rec.Height / size.Y,
		Z: rec.Chest / size.Z,
	}
	if !f.Vec3().IsFinite() || f.X <= 0 || f.Y <= 0 || f.Z <= 0 {
		return ScaleFactors{}, &ScalingError{Reason: fmt.Sprintf("non-finite scale factors %+v", f)}
	}
	return f, nil
}

// Apply scales node to rec, turns it to face the viewer, and places it
// so its bounding box is centered on the vertical axis with the feet at
// y=0. node should be detached or under an identity parent; its own
// transform is replaced.
func Apply(node *scene.Node, rec measure.Record) (*Result, error) {
	node.Matrix = nil
	node.Position = math.Vec3{}
	node.Rotation = math.QuatIdentity()
	node.Scale = math.Vec3{X: 1, Y: 1, Z: 1}

	factors, err := Compute(scene.BoundingBox(node), rec)
	if err != nil {
		return nil, err
	}

	node.Scale = factors.Vec3()
	node.Rotation = math.QuatFromAxisAngle(math.Vec3{Y: 1}, math32.Pi)

	center := scene.BoundingBox(node).Center()
	node.Position = math.Vec3{X: -center.X, Y: rec.Height/2 - center.Y, Z: -center.Z}

	res := &Result{
		Factors: factors,
		Pivot:   node.Position,
		Height:  rec.Height,
		Bounds:  scene.BoundingBox(node),
	}
	logger.Debug("mesh fitted",
		zap.String("node", node.Name),
		zap.Float32("sx", factors.X),
		zap.Float32("sy", factors.Y),
		zap.Float32("sz", factors.Z))
	return res, nil
}
