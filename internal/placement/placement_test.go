package placement

import (
	"testing"

	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/fit"
	"github.com/Faultbox/fitme-ar/internal/tracking"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

func frame(lms ...tracking.Landmark) *tracking.LandmarkFrame {
	return &tracking.LandmarkFrame{Score: 1, Landmarks: lms}
}

func lm(x, y, z float32) tracking.Landmark {
	return tracking.Landmark{X: x, Y: y, Z: z, Visibility: 1, Present: true}
}

func attached() (*Controller, *scene.Node, *fit.Result) {
	n := scene.NewNode("mesh")
	res := &fit.Result{Pivot: math.Vec3{X: -3, Y: 85, Z: 2}, Height: 180}
	n.Position = res.Pivot
	c := New(DefaultScales())
	c.Attach(n, res)
	return c, n, res
}

func TestOffset(t *testing.T) {
	c := New(DefaultScales())
	tests := []struct {
		name string
		lm   tracking.Landmark
		want math.Vec3
	}{
		{name: "neutral", lm: lm(0.5, 0.5, 0), want: math.Vec3{Y: 90}},
		{name: "left top", lm: lm(0, 0, 0), want: math.Vec3{X: -250, Y: 340}},
		{name: "right bottom near", lm: lm(1, 1, -0.5), want: math.Vec3{X: 250, Y: -160, Z: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Offset(tt.lm, 180); got != tt.want {
				t.Errorf("Offset = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUpdateNeutralKeepsFitPose(t *testing.T) {
	c, n, res := attached()
	if !c.Update(frame(lm(0.5, 0.5, 0))) {
		t.Fatal("expected update")
	}
	if n.Position != res.Pivot {
		t.Errorf("neutral anchor should reproduce pivot %+v, got %+v", res.Pivot, n.Position)
	}
}

func TestUpdateMoves(t *testing.T) {
	c, n, res := attached()
	c.Update(frame(lm(0.6, 0.4, 0.1)))
	want := res.Pivot.Add(math.Vec3{X: 50, Y: 50, Z: -30})
	d := n.Position.Sub(want)
	if d.Length() > 1e-3 {
		t.Errorf("expected %+v, got %+v", want, n.Position)
	}
	if c.Updates() != 1 {
		t.Errorf("expected 1 update, got %d", c.Updates())
	}
}

func TestUpdateMissingAnchorHolds(t *testing.T) {
	c, n, _ := attached()
	c.Update(frame(lm(0.7, 0.3, 0)))
	before := n.Position
	rotation, scale := n.Rotation, n.Scale

	missing := []*tracking.LandmarkFrame{
		nil,
		frame(),
		frame(tracking.Landmark{X: 0.1, Y: 0.1, Present: false}),
	}
	for i, f := range missing {
		if c.Update(f) {
			t.Errorf("case %d: update without anchor should be ignored", i)
		}
		if n.Position != before || n.Rotation != rotation || n.Scale != scale {
			t.Errorf("case %d: transform changed to %+v", i, n.Position)
		}
	}
}

func TestUpdateWithoutTarget(t *testing.T) {
	c := New(DefaultScales())
	if c.Update(frame(lm(0.5, 0.5, 0))) {
		t.Error("update without target should be ignored")
	}
	c2, n, _ := attached()
	c2.Detach()
	before := n.Position
	c2.Update(frame(lm(0, 0, 0)))
	if n.Position != before || c2.Target() != nil {
		t.Error("detached controller must not move the mesh")
	}
}
