package lighting

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

func near(a, b math.Vec3) bool {
	d := a.Sub(b)
	return math32.Abs(d.X) < 1e-4 && math32.Abs(d.Y) < 1e-4 && math32.Abs(d.Z) < 1e-4
}

func TestSunDirection(t *testing.T) {
	tests := []struct {
		name           string
		azimuth, elev  float32
		want           math.Vec3
	}{
		{"front horizon", 0, 0, math.Vec3{Z: 1}},
		{"right horizon", 90, 0, math.Vec3{X: 1}},
		{"overhead", 0, 90, math.Vec3{Y: 1}},
		{"behind", 180, 0, math.Vec3{Z: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SunDirection(tt.azimuth, tt.elev)
			if !near(got, tt.want) {
				t.Errorf("SunDirection(%v, %v) = %+v, want %+v", tt.azimuth, tt.elev, got, tt.want)
			}
		})
	}
}

func TestDefaultRigMatchesScene(t *testing.T) {
	s := scene.New()
	want := s.Directional.Direction()
	DefaultRig().Apply(s)
	// Elevation is rounded to a tenth of a degree.
	if got := s.Directional.Direction(); got.Sub(want).Length() > 1e-3 {
		t.Errorf("default key light %+v, scene default %+v", got, want)
	}
	if s.Ambient.Intensity != 0.7 || s.Directional.Intensity != 1 {
		t.Errorf("unexpected intensities %v %v", s.Ambient.Intensity, s.Directional.Intensity)
	}
}

func TestApplyClampsIntensity(t *testing.T) {
	s := scene.New()
	Rig{Elevation: 45, Ambient: -1, Key: -2}.Apply(s)
	if s.Ambient.Intensity != 0 || s.Directional.Intensity != 0 {
		t.Errorf("negative intensities not clamped: %v %v", s.Ambient.Intensity, s.Directional.Intensity)
	}
}
