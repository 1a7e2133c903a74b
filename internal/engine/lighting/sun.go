// Package lighting positions the scene lights from angles.
package lighting

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// keyDistance is how far from the origin the key light is placed.
const keyDistance = 250

// Rig describes the ambient and key lights around the garment.
type Rig struct {
	Azimuth   float32 // degrees around Y, 0 faces the camera (+Z)
	Elevation float32 // degrees above the horizon
	Ambient   float32 // ambient intensity
	Key       float32 // key light intensity
}

// DefaultRig is a key light above and in front of the subject.
func DefaultRig() Rig {
	return Rig{Azimuth: 0, Elevation: 63.4, Ambient: 0.7, Key: 1.0}
}

// SunDirection converts azimuth/elevation in degrees to a unit vector
// pointing toward the light.
func SunDirection(azimuth, elevation float32) math.Vec3 {
	az := azimuth * math32.Pi / 180
	el := elevation * math32.Pi / 180
	return math.Vec3{
		X: math32.Cos(el) * math32.Sin(az),
		Y: math32.Sin(el),
		Z: math32.Cos(el) * math32.Cos(az),
	}
}

// Apply sets the scene's lights from r. Negative intensities are clamped
// to zero.
func (r Rig) Apply(s *scene.Scene) {
	s.Ambient.Intensity = math32.Max(r.Ambient, 0)
	s.Directional.Intensity = math32.Max(r.Key, 0)
	s.Directional.Position = SunDirection(r.Azimuth, r.Elevation).Scale(keyDistance)
}
