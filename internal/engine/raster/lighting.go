package raster

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// Lighting is the scene's lights premultiplied by intensity.
type Lighting struct {
	Ambient [3]float32
	Direct  [3]float32
	Dir     math.Vec3 // unit vector toward the light
}

// LightingFor extracts the lighting of s.
func LightingFor(s *scene.Scene) Lighting {
	var l Lighting
	for i := 0; i < 3; i++ {
		l.Ambient[i] = s.Ambient.Color[i] * s.Ambient.Intensity
		l.Direct[i] = s.Directional.Color[i] * s.Directional.Intensity
	}
	l.Dir = s.Directional.Direction()
	return l
}

// Shade lights base with a Lambert term for the face normal n.
// Double-sided faces are lit from either side.
func (l *Lighting) Shade(n math.Vec3, base [4]float32, doubleSided bool) [4]uint8 {
	ndl := n.Dot(l.Dir)
	if doubleSided {
		ndl = math32.Abs(ndl)
	}
	if ndl < 0 {
		ndl = 0
	}
	var c [4]uint8
	for i := 0; i < 3; i++ {
		c[i] = clamp255(base[i] * (l.Ambient[i] + l.Direct[i]*ndl) * 255)
	}
	c[3] = clamp255(base[3] * 255)
	return c
}

func clamp255(v float32) uint8 {
	if v < 0 || v != v {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
