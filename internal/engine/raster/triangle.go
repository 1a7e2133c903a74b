package raster

import "github.com/chewxy/math32"

// ScreenVertex is a vertex in pixel coordinates with NDC depth.
type ScreenVertex struct {
	X, Y, Z float32
}

// RasterizeTriangle fills a flat-colored triangle with depth testing.
// Translucent colors are blended over the buffer but still write depth.
func RasterizeTriangle(fb *FrameBuffer, v [3]ScreenVertex, c [4]uint8) {
	x0, y0, z0 := v[0].X, v[0].Y, v[0].Z
	x1, y1, z1 := v[1].X, v[1].Y, v[1].Z
	x2, y2, z2 := v[2].X, v[2].Y, v[2].Z

	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1 / det

	minX := clampInt(int(math32.Floor(min3(x0, x1, x2))), 0, fb.Width-1)
	maxX := clampInt(int(math32.Ceil(max3(x0, x1, x2))), 0, fb.Width-1)
	minY := clampInt(int(math32.Floor(min3(y0, y1, y2))), 0, fb.Height-1)
	maxY := clampInt(int(math32.Ceil(max3(y0, y1, y2))), 0, fb.Height-1)

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	alpha := uint32(c[3])
	for sy := minY; sy <= maxY; sy++ {
		dsy := float32(sy) + 0.5 - y2
		row := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float32(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*z0 + w1*z1 + w2*z2
			i := row + sx
			if z < -1 || z > 1 || z >= fb.Depth[i] {
				continue
			}
			fb.Depth[i] = z

			p := i * 4
			if alpha == 255 {
				fb.Color[p] = c[0]
				fb.Color[p+1] = c[1]
				fb.Color[p+2] = c[2]
				fb.Color[p+3] = 255
				continue
			}
			for k := 0; k < 3; k++ {
				fb.Color[p+k] = uint8((uint32(c[k])*alpha + uint32(fb.Color[p+k])*(255-alpha) + 127) / 255)
			}
			if fb.Color[p+3] < c[3] {
				fb.Color[p+3] = c[3]
			}
		}
	}
}

// DrawLine draws an overlay line with no depth test.
func DrawLine(fb *FrameBuffer, a, b ScreenVertex, c [4]uint8) {
	x0, y0 := int(math32.Round(a.X)), int(math32.Round(a.Y))
	x1, y1 := int(math32.Round(b.X)), int(math32.Round(b.Y))
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	// Endpoints are not clipped; stop after limit steps.
	limit := 4 * (fb.Width + fb.Height)
	e := dx + dy
	for n := 0; n < limit; n++ {
		if x0 >= 0 && x0 < fb.Width && y0 >= 0 && y0 < fb.Height {
			p := (y0*fb.Width + x0) * 4
			copy(fb.Color[p:p+4], c[:])
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func min3(a, b, c float32) float32 {
	return math32.Min(math32.Min(a, b), c)
}

func max3(a, b, c float32) float32 {
	return math32.Max(math32.Max(a, b), c)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
