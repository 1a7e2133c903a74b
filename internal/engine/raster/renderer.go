package raster

import (
	"image"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// clearColor matches the GL renderer's empty background.
var clearColor = [4]uint8{26, 26, 38, 255}

// Renderer draws a scene over a background image into a FrameBuffer.
// It is not safe for concurrent use.
type Renderer struct {
	fb *FrameBuffer

	// scratch per mesh
	clip  []math.Vec4
	world []math.Vec3

	triangles int
}

// NewRenderer creates a renderer with a w×h target.
func NewRenderer(w, h int) *Renderer {
	return &Renderer{fb: NewFrameBuffer(w, h)}
}

// Resize changes the target size.
func (r *Renderer) Resize(w, h int) {
	r.fb.Resize(w, h)
}

// Size returns the target size.
func (r *Renderer) Size() (int, int) {
	return r.fb.Width, r.fb.Height
}

// FrameBuffer exposes the target.
func (r *Renderer) FrameBuffer() *FrameBuffer {
	return r.fb
}

// Triangles returns the number of triangles rasterized by the last Render.
func (r *Renderer) Triangles() int {
	return r.triangles
}

// Render clears the target, draws background to cover it and then every
// visible mesh of s as seen by cam.
func (r *Renderer) Render(s *scene.Scene, cam *camera.Perspective, background image.Image) {
	r.fb.Clear(clearColor[0], clearColor[1], clearColor[2], clearColor[3])
	r.fb.DrawBackground(background)
	r.triangles = 0
	if s == nil || cam == nil {
		return
	}

	lights := LightingFor(s)
	vp := cam.ViewProjection()
	s.Walk(func(n *scene.Node, world math.Mat4) {
		if len(n.Meshes) == 0 {
			return
		}
		mvp := vp.Mul(world)
		for _, m := range n.Meshes {
			r.drawMesh(m, world, mvp, &lights)
		}
	})
}

func (r *Renderer) drawMesh(m *model.Mesh, world, mvp math.Mat4, lights *Lighting) {
	n := len(m.Vertices)
	if cap(r.clip) < n {
		r.clip = make([]math.Vec4, n)
		r.world = make([]math.Vec3, n)
	}
	clip := r.clip[:n]
	wpos := r.world[:n]
	for i, v := range m.Vertices {
		p := math.Vec3{X: v.Position[0], Y: v.Position[1], Z: v.Position[2]}
		clip[i] = mvp.MulVec4(math.Vec4{p.X, p.Y, p.Z, 1})
		wpos[i] = world.TransformVec3(p)
	}

	w, h := float32(r.fb.Width), float32(r.fb.Height)
	for t := 0; t+2 < len(m.Indices); t += 3 {
		i0, i1, i2 := int(m.Indices[t]), int(m.Indices[t+1]), int(m.Indices[t+2])
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}
		c0, c1, c2 := clip[i0], clip[i1], clip[i2]
		// No near-plane clipping: triangles crossing it are dropped.
		if c0[3] <= 0 || c1[3] <= 0 || c2[3] <= 0 {
			continue
		}
		var sv [3]ScreenVertex
		for k, c := range [3]math.Vec4{c0, c1, c2} {
			sv[k] = ScreenVertex{
				X: (c[0]/c[3] + 1) * 0.5 * w,
				Y: (1 - c[1]/c[3]) * 0.5 * h,
				Z: c[2] / c[3],
			}
		}
		// Screen y points down, so front faces wind clockwise here.
		area := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[2].X-sv[0].X)*(sv[1].Y-sv[0].Y)
		if area >= 0 && !m.Material.DoubleSided {
			continue
		}

		normal := wpos[i1].Sub(wpos[i0]).Cross(wpos[i2].Sub(wpos[i0])).Normalize()
		RasterizeTriangle(r.fb, sv, lights.Shade(normal, m.Material.BaseColor, m.Material.DoubleSided))
		r.triangles++
	}
}

// DrawLines projects pairs of world points and draws them as an overlay.
func (r *Renderer) DrawLines(cam *camera.Perspective, pts []math.Vec3, c [4]uint8) {
	vp := cam.ViewProjection()
	w, h := float32(r.fb.Width), float32(r.fb.Height)
	project := func(p math.Vec3) (ScreenVertex, bool) {
		cl := vp.MulVec4(math.Vec4{p.X, p.Y, p.Z, 1})
		if cl[3] <= 0 {
			return ScreenVertex{}, false
		}
		return ScreenVertex{
			X: (cl[0]/cl[3] + 1) * 0.5 * w,
			Y: (1 - cl[1]/cl[3]) * 0.5 * h,
		}, true
	}
	for i := 0; i+1 < len(pts); i += 2 {
		a, okA := project(pts[i])
		b, okB := project(pts[i+1])
		if okA && okB {
			DrawLine(r.fb, a, b, c)
		}
	}
}
