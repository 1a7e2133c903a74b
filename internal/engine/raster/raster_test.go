package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/debug"
	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

func quad(indices []uint32, doubleSided bool) *model.Mesh {
	mat := model.DefaultMaterial()
	mat.DoubleSided = doubleSided
	return &model.Mesh{
		Vertices: []model.Vertex{
			{Position: [3]float32{-50, -50, 0}},
			{Position: [3]float32{50, -50, 0}},
			{Position: [3]float32{50, 50, 0}},
			{Position: [3]float32{-50, 50, 0}},
		},
		Indices:  indices,
		Material: mat,
	}
}

func pixel(fb *FrameBuffer, x, y int) [4]uint8 {
	p := (y*fb.Width + x) * 4
	return [4]uint8{fb.Color[p], fb.Color[p+1], fb.Color[p+2], fb.Color[p+3]}
}

func render(m *model.Mesh, bg image.Image) *Renderer {
	s := scene.New()
	n := scene.NewNode("quad")
	n.Meshes = []*model.Mesh{m}
	s.Add(n)
	cam := camera.NewPerspective(1)
	r := NewRenderer(64, 64)
	r.Render(s, cam, bg)
	return r
}

func TestRenderQuad(t *testing.T) {
	tests := []struct {
		name    string
		mesh    *model.Mesh
		visible bool
	}{
		{"front facing", quad([]uint32{0, 1, 2, 0, 2, 3}, false), true},
		{"back facing culled", quad([]uint32{0, 2, 1, 0, 3, 2}, false), false},
		{"back facing double sided", quad([]uint32{0, 2, 1, 0, 3, 2}, true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := render(tt.mesh, nil)
			fb := r.FrameBuffer()
			center := pixel(fb, 32, 32)
			if got := center != clearColor; got != tt.visible {
				t.Errorf("center pixel %v, visible=%v want %v", center, got, tt.visible)
			}
			if corner := pixel(fb, 0, 0); corner != clearColor {
				t.Errorf("corner should stay clear, got %v", corner)
			}
		})
	}
}

func TestRenderLighting(t *testing.T) {
	r := render(quad([]uint32{0, 1, 2, 0, 2, 3}, false), nil)
	c := pixel(r.FrameBuffer(), 32, 32)
	// 0.8 * (0.7 + n·l) with n=(0,0,1) and l toward (0,200,100).
	if c[0] < 228 || c[0] > 240 || c[0] != c[1] || c[1] != c[2] {
		t.Errorf("unexpected shaded color %v", c)
	}
	if r.Triangles() != 2 {
		t.Errorf("expected 2 triangles, got %d", r.Triangles())
	}
}

func TestRenderBackground(t *testing.T) {
	bg := image.NewUniform(color.RGBA{R: 200, G: 10, B: 10, A: 255})
	img := image.NewRGBA(image.Rect(0, 0, 160, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, bg.C)
		}
	}
	r := render(quad(nil, false), img)
	if c := pixel(r.FrameBuffer(), 0, 0); c != [4]uint8{200, 10, 10, 255} {
		t.Errorf("background not drawn, got %v", c)
	}
}

func TestDepthTest(t *testing.T) {
	fb := NewFrameBuffer(8, 8)
	near := [3]ScreenVertex{{0, 0, -0.5}, {8, 0, -0.5}, {0, 8, -0.5}}
	far := [3]ScreenVertex{{0, 0, 0.5}, {8, 0, 0.5}, {0, 8, 0.5}}
	red := [4]uint8{255, 0, 0, 255}
	blue := [4]uint8{0, 0, 255, 255}

	RasterizeTriangle(fb, near, red)
	RasterizeTriangle(fb, far, blue)
	if c := pixel(fb, 1, 1); c != red {
		t.Errorf("far triangle overwrote near one: %v", c)
	}
}

func TestCover(t *testing.T) {
	tests := []struct {
		src  image.Rectangle
		w, h int
		want image.Rectangle
	}{
		{image.Rect(0, 0, 1280, 720), 1280, 720, image.Rect(0, 0, 1280, 720)},
		{image.Rect(0, 0, 1280, 720), 720, 720, image.Rect(280, 0, 1000, 720)},
		{image.Rect(0, 0, 400, 800), 400, 400, image.Rect(0, 200, 400, 600)},
	}
	for _, tt := range tests {
		if got := cover(tt.src, tt.w, tt.h); got != tt.want {
			t.Errorf("cover(%v, %d, %d) = %v, want %v", tt.src, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestResize(t *testing.T) {
	r := NewRenderer(10, 10)
	r.Resize(20, 5)
	if w, h := r.Size(); w != 20 || h != 5 {
		t.Errorf("expected 20x5, got %dx%d", w, h)
	}
	if len(r.FrameBuffer().Depth) != 100 {
		t.Errorf("depth buffer not resized")
	}
	r.Resize(0, -1)
	if w, h := r.Size(); w != 1 || h != 1 {
		t.Errorf("degenerate size should clamp to 1x1, got %dx%d", w, h)
	}
	r.Resize(1<<30, 2)
	if w, h := r.Size(); w != MaxDimension || h != 2 {
		t.Errorf("huge width should clamp to %d, got %dx%d", MaxDimension, w, h)
	}
	if len(r.FrameBuffer().Color) != MaxDimension*2*4 {
		t.Errorf("color buffer has %d bytes", len(r.FrameBuffer().Color))
	}
}

func TestDrawLines(t *testing.T) {
	r := NewRenderer(64, 64)
	r.FrameBuffer().Clear(0, 0, 0, 255)
	cam := camera.NewPerspective(1)
	box := math.Box3{Min: math.Vec3{X: -40, Y: -40, Z: -40}, Max: math.Vec3{X: 40, Y: 40, Z: 40}}
	green := [4]uint8{0, 255, 0, 255}
	r.DrawLines(cam, debug.BoxWireframe(box, 0), green)

	var lit int
	for i := 0; i < len(r.FrameBuffer().Color); i += 4 {
		if r.FrameBuffer().Color[i+1] == 255 {
			lit++
		}
	}
	if lit == 0 {
		t.Error("expected wireframe pixels")
	}
	if c := pixel(r.FrameBuffer(), 32, 32); c == green {
		t.Error("box interior should not be filled")
	}
}
