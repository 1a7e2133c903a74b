// Package renderer provides OpenGL rendering of the AR scene.
package renderer

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/engine/shader"
	"github.com/Faultbox/fitme-ar/internal/engine/texture"
	"github.com/Faultbox/fitme-ar/internal/logger"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int32
}

type meshUniforms struct {
	mvp, model, baseColor, ambient, lightColor, lightDir, doubleSided int32
}

// Renderer draws the video background, lit meshes and debug lines.
type Renderer struct {
	config Config

	meshProgram uint32
	meshLoc     meshUniforms
	meshes      map[*model.Mesh]*gpuMesh

	bgProgram  uint32
	bgUVScale  int32
	bgVAO      uint32
	bgVBO      uint32
	bgTexture  *texture.Texture
	hasBgFrame bool

	lineProgram  uint32
	lineMVP      int32
	lineColor    int32
	lineVAO      uint32
	lineVBO      uint32
	lineCapacity int
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config: cfg,
		meshes: make(map[*model.Mesh]*gpuMesh),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)

	if err := r.createPrograms(); err != nil {
		r.Close()
		return nil, err
	}
	r.createBackgroundQuad()
	r.bgTexture = texture.New()

	gl.GenVertexArrays(1, &r.lineVAO)
	gl.GenBuffers(1, &r.lineVBO)

	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

func (r *Renderer) createPrograms() error {
	var err error
	if r.meshProgram, err = shader.Load("mesh"); err != nil {
		return fmt.Errorf("failed to create mesh program: %w", err)
	}
	r.meshLoc = meshUniforms{
		mvp:         shader.GetUniform(r.meshProgram, "uMVP"),
		model:       shader.GetUniform(r.meshProgram, "uModel"),
		baseColor:   shader.GetUniform(r.meshProgram, "uBaseColor"),
		ambient:     shader.GetUniform(r.meshProgram, "uAmbient"),
		lightColor:  shader.GetUniform(r.meshProgram, "uLightColor"),
		lightDir:    shader.GetUniform(r.meshProgram, "uLightDir"),
		doubleSided: shader.GetUniform(r.meshProgram, "uDoubleSided"),
	}

	if r.bgProgram, err = shader.Load("background"); err != nil {
		return fmt.Errorf("failed to create background program: %w", err)
	}
	r.bgUVScale = shader.GetUniform(r.bgProgram, "uUVScale")

	if r.lineProgram, err = shader.Load("line"); err != nil {
		return fmt.Errorf("failed to create line program: %w", err)
	}
	r.lineMVP = shader.GetUniform(r.lineProgram, "uMVP")
	r.lineColor = shader.GetUniform(r.lineProgram, "uColor")

	logger.Debug("shader programs created",
		zap.Uint32("mesh", r.meshProgram),
		zap.Uint32("background", r.bgProgram),
		zap.Uint32("line", r.lineProgram),
	)
	return nil
}

// createBackgroundQuad builds a full-screen strip. Texture rows are
// uploaded top first, so v grows downward.
func (r *Renderer) createBackgroundQuad() {
	vertices := []float32{
		// Position   // UV
		-1, -1, 0, 1,
		1, -1, 1, 1,
		-1, 1, 0, 0,
		1, 1, 1, 0,
	}
	gl.GenVertexArrays(1, &r.bgVAO)
	gl.BindVertexArray(r.bgVAO)
	gl.GenBuffers(1, &r.bgVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.bgVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, unsafe.Pointer(uintptr(2*4)))
	gl.EnableVertexAttribArray(1)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	for m := range r.meshes {
		r.Release(m)
	}
	if r.bgTexture != nil {
		r.bgTexture.Delete()
	}
	for _, vao := range []*uint32{&r.bgVAO, &r.lineVAO} {
		if *vao != 0 {
			gl.DeleteVertexArrays(1, vao)
			*vao = 0
		}
	}
	for _, vbo := range []*uint32{&r.bgVBO, &r.lineVBO} {
		if *vbo != 0 {
			gl.DeleteBuffers(1, vbo)
			*vbo = 0
		}
	}
	for _, p := range []*uint32{&r.meshProgram, &r.bgProgram, &r.lineProgram} {
		if *p != 0 {
			gl.DeleteProgram(*p)
			*p = 0
		}
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.BindVertexArray(0)
	gl.UseProgram(0)
}

// ReadPixels returns the current back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}

// DrawBackground uploads frame and draws it covering the viewport. A nil
// frame redraws the previous one, if any.
func (r *Renderer) DrawBackground(frame image.Image) {
	if frame != nil {
		r.bgTexture.Upload(frame)
		r.hasBgFrame = true
	}
	if !r.hasBgFrame || r.config.Width <= 0 || r.config.Height <= 0 {
		return
	}

	fw, fh := r.bgTexture.Size()
	su, sv := CoverScale(fw, fh, r.config.Width, r.config.Height)

	gl.Disable(gl.DEPTH_TEST)
	gl.DepthMask(false)
	gl.UseProgram(r.bgProgram)
	gl.Uniform2f(r.bgUVScale, su, sv)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.bgTexture.ID())
	gl.BindVertexArray(r.bgVAO)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.DepthMask(true)
	gl.Enable(gl.DEPTH_TEST)
}

// CoverScale returns the UV scale that crops a fw×fh frame to fill a
// w×h viewport without distortion.
func CoverScale(fw, fh, w, h int) (float32, float32) {
	if fw <= 0 || fh <= 0 || w <= 0 || h <= 0 {
		return 1, 1
	}
	frame := float32(fw) / float32(fh)
	view := float32(w) / float32(h)
	if frame > view {
		return view / frame, 1
	}
	return 1, frame / view
}

// DrawScene draws every visible mesh of s.
func (r *Renderer) DrawScene(s *scene.Scene, cam *camera.Perspective) {
	gl.UseProgram(r.meshProgram)

	amb := s.Ambient
	gl.Uniform3f(r.meshLoc.ambient, amb.Color[0]*amb.Intensity, amb.Color[1]*amb.Intensity, amb.Color[2]*amb.Intensity)
	dir := s.Directional
	gl.Uniform3f(r.meshLoc.lightColor, dir.Color[0]*dir.Intensity, dir.Color[1]*dir.Intensity, dir.Color[2]*dir.Intensity)
	d := dir.Direction()
	gl.Uniform3f(r.meshLoc.lightDir, d.X, d.Y, d.Z)

	vp := cam.ViewProjection()
	s.Walk(func(n *scene.Node, world math.Mat4) {
		if len(n.Meshes) == 0 {
			return
		}
		mvp := vp.Mul(world)
		gl.UniformMatrix4fv(r.meshLoc.mvp, 1, false, mvp.Ptr())
		gl.UniformMatrix4fv(r.meshLoc.model, 1, false, world.Ptr())
		for _, m := range n.Meshes {
			r.drawMesh(m)
		}
	})
	gl.Disable(gl.CULL_FACE)
}

func (r *Renderer) drawMesh(m *model.Mesh) {
	gm := r.upload(m)
	if gm == nil {
		return
	}
	c := m.Material.BaseColor
	gl.Uniform4f(r.meshLoc.baseColor, c[0], c[1], c[2], c[3])
	if m.Material.DoubleSided {
		gl.Disable(gl.CULL_FACE)
		gl.Uniform1i(r.meshLoc.doubleSided, 1)
	} else {
		gl.Enable(gl.CULL_FACE)
		gl.Uniform1i(r.meshLoc.doubleSided, 0)
	}
	gl.BindVertexArray(gm.vao)
	gl.DrawElements(gl.TRIANGLES, gm.count, gl.UNSIGNED_INT, nil)
}

// upload returns the GPU buffers for m, creating them on first use.
func (r *Renderer) upload(m *model.Mesh) *gpuMesh {
	if gm, ok := r.meshes[m]; ok {
		return gm
	}
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return nil
	}

	vertices := make([]float32, 0, len(m.Vertices)*6)
	for _, v := range m.Vertices {
		vertices = append(vertices, v.Position[0], v.Position[1], v.Position[2], v.Normal[0], v.Normal[1], v.Normal[2])
	}

	gm := &gpuMesh{count: int32(len(m.Indices))}
	gl.GenVertexArrays(1, &gm.vao)
	gl.BindVertexArray(gm.vao)

	gl.GenBuffers(1, &gm.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, gm.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	gl.GenBuffers(1, &gm.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gm.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, unsafe.Pointer(&m.Indices[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 6*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, 6*4, unsafe.Pointer(uintptr(3*4)))
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
	r.meshes[m] = gm

	logger.Debug("mesh uploaded",
		zap.String("mesh", m.Name),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int32("indices", gm.count),
	)
	return gm
}

// Release frees the GPU buffers of m.
func (r *Renderer) Release(m *model.Mesh) {
	gm, ok := r.meshes[m]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &gm.vao)
	gl.DeleteBuffers(1, &gm.vbo)
	gl.DeleteBuffers(1, &gm.ebo)
	delete(r.meshes, m)
}

// Uploaded returns the number of meshes with live GPU buffers.
func (r *Renderer) Uploaded() int {
	return len(r.meshes)
}

// DrawLines draws vertices ([x, y, z] per vertex, pairs form segments) in
// world space on top of the scene.
func (r *Renderer) DrawLines(cam *camera.Perspective, vertices []float32, color [4]float32) {
	if len(vertices) < 6 {
		return
	}
	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	if len(vertices) > r.lineCapacity {
		gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.DYNAMIC_DRAW)
		r.lineCapacity = len(vertices)
		gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, nil)
		gl.EnableVertexAttribArray(0)
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*4, unsafe.Pointer(&vertices[0]))
	}

	mvp := cam.ViewProjection()
	gl.Disable(gl.DEPTH_TEST)
	gl.UseProgram(r.lineProgram)
	gl.UniformMatrix4fv(r.lineMVP, 1, false, mvp.Ptr())
	gl.Uniform4f(r.lineColor, color[0], color[1], color[2], color[3])
	gl.DrawArrays(gl.LINES, 0, int32(len(vertices)/3))
	gl.Enable(gl.DEPTH_TEST)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}
