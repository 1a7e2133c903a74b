package render

import (
	"image"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/debug"
	"github.com/Faultbox/fitme-ar/internal/engine/input"
	"github.com/Faultbox/fitme-ar/internal/engine/renderer"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/engine/window"
	"github.com/Faultbox/fitme-ar/internal/logger"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// WindowConfig configures a WindowSurface.
type WindowConfig struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	VSync      bool

	// SnapshotDir receives F12 screenshots; empty disables them.
	SnapshotDir string
}

// WindowSurface presents frames in an SDL2 window with OpenGL. It must be
// created and used on the main goroutine.
type WindowSurface struct {
	title     string
	win       *window.Window
	in        *input.Input
	gl        *renderer.Renderer
	events    []Event
	highlight math.Box3
	shots     *debug.ScreenshotCapture
	shotReq   bool
	closed    bool
}

// NewWindowSurface opens the window and its renderer.
func NewWindowSurface(cfg WindowConfig) (*WindowSurface, error) {
	win, err := window.New(window.Config{
		Title:      cfg.Title,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Fullscreen: cfg.Fullscreen,
		VSync:      cfg.VSync,
	})
	if err != nil {
		return nil, err
	}

	// Viewport is in pixels, which differ from window units on high-DPI.
	w, h := win.GetDrawableSize()
	gl, err := renderer.New(renderer.Config{Width: w, Height: h})
	if err != nil {
		win.Close()
		return nil, err
	}

	s := &WindowSurface{
		title:     cfg.Title,
		win:       win,
		in:        input.New(),
		gl:        gl,
		highlight: math.EmptyBox(),
	}
	if cfg.SnapshotDir != "" {
		if s.shots, err = debug.NewScreenshotCapture(cfg.SnapshotDir, "fitme", debug.FormatPNG); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Poll drains SDL events.
func (s *WindowSurface) Poll() ([]Event, bool) {
	s.events = s.events[:0]
	if s.closed {
		return nil, true
	}
	quit := s.in.Update()
	if s.shots != nil && s.in.IsKeyPressed(sdl.SCANCODE_F12) {
		s.shotReq = true
	}
	for _, e := range s.in.Events() {
		if e.Type == input.EventWindowResize {
			w, h := s.win.GetDrawableSize()
			s.events = append(s.events, Event{Type: EventResize, Width: w, Height: h})
		}
	}
	return s.events, quit
}

// Draw renders the background, the scene and the debug overlay, then swaps.
func (s *WindowSurface) Draw(sc *scene.Scene, cam *camera.Perspective, background image.Image) error {
	if s.closed {
		return ErrClosed
	}
	s.gl.Begin()
	s.gl.DrawBackground(background)
	s.gl.DrawScene(sc, cam)
	if !s.highlight.IsEmpty() {
		s.gl.DrawLines(cam, debug.Flatten(debug.Overlay(s.highlight)), [4]float32{0, 1, 0, 1})
	}
	s.gl.End()
	if s.shotReq {
		s.shotReq = false
		s.saveSnapshot()
	}
	s.win.SwapBuffers()
	return nil
}

func (s *WindowSurface) saveSnapshot() {
	img, err := debug.FlipRows(s.gl.ReadPixels())
	if err == nil {
		var name string
		if name, err = s.shots.CaptureFromImage(img); err == nil {
			logger.Info("screenshot saved", zap.String("file", name))
			return
		}
	}
	logger.Warn("screenshot failed", zap.Error(err))
}

// Resize updates the GL viewport.
func (s *WindowSurface) Resize(w, h int) {
	s.gl.Resize(w, h)
}

// Size returns the drawable size in pixels.
func (s *WindowSurface) Size() (int, int) {
	return s.win.GetDrawableSize()
}

// SetStatus shows status in the window title.
func (s *WindowSurface) SetStatus(status string) {
	if s.closed {
		return
	}
	if status == "" {
		s.win.SetTitle(s.title)
		return
	}
	s.win.SetTitle(s.title + " | " + status)
}

// SetHighlight outlines box on following draws.
func (s *WindowSurface) SetHighlight(box math.Box3) {
	s.highlight = box
}

// Release frees the GPU buffers of every mesh under n.
func (s *WindowSurface) Release(n *scene.Node) {
	if s.closed || n == nil {
		return
	}
	for _, m := range n.Meshes {
		s.gl.Release(m)
	}
	for _, c := range n.Children {
		s.Release(c)
	}
}

// Close releases GPU resources and the window.
func (s *WindowSurface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.gl.Close()
	s.win.Close()
	return nil
}
