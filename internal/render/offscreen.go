package render

import (
	"image"
	"sync"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/debug"
	"github.com/Faultbox/fitme-ar/internal/engine/raster"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

var highlightColor = [4]uint8{0, 255, 0, 255}

// MaxSurfaceSize bounds each side of an offscreen surface.
const MaxSurfaceSize = raster.MaxDimension

func clampSize(w, h int) (int, int) {
	return max(1, min(w, MaxSurfaceSize)), max(1, min(h, MaxSurfaceSize))
}

// OffscreenSurface renders with the software rasterizer into memory.
// Snapshot, PushResize and Status may be called from any goroutine.
type OffscreenSurface struct {
	mu        sync.Mutex
	r         *raster.Renderer
	last      *image.RGBA
	events    []Event
	status    string
	highlight math.Box3
	closed    bool
}

// NewOffscreenSurface creates a w×h surface.
func NewOffscreenSurface(w, h int) *OffscreenSurface {
	return &OffscreenSurface{
		r:         raster.NewRenderer(w, h),
		highlight: math.EmptyBox(),
	}
}

// Poll returns events queued by PushResize. Offscreen surfaces never quit.
func (o *OffscreenSurface) Poll() ([]Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	events := o.events
	o.events = nil
	return events, false
}

// PushResize queues a resize event for the next Poll. Sizes are clamped
// to MaxSurfaceSize.
func (o *OffscreenSurface) PushResize(w, h int) {
	w, h = clampSize(w, h)
	o.mu.Lock()
	o.events = append(o.events, Event{Type: EventResize, Width: w, Height: h})
	o.mu.Unlock()
}

// Draw renders a frame and keeps a copy for Snapshot.
func (o *OffscreenSurface) Draw(s *scene.Scene, cam *camera.Perspective, background image.Image) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.r.Render(s, cam, background)
	if !o.highlight.IsEmpty() {
		o.r.DrawLines(cam, debug.Overlay(o.highlight), highlightColor)
	}
	o.last = o.r.FrameBuffer().Image()
	return nil
}

// Snapshot returns the last drawn frame, or nil before the first draw.
// The image is not modified by later draws.
func (o *OffscreenSurface) Snapshot() *image.RGBA {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Resize changes the render target size.
func (o *OffscreenSurface) Resize(w, h int) {
	w, h = clampSize(w, h)
	o.mu.Lock()
	o.r.Resize(w, h)
	o.mu.Unlock()
}

// Size returns the render target size.
func (o *OffscreenSurface) Size() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.r.Size()
}

// SetStatus records the status line.
func (o *OffscreenSurface) SetStatus(status string) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
}

// Status returns the current status line.
func (o *OffscreenSurface) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// SetHighlight outlines box on following draws.
func (o *OffscreenSurface) SetHighlight(box math.Box3) {
	o.mu.Lock()
	o.highlight = box
	o.mu.Unlock()
}

// Release is a no-op; the rasterizer keeps no per-mesh state.
func (o *OffscreenSurface) Release(*scene.Node) {}

// Close marks the surface closed. Later draws fail with ErrClosed.
func (o *OffscreenSurface) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}
