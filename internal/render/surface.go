// Package render drives the per-frame draw of the AR scene over the video
// background onto a display surface.
package render

import (
	"errors"
	"image"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

// ErrClosed is returned when drawing to a closed surface.
var ErrClosed = errors.New("render: surface closed")

// EventType identifies a surface event.
type EventType int

const (
	EventNone EventType = iota
	EventResize
	EventQuit
)

// Event is an input or window event reported by a surface.
type Event struct {
	Type   EventType
	Width  int
	Height int
}

// Surface is a display target. Its methods are called from the render
// goroutine only.
type Surface interface {
	// Poll returns pending events and whether the user asked to quit.
	Poll() ([]Event, bool)
	// Draw composites the scene over background and presents it.
	Draw(s *scene.Scene, cam *camera.Perspective, background image.Image) error
	// Resize changes the drawable size.
	Resize(width, height int)
	// Size returns the drawable size.
	Size() (int, int)
	// SetStatus shows a user-visible status line. Empty clears it.
	SetStatus(status string)
	// Release frees any per-mesh resources held for the subtree at n.
	Release(n *scene.Node)
	// Close releases the surface. It is safe to call more than once.
	Close() error
}

// Highlighter is implemented by surfaces that can outline a box over the
// scene for debugging.
type Highlighter interface {
	// SetHighlight outlines box on following draws. An empty box clears it.
	SetHighlight(box math.Box3)
}
