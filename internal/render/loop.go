package render

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/logger"
)

// DefaultFPS paces the loop when no limit is configured.
const DefaultFPS = 60

// TickFunc runs on the render goroutine before each draw.
type TickFunc func(now time.Time)

// BackgroundFunc returns the latest video frame, or nil.
type BackgroundFunc func() image.Image

// Loop redraws the scene on every tick until stopped.
type Loop struct {
	surface Surface
	scene   *scene.Scene
	camera  *camera.Perspective
	fps     int
	log     *zap.Logger

	// LogFPS logs the measured frame rate once per second.
	LogFPS bool

	hooks      []TickFunc
	background BackgroundFunc

	frames   atomic.Uint64
	stopOnce sync.Once
	stop     chan struct{}
	running  atomic.Bool
}

// NewLoop creates a loop drawing s through cam onto surface at fps frames
// per second (0 means DefaultFPS). The camera aspect follows the surface.
func NewLoop(surface Surface, s *scene.Scene, cam *camera.Perspective, fps int) *Loop {
	if fps <= 0 {
		fps = DefaultFPS
	}
	l := &Loop{
		surface: surface,
		scene:   s,
		camera:  cam,
		fps:     fps,
		log:     logger.Named("render"),
		stop:    make(chan struct{}),
	}
	cam.SetAspect(surface.Size())
	return l
}

// OnTick registers fn to run before every draw. Hooks run in registration
// order. Register hooks before Run.
func (l *Loop) OnTick(fn TickFunc) {
	l.hooks = append(l.hooks, fn)
}

// SetBackground sets the video frame source. Register before Run.
func (l *Loop) SetBackground(fn BackgroundFunc) {
	l.background = fn
}

// Frames returns the number of frames drawn.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Run draws frames until ctx is done, Stop is called or the surface asks
// to quit. It must be called from the goroutine that owns the surface.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	l.log.Info("render loop started", zap.Int("fps", l.fps))
	var (
		count    int
		fpsTimer = time.Now()
	)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("render loop stopped", zap.String("reason", "context"))
			return nil
		case <-l.stop:
			l.log.Info("render loop stopped", zap.String("reason", "stop"))
			return nil
		case now := <-ticker.C:
			quit, err := l.Tick(now)
			if err != nil {
				return err
			}
			if quit {
				l.log.Info("render loop stopped", zap.String("reason", "quit"))
				return nil
			}

			count++
			if l.LogFPS && time.Since(fpsTimer) >= time.Second {
				l.log.Info("fps", zap.Int("count", count))
				count = 0
				fpsTimer = time.Now()
			}
		}
	}
}

// Tick processes surface events, runs hooks and draws one frame. It
// reports whether the surface asked to quit.
func (l *Loop) Tick(now time.Time) (bool, error) {
	events, quit := l.surface.Poll()
	for _, e := range events {
		switch e.Type {
		case EventResize:
			l.resize(e.Width, e.Height)
		case EventQuit:
			quit = true
		}
	}
	if quit {
		return true, nil
	}

	for _, fn := range l.hooks {
		fn(now)
	}

	var bg image.Image
	if l.background != nil {
		bg = l.background()
	}
	if err := l.surface.Draw(l.scene, l.camera, bg); err != nil {
		return false, fmt.Errorf("draw frame: %w", err)
	}
	l.frames.Add(1)
	return false, nil
}

// Stop ends Run. It is safe to call more than once and before Run.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop) resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	l.surface.Resize(w, h)
	l.camera.SetAspect(w, h)
	l.log.Debug("surface resized", zap.Int("width", w), zap.Int("height", h))
}
