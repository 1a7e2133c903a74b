// Package session wires measurement fetch, mesh loading, fitting, body
// tracking and placement into one AR view rendered by a render.Loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/assets"
	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/lighting"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/fit"
	"github.com/Faultbox/fitme-ar/internal/logger"
	"github.com/Faultbox/fitme-ar/internal/measure"
	"github.com/Faultbox/fitme-ar/internal/placement"
	"github.com/Faultbox/fitme-ar/internal/render"
	"github.com/Faultbox/fitme-ar/internal/tracking"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")
	// ErrNoProfile is returned by ReplaceAsset before measurements arrived.
	ErrNoProfile = errors.New("session: no measurement profile yet")
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Tracker is the landmark producer. *tracking.Tracker implements it.
type Tracker interface {
	Start(ctx context.Context) error
	Results() <-chan *tracking.LandmarkFrame
	LatestFrame() (*image.RGBA, uint64)
	Stop() error
}

// Options holds a session's collaborators.
type Options struct {
	Surface render.Surface   // required
	Source  measure.Source   // required
	Loader  *assets.Loader   // nil uses assets.NewLoader()
	Tracker Tracker          // nil renders without video or tracking
	Scales  placement.Scales // zero uses placement.DefaultScales()
	Lights  *lighting.Rig    // nil keeps the scene's default lights

	FPS        int  // render rate, 0 for render.DefaultFPS
	ShowBounds bool // outline the fitted mesh
	LogFPS     bool
}

type loadResult struct {
	gen  uint64
	node *scene.Node
	fit  *fit.Result
	err  error
}

// Session is one AR try-on view.
type Session struct {
	id   string
	log  *zap.Logger
	opts Options

	scene     *scene.Scene
	camera    *camera.Perspective
	loop      *render.Loop
	placement *placement.Controller

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	loadGen    atomic.Uint64
	state      atomic.Int32
	trackingOn atomic.Bool

	mu           sync.Mutex
	started      bool
	closed       bool
	profile      *measure.Profile
	pending      *loadResult
	status       string
	trackWarning string
	err          error
	runDone      chan struct{}

	// Render goroutine only.
	mesh       *scene.Node
	shownState string

	closeOnce sync.Once
	closeErr  error
}

// New creates a session. Nothing runs until Start and Run.
func New(opts Options) (*Session, error) {
	if opts.Surface == nil {
		return nil, errors.New("session: surface is required")
	}
	if opts.Source == nil {
		return nil, errors.New("session: measurement source is required")
	}
	if opts.Loader == nil {
		opts.Loader = assets.NewLoader()
	}
	if opts.Scales == (placement.Scales{}) {
		opts.Scales = placement.DefaultScales()
	}

	id := uuid.NewString()
	s := &Session{
		id:        id,
		log:       logger.With(zap.String("session", id)),
		opts:      opts,
		scene:     scene.New(),
		camera:    camera.NewPerspective(1),
		placement: placement.New(opts.Scales),
	}
	if opts.Lights != nil {
		opts.Lights.Apply(s.scene)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.loop = render.NewLoop(opts.Surface, s.scene, s.camera, opts.FPS)
	s.loop.LogFPS = opts.LogFPS
	s.loop.OnTick(s.tick)
	s.loop.SetBackground(s.background)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Scene returns the scene drawn by the session.
func (s *Session) Scene() *scene.Scene {
	return s.scene
}

// Camera returns the session camera.
func (s *Session) Camera() *camera.Perspective {
	return s.camera
}

// Loop returns the render loop.
func (s *Session) Loop() *render.Loop {
	return s.loop
}

// State returns the lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Status returns the status text last requested for the surface.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that failed the last load, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Mesh returns the inserted mesh, or nil. Call from the render goroutine.
func (s *Session) Mesh() *scene.Node {
	return s.mesh
}

// Start begins tracking and the asset load. Tracking failures are reported
// as a warning status; the mesh still renders without following the body.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.log.Info("session starting")
	if s.opts.Tracker != nil {
		if err := s.opts.Tracker.Start(ctx); err != nil {
			s.log.Warn("tracking unavailable", zap.Error(err))
			s.mu.Lock()
			s.trackWarning = "Tracking unavailable: " + err.Error()
			s.mu.Unlock()
		} else {
			s.trackingOn.Store(true)
		}
	}

	s.startLoad("")
	return nil
}

// ReplaceAsset loads locator with the current measurements and swaps it
// in for the current mesh once fitted. An in-flight load is superseded.
func (s *Session) ReplaceAsset(locator string) error {
	s.mu.Lock()
	closed, profile := s.closed, s.profile
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if profile == nil {
		return ErrNoProfile
	}
	s.startLoad(locator)
	return nil
}

func (s *Session) startLoad(locator string) {
	gen := s.loadGen.Add(1)
	s.state.Store(int32(StateLoading))
	s.setStatus(loadingStatus(0))
	s.wg.Add(1)
	go s.load(gen, locator)
}

func loadingStatus(pct int) string {
	return fmt.Sprintf("Loading AR Experience: %d%%", pct)
}

// load fetches measurements (unless replacing), loads and fits the mesh,
// then hands the result to the render goroutine.
func (s *Session) load(gen uint64, locator string) {
	defer s.wg.Done()
	ctx := s.ctx
	res := &loadResult{gen: gen}
	defer s.deliver(res)

	s.mu.Lock()
	profile := s.profile
	s.mu.Unlock()
	if locator == "" || profile == nil {
		p, err := s.opts.Source.Fetch(ctx)
		if err != nil {
			res.err = err
			return
		}
		s.mu.Lock()
		s.profile = p
		s.mu.Unlock()
		profile = p
		s.log.Info("measurements received", zap.Stringer("record", profile.Record))
	}
	if locator == "" {
		locator = profile.MeshURL
	}

	node, err := s.opts.Loader.Load(ctx, locator, func(p assets.Progress) {
		if pct := p.Percent(); pct >= 0 && s.loadGen.Load() == gen {
			s.setStatus(loadingStatus(pct))
		}
	})
	if err != nil {
		res.err = err
		return
	}

	// The node is still detached, so fitting cannot race the renderer.
	fr, err := fit.Apply(node, profile.Record)
	if err != nil {
		res.err = err
		return
	}
	res.node, res.fit = node, fr
}

func (s *Session) deliver(res *loadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ctx.Err() != nil || res.gen != s.loadGen.Load() {
		s.log.Debug("discarding stale load", zap.Uint64("gen", res.gen))
		return
	}
	s.pending = res
}

// tick runs on the render goroutine before each draw.
func (s *Session) tick(time.Time) {
	s.applyLoad()

	if s.trackingOn.Load() {
		select {
		case f := <-s.opts.Tracker.Results():
			s.placement.Update(f)
		default:
		}
	}

	if h, ok := s.opts.Surface.(render.Highlighter); ok && s.opts.ShowBounds {
		box := math.EmptyBox()
		if s.mesh != nil {
			box = scene.BoundingBox(s.mesh)
		}
		h.SetHighlight(box)
	}

	s.mu.Lock()
	status := s.status
	s.mu.Unlock()
	if status != s.shownState {
		s.opts.Surface.SetStatus(status)
		s.shownState = status
	}
}

func (s *Session) applyLoad() {
	s.mu.Lock()
	res := s.pending
	s.pending = nil
	s.mu.Unlock()
	if res == nil {
		return
	}

	if res.err != nil {
		s.fail(res.err)
		return
	}

	if s.mesh != nil {
		s.scene.Remove(s.mesh)
		s.opts.Surface.Release(s.mesh)
		s.placement.Detach()
	}
	s.scene.Add(res.node)
	s.mesh = res.node
	s.placement.Attach(res.node, res.fit)
	s.state.Store(int32(StateReady))

	s.mu.Lock()
	s.err = nil
	s.status = s.trackWarning
	s.mu.Unlock()

	f := res.fit.Factors
	s.log.Info("mesh inserted",
		zap.String("mesh", res.node.Name),
		zap.Float32("scale_x", f.X),
		zap.Float32("scale_y", f.Y),
		zap.Float32("scale_z", f.Z))
}

func (s *Session) fail(err error) {
	s.state.Store(int32(StateFailed))
	s.log.Error("session load failed", zap.String("kind", errorKind(err)), zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.status = "Error: " + err.Error()
	s.mu.Unlock()
}

func errorKind(err error) string {
	var (
		dataErr  *measure.DataUnavailableError
		loadErr  *assets.LoadError
		scaleErr *fit.ScalingError
		trackErr *tracking.UnavailableError
	)
	switch {
	case errors.As(err, &dataErr):
		return "data_unavailable"
	case errors.As(err, &loadErr):
		return "asset_load"
	case errors.As(err, &scaleErr):
		return "scaling"
	case errors.As(err, &trackErr):
		return "tracking_unavailable"
	default:
		return "unknown"
	}
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) background() image.Image {
	if !s.trackingOn.Load() {
		return nil
	}
	frame, _ := s.opts.Tracker.LatestFrame()
	if frame == nil {
		return nil
	}
	return frame
}

// Run drives the render loop on the calling goroutine until ctx is done,
// the surface quits or Close is called.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	done := make(chan struct{})
	s.runDone = done
	s.mu.Unlock()
	defer close(done)

	return s.loop.Run(ctx)
}

// Close cancels any in-flight load, stops tracking, stops the render loop
// and releases the surface, in that order. It may be called before Start,
// and more than once. It must not be called from a tick hook.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		done := s.runDone
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()

		var errs []error
		if s.opts.Tracker != nil {
			if err := s.opts.Tracker.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop tracker: %w", err))
			}
		}

		s.loop.Stop()
		if done != nil {
			<-done
		}

		if s.mesh != nil {
			s.opts.Surface.Release(s.mesh)
		}
		if err := s.opts.Surface.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close surface: %w", err))
		}
		s.state.Store(int32(StateClosed))
		s.closeErr = errors.Join(errs...)
		s.log.Info("session closed")
	})
	return s.closeErr
}
