package tracking

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Faultbox/fitme-ar/internal/capture"
	"github.com/Faultbox/fitme-ar/internal/logger"
)

// Tracker feeds captured frames to an Estimator on one worker goroutine.
// While the worker is busy, newer frames replace older pending ones.
// Results are published on a channel that holds only the latest frame.
type Tracker struct {
	device capture.Device
	est    Estimator
	opts   Options
	log    *zap.Logger

	limiter *rate.Limiter
	mailbox chan capture.Frame
	results chan *LandmarkFrame

	frameMu     sync.RWMutex
	latestFrame *image.RGBA
	latestSeq   uint64

	// Worker-owned smoothing state.
	prev []Landmark

	captured atomic.Uint64
	inferred atomic.Uint64
	dropped  atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a tracker. Nothing runs until Start.
func New(device capture.Device, est Estimator, opts Options) *Tracker {
	t := &Tracker{
		device:  device,
		est:     est,
		opts:    opts,
		log:     logger.Named("tracker"),
		mailbox: make(chan capture.Frame, 1),
		results: make(chan *LandmarkFrame, 1),
	}
	if opts.MaxFPS > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.MaxFPS), 1)
	}
	if t.opts.SmoothingFactor <= 0 || t.opts.SmoothingFactor > 1 {
		t.opts.SmoothingFactor = 1
	}
	return t
}

// Start configures the estimator, then starts the capture device and the
// inference worker. Failures are returned as *UnavailableError and leave
// nothing running.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return &UnavailableError{Component: "tracker", Err: ErrClosed}
	}
	if t.started {
		return nil
	}

	if err := t.est.Configure(ctx, t.opts); err != nil {
		t.est.Close()
		return &UnavailableError{Component: "estimator", Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := t.device.Start(ctx, t.onFrame); err != nil {
		cancel()
		t.device.Stop()
		t.est.Close()
		return &UnavailableError{Component: "capture", Err: err}
	}

	t.cancel = cancel
	t.started = true
	t.wg.Add(1)
	go t.worker(ctx)

	w, h := t.device.Resolution()
	t.log.Info("tracker started",
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("model_complexity", t.opts.ModelComplexity),
		zap.Float64("max_fps", t.opts.MaxFPS))
	return nil
}

// Results returns the channel of landmark frames. It holds at most one
// frame, always the most recent.
func (t *Tracker) Results() <-chan *LandmarkFrame {
	return t.results
}

// LatestFrame returns the most recently captured video frame, or nil.
// The image must not be modified.
func (t *Tracker) LatestFrame() (*image.RGBA, uint64) {
	t.frameMu.RLock()
	defer t.frameMu.RUnlock()
	return t.latestFrame, t.latestSeq
}

// Stats returns counts of captured frames, completed inferences, and frames
// replaced before inference.
func (t *Tracker) Stats() (captured, inferred, dropped uint64) {
	return t.captured.Load(), t.inferred.Load(), t.dropped.Load()
}

// Stop halts capture and inference and releases the device and estimator.
// It is safe to call more than once, and before Start.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	cancel, started := t.cancel, t.started
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	devErr := t.device.Stop()
	t.wg.Wait()
	estErr := t.est.Close()

	if started {
		captured, inferred, dropped := t.Stats()
		t.log.Info("tracker stopped",
			zap.Uint64("captured", captured),
			zap.Uint64("inferred", inferred),
			zap.Uint64("dropped", dropped))
	}
	if devErr != nil {
		return devErr
	}
	return estErr
}

func (t *Tracker) onFrame(f capture.Frame) {
	t.captured.Add(1)
	t.frameMu.Lock()
	t.latestFrame = f.Image
	t.latestSeq = f.Seq
	t.frameMu.Unlock()

	for {
		select {
		case t.mailbox <- f:
			return
		default:
		}
		select {
		case <-t.mailbox:
			t.dropped.Add(1)
		default:
		}
	}
}

func (t *Tracker) worker(ctx context.Context) {
	defer t.wg.Done()

	var failures int
	for {
		var f capture.Frame
		select {
		case <-ctx.Done():
			return
		case f = <-t.mailbox:
		}

		if t.limiter != nil && !t.limiter.Allow() {
			t.dropped.Add(1)
			continue
		}

		lf, err := t.est.Estimate(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if failures == 1 || failures%100 == 0 {
				t.log.Warn("pose estimation failed", zap.Error(err), zap.Int("failures", failures))
			}
			continue
		}
		failures = 0
		t.inferred.Add(1)

		if lf = t.filter(lf); lf == nil {
			continue
		}
		t.publish(lf)
	}
}

// filter applies confidence thresholds and smoothing. It returns nil when
// the frame counts as no body.
func (t *Tracker) filter(lf *LandmarkFrame) *LandmarkFrame {
	if lf == nil || lf.Score < t.opts.MinDetectionConfidence {
		t.prev = nil
		return nil
	}

	anyPresent := false
	for i := range lf.Landmarks {
		lm := &lf.Landmarks[i]
		if lm.Visibility < t.opts.MinTrackingConfidence {
			lm.Present = false
		}
		if !lm.Present {
			continue
		}
		anyPresent = true
		if t.opts.SmoothLandmarks && i < len(t.prev) && t.prev[i].Present {
			a := t.opts.SmoothingFactor
			p := t.prev[i]
			lm.X = p.X + a*(lm.X-p.X)
			lm.Y = p.Y + a*(lm.Y-p.Y)
			lm.Z = p.Z + a*(lm.Z-p.Z)
		}
	}
	if !anyPresent {
		t.prev = nil
		return nil
	}

	t.prev = append(t.prev[:0], lf.Landmarks...)
	return lf
}

func (t *Tracker) publish(lf *LandmarkFrame) {
	for {
		select {
		case t.results <- lf:
			return
		default:
		}
		select {
		case <-t.results:
		default:
		}
	}
}
