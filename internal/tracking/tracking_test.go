package tracking

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Faultbox/fitme-ar/internal/capture"
)

type fakeDevice struct {
	mu       sync.Mutex
	onFrame  capture.FrameFunc
	startErr error
	stops    int
	seq      uint64
}

func (d *fakeDevice) Start(ctx context.Context, onFrame capture.FrameFunc) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.onFrame = onFrame
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	d.stops++
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Resolution() (int, int) { return 8, 8 }

func (d *fakeDevice) push() {
	d.mu.Lock()
	fn := d.onFrame
	d.seq++
	f := capture.Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), Seq: d.seq, Time: time.Now()}
	d.mu.Unlock()
	fn(f)
}

type fakeEstimator struct {
	mu           sync.Mutex
	configureErr error
	next         func(capture.Frame) (*LandmarkFrame, error)
	calls        int
	closes       int
	block        chan struct{}
}

func (e *fakeEstimator) Configure(ctx context.Context, opts Options) error { return e.configureErr }

func (e *fakeEstimator) Estimate(ctx context.Context, f capture.Frame) (*LandmarkFrame, error) {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	e.calls++
	next := e.next
	e.mu.Unlock()
	return next(f)
}

func (e *fakeEstimator) Close() error {
	e.mu.Lock()
	e.closes++
	e.mu.Unlock()
	return nil
}

func nose(x, y, z, vis float32) func(capture.Frame) (*LandmarkFrame, error) {
	return func(f capture.Frame) (*LandmarkFrame, error) {
		return &LandmarkFrame{
			Seq:       f.Seq,
			Score:     0.9,
			Landmarks: []Landmark{{X: x, Y: y, Z: z, Visibility: vis, Present: true}},
		}, nil
	}
}

func receive(t *testing.T, tr *Tracker) *LandmarkFrame {
	t.Helper()
	select {
	case lf := <-tr.Results():
		return lf
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for landmarks")
		return nil
	}
}

func expectNone(t *testing.T, tr *Tracker) {
	t.Helper()
	select {
	case lf := <-tr.Results():
		t.Fatalf("expected no result, got %+v", lf)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAnchorLandmark(t *testing.T) {
	tests := []struct {
		name  string
		frame *LandmarkFrame
		ok    bool
	}{
		{name: "nil frame", frame: nil},
		{name: "no landmarks", frame: &LandmarkFrame{}},
		{name: "absent anchor", frame: &LandmarkFrame{Landmarks: []Landmark{{X: 0.5}}}},
		{name: "present anchor", frame: &LandmarkFrame{Landmarks: []Landmark{{X: 0.5, Present: true}}}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := AnchorLandmark(tt.frame)
			if ok != tt.ok {
				t.Errorf("expected ok=%v, got %v", tt.ok, ok)
			}
		})
	}
}

func TestTrackerPublishesLandmarks(t *testing.T) {
	dev := &fakeDevice{}
	est := &fakeEstimator{next: nose(0.4, 0.6, -0.1, 0.99)}
	opts := DefaultOptions()
	opts.SmoothLandmarks = false
	tr := New(dev, est, opts)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer tr.Stop()

	dev.push()
	lf := receive(t, tr)
	lm, ok := AnchorLandmark(lf)
	if !ok {
		t.Fatal("expected anchor present")
	}
	if lm.X != 0.4 || lm.Y != 0.6 || lm.Z != -0.1 {
		t.Errorf("unexpected anchor %+v", lm)
	}
	if img, seq := tr.LatestFrame(); img == nil || seq != 1 {
		t.Errorf("expected latest frame seq 1, got %v", seq)
	}
}

func TestTrackerThresholds(t *testing.T) {
	tests := []struct {
		name string
		next func(capture.Frame) (*LandmarkFrame, error)
	}{
		{name: "no body", next: func(capture.Frame) (*LandmarkFrame, error) { return nil, nil }},
		{name: "low visibility", next: nose(0.5, 0.5, 0, 0.2)},
		{name: "low score", next: func(f capture.Frame) (*LandmarkFrame, error) {
			lf, _ := nose(0.5, 0.5, 0, 0.9)(f)
			lf.Score = 0.1
			return lf, nil
		}},
		{name: "estimator error", next: func(capture.Frame) (*LandmarkFrame, error) { return nil, errors.New("boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{}
			est := &fakeEstimator{next: tt.next}
			tr := New(dev, est, DefaultOptions())
			if err := tr.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			defer tr.Stop()

			dev.push()
			expectNone(t, tr)
		})
	}
}

func TestTrackerSmoothing(t *testing.T) {
	dev := &fakeDevice{}
	est := &fakeEstimator{next: nose(0.2, 0.2, 0, 1)}
	opts := DefaultOptions()
	opts.SmoothingFactor = 0.5
	tr := New(dev, est, opts)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Stop()

	dev.push()
	first, _ := AnchorLandmark(receive(t, tr))
	if first.X != 0.2 {
		t.Fatalf("first sample is not smoothed, got %v", first.X)
	}

	est.mu.Lock()
	est.next = nose(0.6, 0.2, 0, 1)
	est.mu.Unlock()
	dev.push()
	second, _ := AnchorLandmark(receive(t, tr))
	if second.X < 0.399 || second.X > 0.401 {
		t.Errorf("expected smoothed x 0.4, got %v", second.X)
	}
}

func TestTrackerLatestWins(t *testing.T) {
	dev := &fakeDevice{}
	block := make(chan struct{})
	est := &fakeEstimator{next: func(f capture.Frame) (*LandmarkFrame, error) {
		return &LandmarkFrame{Seq: f.Seq, Score: 1, Landmarks: []Landmark{{Visibility: 1, Present: true}}}, nil
	}, block: block}
	opts := DefaultOptions()
	opts.SmoothLandmarks = false
	tr := New(dev, est, opts)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Stop()

	// The worker takes frame 1 and blocks; frames 2..5 collapse into 5.
	dev.push()
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 4; i++ {
		dev.push()
	}
	close(block)

	var last *LandmarkFrame
	deadline := time.After(2 * time.Second)
	for last == nil || last.Seq != 5 {
		select {
		case last = <-tr.Results():
		case <-deadline:
			t.Fatalf("never saw latest frame, last=%+v", last)
		}
	}
	if _, _, dropped := tr.Stats(); dropped < 3 {
		t.Errorf("expected at least 3 replaced frames, got %d", dropped)
	}
	est.mu.Lock()
	calls := est.calls
	est.mu.Unlock()
	if calls > 2 {
		t.Errorf("expected at most 2 inferences, got %d", calls)
	}
}

func TestTrackerStartFailures(t *testing.T) {
	tests := []struct {
		name      string
		dev       *fakeDevice
		est       *fakeEstimator
		component string
	}{
		{name: "camera", dev: &fakeDevice{startErr: errors.New("no camera")}, est: &fakeEstimator{}, component: "capture"},
		{name: "model", dev: &fakeDevice{}, est: &fakeEstimator{configureErr: errors.New("refused")}, component: "estimator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(tt.dev, tt.est, DefaultOptions())
			err := tr.Start(context.Background())
			var ue *UnavailableError
			if !errors.As(err, &ue) {
				t.Fatalf("expected UnavailableError, got %v", err)
			}
			if ue.Component != tt.component {
				t.Errorf("expected component %s, got %s", tt.component, ue.Component)
			}
			if tt.est.closes == 0 {
				t.Error("estimator should be released after a failed start")
			}
		})
	}
}

func TestTrackerStopIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	est := &fakeEstimator{next: nose(0.5, 0.5, 0, 1)}
	tr := New(dev, est, DefaultOptions())
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := tr.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if dev.stops != 1 || est.closes != 1 {
		t.Errorf("expected one release each, got device=%d estimator=%d", dev.stops, est.closes)
	}
	if err := tr.Start(context.Background()); err == nil {
		t.Error("Start after Stop should fail")
	}

	// Stop before Start still releases resources.
	unstarted := New(&fakeDevice{}, &fakeEstimator{}, DefaultOptions())
	if err := unstarted.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
}

func TestTrackerMaxFPS(t *testing.T) {
	dev := &fakeDevice{}
	est := &fakeEstimator{next: nose(0.5, 0.5, 0, 1)}
	opts := DefaultOptions()
	opts.MaxFPS = 1
	tr := New(dev, est, opts)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Stop()

	dev.push()
	receive(t, tr)
	for i := 0; i < 5; i++ {
		dev.push()
		time.Sleep(5 * time.Millisecond)
	}
	expectNone(t, tr)
}

func TestWSEstimator(t *testing.T) {
	upgrader := websocket.Upgrader{}
	configs := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, cfg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		configs <- string(cfg)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ack"}`))

		frames := 0
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage || len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"expected jpeg"}`))
				continue
			}
			frames++
			if frames == 1 {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"result","score":0.8,"poseLandmarks":[{"x":0.5,"y":0.25,"z":-0.2,"visibility":0.97}]}`))
			} else {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"result","poseLandmarks":null}`))
			}
		}
	}))
	defer srv.Close()

	est := NewWSEstimator("ws"+strings.TrimPrefix(srv.URL, "http"), time.Second)
	ctx := context.Background()
	if err := est.Configure(ctx, DefaultOptions()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	frame := capture.Frame{Image: image.NewRGBA(image.Rect(0, 0, 16, 16)), Seq: 7}
	lf, err := est.Estimate(ctx, frame)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if lf == nil || lf.Seq != 7 || lf.Score != 0.8 {
		t.Fatalf("unexpected frame %+v", lf)
	}
	lm, ok := AnchorLandmark(lf)
	if !ok || lm.Y != 0.25 || lm.Visibility != 0.97 {
		t.Errorf("unexpected anchor %+v", lm)
	}

	lf, err = est.Estimate(ctx, frame)
	if err != nil || lf != nil {
		t.Errorf("expected no body, got %+v %v", lf, err)
	}

	gotConfig := <-configs
	if !strings.Contains(gotConfig, `"modelComplexity":1`) || !strings.Contains(gotConfig, `"refineFaceLandmarks":true`) {
		t.Errorf("config message missing options: %s", gotConfig)
	}

	if err := est.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := est.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := est.Estimate(ctx, frame); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestWSEstimatorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	dev := &fakeDevice{}
	tr := New(dev, NewWSEstimator(url, 200*time.Millisecond), DefaultOptions())
	err := tr.Start(context.Background())
	var ue *UnavailableError
	if !errors.As(err, &ue) || ue.Component != "estimator" {
		t.Fatalf("expected estimator UnavailableError, got %v", err)
	}
	tr.Stop()
}
