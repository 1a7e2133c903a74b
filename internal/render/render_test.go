package render

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

type fakeSurface struct {
	w, h     int
	pending  []Event
	quit     bool
	draws    int
	drawErr  error
	resizes  [][2]int
	status   string
	released []*scene.Node
	closed   int
}

func (f *fakeSurface) Poll() ([]Event, bool) {
	e := f.pending
	f.pending = nil
	return e, f.quit
}

func (f *fakeSurface) Draw(*scene.Scene, *camera.Perspective, image.Image) error {
	f.draws++
	return f.drawErr
}

func (f *fakeSurface) Resize(w, h int) {
	f.w, f.h = w, h
	f.resizes = append(f.resizes, [2]int{w, h})
}

func (f *fakeSurface) Size() (int, int) { return f.w, f.h }
func (f *fakeSurface) SetStatus(s string) { f.status = s }
func (f *fakeSurface) Release(n *scene.Node) { f.released = append(f.released, n) }
func (f *fakeSurface) Close() error { f.closed++; return nil }

func TestLoopInitialAspect(t *testing.T) {
	surf := &fakeSurface{w: 1280, h: 720}
	cam := camera.NewPerspective(1)
	NewLoop(surf, scene.New(), cam, 0)
	if d := cam.Aspect - 1280.0/720.0; d > 1e-5 || d < -1e-5 {
		t.Errorf("expected aspect from surface, got %v", cam.Aspect)
	}
}

func TestLoopResize(t *testing.T) {
	surf := &fakeSurface{w: 1280, h: 720}
	cam := camera.NewPerspective(1)
	s := scene.New()
	mesh := scene.NewNode("mesh")
	mesh.Position = math.Vec3{X: 1, Y: 2, Z: 3}
	mesh.Scale = math.Vec3{X: 2, Y: 2, Z: 2}
	s.Add(mesh)

	l := NewLoop(surf, s, cam, 30)
	before := mesh.LocalMatrix()
	surf.pending = []Event{{Type: EventResize, Width: 600, Height: 800}}
	if _, err := l.Tick(time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(surf.resizes) != 1 || surf.resizes[0] != [2]int{600, 800} {
		t.Errorf("surface not resized: %v", surf.resizes)
	}
	if d := cam.Aspect - 0.75; d > 1e-5 || d < -1e-5 {
		t.Errorf("expected aspect 0.75, got %v", cam.Aspect)
	}
	if mesh.LocalMatrix() != before {
		t.Error("resize must not touch the mesh transform")
	}
	if surf.draws != 1 {
		t.Errorf("expected one draw, got %d", surf.draws)
	}
}

func TestLoopIgnoresDegenerateResize(t *testing.T) {
	surf := &fakeSurface{w: 100, h: 50}
	cam := camera.NewPerspective(1)
	l := NewLoop(surf, scene.New(), cam, 30)
	surf.pending = []Event{{Type: EventResize, Width: 0, Height: 10}}
	l.Tick(time.Now())
	if len(surf.resizes) != 0 || cam.Aspect != 2 {
		t.Errorf("zero size should be ignored, resizes=%v aspect=%v", surf.resizes, cam.Aspect)
	}
}

func TestLoopHooksRunBeforeDraw(t *testing.T) {
	surf := &fakeSurface{w: 10, h: 10}
	l := NewLoop(surf, scene.New(), camera.NewPerspective(1), 30)
	var order []string
	l.OnTick(func(time.Time) { order = append(order, "a") })
	l.OnTick(func(time.Time) {
		order = append(order, "b")
		if surf.draws != 0 {
			t.Error("hook ran after draw")
		}
	})
	l.Tick(time.Now())
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("unexpected hook order %v", order)
	}
	if l.Frames() != 1 {
		t.Errorf("expected 1 frame, got %d", l.Frames())
	}
}

func TestLoopQuit(t *testing.T) {
	surf := &fakeSurface{w: 10, h: 10, quit: true}
	l := NewLoop(surf, scene.New(), camera.NewPerspective(1), 200)
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if surf.draws != 0 {
		t.Errorf("should not draw after quit, got %d", surf.draws)
	}
}

func TestLoopDrawError(t *testing.T) {
	boom := errors.New("lost context")
	surf := &fakeSurface{w: 10, h: 10, drawErr: boom}
	l := NewLoop(surf, scene.New(), camera.NewPerspective(1), 200)
	if err := l.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected draw error, got %v", err)
	}
}

func TestLoopStop(t *testing.T) {
	surf := &fakeSurface{w: 10, h: 10}
	l := NewLoop(surf, scene.New(), camera.NewPerspective(1), 200)
	l.Stop()
	l.Stop()

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestLoopContextCancel(t *testing.T) {
	surf := &fakeSurface{w: 10, h: 10}
	l := NewLoop(surf, scene.New(), camera.NewPerspective(1), 200)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOffscreenSurfaceClampsSize(t *testing.T) {
	o := NewOffscreenSurface(32, 24)
	o.PushResize(1<<30, 600)
	events, _ := o.Poll()
	if len(events) != 1 || events[0].Width != MaxSurfaceSize || events[0].Height != 600 {
		t.Fatalf("unexpected events %+v", events)
	}
	o.Resize(MaxSurfaceSize+1, 1<<30)
	if w, h := o.Size(); w != MaxSurfaceSize || h != MaxSurfaceSize {
		t.Errorf("expected %dx%d, got %dx%d", MaxSurfaceSize, MaxSurfaceSize, w, h)
	}
}

func TestOffscreenSurface(t *testing.T) {
	o := NewOffscreenSurface(32, 24)
	if o.Snapshot() != nil {
		t.Error("expected no snapshot before first draw")
	}

	s := scene.New()
	n := scene.NewNode("tri")
	n.Meshes = []*model.Mesh{{
		Vertices: []model.Vertex{
			{Position: [3]float32{-50, -50, 0}},
			{Position: [3]float32{50, -50, 0}},
			{Position: [3]float32{0, 50, 0}},
		},
		Indices:  []uint32{0, 1, 2},
		Material: model.DefaultMaterial(),
	}}
	s.Add(n)
	cam := camera.NewPerspective(32.0 / 24.0)

	if err := o.Draw(s, cam, nil); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	snap := o.Snapshot()
	if snap == nil || snap.Bounds().Dx() != 32 || snap.Bounds().Dy() != 24 {
		t.Fatalf("unexpected snapshot %v", snap)
	}

	o.PushResize(64, 48)
	events, quit := o.Poll()
	if quit || len(events) != 1 || events[0].Width != 64 {
		t.Errorf("unexpected events %v quit=%v", events, quit)
	}
	if events, _ := o.Poll(); len(events) != 0 {
		t.Error("events should be drained")
	}

	o.Resize(64, 48)
	o.Draw(s, cam, nil)
	if snap.Bounds().Dx() != 32 {
		t.Error("earlier snapshot must not change")
	}
	if o.Snapshot().Bounds().Dx() != 64 {
		t.Error("snapshot should follow resize")
	}

	o.SetStatus("Loading AR Experience: 40%")
	if o.Status() != "Loading AR Experience: 40%" {
		t.Errorf("unexpected status %q", o.Status())
	}

	o.Close()
	o.Close()
	if err := o.Draw(s, cam, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
