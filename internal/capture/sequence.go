package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ftrvxmtrx/tga"
	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/logger"
)

// SequenceDevice replays a directory of still frames at a fixed rate.
// Frames are decoded once at Start.
type SequenceDevice struct {
	Dir    string
	Width  int
	Height int
	FPS    int
	Loop   bool

	mu      sync.Mutex
	frames  []*image.RGBA
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewSequenceDevice creates a device for dir.
func NewSequenceDevice(dir string, width, height, fps int, loop bool) *SequenceDevice {
	return &SequenceDevice{Dir: dir, Width: width, Height: height, FPS: fps, Loop: loop}
}

// Resolution returns the output frame size.
func (d *SequenceDevice) Resolution() (int, int) {
	return d.Width, d.Height
}

// Start decodes the frames and starts playback.
func (d *SequenceDevice) Start(ctx context.Context, onFrame FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return &StartError{Source: d.Dir, Err: errors.New("already started")}
	}

	frames, err := loadFrames(d.Dir, d.Width, d.Height)
	if err != nil {
		return &StartError{Source: d.Dir, Err: err}
	}
	d.frames = frames
	d.stopped = false

	fps := d.FPS
	if fps <= 0 {
		fps = 30
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, onFrame, time.Second/time.Duration(fps))

	logger.Info("sequence capture started",
		zap.String("dir", d.Dir),
		zap.Int("frames", len(frames)),
		zap.Int("fps", fps))
	return nil
}

func (d *SequenceDevice) run(ctx context.Context, onFrame FrameFunc, interval time.Duration) {
	defer close(d.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	i := 0
	for {
		if i >= len(d.frames) {
			if !d.Loop {
				return
			}
			i = 0
		}
		seq++
		onFrame(Frame{Image: d.frames[i], Seq: seq, Time: time.Now()})
		i++

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop ends playback and waits for the playback goroutine to exit.
func (d *SequenceDevice) Stop() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.stopped = true
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Stopped reports whether Stop has been called since the last Start.
func (d *SequenceDevice) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

func loadFrames(dir string, width, height int) ([]*image.RGBA, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if decoderFor(e.Name()) != nil {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no png, jpeg or tga frames in %s", dir)
	}
	sort.Strings(names)

	frames := make([]*image.RGBA, 0, len(names))
	for _, name := range names {
		img, err := decodeFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		frames = append(frames, Fit(img, width, height))
	}
	return frames, nil
}

func decoderFor(name string) func(io.Reader) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return png.Decode
	case ".jpg", ".jpeg":
		return jpeg.Decode
	case ".tga":
		return tga.Decode
	}
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decoderFor(path)(f)
}
