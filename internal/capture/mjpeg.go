package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/logger"
)

// maxPartSize caps one JPEG part.
const maxPartSize = 8 << 20

// MJPEGDevice reads a multipart/x-mixed-replace JPEG stream, the format
// served by mjpg-streamer, ffmpeg and most IP cameras. It reconnects with
// backoff after the stream drops.
type MJPEGDevice struct {
	URL    string
	Width  int
	Height int
	Client *http.Client

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	log     *zap.Logger
}

// NewMJPEGDevice creates a device for url.
func NewMJPEGDevice(url string, width, height int) *MJPEGDevice {
	return &MJPEGDevice{URL: url, Width: width, Height: height, Client: &http.Client{}}
}

// Resolution returns the output frame size.
func (d *MJPEGDevice) Resolution() (int, int) {
	return d.Width, d.Height
}

// Start connects to the stream. The first connection is made synchronously
// so an unreachable camera is reported to the caller.
func (d *MJPEGDevice) Start(ctx context.Context, onFrame FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return &StartError{Source: d.URL, Err: errors.New("already started")}
	}
	d.log = logger.Named("capture").With(zap.String("url", d.URL))

	ctx, cancel := context.WithCancel(ctx)
	body, boundary, err := d.connect(ctx)
	if err != nil {
		cancel()
		return &StartError{Source: d.URL, Err: err}
	}

	d.cancel = cancel
	d.stopped = false
	d.done = make(chan struct{})
	go d.run(ctx, body, boundary, onFrame)
	d.log.Info("mjpeg capture started")
	return nil
}

func (d *MJPEGDevice) connect(ctx context.Context) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, "", fmt.Errorf("not a multipart stream: %q", resp.Header.Get("Content-Type"))
	}
	return resp.Body, strings.TrimPrefix(params["boundary"], "--"), nil
}

func (d *MJPEGDevice) run(ctx context.Context, body io.ReadCloser, boundary string, onFrame FrameFunc) {
	defer close(d.done)

	var seq uint64
	backoff := 250 * time.Millisecond
	for {
		err := d.readStream(ctx, body, boundary, onFrame, &seq)
		body.Close()
		if ctx.Err() != nil {
			return
		}
		d.log.Warn("mjpeg stream interrupted", zap.Error(err), zap.Duration("retry", backoff))

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			body, boundary, err = d.connect(ctx)
			if err == nil {
				backoff = 250 * time.Millisecond
				break
			}
			if ctx.Err() != nil {
				return
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
		}
	}
}

func (d *MJPEGDevice) readStream(ctx context.Context, body io.Reader, boundary string, onFrame FrameFunc, seq *uint64) error {
	mr := multipart.NewReader(body, boundary)
	var buf bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err != nil {
			return err
		}
		buf.Reset()
		_, err = io.Copy(&buf, io.LimitReader(part, maxPartSize))
		part.Close()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		img, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			d.log.Debug("skipping undecodable frame", zap.Error(err))
			continue
		}
		*seq++
		onFrame(Frame{Image: Fit(img, d.Width, d.Height), Seq: *seq, Time: time.Now()})
	}
}

// Stop closes the stream and waits for the reader goroutine to exit.
func (d *MJPEGDevice) Stop() error {
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
func (d *MJPEGDevice) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}
