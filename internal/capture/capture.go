// Package capture provides live video sources for the tracker and the
// render background.
package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/draw"
)

// Frame is one captured video frame at the device's negotiated resolution.
type Frame struct {
	Image *image.RGBA
	Seq   uint64
	Time  time.Time
}

// FrameFunc receives frames on the device's goroutine. It must not block
// for long; the device does not queue frames.
type FrameFunc func(Frame)

// Device is a continuous frame source.
type Device interface {
	// Start begins delivering frames until ctx is done or Stop is called.
	Start(ctx context.Context, onFrame FrameFunc) error
	// Stop releases the source. Calling Stop more than once is safe.
	Stop() error
	// Resolution returns the negotiated frame size.
	Resolution() (width, height int)
}

// StartError reports a device that could not begin capturing.
type StartError struct {
	Source string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Source, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Fit scales src to exactly width x height. The source is scaled to cover
// the target and the overflow is cropped equally from both sides, so the
// aspect ratio is preserved.
func Fit(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	sb := src.Bounds()
	if sb.Dx() == width && sb.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst
	}
	if sb.Empty() {
		return dst
	}

	// Crop the source to the target aspect.
	crop := sb
	if sb.Dx()*height > sb.Dy()*width {
		w := sb.Dy() * width / height
		off := (sb.Dx() - w) / 2
		crop = image.Rect(sb.Min.X+off, sb.Min.Y, sb.Min.X+off+w, sb.Max.Y)
	} else if sb.Dx()*height < sb.Dy()*width {
		h := sb.Dx() * height / width
		off := (sb.Dy() - h) / 2
		crop = image.Rect(sb.Min.X, sb.Min.Y+off, sb.Max.X, sb.Min.Y+off+h)
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
