// Package raster is a software triangle rasterizer used by the offscreen
// and streaming surfaces.
package raster

import (
	"image"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"
)

// FrameBuffer holds the render target as flat slices.
type FrameBuffer struct {
	Width  int
	Height int
	Color  []uint8   // RGBA interleaved, len = W*H*4
	Depth  []float32 // NDC depth per pixel, +Inf when empty
}

// MaxDimension bounds each side of a frame buffer.
const MaxDimension = 4096

// NewFrameBuffer allocates a cleared buffer. Sizes are clamped to
// [1, MaxDimension].
func NewFrameBuffer(w, h int) *FrameBuffer {
	fb := &FrameBuffer{}
	fb.Resize(w, h)
	return fb
}

// Resize reallocates the buffer when the size changes.
func (fb *FrameBuffer) Resize(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	w, h = min(w, MaxDimension), min(h, MaxDimension)
	if w == fb.Width && h == fb.Height && fb.Color != nil {
		return
	}
	fb.Width, fb.Height = w, h
	fb.Color = make([]uint8, w*h*4)
	fb.Depth = make([]float32, w*h)
	fb.ClearDepth()
}

// Clear fills the color buffer and resets depth.
func (fb *FrameBuffer) Clear(r, g, b, a uint8) {
	for i := 0; i < len(fb.Color); i += 4 {
		fb.Color[i] = r
		fb.Color[i+1] = g
		fb.Color[i+2] = b
		fb.Color[i+3] = a
	}
	fb.ClearDepth()
}

// ClearDepth resets the depth buffer only.
func (fb *FrameBuffer) ClearDepth() {
	inf := math32.Inf(1)
	for i := range fb.Depth {
		fb.Depth[i] = inf
	}
}

// DrawBackground scales img to cover the whole buffer, cropping the
// centre of the source to the buffer's aspect.
func (fb *FrameBuffer) DrawBackground(img image.Image) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	dst := fb.view()
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, cover(img.Bounds(), fb.Width, fb.Height), draw.Src, nil)
}

// Image returns a copy of the color buffer.
func (fb *FrameBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	copy(img.Pix, fb.Color)
	return img
}

func (fb *FrameBuffer) view() *image.RGBA {
	return &image.RGBA{
		Pix:    fb.Color,
		Stride: fb.Width * 4,
		Rect:   image.Rect(0, 0, fb.Width, fb.Height),
	}
}

func cover(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	switch {
	case sw*h > sh*w:
		cw := sh * w / h
		x0 := src.Min.X + (sw-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	case sw*h < sh*w:
		ch := sw * h / w
		y0 := src.Min.Y + (sh-ch)/2
		return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
	}
	return src
}
