// Package texture uploads video frames to OpenGL textures.
package texture

import (
	"image"
	"image/draw"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Texture is a 2D RGBA texture that is re-uploaded every frame.
type Texture struct {
	id     uint32
	width  int
	height int
	rgba   *image.RGBA // conversion scratch for non-RGBA frames
}

// New allocates an empty texture. Requires a current GL context.
func New() *Texture {
	t := &Texture{}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return t
}

// ID returns the GL texture name.
func (t *Texture) ID() uint32 {
	return t.id
}

// Size returns the size of the last upload.
func (t *Texture) Size() (int, int) {
	return t.width, t.height
}

// Upload copies img into the texture, reallocating storage when the size
// changes. Rows are uploaded top first, so sample with v flipped.
func (t *Texture) Upload(img image.Image) {
	rgba := t.toRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}

	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(rgba.Stride/4))
	if w != t.width || h != t.height {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
		t.width, t.height = w, h
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	}
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// Delete frees the GL texture. Later calls do nothing.
func (t *Texture) Delete() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}

func (t *Texture) toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	if t.rgba == nil || t.rgba.Rect.Dx() != b.Dx() || t.rgba.Rect.Dy() != b.Dy() {
		t.rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Draw(t.rgba, t.rgba.Rect, img, b.Min, draw.Src)
	return t.rgba
}
