package debug

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
)

// Snapshot formats.
const (
	FormatWebP = "webp"
	FormatPNG  = "png"
)

// ScreenshotCapture writes rendered frames to timestamped files.
type ScreenshotCapture struct {
	outputDir string
	prefix    string
	format    string
	now       func() time.Time
}

// NewScreenshotCapture creates a capture handler writing format files
// (webp or png) named prefix_<timestamp> into outputDir.
func NewScreenshotCapture(outputDir, prefix, format string) (*ScreenshotCapture, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatWebP
	}
	if format != FormatWebP && format != FormatPNG {
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
	return &ScreenshotCapture{
		outputDir: outputDir,
		prefix:    prefix,
		format:    format,
		now:       time.Now,
	}, nil
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatWebP:
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("encoding WebP: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encoding PNG: %w", err)
		}
	default:
		return fmt.Errorf("unsupported snapshot format %q", format)
	}
	return nil
}

// FlipRows converts bottom-up RGBA rows (GL readback order) into an image.
func FlipRows(pixels []byte, width, height int) (*image.RGBA, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		copy(img.Pix[y*img.Stride:y*img.Stride+rowSize], pixels[src:src+rowSize])
	}
	return img, nil
}

// CaptureFromImage saves img and returns the file name.
func (sc *ScreenshotCapture) CaptureFromImage(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("no frame to capture")
	}
	if sc.outputDir != "" {
		if err := os.MkdirAll(sc.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := sc.GenerateFilename()
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if err := Encode(file, img, sc.format); err != nil {
		file.Close()
		os.Remove(filename)
		return "", err
	}
	return filename, file.Close()
}

// GenerateFilename returns the next file name without saving.
func (sc *ScreenshotCapture) GenerateFilename() string {
	timestamp := sc.now().Format("2006-01-02_15-04-05.000")
	filename := fmt.Sprintf("%s_%s.%s", sc.prefix, timestamp, sc.format)
	if sc.outputDir != "" {
		filename = filepath.Join(sc.outputDir, filename)
	}
	return filename
}
