// Package assets fetches mesh assets from http, s3 and file locators and
// parses them into scene graph nodes.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/logger"
)

// Format identifies a mesh file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatGLTF           // .gltf JSON or .glb binary
	FormatOBJ
)

func (f Format) String() string {
	switch f {
	case FormatGLTF:
		return "gltf"
	case FormatOBJ:
		return "obj"
	default:
		return "unknown"
	}
}

// Loader fetches and parses mesh assets.
type Loader struct {
	fetchers map[string]Fetcher
	cache    *Cache
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache memoizes fetched bytes by locator.
func WithCache(c *Cache) Option {
	return func(l *Loader) {
		l.cache = c
	}
}

// WithFetcher registers f for a locator scheme, replacing any default.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(l *Loader) {
		l.fetchers[scheme] = f
	}
}

// NewLoader creates a loader with http(s) and file fetchers. S3 locators
// need WithFetcher("s3", ...).
func NewLoader(opts ...Option) *Loader {
	httpFetcher := &HTTPFetcher{Client: &http.Client{Timeout: 60 * time.Second}}
	l := &Loader{
		fetchers: map[string]Fetcher{
			"http":  httpFetcher,
			"https": httpFetcher,
			"file":  FileFetcher{},
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load retrieves locator and parses it into a detached node whose own
// transform is identity. onProgress may be nil; it is called from the
// calling goroutine.
func (l *Loader) Load(ctx context.Context, locator string, onProgress ProgressFunc) (*scene.Node, error) {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	start := time.Now()

	data, err := l.fetch(ctx, locator, onProgress)
	if err != nil {
		return nil, &LoadError{Locator: locator, Op: "fetch", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Locator: locator, Op: "fetch", Err: err}
	}

	format := DetectFormat(locator, data)
	var node *scene.Node
	switch format {
	case FormatGLTF:
		node, err = ParseGLTF(data)
	case FormatOBJ:
		node, err = ParseOBJ(bytes.NewReader(data))
	default:
		err = fmt.Errorf("unrecognized mesh format")
	}
	if err != nil {
		return nil, &LoadError{Locator: locator, Op: "parse", Err: err}
	}
	node.Name = path.Base(locatorPath(locator))

	logger.Info("asset loaded",
		zap.String("locator", locator),
		zap.Stringer("format", format),
		zap.Int("bytes", len(data)),
		zap.Int("meshes", node.MeshCount()),
		zap.Duration("elapsed", time.Since(start)))
	return node, nil
}

func (l *Loader) fetch(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error) {
	if l.cache != nil {
		if data, ok := l.cache.Get(locator); ok {
			n := int64(len(data))
			onProgress(Progress{Loaded: n, Total: n})
			return data, nil
		}
	}

	scheme := locatorScheme(locator)
	f, ok := l.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("no fetcher for scheme %q", scheme)
	}
	data, err := f.Fetch(ctx, locator, onProgress)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		l.cache.Set(locator, data)
	}
	return data, nil
}

// locatorScheme returns the lower-case URL scheme, or "file" for plain paths.
func locatorScheme(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || len(u.Scheme) <= 1 {
		// Empty, or a Windows drive letter.
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

func locatorPath(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		return u.Path
	}
	return locator
}

// DetectFormat picks the parser by file extension, falling back to content
// sniffing.
func DetectFormat(locator string, data []byte) Format {
	switch strings.ToLower(path.Ext(locatorPath(locator))) {
	case ".gltf", ".glb":
		return FormatGLTF
	case ".obj":
		return FormatOBJ
	}

	if bytes.HasPrefix(data, []byte("glTF")) {
		return FormatGLTF
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatGLTF
	}
	for _, prefix := range []string{"v ", "o ", "g ", "#", "mtllib"} {
		if bytes.HasPrefix(trimmed, []byte(prefix)) {
			return FormatOBJ
		}
	}
	return FormatUnknown
}
