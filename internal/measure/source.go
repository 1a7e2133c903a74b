package measure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBody caps the measurement response size.
const maxBody = 1 << 20

// Source provides the measurement profile for a session.
type Source interface {
	Fetch(ctx context.Context) (*Profile, error)
}

// StaticSource returns a fixed profile. Used for offline sessions.
type StaticSource struct {
	Profile Profile
}

// Fetch returns the configured profile.
func (s StaticSource) Fetch(ctx context.Context) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DataUnavailableError{Endpoint: "static", Err: err}
	}
	if s.Profile.MeshURL == "" {
		return nil, &DataUnavailableError{Endpoint: "static", Err: errors.New("no mesh url configured")}
	}
	p := s.Profile
	return &p, nil
}

// HTTPSource fetches the profile from the measurements backend.
type HTTPSource struct {
	Endpoint  string
	Token     string
	AssetBase string // prefix for relative mesh paths
	Client    *http.Client
}

// NewHTTPSource creates a source with a client bounded by timeout.
func NewHTTPSource(endpoint, token, assetBase string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		Endpoint:  endpoint,
		Token:     token,
		AssetBase: assetBase,
		Client:    &http.Client{Timeout: timeout},
	}
}

// response accepts both the nested shape
// {"measurements": {...}, "gltfFile": "/models/x.glb"} and a flat record
// carrying the mesh location next to the measurements.
type response struct {
	Measurements *wireRecord `json:"measurements"`
	GLTFFile     string      `json:"gltfFile"`
	wireRecord
}

type wireRecord struct {
	Height       float32 `json:"height"`
	Chest        float32 `json:"chest"`
	Waist        float32 `json:"waist"`
	Hips         float32 `json:"hips"`
	ClothingLink string  `json:"clothingLink"`
	MeshURL      string  `json:"meshURL"`
}

// Fetch performs an authenticated GET against the endpoint.
func (s *HTTPSource) Fetch(ctx context.Context) (*Profile, error) {
	fail := func(status int, err error) error {
		return &DataUnavailableError{Endpoint: s.Endpoint, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return nil, fail(0, err)
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))))
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("decoding body: %w", err))
	}

	rec := r.wireRecord
	if r.Measurements != nil {
		rec = *r.Measurements
	}
	mesh := r.GLTFFile
	if mesh == "" {
		mesh = rec.MeshURL
	}
	if mesh == "" {
		return nil, fail(resp.StatusCode, errors.New("response has no mesh location"))
	}
	meshURL, err := resolveMeshURL(s.AssetBase, mesh)
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}

	p := &Profile{
		Record: Record{
			Height: rec.Height,
			Chest:  rec.Chest,
			Waist:  rec.Waist,
			Hips:   rec.Hips,
		},
		MeshURL:      meshURL,
		ClothingLink: rec.ClothingLink,
	}
	logger.Debug("measurements fetched",
		zap.String("endpoint", s.Endpoint),
		zap.Stringer("record", p.Record),
		zap.String("mesh", p.MeshURL))
	return p, nil
}

// resolveMeshURL joins a relative mesh path onto base. Absolute URLs are
// returned unchanged.
func resolveMeshURL(base, mesh string) (string, error) {
	u, err := url.Parse(mesh)
	if err != nil {
		return "", fmt.Errorf("invalid mesh location %q: %w", mesh, err)
	}
	if u.IsAbs() || base == "" {
		return mesh, nil
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(mesh, "/"), nil
}
