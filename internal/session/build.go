package session

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Faultbox/fitme-ar/internal/assets"
	"github.com/Faultbox/fitme-ar/internal/capture"
	"github.com/Faultbox/fitme-ar/internal/config"
	"github.com/Faultbox/fitme-ar/internal/engine/lighting"
	"github.com/Faultbox/fitme-ar/internal/measure"
	"github.com/Faultbox/fitme-ar/internal/placement"
	"github.com/Faultbox/fitme-ar/internal/render"
	"github.com/Faultbox/fitme-ar/internal/tracking"
)

// assetCacheBytes bounds the in-memory mesh cache.
const assetCacheBytes = 128 << 20

// FromConfig builds a session drawing onto surface from cfg.
func FromConfig(cfg *config.Config, surface render.Surface) (*Session, error) {
	loader, err := NewLoader(cfg.Asset)
	if err != nil {
		return nil, err
	}
	var tr Tracker
	if t := NewTracker(cfg.Capture, cfg.Tracking); t != nil {
		tr = t
	}
	return New(Options{
		Surface: surface,
		Source:  NewSource(cfg.Measurements, cfg.Asset.BaseURL),
		Loader:  loader,
		Tracker: tr,
		Scales: placement.Scales{
			Horizontal: cfg.Placement.HorizontalScale,
			Vertical:   cfg.Placement.VerticalScale,
			Depth:      cfg.Placement.DepthScale,
		},
		Lights: &lighting.Rig{
			Azimuth:   cfg.Lighting.Azimuth,
			Elevation: cfg.Lighting.Elevation,
			Ambient:   cfg.Lighting.Ambient,
			Key:       cfg.Lighting.Key,
		},
		FPS:        cfg.Display.FPSLimit,
		ShowBounds: cfg.Display.ShowBounds,
		LogFPS:     cfg.Display.ShowFPS,
	})
}

// NewSource returns a static source when an inline record is configured,
// otherwise the HTTP measurements endpoint.
func NewSource(cfg config.MeasurementsConfig, assetBase string) measure.Source {
	if st := cfg.Static; st.Height > 0 {
		return measure.StaticSource{Profile: measure.Profile{
			Record: measure.Record{
				Height: st.Height,
				Chest:  st.Chest,
				Waist:  st.Waist,
				Hips:   st.Hips,
			},
			MeshURL: st.MeshURL,
		}}
	}
	return measure.NewHTTPSource(cfg.Endpoint, cfg.Token, assetBase, cfg.Timeout)
}

// NewLoader returns an asset loader with the configured timeout, cache and
// optional S3 fetcher.
func NewLoader(cfg config.AssetConfig) (*assets.Loader, error) {
	httpFetcher := &assets.HTTPFetcher{Client: &http.Client{Timeout: cfg.Timeout}}
	opts := []assets.Option{
		assets.WithFetcher("http", httpFetcher),
		assets.WithFetcher("https", httpFetcher),
	}
	if cfg.Cache {
		opts = append(opts, assets.WithCache(assets.NewCache(assetCacheBytes)))
	}
	if cfg.S3Region != "" || cfg.S3Endpoint != "" {
		s3f, err := assets.NewS3Fetcher(cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("s3 fetcher: %w", err)
		}
		opts = append(opts, assets.WithFetcher("s3", s3f))
	}
	return assets.NewLoader(opts...), nil
}

// NewTracker returns a tracker for the configured capture source, or nil
// when no source is set. HTTP sources are MJPEG streams; anything else is
// a directory of frames.
func NewTracker(capCfg config.CaptureConfig, trCfg config.TrackingConfig) *tracking.Tracker {
	if capCfg.Source == "" {
		return nil
	}
	var dev capture.Device
	if strings.HasPrefix(capCfg.Source, "http://") || strings.HasPrefix(capCfg.Source, "https://") {
		dev = capture.NewMJPEGDevice(capCfg.Source, capCfg.Width, capCfg.Height)
	} else {
		dev = capture.NewSequenceDevice(capCfg.Source, capCfg.Width, capCfg.Height, capCfg.FPS, capCfg.Loop)
	}
	est := tracking.NewWSEstimator(trCfg.PoseService, trCfg.ConnectTimeout)
	return tracking.New(dev, est, TrackingOptions(trCfg))
}

// TrackingOptions maps config to estimator options.
func TrackingOptions(cfg config.TrackingConfig) tracking.Options {
	return tracking.Options{
		ModelComplexity:        cfg.ModelComplexity,
		SmoothLandmarks:        cfg.SmoothLandmarks,
		EnableSegmentation:     cfg.EnableSegmentation,
		SmoothSegmentation:     cfg.SmoothSegmentation,
		RefineFaceLandmarks:    cfg.RefineFaceLandmarks,
		MinDetectionConfidence: cfg.MinDetectionConfidence,
		MinTrackingConfidence:  cfg.MinTrackingConfidence,
		SmoothingFactor:        cfg.SmoothingFactor,
		MaxFPS:                 cfg.MaxFPS,
	}
}
