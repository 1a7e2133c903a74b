// Package config handles AR session configuration loading and management.
package config

import "time"

// Config holds all session settings.
type Config struct {
	Display      DisplayConfig      `yaml:"display"`
	Capture      CaptureConfig      `yaml:"capture"`
	Tracking     TrackingConfig     `yaml:"tracking"`
	Placement    PlacementConfig    `yaml:"placement"`
	Lighting     LightingConfig     `yaml:"lighting"`
	Measurements MeasurementsConfig `yaml:"measurements"`
	Asset        AssetConfig        `yaml:"asset"`
	Stream       StreamConfig       `yaml:"stream"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DisplayConfig holds display surface and render loop settings.
type DisplayConfig struct {
	Surface    string `yaml:"surface"` // window, stream or offscreen
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	FPSLimit   int    `yaml:"fps_limit"`
	ShowFPS    bool   `yaml:"show_fps"`
	ShowBounds bool   `yaml:"show_bounds"`

	// SnapshotDir receives F12 screenshots in the window surface.
	SnapshotDir string `yaml:"snapshot_dir"`
}

// CaptureConfig holds video capture settings.
type CaptureConfig struct {
	Source string `yaml:"source"` // MJPEG URL or frame directory
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"` // sequence playback rate
	Loop   bool   `yaml:"loop"`
}

// TrackingConfig holds pose estimator options.
type TrackingConfig struct {
	PoseService            string        `yaml:"pose_service"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout"`
	ModelComplexity        int           `yaml:"model_complexity"`
	SmoothLandmarks        bool          `yaml:"smooth_landmarks"`
	EnableSegmentation     bool          `yaml:"enable_segmentation"`
	SmoothSegmentation     bool          `yaml:"smooth_segmentation"`
	RefineFaceLandmarks    bool          `yaml:"refine_face_landmarks"`
	MinDetectionConfidence float32       `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float32       `yaml:"min_tracking_confidence"`
	SmoothingFactor        float32       `yaml:"smoothing_factor"`
	MaxFPS                 float64       `yaml:"max_fps"` // 0 = capture cadence
}

// PlacementConfig holds landmark to scene-space mapping scales.
type PlacementConfig struct {
	HorizontalScale float32 `yaml:"horizontal_scale"`
	VerticalScale   float32 `yaml:"vertical_scale"`
	DepthScale      float32 `yaml:"depth_scale"`
}

// LightingConfig holds the scene light rig.
type LightingConfig struct {
	Azimuth   float32 `yaml:"azimuth"`   // degrees, 0 faces the camera
	Elevation float32 `yaml:"elevation"` // degrees above the horizon
	Ambient   float32 `yaml:"ambient"`
	Key       float32 `yaml:"key"`
}

// MeasurementsConfig holds the measurement source settings.
type MeasurementsConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
	Static   StaticRecord  `yaml:"static"`
}

// StaticRecord is an inline measurement record used instead of the endpoint
// when Height is set.
type StaticRecord struct {
	Height  float32 `yaml:"height"`
	Chest   float32 `yaml:"chest"`
	Waist   float32 `yaml:"waist"`
	Hips    float32 `yaml:"hips"`
	MeshURL string  `yaml:"mesh_url"`
}

// AssetConfig holds mesh asset fetching settings.
type AssetConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	S3Region   string        `yaml:"s3_region"`
	S3Endpoint string        `yaml:"s3_endpoint"`
	Cache      bool          `yaml:"cache"`
}

// StreamConfig holds the browser streaming surface settings.
type StreamConfig struct {
	Listen      string `yaml:"listen"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // file format: console or json
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Surface:    "window",
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,

			SnapshotDir: "screenshots",
		},
		Capture: CaptureConfig{
			Width:  1280,
			Height: 720,
			FPS:    30,
			Loop:   true,
		},
		Tracking: TrackingConfig{
			PoseService:            "ws://127.0.0.1:8765/holistic",
			ConnectTimeout:         5 * time.Second,
			ModelComplexity:        1,
			SmoothLandmarks:        true,
			EnableSegmentation:     true,
			SmoothSegmentation:     true,
			RefineFaceLandmarks:    true,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
			SmoothingFactor:        0.5,
		},
		Placement: PlacementConfig{
			HorizontalScale: 500,
			VerticalScale:   500,
			DepthScale:      300,
		},
		Lighting: LightingConfig{
			Elevation: 63.4,
			Ambient:   0.7,
			Key:       1.0,
		},
		Measurements: MeasurementsConfig{
			Endpoint: "http://localhost:5001/api/measurements",
			Timeout:  10 * time.Second,
		},
		Asset: AssetConfig{
			BaseURL: "http://localhost:5001",
			Timeout: 60 * time.Second,
			Cache:   true,
		},
		Stream: StreamConfig{
			Listen:      ":8080",
			JPEGQuality: 80,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
			Format:  "console",
		},
	}
}
