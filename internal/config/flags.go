package config

import "flag"

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging and bounding box overlay")
	flagWindowed    = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen  = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth       = flag.Int("width", 0, "Surface width")
	flagHeight      = flag.Int("height", 0, "Surface height")
	flagSurface     = flag.String("surface", "", "Display surface: window, stream or offscreen")
	flagToken       = flag.String("token", "", "Bearer token for the measurements endpoint")
	flagCapture     = flag.String("capture", "", "Capture source: MJPEG URL or frame directory")
	flagPoseService = flag.String("pose-service", "", "Pose estimation websocket URL")
	flagListen      = flag.String("listen", "", "Stream surface listen address")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Display.ShowFPS = true
		cfg.Display.ShowBounds = true
	}
	if *flagWindowed {
		cfg.Display.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Display.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Display.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Display.Height = *flagHeight
	}
	if *flagSurface != "" {
		cfg.Display.Surface = *flagSurface
	}
	if *flagToken != "" {
		cfg.Measurements.Token = *flagToken
	}
	if *flagCapture != "" {
		cfg.Capture.Source = *flagCapture
	}
	if *flagPoseService != "" {
		cfg.Tracking.PoseService = *flagPoseService
	}
	if *flagListen != "" {
		cfg.Stream.Listen = *flagListen
	}
}
