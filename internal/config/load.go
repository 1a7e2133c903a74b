package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < environment < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Secrets and endpoints usually come from the environment
	applyEnv(cfg, os.LookupEnv)

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Environment variables read by Load.
const (
	EnvToken       = "FITME_MEASUREMENTS_TOKEN"
	EnvEndpoint    = "FITME_MEASUREMENTS_ENDPOINT"
	EnvAssetBase   = "FITME_ASSET_BASE_URL"
	EnvCapture     = "FITME_CAPTURE_SOURCE"
	EnvPoseService = "FITME_POSE_SERVICE"
	EnvLogLevel    = "FITME_LOG_LEVEL"
)

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	for _, e := range []struct {
		key string
		dst *string
	}{
		{EnvToken, &cfg.Measurements.Token},
		{EnvEndpoint, &cfg.Measurements.Endpoint},
		{EnvAssetBase, &cfg.Asset.BaseURL},
		{EnvCapture, &cfg.Capture.Source},
		{EnvPoseService, &cfg.Tracking.PoseService},
		{EnvLogLevel, &cfg.Logging.Level},
	} {
		if v, ok := lookup(e.key); ok && v != "" {
			*e.dst = v
		}
	}
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "FitmeAR")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "FitmeAR")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "fitme-ar")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "fitme-ar")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate reports settings that cannot produce a working session.
func (c *Config) Validate() error {
	switch c.Display.Surface {
	case "window", "stream", "offscreen":
	default:
		return fmt.Errorf("unknown display surface %q", c.Display.Surface)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("invalid display size %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("invalid capture resolution %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Lighting.Elevation < -90 || c.Lighting.Elevation > 90 {
		return fmt.Errorf("light elevation %v out of range [-90,90]", c.Lighting.Elevation)
	}
	if c.Tracking.MinDetectionConfidence < 0 || c.Tracking.MinDetectionConfidence > 1 {
		return fmt.Errorf("min_detection_confidence %v out of range [0,1]", c.Tracking.MinDetectionConfidence)
	}
	if c.Tracking.MinTrackingConfidence < 0 || c.Tracking.MinTrackingConfidence > 1 {
		return fmt.Errorf("min_tracking_confidence %v out of range [0,1]", c.Tracking.MinTrackingConfidence)
	}
	return nil
}
