// Package tracking runs body-pose estimation over live video and publishes
// normalized landmarks for the most recent frame.
package tracking

import "time"

// AnchorIndex is the pose landmark the garment follows (the nose).
const AnchorIndex = 0

// Landmark is one normalized keypoint. X and Y are in [0, 1] of the frame,
// Z is depth relative to the hips with smaller values closer to the camera.
type Landmark struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Z          float32 `json:"z"`
	Visibility float32 `json:"visibility"`
	// Present is false when the landmark was not tracked confidently.
	Present bool `json:"-"`
}

// LandmarkFrame holds the pose landmarks estimated for one video frame.
type LandmarkFrame struct {
	Seq       uint64
	Time      time.Time
	Score     float32
	Landmarks []Landmark
}

// AnchorLandmark returns the anchor landmark of f if it is present.
func AnchorLandmark(f *LandmarkFrame) (Landmark, bool) {
	if f == nil || len(f.Landmarks) <= AnchorIndex {
		return Landmark{}, false
	}
	lm := f.Landmarks[AnchorIndex]
	if !lm.Present {
		return Landmark{}, false
	}
	return lm, true
}

// Options are forwarded to the pose estimator. The confidence thresholds
// and smoothing are also applied by the Tracker.
type Options struct {
	ModelComplexity        int     `json:"modelComplexity"`
	SmoothLandmarks        bool    `json:"smoothLandmarks"`
	EnableSegmentation     bool    `json:"enableSegmentation"`
	SmoothSegmentation     bool    `json:"smoothSegmentation"`
	RefineFaceLandmarks    bool    `json:"refineFaceLandmarks"`
	MinDetectionConfidence float32 `json:"minDetectionConfidence"`
	MinTrackingConfidence  float32 `json:"minTrackingConfidence"`

	// SmoothingFactor is the weight of the newest sample, in (0, 1].
	SmoothingFactor float32 `json:"-"`
	// MaxFPS caps inference rate; 0 follows the capture cadence.
	MaxFPS float64 `json:"-"`
}

// DefaultOptions returns the holistic model settings used by the AR view.
func DefaultOptions() Options {
	return Options{
		ModelComplexity:        1,
		SmoothLandmarks:        true,
		EnableSegmentation:     true,
		SmoothSegmentation:     true,
		RefineFaceLandmarks:    true,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
		SmoothingFactor:        0.5,
	}
}
