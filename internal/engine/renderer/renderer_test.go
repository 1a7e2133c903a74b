package renderer

import "testing"

func TestCoverScale(t *testing.T) {
	tests := []struct {
		name         string
		fw, fh, w, h int
		wantU, wantV float32
	}{
		{"same aspect", 1280, 720, 640, 360, 1, 1},
		{"wide frame on square view", 1280, 720, 720, 720, 0.5625, 1},
		{"tall frame on wide view", 720, 1280, 1280, 720, 1, 0.31640625},
		{"no frame", 0, 0, 640, 480, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, v := CoverScale(tt.fw, tt.fh, tt.w, tt.h)
			if d := u - tt.wantU; d > 1e-5 || d < -1e-5 {
				t.Errorf("u = %v, want %v", u, tt.wantU)
			}
			if d := v - tt.wantV; d > 1e-5 || d < -1e-5 {
				t.Errorf("v = %v, want %v", v, tt.wantV)
			}
		})
	}
}
