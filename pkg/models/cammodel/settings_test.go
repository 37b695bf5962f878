package cammodel

import "testing"

func TestSettingsStoreDefaults(t *testing.T) {
	s := NewSettingsStore().Snapshot()

	if s.AWB != "auto" || s.FocusMode != "continuous" {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.Zoom != 1.0 {
		t.Fatalf("zoom default = %v", s.Zoom)
	}
	if s.CaptureWidth != 1920 || s.CaptureHeight != 1080 {
		t.Fatalf("capture default = %dx%d, want 1920x1080", s.CaptureWidth, s.CaptureHeight)
	}
	if s.StreamWidth != 640 || s.StreamHeight != 480 {
		t.Fatalf("stream default = %dx%d, want 640x480", s.StreamWidth, s.StreamHeight)
	}
}

func TestSettingsUpdateNormalizesRotation(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"quarter turn kept", 90, 90},
		{"half turn kept", 180, 180},
		{"three quarter kept", 270, 270},
		{"full turn reset", 360, 0},
		{"odd angle reset", 45, 0},
		{"negative reset", -90, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewSettingsStore()
			got := store.Update(func(s *Settings) { s.Rotation = tc.in })
			if got.Rotation != tc.want {
				t.Fatalf("rotation %d normalized to %d, want %d", tc.in, got.Rotation, tc.want)
			}
		})
	}
}

func TestSettingsUpdateIsolation(t *testing.T) {
	store := NewSettingsStore()

	before := store.Snapshot()
	store.Update(func(s *Settings) { s.Brightness = 0.5 })

	// A snapshot taken before an update never observes it.
	if before.Brightness != 0 {
		t.Fatal("earlier snapshot mutated by update")
	}
	if store.Snapshot().Brightness != 0.5 {
		t.Fatal("update lost")
	}
}

func TestCaptureResolutionLookup(t *testing.T) {
	s := Settings{CaptureWidth: 3840, CaptureHeight: 2160}
	if got := s.CaptureResolution(); got.Label != "4K UHD" {
		t.Fatalf("lookup = %+v", got)
	}

	// Unknown sizes fall back to the default mode.
	s = Settings{CaptureWidth: 123, CaptureHeight: 456}
	if got := s.CaptureResolution(); got != DefaultCaptureResolution() {
		t.Fatalf("fallback = %+v", got)
	}

	// Zero means unset.
	if got := (Settings{}).CaptureResolution(); got != DefaultCaptureResolution() {
		t.Fatalf("zero fallback = %+v", got)
	}
}
