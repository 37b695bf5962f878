package cammodel

import (
	"os"
	"strings"
	"sync"
)

// Resolution is one capture or stream mode of the sensor.
type Resolution struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps,omitempty"`
	Label  string  `json:"label"`
}

// CaptureResolutions are the still/video modes offered by the sensor.
var CaptureResolutions = []Resolution{
	{Width: 9248, Height: 6944, Label: "64MP (Max)"},
	{Width: 8000, Height: 6000, Label: "48MP"},
	{Width: 4624, Height: 3472, Label: "16MP"},
	{Width: 3840, Height: 2160, Label: "4K UHD"},
	{Width: 2312, Height: 1736, Label: "4MP"},
	{Width: 1920, Height: 1080, Label: "1080p Full HD"},
	{Width: 1280, Height: 720, Label: "720p HD"},
}

// Stream modes are tied to the sensor link frequency: the 456MHz table
// sustains higher frame rates than the 360MHz one.
var (
	streamResolutionsHigh = []Resolution{
		{1920, 1080, 60, "1080p Full HD (60 fps)"},
		{1280, 720, 60, "720p HD (60 fps)"},
		{640, 480, 60, "VGA (60 fps)"},
		{2312, 1736, 30, "4MP (30 fps)"},
		{3840, 2160, 20, "4K UHD (20 fps)"},
		{4624, 3472, 10, "16MP (10 fps)"},
		{8000, 6000, 2.5, "48MP (2.5 fps)"},
		{9248, 6944, 2.6, "64MP (2.6 fps)"},
	}
	streamResolutionsLow = []Resolution{
		{1920, 1080, 45, "1080p Full HD (45 fps)"},
		{1280, 720, 45, "720p HD (45 fps)"},
		{640, 480, 45, "VGA (45 fps)"},
		{2312, 1736, 26.7, "4MP (26.7 fps)"},
		{3840, 2160, 14.8, "4K UHD (14.8 fps)"},
		{4624, 3472, 7.6, "16MP (7.6 fps)"},
		{8000, 6000, 2.5, "48MP (2.5 fps)"},
		{9248, 6944, 2, "64MP (2 fps)"},
	}
)

// StreamResolutions returns the stream mode table for the detected link
// frequency.
func StreamResolutions() []Resolution {
	if detectLinkFrequency() == 456 {
		return streamResolutionsHigh
	}
	return streamResolutionsLow
}

// detectLinkFrequency reads the firmware config for the sensor link
// frequency override. Defaults to the low-speed table when unreadable.
func detectLinkFrequency() int {
	for _, path := range []string{"/boot/firmware/config.txt", "/boot/config.txt"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), "link-frequency=456000000") {
			return 456
		}
		return 360
	}
	return 360
}

// DefaultCaptureResolution is 1080p; DefaultStreamResolution is VGA.
func DefaultCaptureResolution() Resolution { return CaptureResolutions[5] }
func DefaultStreamResolution() Resolution  { return StreamResolutions()[2] }

// Settings is the mutable shared camera configuration. Consumers never read
// fields directly mid-operation: they take one Snapshot at acquisition time
// and use it for the operation's entire lifetime. Parameter changes are
// picked up lazily at the next natural restart point.
type Settings struct {
	Shutter      int     `json:"shutter"` // microseconds, 0 = auto
	Gain         float64 `json:"gain"`    // 0 = auto
	AWB          string  `json:"awb"`
	FocusMode    string  `json:"focus_mode"` // manual, auto, continuous
	LensPosition float64 `json:"lens_position"`
	Brightness   float64 `json:"brightness"`
	Contrast     float64 `json:"contrast"`
	Saturation   float64 `json:"saturation"`
	Sharpness    float64 `json:"sharpness"`
	EV           float64 `json:"ev"`
	Zoom         float64 `json:"zoom"`     // 1.0 .. 10.0, digital zoom as ROI
	Rotation     int     `json:"rotation"` // 0, 90, 180, 270

	CaptureWidth  int `json:"capture_width"`
	CaptureHeight int `json:"capture_height"`

	StreamWidth     int     `json:"stream_width"`
	StreamHeight    int     `json:"stream_height"`
	StreamFramerate float64 `json:"stream_framerate"`
}

// CaptureResolution resolves the configured capture size against the known
// sensor modes, falling back to the default when unset or unknown.
func (s Settings) CaptureResolution() Resolution {
	for _, r := range CaptureResolutions {
		if r.Width == s.CaptureWidth && r.Height == s.CaptureHeight {
			return r
		}
	}
	return DefaultCaptureResolution()
}

// SettingsStore owns the live Settings value behind a narrow lock.
type SettingsStore struct {
	mu  sync.RWMutex
	cur Settings
}

// NewSettingsStore returns a store seeded with the default configuration.
func NewSettingsStore() *SettingsStore {
	stream := DefaultStreamResolution()
	capture := DefaultCaptureResolution()
	return &SettingsStore{cur: Settings{
		AWB:             "auto",
		FocusMode:       "continuous",
		Contrast:        1.0,
		Saturation:      1.0,
		Sharpness:       1.0,
		Zoom:            1.0,
		CaptureWidth:    capture.Width,
		CaptureHeight:   capture.Height,
		StreamWidth:     stream.Width,
		StreamHeight:    stream.Height,
		StreamFramerate: stream.FPS,
	}}
}

// Snapshot returns a copy of the current settings.
func (s *SettingsStore) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update replaces the live settings. In-flight operations keep the snapshot
// they acquired; the stream pipeline notices the divergence on its next frame.
func (s *SettingsStore) Update(fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cur)
	if s.cur.Rotation%90 != 0 || s.cur.Rotation < 0 || s.cur.Rotation >= 360 {
		s.cur.Rotation = 0
	}
	return s.cur
}
