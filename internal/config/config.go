// Package config loads the daemon configuration from a YAML file and carries
// build metadata injected at link time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Build metadata, overridden via -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Port       string `yaml:"port"`

	// Media layout on disk.
	CaptureDir  string `yaml:"capture_dir"`
	ThumbDir    string `yaml:"thumb_dir"`
	MetadataDir string `yaml:"metadata_dir"`

	// External tool binaries.
	StillBin  string `yaml:"still_bin"`
	VideoBin  string `yaml:"video_bin"`
	FFmpegBin string `yaml:"ffmpeg_bin"`

	// Best-effort metadata store. Empty address disables Redis persistence.
	RedisAddr string `yaml:"redis_addr"`

	// Arbiter acquisition bound before surfacing device-busy.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	Motion MotionConfig `yaml:"motion"`
	Notify NotifyConfig `yaml:"notify"`
}

// MotionConfig controls the motion trigger engine.
type MotionConfig struct {
	Enabled bool `yaml:"enabled"`

	// Preset is one of "low", "medium", "high"; Sensitivity/PixelThreshold
	// override the preset when non-zero.
	Preset         string `yaml:"preset"`
	Sensitivity    int    `yaml:"sensitivity"`
	PixelThreshold int    `yaml:"pixel_threshold"`

	// Action is one of "snapshot", "recording", "timelapse".
	Action          string        `yaml:"action"`
	SnapshotCool    time.Duration `yaml:"snapshot_cooldown"`
	RecordingCool   time.Duration `yaml:"recording_cooldown"`
	TimelapseCool   time.Duration `yaml:"timelapse_cooldown"`
	RecordDuration  time.Duration `yaml:"record_duration"`
	TimelapseFrames int           `yaml:"timelapse_frames"`

	// Active grid cells; empty means the whole frame is active.
	GridCols int     `yaml:"grid_cols"`
	GridRows int     `yaml:"grid_rows"`
	GridMask []uint8 `yaml:"grid_mask"`
}

// NotifyConfig controls motion-event notifications.
type NotifyConfig struct {
	RateLimit time.Duration `yaml:"rate_limit"`

	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`

	WebhookURL string `yaml:"webhook_url"`
}

// Load reads and parses the configuration file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr:     "0.0.0.0",
		Port:           "5000",
		CaptureDir:     "static/captures",
		ThumbDir:       "static/thumbnails",
		MetadataDir:    "static/metadata",
		StillBin:       "rpicam-still",
		VideoBin:       "rpicam-vid",
		FFmpegBin:      "ffmpeg",
		AcquireTimeout: 30 * time.Second,
		Motion: MotionConfig{
			Preset:         "medium",
			Action:         "snapshot",
			SnapshotCool:   30 * time.Second,
			RecordingCool:  2 * time.Minute,
			TimelapseCool:  5 * time.Minute,
			RecordDuration: 30 * time.Second,
			GridCols:       8,
			GridRows:       8,
		},
		Notify: NotifyConfig{
			RateLimit: time.Minute,
		},
	}
}
