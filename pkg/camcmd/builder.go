// Package camcmd builds canonical CLI invocations for the external camera
// tools (rpicam-still, rpicam-vid) and for ffmpeg.
//
// Design:
//
//   - This layer is a pure "command construction" module: no execution, no
//     I/O. It normalizes CLI emission semantics and returns argv projections
//     (process argument vector) or a shell-quoted command string for logging.
//
// Emission policy is deterministic and explicit:
//
//   - Flags with zero-valued "auto" semantics (shutter, gain) are emitted
//     only when non-zero, mirroring the tools' own auto defaults.
//   - Optional strings are emitted only when non-empty.
//   - argv[0] is always the binary name, mirroring POSIX/Go norms.
//
// Process lifecycle belongs in a higher layer (internal/camera).
package camcmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// Builder constructs argv and shell-safe command strings.
//
// The Builder implements a fluent API; it is NOT concurrency-safe. Callers
// should treat a Builder as a single-use, short-lived value object.
type Builder struct {
	args []string // argv including binary name at index 0
}

// NewBuilder returns a Builder pre-seeded with the binary name.
func NewBuilder(bin string) *Builder {
	return &Builder{args: []string{bin}}
}

// WithIntFlag appends a flag with a base-10 int value (always emitted).
func (b *Builder) WithIntFlag(flag string, val int) *Builder {
	b.args = append(b.args, flag, strconv.Itoa(val))
	return b
}

// WithFloatFlag appends a flag with a minimal decimal representation.
func (b *Builder) WithFloatFlag(flag string, val float64) *Builder {
	b.args = append(b.args, flag, strconv.FormatFloat(val, 'f', -1, 64))
	return b
}

// WithStringFlag appends a flag with a string value if non-empty.
// Empty string is considered invalid and skipped to avoid surprising empties.
func (b *Builder) WithStringFlag(flag, val string) *Builder {
	if val != "" {
		b.args = append(b.args, flag, val)
	}
	return b
}

// WithFlag appends a bare flag with no value.
func (b *Builder) WithFlag(flag string) *Builder {
	b.args = append(b.args, flag)
	return b
}

// WithArgs appends pre-built arguments verbatim.
func (b *Builder) WithArgs(args ...string) *Builder {
	b.args = append(b.args, args...)
	return b
}

// BuildArgv returns a defensive copy of the constructed argument vector.
func (b *Builder) BuildArgv() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// BuildString returns a single shell-quoted command string, safe for POSIX
// shells and log lines.
func (b *Builder) BuildString() string {
	quoted := make([]string, len(b.args))
	for i, a := range b.args {
		quoted[i] = shQuote(a)
	}
	return strings.Join(quoted, " ")
}

// CameraArgs renders the tuning arguments shared by every rpicam invocation
// from one settings snapshot.
//
// Zoom > 1.0 becomes a centered --roi region: a zoom factor z selects the
// central 1/z × 1/z window of the full frame.
func CameraArgs(s cammodel.Settings) []string {
	b := &Builder{}
	if s.Shutter > 0 {
		b.WithIntFlag("--shutter", s.Shutter)
	}
	if s.Gain > 0 {
		b.WithFloatFlag("--gain", s.Gain)
	}
	b.WithStringFlag("--awb", s.AWB)
	b.WithStringFlag("--autofocus-mode", s.FocusMode)
	if s.FocusMode == "manual" {
		b.WithFloatFlag("--lens-position", s.LensPosition)
	}
	b.WithFloatFlag("--brightness", s.Brightness)
	b.WithFloatFlag("--contrast", s.Contrast)
	b.WithFloatFlag("--saturation", s.Saturation)
	b.WithFloatFlag("--sharpness", s.Sharpness)
	b.WithFloatFlag("--ev", s.EV)
	if s.Zoom > 1.0 {
		w := 1.0 / s.Zoom
		x := (1.0 - w) / 2.0
		b.WithStringFlag("--roi", fmt.Sprintf("%g,%g,%g,%g", x, x, w, w))
	}
	return b.args
}

// StreamArgv builds the continuous MJPEG producer command. The stream writes
// concatenated JPEG frames to stdout until killed.
func StreamArgv(bin string, s cammodel.Settings) []string {
	return NewBuilder(bin).
		WithStringFlag("-t", "0").
		WithFlag("--inline").
		WithIntFlag("--width", s.StreamWidth).
		WithIntFlag("--height", s.StreamHeight).
		WithStringFlag("--codec", "mjpeg").
		WithFloatFlag("--framerate", s.StreamFramerate).
		WithIntFlag("--rotation", s.Rotation).
		WithFlag("--flush").
		WithFlag("-n").
		WithArgs("-o", "-").
		WithArgs(CameraArgs(s)...).
		BuildArgv()
}

// StillArgv builds a one-shot still capture writing a JPEG to path.
func StillArgv(bin string, res cammodel.Resolution, s cammodel.Settings, path string) []string {
	return NewBuilder(bin).
		WithIntFlag("--width", res.Width).
		WithIntFlag("--height", res.Height).
		WithArgs("-o", path).
		WithFlag("-n").
		WithArgs(CameraArgs(s)...).
		BuildArgv()
}

// RecordArgv builds the first stage of the recording pipeline: an H.264
// elementary stream on stdout. durationMS of 0 records until killed.
func RecordArgv(bin string, res cammodel.Resolution, s cammodel.Settings, durationMS int) []string {
	return NewBuilder(bin).
		WithIntFlag("-t", durationMS).
		WithIntFlag("--width", res.Width).
		WithIntFlag("--height", res.Height).
		WithFlag("--inline").
		WithArgs("-o", "-").
		WithFlag("-n").
		WithArgs(CameraArgs(s)...).
		BuildArgv()
}

// RotationFilter maps a rotation in degrees to an ffmpeg transpose chain.
// Returns "" for rotation 0.
func RotationFilter(rotation int) string {
	switch rotation {
	case 90:
		return "transpose=1"
	case 180:
		return "transpose=2,transpose=2"
	case 270:
		return "transpose=2"
	}
	return ""
}

// MuxArgv builds the second stage of the recording pipeline: ffmpeg reading
// the elementary stream on stdin and writing an MP4. Rotation 0 is a pure
// stream copy; any other rotation re-encodes through a transpose filter on
// the hardware encoder.
func MuxArgv(ffmpegBin string, rotation int, path string) []string {
	b := NewBuilder(ffmpegBin).WithArgs("-i", "-")
	if vf := RotationFilter(rotation); vf != "" {
		b.WithStringFlag("-vf", vf).
			WithStringFlag("-c:v", "h264_v4l2m2m").
			WithStringFlag("-b:v", "8M")
	} else {
		b.WithStringFlag("-c:v", "copy")
	}
	return b.
		WithStringFlag("-movflags", "+faststart").
		WithFlag("-y").
		WithArgs(path).
		BuildArgv()
}

// CompileMP4Argv assembles a directory of ordered JPEGs into an MP4 at 10fps,
// scaled to 1080p height, on the hardware encoder. The whole invocation runs
// under nice -n 19 so compilation never starves a live capture.
func CompileMP4Argv(ffmpegBin, sessionDir, path string) []string {
	return NewBuilder("nice").
		WithArgs("-n", "19", ffmpegBin, "-y").
		WithStringFlag("-framerate", "10").
		WithStringFlag("-pattern_type", "glob").
		WithArgs("-i", filepath.Join(sessionDir, "*.jpg")).
		WithStringFlag("-vf", "scale=1440:1080").
		WithStringFlag("-c:v", "h264_v4l2m2m").
		WithStringFlag("-b:v", "8M").
		WithStringFlag("-pix_fmt", "yuv420p").
		WithStringFlag("-movflags", "+faststart").
		WithArgs(path).
		BuildArgv()
}

// CompileGIFArgv assembles a session into an animated GIF via a two-pass
// palette so the output stays small.
func CompileGIFArgv(ffmpegBin, sessionDir, path string) []string {
	const vf = "scale=640:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"
	return NewBuilder("nice").
		WithArgs("-n", "19", ffmpegBin, "-y").
		WithStringFlag("-framerate", "10").
		WithStringFlag("-pattern_type", "glob").
		WithArgs("-i", filepath.Join(sessionDir, "*.jpg")).
		WithStringFlag("-vf", vf).
		WithArgs(path).
		BuildArgv()
}

// VideoThumbArgv grabs a single scaled frame from a finished video.
func VideoThumbArgv(ffmpegBin, src, path string) []string {
	return NewBuilder(ffmpegBin).
		WithFlag("-y").
		WithArgs("-i", src).
		WithStringFlag("-ss", "00:00:01").
		WithStringFlag("-vframes", "1").
		WithStringFlag("-vf", "scale=400:-1").
		WithArgs(path).
		BuildArgv()
}

// shQuote returns a POSIX-safe single-quoted token. Empty strings become ''
// to preserve round-trippability.
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
