package camcmd

import (
	"reflect"
	"strings"
	"testing"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

func TestBuilderArgvCopy(t *testing.T) {
	b := NewBuilder("tool").WithFlag("-a")
	argv := b.BuildArgv()
	argv[0] = "mutated"

	if got := b.BuildArgv()[0]; got != "tool" {
		t.Fatalf("builder state mutated through returned argv: %q", got)
	}
}

func TestBuilderFlagEmission(t *testing.T) {
	argv := NewBuilder("bin").
		WithIntFlag("-t", 0).
		WithStringFlag("--skip", "").
		WithStringFlag("--keep", "v").
		WithFloatFlag("--rate", 2.5).
		BuildArgv()

	want := []string{"bin", "-t", "0", "--keep", "v", "--rate", "2.5"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
}

func TestBuildStringQuoting(t *testing.T) {
	s := NewBuilder("ffmpeg").
		WithStringFlag("-vf", "scale=640:-1,transpose=1").
		WithArgs("file with spaces.mp4").
		BuildString()

	if !strings.Contains(s, "'scale=640:-1,transpose=1'") {
		t.Fatalf("filter not quoted: %s", s)
	}
	if !strings.Contains(s, "'file with spaces.mp4'") {
		t.Fatalf("path not quoted: %s", s)
	}
}

func TestCameraArgsAutoFlags(t *testing.T) {
	s := cammodel.Settings{AWB: "auto", FocusMode: "continuous", Contrast: 1, Saturation: 1, Sharpness: 1, Zoom: 1}

	args := strings.Join(CameraArgs(s), " ")
	if strings.Contains(args, "--shutter") {
		t.Fatal("zero shutter emitted; auto exposure expects no flag")
	}
	if strings.Contains(args, "--gain") {
		t.Fatal("zero gain emitted")
	}
	if strings.Contains(args, "--lens-position") {
		t.Fatal("lens position emitted outside manual focus")
	}
	if strings.Contains(args, "--roi") {
		t.Fatal("roi emitted at zoom 1.0")
	}

	s.Shutter = 20000
	s.Gain = 4
	s.FocusMode = "manual"
	s.LensPosition = 2.5
	args = strings.Join(CameraArgs(s), " ")
	for _, want := range []string{"--shutter 20000", "--gain 4", "--lens-position 2.5"} {
		if !strings.Contains(args, want) {
			t.Fatalf("missing %q in %s", want, args)
		}
	}
}

func TestCameraArgsZoomROI(t *testing.T) {
	s := cammodel.Settings{Zoom: 2}
	args := strings.Join(CameraArgs(s), " ")

	// Zoom 2 selects the centered half-size window.
	if !strings.Contains(args, "--roi 0.25,0.25,0.5,0.5") {
		t.Fatalf("roi for zoom 2 wrong: %s", args)
	}
}

func TestMuxArgvRotation(t *testing.T) {
	tests := []struct {
		name     string
		rotation int
		wantCopy bool
		wantVF   string
	}{
		{"no rotation copies stream", 0, true, ""},
		{"90 transposes once", 90, false, "transpose=1"},
		{"180 transposes twice", 180, false, "transpose=2,transpose=2"},
		{"270 counter-transposes", 270, false, "transpose=2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			argv := strings.Join(MuxArgv("ffmpeg", tc.rotation, "out.mp4"), " ")

			if tc.wantCopy {
				if !strings.Contains(argv, "-c:v copy") {
					t.Fatalf("stream copy missing: %s", argv)
				}
				if strings.Contains(argv, "-vf") {
					t.Fatalf("filter present on copy path: %s", argv)
				}
			} else {
				if !strings.Contains(argv, "-vf "+tc.wantVF) {
					t.Fatalf("filter %q missing: %s", tc.wantVF, argv)
				}
				if !strings.Contains(argv, "-c:v h264_v4l2m2m") {
					t.Fatalf("hardware encoder missing on re-encode path: %s", argv)
				}
			}
			if !strings.Contains(argv, "-movflags +faststart") {
				t.Fatalf("faststart missing: %s", argv)
			}
		})
	}
}

func TestStreamArgvShape(t *testing.T) {
	s := cammodel.Settings{StreamWidth: 640, StreamHeight: 480, StreamFramerate: 30}
	argv := StreamArgv("rpicam-vid", s)

	if argv[0] != "rpicam-vid" {
		t.Fatalf("argv[0] = %q", argv[0])
	}
	joined := strings.Join(argv, " ")
	for _, want := range []string{"-t 0", "--codec mjpeg", "--width 640", "--height 480", "-o -"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %s", want, joined)
		}
	}
}
