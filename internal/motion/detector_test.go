package motion

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// encodeFrame renders a uniform background with an optional bright square
// covering the top-left quadrant.
func encodeFrame(t *testing.T, bg uint8, square bool) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			v := bg
			if square && x < 160 && y < 120 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return buf.Bytes()
}

func TestDetectorFirstFramePrimes(t *testing.T) {
	d := NewDetector(Presets["medium"], 8, 8)

	res, err := d.Evaluate(encodeFrame(t, 0, false))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Motion || res.Pixels != 0 {
		t.Fatalf("first frame reported motion: %+v", res)
	}
}

func TestDetectorDetectsChange(t *testing.T) {
	d := NewDetector(Preset{Sensitivity: 25, PixelThreshold: 100}, 8, 8)

	if _, err := d.Evaluate(encodeFrame(t, 0, false)); err != nil {
		t.Fatalf("prime: %v", err)
	}

	res, err := d.Evaluate(encodeFrame(t, 0, true))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Motion {
		t.Fatalf("quadrant change not detected, %d pixels", res.Pixels)
	}

	// The previous frame slides: an identical follow-up frame is quiet.
	res, err = d.Evaluate(encodeFrame(t, 0, true))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Motion {
		t.Fatalf("static frame reported motion, %d pixels", res.Pixels)
	}
}

func TestDetectorIgnoresNoise(t *testing.T) {
	d := NewDetector(Presets["medium"], 8, 8)

	if _, err := d.Evaluate(encodeFrame(t, 100, false)); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// A small uniform brightness shift stays under the sensitivity cutoff.
	res, err := d.Evaluate(encodeFrame(t, 110, false))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Motion {
		t.Fatalf("brightness drift reported as motion, %d pixels", res.Pixels)
	}
}

func TestDetectorMaskSuppressesRegion(t *testing.T) {
	// The threshold sits well under the quadrant's pixel count but above
	// the blur bleed along the mask boundary.
	d := NewDetector(Preset{Sensitivity: 25, PixelThreshold: 1500}, 8, 8)

	// Deactivate the top-left quadrant (cols 0-3, rows 0-3).
	mask := make([]uint8, 64)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			if row >= 4 || col >= 4 {
				mask[row*8+col] = 1
			}
		}
	}
	if err := d.SetMask(mask); err != nil {
		t.Fatalf("set mask: %v", err)
	}

	if _, err := d.Evaluate(encodeFrame(t, 0, false)); err != nil {
		t.Fatalf("prime: %v", err)
	}
	res, err := d.Evaluate(encodeFrame(t, 0, true))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Motion {
		t.Fatalf("masked region triggered motion, %d pixels", res.Pixels)
	}
}

func TestDetectorMaskValidation(t *testing.T) {
	d := NewDetector(Presets["low"], 8, 8)

	if err := d.SetMask(make([]uint8, 10)); err == nil {
		t.Fatal("wrong-length mask accepted")
	}
	if err := d.SetMask(nil); err != nil {
		t.Fatalf("nil mask rejected: %v", err)
	}
}

func TestDetectorOversizedGridClamped(t *testing.T) {
	// More cells than analysis pixels must not zero the cell dimensions.
	d := NewDetector(Preset{Sensitivity: 25, PixelThreshold: 100}, 1000, 1000)

	if d.cols != analysisWidth || d.rows != analysisHeight {
		t.Fatalf("grid = %dx%d, want clamped to %dx%d", d.cols, d.rows, analysisWidth, analysisHeight)
	}

	mask := make([]uint8, d.cols*d.rows)
	for i := range mask {
		mask[i] = 1
	}
	if err := d.SetMask(mask); err != nil {
		t.Fatalf("set mask: %v", err)
	}

	if _, err := d.Evaluate(encodeFrame(t, 0, false)); err != nil {
		t.Fatalf("prime: %v", err)
	}
	res, err := d.Evaluate(encodeFrame(t, 0, true))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Motion {
		t.Fatalf("quadrant change not detected through per-pixel grid, %d pixels", res.Pixels)
	}
}

func TestDetectorRejectsGarbage(t *testing.T) {
	d := NewDetector(Presets["medium"], 8, 8)

	if _, err := d.Evaluate([]byte("not a jpeg")); err == nil {
		t.Fatal("garbage frame accepted")
	}
}
