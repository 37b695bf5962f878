// Package motion implements the motion trigger engine: frame sampling,
// grayscale difference detection and the cooldown-gated action dispatch.
package motion

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // stream frames are JPEG
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Analysis frames are tiny: detection cost stays flat regardless of the
// stream resolution.
const (
	analysisWidth  = 160
	analysisHeight = 120
)

// Preset pairs a per-pixel difference cutoff with the changed-pixel count
// required to declare motion. Lower values fire more easily.
type Preset struct {
	Sensitivity    int `json:"sensitivity"`
	PixelThreshold int `json:"pixel_threshold"`
}

// Presets indexed by level name.
var Presets = map[string]Preset{
	"low":    {Sensitivity: 45, PixelThreshold: 600},
	"medium": {Sensitivity: 25, PixelThreshold: 300},
	"high":   {Sensitivity: 12, PixelThreshold: 120},
}

// Result reports one evaluation.
type Result struct {
	Motion bool
	Pixels int
}

// Detector compares successive analysis frames. The previous frame slides
// on every evaluation regardless of outcome, so detection always measures
// change against the immediately preceding sample, not a fixed baseline.
type Detector struct {
	mu      sync.Mutex
	preset  Preset
	cols    int
	rows    int
	mask    []bool // active grid cells, row-major; nil = whole frame active
	prev    *image.Gray
	scratch *image.Gray
}

// NewDetector builds a detector with the given preset and an all-active
// grid. Grid dimensions are clamped to the analysis resolution so every
// cell covers at least one pixel.
func NewDetector(preset Preset, cols, rows int) *Detector {
	if cols <= 0 {
		cols = 8
	}
	if rows <= 0 {
		rows = 8
	}
	if cols > analysisWidth {
		cols = analysisWidth
	}
	if rows > analysisHeight {
		rows = analysisHeight
	}
	return &Detector{preset: preset, cols: cols, rows: rows}
}

// SetPreset replaces the sensitivity/threshold pair.
func (d *Detector) SetPreset(p Preset) {
	d.mu.Lock()
	d.preset = p
	d.mu.Unlock()
}

// CurrentPreset returns the active pair.
func (d *Detector) CurrentPreset() Preset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.preset
}

// SetMask replaces the active-cell grid. mask is row-major with non-zero
// meaning active; length must be cols*rows. nil activates the whole frame.
func (d *Detector) SetMask(mask []uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mask == nil {
		d.mask = nil
		return nil
	}
	if len(mask) != d.cols*d.rows {
		return fmt.Errorf("mask length %d, want %d", len(mask), d.cols*d.rows)
	}
	out := make([]bool, len(mask))
	for i, v := range mask {
		out[i] = v != 0
	}
	d.mask = out
	return nil
}

// Evaluate decodes one JPEG frame and compares it against the previous
// analysis frame. The first frame only primes the comparison.
func (d *Detector) Evaluate(frame []byte) (Result, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return Result{}, fmt.Errorf("decode frame: %w", err)
	}

	small := downscaleGray(img)
	blur3(small)

	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.prev
	d.prev = small
	if prev == nil {
		return Result{}, nil
	}

	pixels := d.countChanged(prev, small)
	return Result{
		Motion: pixels > d.preset.PixelThreshold,
		Pixels: pixels,
	}, nil
}

// countChanged counts pixels whose absolute difference exceeds the
// sensitivity cutoff, restricted to active grid cells.
func (d *Detector) countChanged(a, b *image.Gray) int {
	cellW := analysisWidth / d.cols
	cellH := analysisHeight / d.rows

	count := 0
	for y := 0; y < analysisHeight; y++ {
		rowOff := y * a.Stride
		for x := 0; x < analysisWidth; x++ {
			if d.mask != nil {
				col := x / cellW
				row := y / cellH
				if col >= d.cols {
					col = d.cols - 1
				}
				if row >= d.rows {
					row = d.rows - 1
				}
				if !d.mask[row*d.cols+col] {
					continue
				}
			}
			diff := int(a.Pix[rowOff+x]) - int(b.Pix[rowOff+x])
			if diff < 0 {
				diff = -diff
			}
			if diff > d.preset.Sensitivity {
				count++
			}
		}
	}
	return count
}

// downscaleGray scales src to the analysis resolution and converts to
// grayscale in one pass.
func downscaleGray(src image.Image) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, analysisWidth, analysisHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// blur3 applies a 3x3 box blur in place to suppress sensor noise. A box
// kernel is a close, cheap stand-in for a small gaussian at this
// resolution.
func blur3(img *image.Gray) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	orig := make([]uint8, len(img.Pix))
	copy(orig, img.Pix)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				off := (y+dy)*img.Stride + x
				sum += int(orig[off-1]) + int(orig[off]) + int(orig[off+1])
			}
			img.Pix[y*img.Stride+x] = uint8(sum / 9)
		}
	}
}
