// Package media wraps the still-image and video post-processing
// collaborators: lossless rotation, thumbnailing and timelapse compilation.
package media

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// RotateImage rewrites the image at path rotated clockwise by degrees
// (0, 90, 180 or 270). The canvas expands for 90/270 so content is never
// cropped. Rotation 0 is a no-op.
func RotateImage(path string, degrees int) error {
	if degrees == 0 {
		return nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	// imaging rotates counter-clockwise; capture rotation is clockwise.
	switch degrees {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	default:
		return fmt.Errorf("unsupported rotation %d", degrees)
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Thumbnail writes a downscaled copy of src to dst, bounded to maxDim on the
// longer side with aspect ratio preserved.
func Thumbnail(src, dst string, maxDim int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	thumb := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(80)); err != nil {
		return fmt.Errorf("save %s: %w", dst, err)
	}
	return nil
}
