package cammodel

import (
	"fmt"
	"os"
	"time"
)

// CaptureMeta is the capture-time metadata document persisted alongside
// every snapshot, recording and timelapse session.
type CaptureMeta struct {
	Filename   string    `json:"filename"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	SizeBytes  int64     `json:"size_bytes"`
	SizeHuman  string    `json:"size_human"`
	Resolution string    `json:"resolution"`
	Settings   Settings  `json:"settings"`
}

// NewCaptureMeta builds the metadata document for a finished capture. The
// file size is read from path; a missing file records zero rather than
// failing, since metadata persistence is best-effort.
func NewCaptureMeta(path, filename, category string, res Resolution, s Settings) CaptureMeta {
	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}
	return CaptureMeta{
		Filename:   filename,
		Category:   category,
		Timestamp:  time.Now(),
		SizeBytes:  size,
		SizeHuman:  fmt.Sprintf("%.2f MB", float64(size)/(1024*1024)),
		Resolution: fmt.Sprintf("%dx%d", res.Width, res.Height),
		Settings:   s,
	}
}
