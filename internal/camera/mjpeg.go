package camera

import "bytes"

// JPEG frame delimiters.
var (
	soiMarker = []byte{0xFF, 0xD8}
	eoiMarker = []byte{0xFF, 0xD9}
)

const (
	// Reset threshold when no start-of-image marker is present at all.
	maxScanBytes = 1 << 20
	// Reset threshold when a start marker never finds its end marker:
	// corrupt or truncated frame protection.
	maxFrameBytes = 2 << 20
)

// frameSplitter incrementally extracts whole JPEG frames from a raw MJPEG
// byte stream, tolerating arbitrary chunking and corrupt spans.
//
// Frames are returned in arrival order, byte-identical to the input between
// their SOI and EOI markers. Bytes outside frames are discarded.
type frameSplitter struct {
	buf []byte
}

// Push appends chunk to the scan buffer and returns every complete frame now
// available. The returned slices are copies the caller owns.
func (f *frameSplitter) Push(chunk []byte) [][]byte {
	f.buf = append(f.buf, chunk...)

	var frames [][]byte
	for {
		start := bytes.Index(f.buf, soiMarker)
		if start < 0 {
			if len(f.buf) > maxScanBytes {
				f.buf = f.buf[:0]
			}
			break
		}

		end := bytes.Index(f.buf[start:], eoiMarker)
		if end < 0 {
			// Keep only the partial frame; everything before the start
			// marker is inter-frame junk.
			if start > 0 {
				f.buf = append(f.buf[:0], f.buf[start:]...)
			}
			if len(f.buf) > maxFrameBytes {
				f.buf = f.buf[:0]
			}
			break
		}
		end += start + len(eoiMarker)

		frame := make([]byte, end-start)
		copy(frame, f.buf[start:end])
		frames = append(frames, frame)

		f.buf = append(f.buf[:0], f.buf[end:]...)
	}
	return frames
}

// Reset discards any buffered partial frame.
func (f *frameSplitter) Reset() { f.buf = f.buf[:0] }
