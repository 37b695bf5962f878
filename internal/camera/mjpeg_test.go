package camera

import (
	"bytes"
	"testing"
)

// fakeFrame builds a minimal JPEG-framed payload.
func fakeFrame(body []byte) []byte {
	frame := append([]byte{0xFF, 0xD8}, body...)
	return append(frame, 0xFF, 0xD9)
}

func TestFrameSplitterChunking(t *testing.T) {
	frames := [][]byte{
		fakeFrame([]byte("first frame body")),
		fakeFrame([]byte("second")),
		fakeFrame(bytes.Repeat([]byte{0xAB}, 4096)),
	}
	var stream []byte
	for _, f := range frames {
		stream = append(stream, f...)
	}

	chunkSizes := []struct {
		name string
		size int
	}{
		{"byte at a time", 1},
		{"small odd chunks", 17},
		{"whole stream", len(stream)},
	}

	for _, cs := range chunkSizes {
		t.Run(cs.name, func(t *testing.T) {
			var split frameSplitter
			var got [][]byte
			for off := 0; off < len(stream); off += cs.size {
				end := off + cs.size
				if end > len(stream) {
					end = len(stream)
				}
				got = append(got, split.Push(stream[off:end])...)
			}

			if len(got) != len(frames) {
				t.Fatalf("got %d frames, want %d", len(got), len(frames))
			}
			for i := range frames {
				if !bytes.Equal(got[i], frames[i]) {
					t.Fatalf("frame %d differs from input", i)
				}
			}
		})
	}
}

func TestFrameSplitterSkipsInterFrameJunk(t *testing.T) {
	var split frameSplitter
	want := fakeFrame([]byte("payload"))

	stream := append([]byte("garbage before"), want...)
	stream = append(stream, []byte("garbage after")...)

	got := split.Push(stream)
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	if !bytes.Equal(got[0], want) {
		t.Fatal("extracted frame differs from input")
	}
}

func TestFrameSplitterCorruptFrameReset(t *testing.T) {
	var split frameSplitter

	// A start marker with no end marker growing past the frame cap must be
	// discarded.
	corrupt := append([]byte{0xFF, 0xD8}, bytes.Repeat([]byte{0x00}, maxFrameBytes+1)...)
	if got := split.Push(corrupt); len(got) != 0 {
		t.Fatalf("got %d frames from corrupt input, want 0", len(got))
	}
	if len(split.buf) != 0 {
		t.Fatalf("buffer holds %d bytes after corruption reset, want 0", len(split.buf))
	}

	// The splitter must recover and deliver the next clean frame.
	want := fakeFrame([]byte("recovered"))
	got := split.Push(want)
	if len(got) != 1 || !bytes.Equal(got[0], want) {
		t.Fatal("splitter did not recover after corruption reset")
	}
}

func TestFrameSplitterNoMarkersReset(t *testing.T) {
	var split frameSplitter

	junk := bytes.Repeat([]byte{0x11}, maxScanBytes+1)
	if got := split.Push(junk); len(got) != 0 {
		t.Fatal("junk produced frames")
	}
	if len(split.buf) != 0 {
		t.Fatalf("buffer holds %d bytes of markerless junk, want 0", len(split.buf))
	}
}
