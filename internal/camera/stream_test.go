package camera

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// writeProducer installs a shell script standing in for the camera tool. It
// appends a line to the launch log on every start so tests can count
// sessions, then emits frames per the given body.
func writeProducer(t *testing.T, dir, body string) (bin, logPath string) {
	t.Helper()
	logPath = filepath.Join(dir, "launches.log")
	framePath := filepath.Join(dir, "frame.bin")

	if err := os.WriteFile(framePath, fakeFrame([]byte("stream-session-frame")), 0o644); err != nil {
		t.Fatal(err)
	}

	bin = filepath.Join(dir, "producer.sh")
	script := "#!/bin/sh\necho launch >> \"" + logPath + "\"\n" + body
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STREAM_TEST_FRAME", framePath)
	return bin, logPath
}

func launchCount(t *testing.T, logPath string) int {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatal(err)
	}
	return bytes.Count(data, []byte("launch"))
}

func waitLaunches(t *testing.T, logPath string, want int, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if launchCount(t, logPath) >= want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("producer launched %d times, want %d", launchCount(t, logPath), want)
}

func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(within):
		t.Fatal("no frame received")
		return nil
	}
}

func newTestStream(t *testing.T, bin string) (*Stream, *cammodel.SettingsStore) {
	t.Helper()
	arbiter := NewArbiter(zap.NewNop(), ArbiterOptions{
		AcquireTimeout: time.Second,
		KillGrace:      100 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})
	settings := cammodel.NewSettingsStore()
	return NewStream(zap.NewNop(), arbiter, settings, bin), settings
}

func TestStreamSessionStableUntilDivergence(t *testing.T) {
	dir := t.TempDir()
	bin, logPath := writeProducer(t, dir,
		"while :; do cat \"$STREAM_TEST_FRAME\"; sleep 0.05; done\n")

	s, settings := newTestStream(t, bin)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsub := s.Subscribe(16)
	defer unsub()
	go s.Run(ctx)

	// A healthy producer with an unchanged snapshot is one session.
	want := fakeFrame([]byte("stream-session-frame"))
	for i := 0; i < 3; i++ {
		if got := recvFrame(t, ch, 5*time.Second); !bytes.Equal(got, want) {
			t.Fatalf("frame %d corrupted in transit", i)
		}
	}
	if n := launchCount(t, logPath); n != 1 {
		t.Fatalf("steady stream relaunched the producer %d times", n)
	}

	// A settings change must rebuild the session at the next frame boundary.
	settings.Update(func(c *cammodel.Settings) { c.Brightness = 0.7 })
	waitLaunches(t, logPath, 2, 10*time.Second)

	if got := recvFrame(t, ch, 5*time.Second); !bytes.Equal(got, want) {
		t.Fatal("rebuilt session not producing frames")
	}
}

func TestStreamSessionRebuildsOnStall(t *testing.T) {
	if testing.Short() {
		t.Skip("stall window is wall-clock bound")
	}
	dir := t.TempDir()
	bin, logPath := writeProducer(t, dir,
		"cat \"$STREAM_TEST_FRAME\"\nsleep 60\n")

	s, _ := newTestStream(t, bin)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsub := s.Subscribe(16)
	defer unsub()
	go s.Run(ctx)

	recvFrame(t, ch, 5*time.Second)

	// One frame then silence: the stall watchdog must tear the session
	// down and the loop must come back with a fresh producer.
	waitLaunches(t, logPath, 2, 10*time.Second)
	recvFrame(t, ch, 5*time.Second)
}
