package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

func TestRecorderStartBusyDoesNotBlockReaders(t *testing.T) {
	arbiter := NewArbiter(zap.NewNop(), ArbiterOptions{
		AcquireTimeout: 400 * time.Millisecond,
		KillGrace:      10 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})
	rec := NewRecorder(zap.NewNop(), arbiter, cammodel.NewSettingsStore(),
		"rpicam-vid", "ffmpeg", t.TempDir(), nil)

	// Hold the camera so Start sits in the arbiter wait.
	if err := arbiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer arbiter.Release()

	startErr := make(chan error, 1)
	go func() {
		_, err := rec.Start(context.Background(), cammodel.DefaultCaptureResolution())
		startErr <- err
	}()

	// Give Start time to reach the arbiter wait, then probe the read
	// surface: it must answer while Start is still blocked.
	time.Sleep(50 * time.Millisecond)

	probed := make(chan struct{})
	go func() {
		_ = rec.Active()
		_ = rec.Filename()
		close(probed)
	}()
	select {
	case <-probed:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Active/Filename blocked behind a pending Start")
	}

	select {
	case err := <-startErr:
		if !errors.Is(err, ErrDeviceBusy) {
			t.Fatalf("Start err = %v, want ErrDeviceBusy", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start never returned")
	}
	if rec.Active() {
		t.Fatal("failed Start left the recorder active")
	}
}

func TestRecorderStopWithoutSession(t *testing.T) {
	arbiter := NewArbiter(zap.NewNop(), ArbiterOptions{AcquireTimeout: 50 * time.Millisecond})
	rec := NewRecorder(zap.NewNop(), arbiter, cammodel.NewSettingsStore(),
		"rpicam-vid", "ffmpeg", t.TempDir(), nil)

	if err := rec.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Stop err = %v, want ErrNotRecording", err)
	}
}
