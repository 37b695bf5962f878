package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testArbiter() *Arbiter {
	return NewArbiter(zap.NewNop(), ArbiterOptions{
		AcquireTimeout: 50 * time.Millisecond,
		KillGrace:      10 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})
}

func TestArbiterSingleOwner(t *testing.T) {
	a := testArbiter()
	ctx := context.Background()

	var owners atomic.Int32
	var maxOwners atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.WithExclusive(ctx, func() error {
				n := owners.Add(1)
				for {
					max := maxOwners.Load()
					if n <= max || maxOwners.CompareAndSwap(max, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				owners.Add(-1)
				return nil
			})
			if err != nil && !errors.Is(err, ErrDeviceBusy) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxOwners.Load() != 1 {
		t.Fatalf("observed %d concurrent owners, want 1", maxOwners.Load())
	}
}

func TestArbiterBusyTimeout(t *testing.T) {
	a := testArbiter()
	ctx := context.Background()

	if err := a.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	err := a.Acquire(ctx)
	if !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second acquire: got %v, want ErrDeviceBusy", err)
	}
	// A failed acquisition must not leave the stream stop flag raised.
	if a.StreamStopped() {
		t.Fatal("stop flag still raised after busy timeout")
	}

	a.Release()
	if err := a.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	a.Release()
}

func TestArbiterReleaseClearsFlags(t *testing.T) {
	a := testArbiter()

	if err := a.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !a.CaptureInProgress() {
		t.Fatal("capture state not set while owned")
	}
	if !a.StreamStopped() {
		t.Fatal("stop flag not raised while owned")
	}

	a.Release()
	if a.CaptureInProgress() {
		t.Fatal("capture state survived release")
	}
	if a.StreamStopped() {
		t.Fatal("stop flag survived release")
	}
	if a.State() != StateIdle {
		t.Fatalf("state %v after release, want idle", a.State())
	}
}

func TestArbiterAcquireContextCancel(t *testing.T) {
	a := NewArbiter(zap.NewNop(), ArbiterOptions{
		AcquireTimeout: time.Minute,
		KillGrace:      10 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})

	if err := a.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := a.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context deadline", err)
	}
	if a.StreamStopped() {
		t.Fatal("stop flag still raised after cancelled acquire")
	}
}
