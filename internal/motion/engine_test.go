package motion

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeDispatcher struct {
	snapshots  atomic.Int32
	records    atomic.Int32
	timelapses atomic.Int32
}

func (f *fakeDispatcher) MotionSnapshot(context.Context) error { f.snapshots.Add(1); return nil }
func (f *fakeDispatcher) MotionRecord(context.Context, time.Duration) error {
	f.records.Add(1)
	return nil
}
func (f *fakeDispatcher) MotionTimelapse(context.Context, int) error { f.timelapses.Add(1); return nil }

type fakeNotifier struct {
	sent atomic.Int32
}

func (f *fakeNotifier) NotifyMotion(context.Context, int, time.Time) error {
	f.sent.Add(1)
	return nil
}

// syncSpawner runs tasks inline so counters are settled when analyze
// returns.
type syncSpawner struct{}

func (syncSpawner) Go(_ string, fn func(ctx context.Context) error) bool {
	fn(context.Background())
	return true
}

func newTestEngine(disp Dispatcher, notifier Notifier, cfg Config) *Engine {
	det := NewDetector(Preset{Sensitivity: 25, PixelThreshold: 100}, 8, 8)
	return NewEngine(zap.NewNop(), det, disp, notifier, syncSpawner{}, nil, cfg)
}

func TestEngineActionCooldown(t *testing.T) {
	disp := &fakeDispatcher{}
	notifier := &fakeNotifier{}
	e := newTestEngine(disp, notifier, Config{
		Enabled:          true,
		Action:           "snapshot",
		SnapshotCooldown: time.Hour,
		NotifyCooldown:   time.Hour,
	})

	changed := func(bg uint8, square bool) []byte { return encodeFrame(t, bg, square) }

	e.analyze(context.Background(), changed(0, false)) // primes
	e.analyze(context.Background(), changed(0, true))  // triggers
	e.analyze(context.Background(), changed(0, false)) // triggers again, inside cooldown

	if got := e.Triggers(); got != 2 {
		t.Fatalf("triggers = %d, want 2", got)
	}
	if got := disp.snapshots.Load(); got != 1 {
		t.Fatalf("snapshots = %d, want 1 (cooldown)", got)
	}
	if got := notifier.sent.Load(); got != 1 {
		t.Fatalf("notifications = %d, want 1 (rate limit)", got)
	}
}

func TestEngineCooldownExpiry(t *testing.T) {
	disp := &fakeDispatcher{}
	e := newTestEngine(disp, nil, Config{
		Enabled:          true,
		Action:           "snapshot",
		SnapshotCooldown: 10 * time.Millisecond,
	})

	e.analyze(context.Background(), encodeFrame(t, 0, false))
	e.analyze(context.Background(), encodeFrame(t, 0, true))
	time.Sleep(20 * time.Millisecond)
	e.analyze(context.Background(), encodeFrame(t, 0, false))

	if got := disp.snapshots.Load(); got != 2 {
		t.Fatalf("snapshots = %d, want 2 after cooldown expiry", got)
	}
}

func TestEnginePerActionCooldowns(t *testing.T) {
	disp := &fakeDispatcher{}
	e := newTestEngine(disp, nil, Config{
		Enabled:        true,
		Action:         "snapshot",
		RecordDuration: time.Second,
	})

	e.analyze(context.Background(), encodeFrame(t, 0, false))
	e.analyze(context.Background(), encodeFrame(t, 0, true))

	// Switching the action mid-cooldown lets the other type fire fresh.
	cfg := e.Current()
	cfg.Action = "record"
	e.Configure(cfg)
	e.analyze(context.Background(), encodeFrame(t, 0, false))

	if got := disp.snapshots.Load(); got != 1 {
		t.Fatalf("snapshots = %d, want 1", got)
	}
	if got := disp.records.Load(); got != 1 {
		t.Fatalf("records = %d, want 1", got)
	}
}

func TestEngineConfigDefaults(t *testing.T) {
	e := newTestEngine(&fakeDispatcher{}, nil, Config{})
	cfg := e.Current()

	if cfg.SnapshotCooldown != DefaultSnapshotCooldown {
		t.Fatalf("snapshot cooldown default = %v", cfg.SnapshotCooldown)
	}
	if cfg.RecordCooldown != DefaultRecordCooldown {
		t.Fatalf("record cooldown default = %v", cfg.RecordCooldown)
	}
	if cfg.TimelapseShots <= 0 || cfg.RecordDuration <= 0 {
		t.Fatalf("zero defaults survived: %+v", cfg)
	}

	// Configure keeps current values where the update leaves zeros.
	e.Configure(Config{Enabled: true, Action: "timelapse"})
	cfg = e.Current()
	if cfg.TimelapseCooldown != DefaultTimelapseCooldown {
		t.Fatalf("timelapse cooldown lost on reconfigure: %v", cfg.TimelapseCooldown)
	}
}
