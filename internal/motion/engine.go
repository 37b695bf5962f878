package motion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// sampleInterval gates how often stream frames are pulled for analysis.
// Frames arriving faster are dropped at the subscription, not here.
const sampleInterval = 200 * time.Millisecond

// Default hold-offs between repeated triggers, per action type.
const (
	DefaultSnapshotCooldown  = 30 * time.Second
	DefaultRecordCooldown    = 2 * time.Minute
	DefaultTimelapseCooldown = 5 * time.Minute
	DefaultNotifyCooldown    = time.Minute
)

// Dispatcher executes capture actions on a motion trigger. Implementations
// run the action asynchronously; a returned error means the action could
// not be started.
type Dispatcher interface {
	MotionSnapshot(ctx context.Context) error
	MotionRecord(ctx context.Context, duration time.Duration) error
	MotionTimelapse(ctx context.Context, frames int) error
}

// Notifier delivers a motion notification out of band.
type Notifier interface {
	NotifyMotion(ctx context.Context, pixels int, when time.Time) error
}

// Spawner runs a named background task. Returns false when the task was
// rejected (concurrency limit reached).
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error) bool
}

// Source yields stream frames. The cancel function releases the
// subscription.
type Source interface {
	Subscribe(buffer int) (<-chan []byte, func())
}

// Config is the runtime-adjustable part of the engine. Cooldowns are
// tracked per action type so switching actions never resets the hold-off.
type Config struct {
	Enabled        bool   `json:"enabled"`
	Action         string `json:"action"` // snapshot | record | timelapse | none
	RecordDuration time.Duration
	TimelapseShots int

	SnapshotCooldown  time.Duration
	RecordCooldown    time.Duration
	TimelapseCooldown time.Duration
	NotifyCooldown    time.Duration
}

// Engine samples the live stream and fires the configured action when the
// detector reports motion. At most one frame is under analysis at a time;
// samples arriving while one is in flight are dropped.
type Engine struct {
	log      *zap.Logger
	det      *Detector
	disp     Dispatcher
	notifier Notifier
	spawn    Spawner
	source   Source

	mu  sync.Mutex
	cfg Config

	inflight      atomic.Bool
	lastSnapshot  atomic.Int64 // unix nanos
	lastRecord    atomic.Int64
	lastTimelapse atomic.Int64
	lastNotify    atomic.Int64
	triggers      atomic.Uint64
}

// NewEngine wires the engine. notifier may be nil.
func NewEngine(log *zap.Logger, det *Detector, disp Dispatcher, notifier Notifier, spawn Spawner, source Source, cfg Config) *Engine {
	cfg.fillDefaults(Config{
		RecordDuration:    30 * time.Second,
		TimelapseShots:    20,
		SnapshotCooldown:  DefaultSnapshotCooldown,
		RecordCooldown:    DefaultRecordCooldown,
		TimelapseCooldown: DefaultTimelapseCooldown,
		NotifyCooldown:    DefaultNotifyCooldown,
	})
	return &Engine{
		log:      log.Named("motion"),
		det:      det,
		disp:     disp,
		notifier: notifier,
		spawn:    spawn,
		source:   source,
		cfg:      cfg,
	}
}

// fillDefaults replaces zero values with those from base.
func (c *Config) fillDefaults(base Config) {
	if c.RecordDuration <= 0 {
		c.RecordDuration = base.RecordDuration
	}
	if c.TimelapseShots <= 0 {
		c.TimelapseShots = base.TimelapseShots
	}
	if c.SnapshotCooldown <= 0 {
		c.SnapshotCooldown = base.SnapshotCooldown
	}
	if c.RecordCooldown <= 0 {
		c.RecordCooldown = base.RecordCooldown
	}
	if c.TimelapseCooldown <= 0 {
		c.TimelapseCooldown = base.TimelapseCooldown
	}
	if c.NotifyCooldown <= 0 {
		c.NotifyCooldown = base.NotifyCooldown
	}
}

// Configure replaces the runtime config. Zero durations keep their
// current values.
func (e *Engine) Configure(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg.fillDefaults(e.cfg)
	e.cfg = cfg
}

// Current returns the active config.
func (e *Engine) Current() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Triggers returns the number of motion triggers since start.
func (e *Engine) Triggers() uint64 { return e.triggers.Load() }

// Run samples the stream until ctx is cancelled. Blocks.
func (e *Engine) Run(ctx context.Context) error {
	frames, cancel := e.source.Subscribe(1)
	defer cancel()

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	e.log.Info("motion engine started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("motion engine stopped")
			return nil
		case <-ticker.C:
		}

		if !e.Current().Enabled {
			continue
		}

		var frame []byte
		select {
		case f, ok := <-frames:
			if !ok {
				e.log.Warn("frame source closed")
				return nil
			}
			frame = f
		default:
			continue // stream idle, nothing to sample
		}

		if !e.inflight.CompareAndSwap(false, true) {
			continue
		}
		e.analyze(ctx, frame)
	}
}

func (e *Engine) analyze(ctx context.Context, frame []byte) {
	defer e.inflight.Store(false)

	res, err := e.det.Evaluate(frame)
	if err != nil {
		e.log.Debug("frame evaluation failed", zap.Error(err))
		return
	}
	if !res.Motion {
		return
	}

	e.triggers.Add(1)
	e.log.Info("motion detected", zap.Int("changed_pixels", res.Pixels))

	cfg := e.Current()
	now := time.Now()

	e.fireAction(ctx, cfg, now)
	if e.notifier != nil && cooldownPassed(&e.lastNotify, now, cfg.NotifyCooldown) {
		pixels := res.Pixels
		e.spawn.Go("motion-notify", func(ctx context.Context) error {
			return e.notifier.NotifyMotion(ctx, pixels, now)
		})
	}
}

func (e *Engine) fireAction(ctx context.Context, cfg Config, now time.Time) {
	switch cfg.Action {
	case "snapshot":
		if cooldownPassed(&e.lastSnapshot, now, cfg.SnapshotCooldown) {
			e.spawn.Go("motion-snapshot", func(ctx context.Context) error {
				return e.disp.MotionSnapshot(ctx)
			})
		}
	case "record", "recording":
		if cooldownPassed(&e.lastRecord, now, cfg.RecordCooldown) {
			e.spawn.Go("motion-record", func(ctx context.Context) error {
				return e.disp.MotionRecord(ctx, cfg.RecordDuration)
			})
		}
	case "timelapse":
		if cooldownPassed(&e.lastTimelapse, now, cfg.TimelapseCooldown) {
			e.spawn.Go("motion-timelapse", func(ctx context.Context) error {
				return e.disp.MotionTimelapse(ctx, cfg.TimelapseShots)
			})
		}
	case "", "none":
	default:
		e.log.Warn("unknown motion action", zap.String("action", cfg.Action))
	}
}

// cooldownPassed atomically checks and advances the last-fired stamp.
func cooldownPassed(last *atomic.Int64, now time.Time, cooldown time.Duration) bool {
	prev := last.Load()
	if now.UnixNano()-prev < int64(cooldown) {
		return false
	}
	return last.CompareAndSwap(prev, now.UnixNano())
}
