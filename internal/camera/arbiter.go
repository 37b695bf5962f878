package camera

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State enumerates who currently owns the camera hardware.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateCapturing:
		return "capturing"
	}
	return "idle"
}

// Arbiter is the single-owner mutual-exclusion gate over the physical
// camera. Every hardware use — the live stream session and every capture
// operation — routes through it.
//
// Preemption protocol: a capture raises the cooperative stop flag first,
// tears down any registered stream process group (SIGTERM → grace →
// SIGKILL), then takes ownership. Because the camera driver can refuse
// immediate re-acquisition after a kill, a fixed settle delay is observed
// before the capture proceeds. Ownership is released unconditionally and the
// stop flag cleared so streaming may resume.
type Arbiter struct {
	log *zap.Logger

	sem chan struct{} // capacity 1; holding a token = owning the camera

	acquireTimeout time.Duration
	killGrace      time.Duration
	settleDelay    time.Duration

	state atomic.Int32

	mu         sync.Mutex
	streamProc *proc

	stopStream atomic.Bool
}

// ArbiterOptions tunes the preemption timings. Zero values select the
// defaults (30s acquisition bound, 1s kill grace, 2s settle).
type ArbiterOptions struct {
	AcquireTimeout time.Duration
	KillGrace      time.Duration
	SettleDelay    time.Duration
}

// NewArbiter constructs an idle arbiter.
func NewArbiter(log *zap.Logger, opts ArbiterOptions) *Arbiter {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 30 * time.Second
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 2 * time.Second
	}
	return &Arbiter{
		log:            log.Named("arbiter"),
		sem:            make(chan struct{}, 1),
		acquireTimeout: opts.AcquireTimeout,
		killGrace:      opts.KillGrace,
		settleDelay:    opts.SettleDelay,
	}
}

// State returns the current ownership state.
func (a *Arbiter) State() State { return State(a.state.Load()) }

// CaptureInProgress reports whether a capture operation owns the camera.
// The stream pipeline idle-waits on this.
func (a *Arbiter) CaptureInProgress() bool { return a.State() == StateCapturing }

// StreamStopped reports the cooperative stop flag. The stream loop checks it
// at every suspension point.
func (a *Arbiter) StreamStopped() bool { return a.stopStream.Load() }

// Acquire obtains exclusive camera ownership for a capture operation,
// preempting any live stream session. It blocks up to the acquisition bound
// and returns ErrDeviceBusy on expiry. The caller must Release.
func (a *Arbiter) Acquire(ctx context.Context) error {
	// Raise the cooperative flag before touching the process so the stream
	// loop stops rebuilding while we tear it down.
	a.stopStream.Store(true)

	a.mu.Lock()
	p := a.streamProc
	a.mu.Unlock()

	preempted := false
	if p != nil && p.Alive() {
		a.log.Info("preempting live stream", zap.Int("pid", p.pid))
		p.Stop(a.killGrace)
		preempted = true
	}

	timer := time.NewTimer(a.acquireTimeout)
	defer timer.Stop()

	select {
	case a.sem <- struct{}{}:
	case <-timer.C:
		a.stopStream.Store(false)
		return ErrDeviceBusy
	case <-ctx.Done():
		a.stopStream.Store(false)
		return ctx.Err()
	}

	a.state.Store(int32(StateCapturing))

	if preempted {
		// The driver can fail immediate re-open after a kill.
		time.Sleep(a.settleDelay)
	}
	return nil
}

// Release returns the camera to the idle state and clears the stop flag so
// streaming may resume. Always called, even when the operation failed.
func (a *Arbiter) Release() {
	a.state.Store(int32(StateIdle))
	select {
	case <-a.sem:
	default:
		// Release without Acquire is a caller bug; tolerated.
		a.log.Warn("release without ownership")
	}
	a.stopStream.Store(false)
}

// WithExclusive runs op while holding exclusive camera ownership.
func (a *Arbiter) WithExclusive(ctx context.Context, op func() error) error {
	if err := a.Acquire(ctx); err != nil {
		return err
	}
	defer a.Release()
	return op()
}

// acquireForStream takes ownership on behalf of the stream pipeline. Unlike
// captures it never preempts anyone: it waits politely until the camera is
// free and the stop flag is down.
func (a *Arbiter) acquireForStream(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.StreamStopped() || a.CaptureInProgress() {
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case a.sem <- struct{}{}:
			a.state.Store(int32(StateStreaming))
			return nil
		case <-time.After(time.Second):
			// Re-check the stop flag rather than queueing behind a capture.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// setStreamProc registers the live producer so a capture can tear down its
// process group during preemption.
func (a *Arbiter) setStreamProc(p *proc) {
	a.mu.Lock()
	a.streamProc = p
	a.mu.Unlock()
}

// releaseStream drops stream ownership after the session is torn down.
func (a *Arbiter) releaseStream() {
	a.setStreamProc(nil)
	a.state.CompareAndSwap(int32(StateStreaming), int32(StateIdle))
	select {
	case <-a.sem:
	default:
		a.log.Warn("stream release without ownership")
	}
}
