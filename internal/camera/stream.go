package camera

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/camcmd"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

const (
	streamReadChunk = 32 * 1024
	stallTimeout    = 5 * time.Second
	restartCooldown = time.Second
	idleWait        = time.Second
)

// Stream is the live MJPEG pipeline. One long-lived Run loop owns the
// producer process; complete JPEG frames fan out to any number of
// subscribers (the HTTP boundary, the motion trigger engine).
//
// The loop rebuilds its session whenever the live parameter snapshot
// diverges from the session's, the producer exits or stalls, or the arbiter
// preempts it for a capture. Slow subscribers drop frames, never block the
// pipeline.
type Stream struct {
	log      *zap.Logger
	arbiter  *Arbiter
	settings *cammodel.SettingsStore
	videoBin string

	mu   sync.Mutex
	subs map[chan []byte]struct{}

	lastFrame  time.Time
	frameCount uint64
}

// NewStream wires the pipeline; call Run on its own goroutine.
func NewStream(log *zap.Logger, arbiter *Arbiter, settings *cammodel.SettingsStore, videoBin string) *Stream {
	return &Stream{
		log:      log.Named("stream"),
		arbiter:  arbiter,
		settings: settings,
		videoBin: videoBin,
		subs:     make(map[chan []byte]struct{}),
	}
}

// Subscribe registers a frame consumer. The returned cancel func must be
// called when the consumer goes away. Frames are dropped, not queued, when
// the consumer's buffer is full.
func (s *Stream) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Stream) publish(frame []byte) {
	s.mu.Lock()
	s.lastFrame = time.Now()
	s.frameCount++
	for ch := range s.subs {
		select {
		case ch <- frame:
		default:
		}
	}
	s.mu.Unlock()
}

// Active reports whether any frame was published in the last stall window.
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastFrame) < stallTimeout
}

// FrameCount returns the number of frames published since startup.
func (s *Stream) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// Run drives the producer until ctx is cancelled. A transient tool failure
// never kills the loop: every session error ends in a cooldown sleep and a
// rebuild.
func (s *Stream) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if s.arbiter.CaptureInProgress() || s.arbiter.StreamStopped() {
			sleepCtx(ctx, idleWait)
			continue
		}

		// Parameter snapshot for this session; divergence from the live
		// settings triggers a rebuild at the next frame boundary.
		snap := s.settings.Snapshot()

		if err := s.arbiter.acquireForStream(ctx); err != nil {
			return
		}
		s.runSession(ctx, snap)
		s.arbiter.releaseStream()

		// Avoid a tight restart loop when the producer is crash-looping.
		sleepCtx(ctx, restartCooldown)
	}
}

// runSession launches one producer instance bound to snap and demuxes its
// output until the session must be rebuilt.
func (s *Stream) runSession(ctx context.Context, snap cammodel.Settings) {
	argv := camcmd.StreamArgv(s.videoBin, snap)
	s.log.Info("starting stream session",
		zap.Int("width", snap.StreamWidth),
		zap.Int("height", snap.StreamHeight),
		zap.Float64("framerate", snap.StreamFramerate),
		zap.Int("rotation", snap.Rotation))

	p, err := startProc(s.log, argv, procOptions{pipeStdout: true})
	if err != nil {
		s.log.Error("stream producer launch failed", zap.Error(err))
		return
	}
	s.arbiter.setStreamProc(p)

	// Blocking pipe reads run on their own goroutine so the demux loop
	// stays responsive to cancellation, stalls and parameter changes.
	chunks := make(chan []byte, 4)

	defer func() {
		p.Stop(time.Second)
		// Unblock the reader so it can observe the pipe EOF and exit.
		go func() {
			for range chunks {
			}
		}()
		_ = p.Wait()
	}()

	go func() {
		defer close(chunks)
		stdout := p.Stdout()
		for {
			buf := make([]byte, streamReadChunk)
			n, err := stdout.Read(buf)
			if n > 0 {
				chunks <- buf[:n]
			}
			if err != nil {
				return
			}
		}
	}()

	var split frameSplitter
	stall := time.NewTimer(stallTimeout)
	defer stall.Stop()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				s.log.Warn("stream producer exited", zap.String("diag", p.Diagnostic()))
				return
			}
			for _, frame := range split.Push(chunk) {
				s.publish(frame)
			}

			if !stall.Stop() {
				<-stall.C
			}
			stall.Reset(stallTimeout)

		case <-stall.C:
			s.log.Warn("stream stalled: no bytes for 5s; rebuilding")
			return

		case <-ctx.Done():
			return
		}

		if s.arbiter.StreamStopped() {
			s.log.Info("stream preempted")
			return
		}
		if live := s.settings.Snapshot(); live != snap {
			s.log.Info("stream parameters changed; rebuilding")
			return
		}
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
