package camera

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/camcmd"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

const (
	// How long after launch the pipeline must still be alive before the
	// start call reports success.
	recordProbeDelay = time.Second

	captureStopGrace = 2 * time.Second
	// The muxer needs room to finalize the container on SIGTERM.
	muxStopGrace = 5 * time.Second
)

// recordingSession tracks the two running stages of one recording.
type recordingSession struct {
	filename string
	path     string
	res      cammodel.Resolution
	snap     cammodel.Settings
	capture  *proc // camera tool, H.264 on stdout
	mux      *proc // ffmpeg, stdin wired to capture stdout
	started  time.Time
}

// Recorder owns the two-stage recording pipeline: the capture tool streams
// an H.264 elementary stream into ffmpeg, which muxes it into an MP4. With
// rotation 0 the second stage is a pure stream copy; otherwise it re-encodes
// through a transpose filter.
//
// The camera is held from Start until Stop.
type Recorder struct {
	log        *zap.Logger
	arbiter    *Arbiter
	settings   *cammodel.SettingsStore
	videoBin   string
	ffmpegBin  string
	captureDir string
	meta       MetadataSink

	mu       sync.Mutex
	active   *recordingSession
	starting bool
}

// NewRecorder wires the recording pipeline.
func NewRecorder(log *zap.Logger, arbiter *Arbiter, settings *cammodel.SettingsStore, videoBin, ffmpegBin, captureDir string, meta MetadataSink) *Recorder {
	return &Recorder{
		log:        log.Named("recorder"),
		arbiter:    arbiter,
		settings:   settings,
		videoBin:   videoBin,
		ffmpegBin:  ffmpegBin,
		captureDir: captureDir,
		meta:       meta,
	}
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Filename returns the output file of the in-progress recording, if any.
func (r *Recorder) Filename() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.filename
}

// Start acquires the camera and launches the pipeline. A short liveness
// probe surfaces immediate tool failures as the operation's error. The
// returned filename is the eventual MP4.
func (r *Recorder) Start(ctx context.Context, res cammodel.Resolution) (string, error) {
	// Claim the starting slot, then wait for the camera with the mutex
	// released: the arbiter wait can run up to its full timeout and must not
	// block Active/Filename readers meanwhile.
	r.mu.Lock()
	if r.active != nil || r.starting {
		r.mu.Unlock()
		return "", ErrAlreadyRecording
	}
	r.starting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
	}()

	if err := r.arbiter.Acquire(ctx); err != nil {
		return "", err
	}

	sess, err := r.launch(res, 0)
	if err != nil {
		r.arbiter.Release()
		return "", err
	}

	r.mu.Lock()
	r.active = sess
	r.mu.Unlock()
	r.log.Info("recording started", zap.String("file", sess.filename),
		zap.Int("width", res.Width), zap.Int("height", res.Height),
		zap.Int("rotation", sess.snap.Rotation))
	return sess.filename, nil
}

// launch starts both stages and probes them for immediate failure.
// durationMS of 0 records until stopped.
func (r *Recorder) launch(res cammodel.Resolution, durationMS int) (*recordingSession, error) {
	snap := r.settings.Snapshot()

	prefix := "rec_"
	if durationMS > 0 {
		prefix = "sched_rec_"
	}
	filename := prefix + time.Now().Format("20060102_150405") + ".mp4"
	path := filepath.Join(r.captureDir, filename)

	capture, err := startProc(r.log, camcmd.RecordArgv(r.videoBin, res, snap, durationMS), procOptions{pipeStdout: true})
	if err != nil {
		return nil, &ToolError{Op: r.videoBin, Err: err}
	}

	mux, err := startProc(r.log, camcmd.MuxArgv(r.ffmpegBin, snap.Rotation, path), procOptions{stdin: capture.Stdout()})
	if err != nil {
		capture.Stop(captureStopGrace)
		_ = capture.Wait()
		return nil, &ToolError{Op: r.ffmpegBin, Err: err}
	}

	// Both stages should survive the probe window; an immediate exit means
	// a bad invocation or a busy device, and its stderr is the diagnostic.
	time.Sleep(recordProbeDelay)
	for _, st := range []struct {
		p   *proc
		bin string
	}{{capture, r.videoBin}, {mux, r.ffmpegBin}} {
		if !st.p.Alive() {
			diag := st.p.Diagnostic()
			capture.Stop(captureStopGrace)
			mux.Stop(muxStopGrace)
			_ = capture.Wait()
			_ = mux.Wait()
			return nil, &ToolError{Op: st.bin, Err: st.p.Wait(), Diag: diag}
		}
	}

	return &recordingSession{
		filename: filename,
		path:     path,
		res:      res,
		snap:     snap,
		capture:  capture,
		mux:      mux,
		started:  time.Now(),
	}, nil
}

// Stop terminates both process groups, waits for both stages to fully exit,
// persists metadata and releases the camera.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	sess := r.active
	r.active = nil
	r.mu.Unlock()

	if sess == nil {
		return ErrNotRecording
	}
	defer r.arbiter.Release()

	r.finish(ctx, sess, "video")
	r.log.Info("recording stopped", zap.String("file", sess.filename),
		zap.Duration("elapsed", time.Since(sess.started)))
	return nil
}

// finish tears down a session and persists metadata after both stages have
// fully exited.
func (r *Recorder) finish(ctx context.Context, sess *recordingSession, category string) {
	// Signal both groups so internal children are reaped too. Stopping the
	// capture stage first gives the muxer a clean EOF to finalize on.
	sess.capture.Stop(captureStopGrace)
	sess.mux.Stop(muxStopGrace)
	_ = sess.capture.Wait()
	_ = sess.mux.Wait()

	meta := cammodel.NewCaptureMeta(sess.path, sess.filename, category, sess.res, sess.snap)
	if err := r.meta.SaveCapture(ctx, meta); err != nil {
		r.log.Warn("metadata persistence failed", zap.String("file", sess.filename), zap.Error(err))
	}
}

// RunScheduled records for the given duration, blocking until the pipeline
// finishes or ctx is cancelled. Used by the scheduler; the session does not
// occupy the interactive recording slot.
func (r *Recorder) RunScheduled(ctx context.Context, res cammodel.Resolution, duration time.Duration) (string, error) {
	if duration <= 0 {
		return "", nil
	}

	if err := r.arbiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer r.arbiter.Release()

	sess, err := r.launch(res, int(duration.Milliseconds()))
	if err != nil {
		return "", err
	}
	r.log.Info("scheduled recording started", zap.String("file", sess.filename),
		zap.Duration("duration", duration))

	// The capture stage exits on its own at the duration bound; the muxer
	// follows on EOF.
	select {
	case <-sess.mux.Done():
		_ = sess.capture.Wait()
		meta := cammodel.NewCaptureMeta(sess.path, sess.filename, "video_scheduled", res, sess.snap)
		if err := r.meta.SaveCapture(ctx, meta); err != nil {
			r.log.Warn("metadata persistence failed", zap.String("file", sess.filename), zap.Error(err))
		}
	case <-ctx.Done():
		r.finish(context.Background(), sess, "video_scheduled")
	}
	return sess.filename, nil
}
