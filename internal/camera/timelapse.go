package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/media"
	"github.com/picamctl/picamctl/pkg/camcmd"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

const (
	timelapseShotTimeout = 40 * time.Second
	timelapseShotRetries = 2
	timelapseRetryDelay  = 2 * time.Second
)

// TimelapseStatus is the shared status surface mutated only by the worker.
type TimelapseStatus struct {
	Active    bool     `json:"active"`
	SessionID string   `json:"session_id,omitempty"`
	LastImage string   `json:"last_image,omitempty"`
	Count     int      `json:"count"`
	Status    string   `json:"status"`
	Images    []string `json:"images"`
}

// Timelapse owns the long-lived timelapse worker. One session runs at a
// time; each frame individually acquires the camera so the live stream keeps
// running between shots.
type Timelapse struct {
	log        *zap.Logger
	arbiter    *Arbiter
	settings   *cammodel.SettingsStore
	stillBin   string
	captureDir string
	meta       MetadataSink

	mu      sync.Mutex
	status  TimelapseStatus
	cancel  context.CancelFunc
	running bool
}

// NewTimelapse wires the timelapse worker factory.
func NewTimelapse(log *zap.Logger, arbiter *Arbiter, settings *cammodel.SettingsStore, stillBin, captureDir string, meta MetadataSink) *Timelapse {
	return &Timelapse{
		log:        log.Named("timelapse"),
		arbiter:    arbiter,
		settings:   settings,
		stillBin:   stillBin,
		captureDir: captureDir,
		meta:       meta,
		status:     TimelapseStatus{Status: "Idle"},
	}
}

// Status returns a copy of the current session status.
func (t *Timelapse) Status() TimelapseStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.status
	st.Images = append([]string(nil), t.status.Images...)
	return st
}

// Active reports whether a session is running.
func (t *Timelapse) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// NewSessionID derives a sortable session identifier.
func NewSessionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return time.Now().Format("20060102_150405") + "_" + suffix
}

// TimelapseParams describes one session.
type TimelapseParams struct {
	SessionID string
	Interval  time.Duration
	Duration  time.Duration
	Res       cammodel.Resolution

	// Until, when set, extends the session: a scheduled timelapse must not
	// stop before its configured end time.
	Until time.Time

	// OnDone receives the terminal outcome, e.g. to flip a schedule entry.
	OnDone func(err error)
}

// normalized fills the server defaults for anything left unset. A session
// without an explicit duration runs for a minute, not zero iterations.
func (p TimelapseParams) normalized() TimelapseParams {
	if p.SessionID == "" {
		p.SessionID = NewSessionID()
	}
	if p.Interval <= 0 {
		p.Interval = 5 * time.Second
	}
	if p.Duration <= 0 {
		p.Duration = time.Minute
	}
	return p
}

// Start launches the worker on its own goroutine through spawn (the
// supervised spawning interface). Returns the session ID.
func (t *Timelapse) Start(ctx context.Context, p TimelapseParams, spawn func(name string, fn func(context.Context) error)) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return "", ErrTimelapseActive
	}
	p = p.normalized()

	wctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	t.status = TimelapseStatus{
		Active:    true,
		SessionID: p.SessionID,
		Status:    "Starting",
		Images:    []string{},
	}

	spawn("timelapse:"+p.SessionID, func(context.Context) error {
		t.run(wctx, p)
		return nil
	})
	return p.SessionID, nil
}

// Stop cancels the running session.
func (t *Timelapse) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return ErrTimelapseInactive
	}
	t.cancel()
	t.status.Status = "Stopping"
	return nil
}

// run is the worker loop. On any termination cause it flips the shared
// status to inactive, persists session metadata and reports the outcome.
func (t *Timelapse) run(ctx context.Context, p TimelapseParams) {
	sessionDir := filepath.Join(t.captureDir, "timelapses", p.SessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		t.log.Error("session dir creation failed", zap.String("session", p.SessionID), zap.Error(err))
		t.terminate(ctx, p, err)
		return
	}

	duration := p.Duration
	if !p.Until.IsZero() {
		if remaining := time.Until(p.Until); remaining > duration {
			duration = remaining
		}
	}
	t.log.Info("timelapse started", zap.String("session", p.SessionID),
		zap.Duration("interval", p.Interval), zap.Duration("duration", duration))

	start := time.Now()
	count := 0
	for ctx.Err() == nil && time.Since(start) < duration {
		t.setStatus(fmt.Sprintf("Capturing image %d...", count+1))

		filename := fmt.Sprintf("%s_%s_%04d.jpg", p.SessionID, time.Now().Format("20060102_150405"), count)
		path := filepath.Join(sessionDir, filename)

		var snap cammodel.Settings
		err := t.arbiter.WithExclusive(ctx, func() error {
			snap = t.settings.Snapshot()
			return t.captureShot(ctx, path, p.Res, snap)
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			t.log.Warn("timelapse capture failed", zap.String("session", p.SessionID), zap.Error(err))
			t.setStatus("Capture failed")
			continue
		}

		// Rotation runs outside the exclusive section; the camera is
		// already free for the stream to resume.
		if err := media.RotateImage(path, snap.Rotation); err != nil {
			t.log.Warn("timelapse rotation failed", zap.String("file", filename), zap.Error(err))
		}

		count++
		rel := filepath.Join("timelapses", p.SessionID, filename)
		t.mu.Lock()
		t.status.LastImage = rel
		t.status.Images = append(t.status.Images, rel)
		t.status.Count = count
		t.mu.Unlock()

		// Interval sleep in one-second slices so cancellation takes effect
		// promptly.
		t.setStatus(fmt.Sprintf("Waiting %s...", p.Interval))
		deadline := time.Now().Add(p.Interval)
		for ctx.Err() == nil && time.Now().Before(deadline) {
			step := time.Until(deadline)
			if step > time.Second {
				step = time.Second
			}
			sleepCtx(ctx, step)
		}
	}

	t.log.Info("timelapse finished", zap.String("session", p.SessionID), zap.Int("frames", count))

	meta := cammodel.NewCaptureMeta(sessionDir, p.SessionID, "timelapse", p.Res, t.settings.Snapshot())
	if err := t.meta.SaveCapture(context.Background(), meta); err != nil {
		t.log.Warn("metadata persistence failed", zap.String("session", p.SessionID), zap.Error(err))
	}
	t.terminate(ctx, p, nil)
}

// captureShot attempts one still with bounded retries and a short backoff
// between attempts.
func (t *Timelapse) captureShot(ctx context.Context, path string, res cammodel.Resolution, snap cammodel.Settings) error {
	argv := camcmd.StillArgv(t.stillBin, res, snap, path)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(timelapseRetryDelay), timelapseShotRetries),
		ctx)
	return backoff.Retry(func() error {
		return runTool(ctx, t.log, argv, timelapseShotTimeout)
	}, policy)
}

func (t *Timelapse) setStatus(s string) {
	t.mu.Lock()
	t.status.Status = s
	t.mu.Unlock()
}

// terminate flips the shared state to inactive and reports the outcome.
func (t *Timelapse) terminate(ctx context.Context, p TimelapseParams, err error) {
	t.mu.Lock()
	t.running = false
	t.status.Active = false
	if err != nil {
		t.status.Status = "Error"
	} else if ctx.Err() != nil {
		t.status.Status = "Stopped"
	} else {
		t.status.Status = "Finished"
	}
	t.mu.Unlock()

	if p.OnDone != nil {
		p.OnDone(err)
	}
}
