package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/camcmd"
)

const compileTimeout = 15 * time.Minute

var (
	ErrCompileRunning  = errors.New("compilation already running for session")
	ErrSessionNotFound = errors.New("timelapse session not found")
	ErrUnknownFormat   = errors.New("unknown output format")
	ErrCompileNotFound = errors.New("no compilation for session")
	ErrSpawnRejected   = errors.New("background worker limit reached")
)

// CompileStatus describes one compilation job.
type CompileStatus struct {
	SessionID string    `json:"session_id"`
	Format    string    `json:"format"`
	State     string    `json:"state"` // running | done | error
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Started   time.Time `json:"started"`
}

// Spawner runs a named background task.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error) bool
}

// Compiler assembles timelapse frame directories into mp4 or gif files.
// One job per session at a time; finished statuses stay queryable until
// replaced by a new run.
type Compiler struct {
	log        *zap.Logger
	ffmpegBin  string
	captureDir string

	mu   sync.Mutex
	jobs map[string]*CompileStatus
}

func NewCompiler(log *zap.Logger, ffmpegBin, captureDir string) *Compiler {
	return &Compiler{
		log:        log.Named("compile"),
		ffmpegBin:  ffmpegBin,
		captureDir: captureDir,
		jobs:       make(map[string]*CompileStatus),
	}
}

// Start launches a compilation in the background. format is "mp4" or
// "gif". Returns the initial status.
func (c *Compiler) Start(sessionID, format string, spawn Spawner) (CompileStatus, error) {
	if format != "mp4" && format != "gif" {
		return CompileStatus{}, ErrUnknownFormat
	}

	// Sessions live where the timelapse worker writes them; the finished
	// file lands next to the other captures so the gallery picks it up.
	sessionDir := filepath.Join(c.captureDir, "timelapses", sessionID)
	if fi, err := os.Stat(sessionDir); err != nil || !fi.IsDir() {
		return CompileStatus{}, ErrSessionNotFound
	}

	output := filepath.Join(c.captureDir, fmt.Sprintf("%s.%s", sessionID, format))

	c.mu.Lock()
	if job, ok := c.jobs[sessionID]; ok && job.State == "running" {
		c.mu.Unlock()
		return *job, ErrCompileRunning
	}
	status := &CompileStatus{
		SessionID: sessionID,
		Format:    format,
		State:     "running",
		Started:   time.Now(),
	}
	c.jobs[sessionID] = status
	c.mu.Unlock()

	ok := spawn.Go("compile-"+sessionID, func(ctx context.Context) error {
		err := c.run(ctx, sessionDir, output, format)
		c.finish(sessionID, output, err)
		return err
	})
	if !ok {
		c.finish(sessionID, "", ErrSpawnRejected)
		return CompileStatus{}, ErrSpawnRejected
	}
	return *status, nil
}

// Status returns the last known job for a session.
func (c *Compiler) Status(sessionID string) (CompileStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[sessionID]
	if !ok {
		return CompileStatus{}, ErrCompileNotFound
	}
	return *job, nil
}

func (c *Compiler) run(ctx context.Context, sessionDir, output, format string) error {
	var argv []string
	switch format {
	case "mp4":
		argv = camcmd.CompileMP4Argv(c.ffmpegBin, sessionDir, output)
	case "gif":
		argv = camcmd.CompileGIFArgv(c.ffmpegBin, sessionDir, output)
	}

	ctx, cancel := context.WithTimeout(ctx, compileTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := lastLines(string(out), 5)
		c.log.Error("compilation failed",
			zap.String("output", output),
			zap.String("diag", tail),
			zap.Error(err))
		return fmt.Errorf("ffmpeg: %w", err)
	}

	c.log.Info("compilation finished", zap.String("output", output))
	return nil
}

func (c *Compiler) finish(sessionID, output string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[sessionID]
	if !ok {
		return
	}
	if err != nil {
		job.State = "error"
		job.Error = err.Error()
		return
	}
	job.State = "done"
	job.Output = filepath.Base(output)
}

// VideoThumb extracts a single poster frame from a recording.
func (c *Compiler) VideoThumb(ctx context.Context, videoPath, thumbPath string) error {
	argv := camcmd.VideoThumbArgv(c.ffmpegBin, videoPath, thumbPath)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("video thumbnail: %s: %w", lastLines(string(out), 3), err)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
