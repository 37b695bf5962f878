//go:build linux

package camera

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// proc encapsulates one supervised external tool invocation.
// Features:
//   - child isolated into its own process group (Setpgid) so internal
//     children are reaped together
//   - Pdeathsig ensures the child dies with the daemon
//   - stderr drained continuously into a diagnostic ring
//   - deterministic teardown: SIGTERM to the group → grace → SIGKILL
//
// When the caller takes the stdout pipe it owns the read loop and must call
// Wait after the final read; otherwise the proc reaps itself.
type proc struct {
	log  *zap.Logger
	cmd  *exec.Cmd
	diag *diagBuffer

	stdout io.ReadCloser // non-nil only when the caller consumes stdout

	pid int

	// Closed once the child is reaped.
	done     chan struct{}
	waitErr  error
	waitOnce sync.Once
	stopOnce sync.Once

	stderrDone chan struct{}
}

type procOptions struct {
	// pipeStdout hands the raw stdout pipe to the caller.
	pipeStdout bool
	// stdin wires the child's stdin, e.g. to the upstream stage of a
	// recording pipeline.
	stdin io.Reader
}

// startProc launches argv as a supervised process.
func startProc(log *zap.Logger, argv []string, opts procOptions) (*proc, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if opts.stdin != nil {
		cmd.Stdin = opts.stdin
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	p := &proc{
		log:        log,
		cmd:        cmd,
		diag:       &diagBuffer{},
		done:       make(chan struct{}),
		stderrDone: make(chan struct{}),
	}

	if opts.pipeStdout {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		p.stdout = stdout
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	p.pid = cmd.Process.Pid
	log.Debug("process started", zap.String("bin", argv[0]), zap.Int("pid", p.pid))

	go p.drainStderr(stderr)
	if p.stdout == nil {
		// Nobody reads stdout; reap as soon as the child exits.
		go func() {
			<-p.stderrDone
			p.Wait()
		}()
	}
	return p, nil
}

// drainStderr streams stderr lines into the diagnostic ring.
func (p *proc) drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.diag.Append(sc.Text())
	}
	close(p.stderrDone)
}

// Stdout returns the raw stdout pipe; nil unless requested at start.
func (p *proc) Stdout() io.ReadCloser { return p.stdout }

// Done is closed once the child has been reaped.
func (p *proc) Done() <-chan struct{} { return p.done }

// Diagnostic returns the newest stderr line, for surfacing tool failures.
func (p *proc) Diagnostic() string { return p.diag.Last() }

// Alive reports whether the child has not yet been reaped.
func (p *proc) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait reaps the child exactly once and returns its exit error. Safe to call
// from multiple goroutines; later calls return the recorded result.
func (p *proc) Wait() error {
	p.waitOnce.Do(func() {
		<-p.stderrDone
		p.waitErr = p.cmd.Wait()
		if p.waitErr != nil {
			var eerr *exec.ExitError
			if errors.As(p.waitErr, &eerr) {
				status := eerr.ProcessState.Sys().(syscall.WaitStatus)
				p.log.Debug("process exited with error status",
					zap.Int("pid", p.pid),
					zap.Int("exit_code", status.ExitStatus()),
					zap.Bool("signaled", status.Signaled()))
			} else {
				p.log.Warn("process wait failed", zap.Int("pid", p.pid), zap.Error(p.waitErr))
			}
		} else {
			p.log.Debug("process exited cleanly", zap.Int("pid", p.pid))
		}
		close(p.done)
	})
	<-p.done
	return p.waitErr
}

// Stop initiates deterministic shutdown of the whole process group: SIGTERM,
// a bounded grace wait, then SIGKILL if the child is still alive. Signal
// failures are logged and swallowed; teardown is best effort and never
// becomes an operation's error.
func (p *proc) Stop(grace time.Duration) {
	p.stopOnce.Do(func() {
		if !p.Alive() {
			return
		}

		if err := syscall.Kill(-p.pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			p.log.Warn("SIGTERM failed", zap.Int("pid", p.pid), zap.Error(err))
		}

		timer := time.NewTimer(grace)
		defer timer.Stop()

		// stderr EOF is the exit signal when the caller owns stdout and has
		// not reaped yet: the pipe closes as soon as the child is gone.
		select {
		case <-p.done:
			return
		case <-p.stderrDone:
			return
		case <-timer.C:
		}

		p.log.Warn("grace expired; sending SIGKILL", zap.Int("pid", p.pid))
		if err := syscall.Kill(-p.pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			p.log.Warn("SIGKILL failed", zap.Int("pid", p.pid), zap.Error(err))
		}
	})
}
