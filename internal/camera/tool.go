package camera

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// MetadataSink persists capture metadata. Persistence is best-effort:
// callers log failures and never fail a capture path on them.
type MetadataSink interface {
	SaveCapture(ctx context.Context, meta cammodel.CaptureMeta) error
}

// runTool runs a one-shot external tool to completion under a wall-clock
// bound. On timeout the process group is terminated and ErrToolTimeout is
// wrapped into the returned ToolError.
func runTool(ctx context.Context, log *zap.Logger, argv []string, timeout time.Duration) error {
	p, err := startProc(log, argv, procOptions{})
	if err != nil {
		return &ToolError{Op: argv[0], Err: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.Done():
		if err := p.Wait(); err != nil {
			return &ToolError{Op: argv[0], Err: err, Diag: p.Diagnostic()}
		}
		return nil

	case <-timer.C:
		p.Stop(2 * time.Second)
		<-p.Done()
		return &ToolError{Op: argv[0], Err: ErrToolTimeout, Diag: p.Diagnostic()}

	case <-ctx.Done():
		p.Stop(2 * time.Second)
		<-p.Done()
		return ctx.Err()
	}
}
