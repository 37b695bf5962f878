package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceBusy means exclusive camera ownership could not be obtained
	// within the acquisition bound.
	ErrDeviceBusy = errors.New("camera device busy")

	// ErrToolTimeout means a bounded external tool run exceeded its
	// wall-clock allowance.
	ErrToolTimeout = errors.New("camera tool timed out")

	ErrAlreadyRecording  = errors.New("recording already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrTimelapseActive   = errors.New("timelapse already running")
	ErrTimelapseInactive = errors.New("no timelapse running")
)

// ToolError wraps an external tool failure together with the newest stderr
// line, so request handlers can surface a diagnostic excerpt without
// re-reading pipes.
type ToolError struct {
	Op   string
	Diag string
	Err  error
}

func (e *ToolError) Error() string {
	if e.Diag != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Diag)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Diagnostic extracts the diagnostic excerpt from an error chain, if any.
func Diagnostic(err error) string {
	var terr *ToolError
	if errors.As(err, &terr) {
		return terr.Diag
	}
	return ""
}
