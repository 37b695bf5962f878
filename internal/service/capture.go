// Package service composes the capture primitives into the operations the
// HTTP layer, the scheduler and the motion engine all share.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/camera"
	"github.com/picamctl/picamctl/internal/schedule"
	"github.com/picamctl/picamctl/internal/task"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// CaptureService fronts snapshots, recordings and timelapses with one
// consistent entry point per operation, regardless of who triggered it.
type CaptureService struct {
	log       *zap.Logger
	snap      *camera.Snapshotter
	rec       *camera.Recorder
	timelapse *camera.Timelapse
	settings  *cammodel.SettingsStore
	store     *schedule.Store
	sup       *task.Supervisor
}

func NewCaptureService(
	log *zap.Logger,
	snap *camera.Snapshotter,
	rec *camera.Recorder,
	timelapse *camera.Timelapse,
	settings *cammodel.SettingsStore,
	store *schedule.Store,
	sup *task.Supervisor,
) *CaptureService {
	return &CaptureService{
		log:       log.Named("capture_service"),
		snap:      snap,
		rec:       rec,
		timelapse: timelapse,
		settings:  settings,
		store:     store,
		sup:       sup,
	}
}

// spawn adapts the supervisor to the timelapse worker contract.
func (s *CaptureService) spawn(name string, fn func(context.Context) error) {
	if !s.sup.Go(name, fn) {
		s.log.Warn("background task rejected", zap.String("task", name))
	}
}

// Snapshot captures one still at the configured capture resolution.
func (s *CaptureService) Snapshot(ctx context.Context) (string, error) {
	return s.snap.Capture(ctx, s.settings.Snapshot().CaptureResolution())
}

// StartRecording begins a manual recording.
func (s *CaptureService) StartRecording(ctx context.Context) (string, error) {
	return s.rec.Start(ctx, s.settings.Snapshot().CaptureResolution())
}

// StopRecording finalizes the active manual recording.
func (s *CaptureService) StopRecording(ctx context.Context) error {
	return s.rec.Stop(ctx)
}

// StartTimelapse begins a manual timelapse session.
func (s *CaptureService) StartTimelapse(ctx context.Context, interval, duration time.Duration) (string, error) {
	return s.timelapse.Start(ctx, camera.TimelapseParams{
		Interval: interval,
		Duration: duration,
		Res:      s.settings.Snapshot().CaptureResolution(),
	}, s.spawn)
}

// StopTimelapse cancels the active session.
func (s *CaptureService) StopTimelapse() error {
	return s.timelapse.Stop()
}

// TimelapseStatus exposes the worker status.
func (s *CaptureService) TimelapseStatus() camera.TimelapseStatus {
	return s.timelapse.Status()
}

// RecordingActive reports whether a recording is running.
func (s *CaptureService) RecordingActive() bool { return s.rec.Active() }

// RecordingFilename returns the active recording's filename.
func (s *CaptureService) RecordingFilename() string { return s.rec.Filename() }

// --- schedule.Runner ---

// RunRecording launches a scheduled recording worker. Returns immediately;
// the worker reports its terminal status through the store.
func (s *CaptureService) RunRecording(ctx context.Context, t *schedule.Task) {
	duration := time.Until(t.End)
	if t.Duration > 0 && t.Duration < duration {
		duration = t.Duration
	}
	if duration <= 0 {
		s.store.SetResult(t, nil)
		return
	}

	ok := s.sup.Go("sched-recording:"+t.ID, func(ctx context.Context) error {
		filename, err := s.rec.RunScheduled(ctx, t.Res, duration)
		if err == nil {
			s.store.SetFilename(t, filename)
		}
		s.store.SetResult(t, err)
		return err
	})
	if !ok {
		s.store.SetResult(t, camera.ErrDeviceBusy)
	}
}

// RunTimelapse launches a scheduled timelapse worker. The session runs at
// least until the task's end time.
func (s *CaptureService) RunTimelapse(ctx context.Context, t *schedule.Task) {
	sessionID, err := s.timelapse.Start(ctx, camera.TimelapseParams{
		Interval: t.Interval,
		Duration: t.Duration,
		Res:      t.Res,
		Until:    t.End,
		OnDone:   func(err error) { s.store.SetResult(t, err) },
	}, s.spawn)
	if err != nil {
		s.log.Warn("scheduled timelapse rejected", zap.String("task", t.ID), zap.Error(err))
		s.store.SetResult(t, err)
		return
	}
	s.store.SetSessionID(t, sessionID)
}

// --- motion dispatch ---

// MotionSnapshot captures a still in response to a motion trigger.
func (s *CaptureService) MotionSnapshot(ctx context.Context) error {
	_, err := s.snap.Capture(ctx, s.settings.Snapshot().CaptureResolution())
	return err
}

// MotionRecord runs a fixed-length recording in response to motion. A
// recording already in progress wins over the trigger.
func (s *CaptureService) MotionRecord(ctx context.Context, duration time.Duration) error {
	if s.rec.Active() {
		return camera.ErrAlreadyRecording
	}
	_, err := s.rec.RunScheduled(ctx, s.settings.Snapshot().CaptureResolution(), duration)
	return err
}

// MotionTimelapse runs a short burst session in response to motion. An
// active session wins over the trigger.
func (s *CaptureService) MotionTimelapse(ctx context.Context, frames int) error {
	const interval = 2 * time.Second
	_, err := s.timelapse.Start(ctx, camera.TimelapseParams{
		Interval: interval,
		Duration: time.Duration(frames) * interval,
		Res:      s.settings.Snapshot().CaptureResolution(),
	}, s.spawn)
	return err
}
