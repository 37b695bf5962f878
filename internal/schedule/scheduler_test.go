package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

type fakeRunner struct {
	recordings []*Task
	timelapses []*Task
}

func (f *fakeRunner) RunRecording(_ context.Context, t *Task) { f.recordings = append(f.recordings, t) }
func (f *fakeRunner) RunTimelapse(_ context.Context, t *Task) { f.timelapses = append(f.timelapses, t) }

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustTask(t *testing.T, typ string, start, end time.Time) *Task {
	t.Helper()
	task, err := NewTask(typ, start.Format(TimeLayout), end.Format(TimeLayout), 5, 60, cammodel.DefaultCaptureResolution())
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	return task
}

func TestSchedulerPromotesDueTasks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	store := NewStore()
	runner := &fakeRunner{}
	s := NewScheduler(zap.NewNop(), store, runner, time.Second)
	s.now = fixedNow(now)

	due := mustTask(t, "recording", now.Add(-time.Minute), now.Add(time.Hour))
	future := mustTask(t, "timelapse", now.Add(time.Hour), now.Add(2*time.Hour))
	store.Add(due)
	store.Add(future)

	s.cycle(context.Background())

	if len(runner.recordings) != 1 || runner.recordings[0] != due {
		t.Fatalf("due recording not dispatched: %v", runner.recordings)
	}
	if len(runner.timelapses) != 0 {
		t.Fatal("future timelapse dispatched early")
	}
	if due.Status != StatusInProgress {
		t.Fatalf("due task status = %s, want in_progress", due.Status)
	}
	if future.Status != StatusScheduled {
		t.Fatalf("future task status = %s, want scheduled", future.Status)
	}

	// A second cycle must not re-dispatch the running task.
	s.cycle(context.Background())
	if len(runner.recordings) != 1 {
		t.Fatal("in-progress task dispatched twice")
	}
}

func TestSchedulerExpiresStaleTasks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	store := NewStore()
	runner := &fakeRunner{}
	s := NewScheduler(zap.NewNop(), store, runner, time.Second)
	s.now = fixedNow(now)

	stale := mustTask(t, "timelapse", now.Add(-2*time.Hour), now.Add(-time.Hour))
	stale.Status = StatusInProgress
	store.Add(stale)

	s.cycle(context.Background())

	if stale.Status != StatusCompleted {
		t.Fatalf("stale task status = %s, want completed", stale.Status)
	}
	if len(runner.timelapses) != 0 {
		t.Fatal("expired task dispatched")
	}
}

func TestNewTaskValidation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	res := cammodel.DefaultCaptureResolution()

	tests := []struct {
		name  string
		typ   string
		start string
		end   string
	}{
		{"unknown type", "burst", now.Format(TimeLayout), now.Add(time.Hour).Format(TimeLayout)},
		{"bad start format", "recording", "yesterday", now.Add(time.Hour).Format(TimeLayout)},
		{"end before start", "recording", now.Format(TimeLayout), now.Add(-time.Hour).Format(TimeLayout)},
		{"end equals start", "timelapse", now.Format(TimeLayout), now.Format(TimeLayout)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTask(tc.typ, tc.start, tc.end, 5, 60, res)
			if !errors.Is(err, ErrInvalidTask) {
				t.Fatalf("got %v, want ErrInvalidTask", err)
			}
		})
	}
}

func TestNewTaskDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	task, err := NewTask("timelapse", now.Format(TimeLayout), now.Add(time.Hour).Format(TimeLayout), 0, 0, cammodel.DefaultCaptureResolution())
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if task.Interval != 5*time.Second {
		t.Fatalf("interval default = %v", task.Interval)
	}
	if task.Duration != 60*time.Second {
		t.Fatalf("duration default = %v", task.Duration)
	}
	if task.ID == "" {
		t.Fatal("empty task ID")
	}
	if task.Status != StatusScheduled {
		t.Fatalf("status = %s", task.Status)
	}
}

func TestStoreTransition(t *testing.T) {
	store := NewStore()
	now := time.Now()
	task := mustTask(t, "recording", now, now.Add(time.Hour))
	store.Add(task)

	if !store.Transition(task, StatusScheduled, StatusInProgress) {
		t.Fatal("valid transition rejected")
	}
	if store.Transition(task, StatusScheduled, StatusInProgress) {
		t.Fatal("stale transition accepted")
	}

	store.SetResult(task, errors.New("boom"))
	if task.Status != StatusError {
		t.Fatalf("status = %s after failed result", task.Status)
	}
}

func TestStoreLockedAccessors(t *testing.T) {
	store := NewStore()
	now := time.Now()
	task := mustTask(t, "timelapse", now, now.Add(time.Hour))
	store.Add(task)

	if got := store.Status(task); got != StatusScheduled {
		t.Fatalf("Status = %s, want scheduled", got)
	}

	store.SetFilename(task, "sched_rec_20260301_120000.mp4")
	store.SetSessionID(task, "20260301_120000_ABC123")

	// Worker-side writes must be visible through the read surface.
	list := store.List()
	if len(list) != 1 {
		t.Fatalf("List returned %d tasks", len(list))
	}
	if list[0].Filename != "sched_rec_20260301_120000.mp4" {
		t.Fatalf("filename = %q", list[0].Filename)
	}
	if list[0].SessionID != "20260301_120000_ABC123" {
		t.Fatalf("session id = %q", list[0].SessionID)
	}
}
