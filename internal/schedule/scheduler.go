package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often the task list is evaluated.
const DefaultPollInterval = 5 * time.Second

// Runner launches the capture operation behind a due task. Implementations
// own the terminal status transition via Store.SetResult.
type Runner interface {
	RunRecording(ctx context.Context, t *Task)
	RunTimelapse(ctx context.Context, t *Task)
}

// Scheduler polls the task list and promotes due tasks into running
// operations. Each spawned operation is an independent unit of concurrency;
// the scheduler only flips entry statuses.
type Scheduler struct {
	log    *zap.Logger
	store  *Store
	runner Runner
	poll   time.Duration
	now    func() time.Time
}

// NewScheduler wires the polling loop. A non-positive poll selects the
// default.
func NewScheduler(log *zap.Logger, store *Store, runner Runner, poll time.Duration) *Scheduler {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Scheduler{
		log:    log.Named("scheduler"),
		store:  store,
		runner: runner,
		poll:   poll,
		now:    time.Now,
	}
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle evaluates every task once. A failure evaluating one task never
// aborts the rest of the cycle.
func (s *Scheduler) cycle(ctx context.Context) {
	for _, t := range s.store.snapshot() {
		s.evaluate(ctx, t)
	}
}

func (s *Scheduler) evaluate(ctx context.Context, t *Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task evaluation panicked", zap.String("task", t.ID), zap.Any("panic", r))
		}
	}()

	now := s.now()
	status := s.store.Status(t)

	if status == StatusScheduled && !now.Before(t.Start) {
		if !s.store.Transition(t, StatusScheduled, StatusInProgress) {
			return
		}
		s.log.Info("triggering scheduled task",
			zap.String("task", t.ID), zap.String("type", string(t.Type)))

		switch t.Type {
		case TypeRecording:
			s.runner.RunRecording(ctx, t)
		case TypeTimelapse:
			s.runner.RunTimelapse(ctx, t)
		}
		return
	}

	// Safety net: expire tasks whose worker never reported a terminal
	// status.
	if status == StatusInProgress && !now.Before(t.End) {
		if s.store.Transition(t, StatusInProgress, StatusCompleted) {
			s.log.Info("task reached end time", zap.String("task", t.ID))
		}
	}
}
