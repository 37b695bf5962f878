// Package task provides a bounded, supervised spawning interface for
// background work. In-flight tasks are enumerable and failures land in the
// log instead of vanishing with a detached goroutine.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Supervisor runs named background tasks under one errgroup with a
// concurrency bound. A task failure or panic is logged and never takes the
// group down.
type Supervisor struct {
	log *zap.Logger
	ctx context.Context
	g   *errgroup.Group

	mu       sync.Mutex
	inflight map[string]time.Time
	seq      int
}

// NewSupervisor builds a supervisor whose tasks observe ctx for
// cancellation. limit bounds concurrent tasks; <= 0 means a generous default.
func NewSupervisor(ctx context.Context, log *zap.Logger, limit int) *Supervisor {
	if limit <= 0 {
		limit = 32
	}
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return &Supervisor{
		log:      log.Named("tasks"),
		ctx:      ctx,
		g:        g,
		inflight: make(map[string]time.Time),
	}
}

// Go spawns fn as a supervised task. When the concurrency bound is reached
// the task is rejected and logged rather than queued, so a stuck worker
// cannot pile up unbounded work. Returns whether the task was started.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	s.seq++
	key := fmt.Sprintf("%s#%d", name, s.seq)
	s.mu.Unlock()

	started := s.g.TryGo(func() (err error) {
		s.mu.Lock()
		s.inflight[key] = time.Now()
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()

			if r := recover(); r != nil {
				s.log.Error("task panicked", zap.String("task", key), zap.Any("panic", r))
			} else if err != nil {
				s.log.Error("task failed", zap.String("task", key), zap.Error(err))
			}
			// Failures are observed here; the group must keep running.
			err = nil
		}()
		return fn(s.ctx)
	})

	if !started {
		s.log.Warn("task rejected: concurrency limit reached", zap.String("task", name))
	}
	return started
}

// Inflight lists the names of currently running tasks.
func (s *Supervisor) Inflight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.inflight))
	for k := range s.inflight {
		out = append(out, k)
	}
	return out
}

// Wait blocks until every in-flight task has returned. Call after the root
// context is cancelled during shutdown.
func (s *Supervisor) Wait() {
	_ = s.g.Wait()
}
