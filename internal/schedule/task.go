// Package schedule implements the time-windowed task list and the polling
// scheduler that promotes due tasks into running capture operations.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// TimeLayout is the wire format for schedule windows (HTML datetime-local).
const TimeLayout = "2006-01-02T15:04"

// TaskType discriminates what a schedule window launches.
type TaskType string

const (
	TypeRecording TaskType = "recording"
	TypeTimelapse TaskType = "timelapse"
)

// TaskStatus is the schedule entry state machine:
// scheduled → in_progress → {completed, error}.
type TaskStatus string

const (
	StatusScheduled  TaskStatus = "scheduled"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusError      TaskStatus = "error"
)

// ErrInvalidTask rejects malformed schedule payloads.
var ErrInvalidTask = errors.New("invalid schedule task")

// Task is one user-defined time window describing an unattended future
// recording or timelapse.
type Task struct {
	ID        string              `json:"id"`
	Type      TaskType            `json:"type"`
	Start     time.Time           `json:"start"`
	End       time.Time           `json:"end"`
	Interval  time.Duration       `json:"interval"`
	Duration  time.Duration       `json:"duration"`
	Res       cammodel.Resolution `json:"resolution"`
	Status    TaskStatus          `json:"status"`
	SessionID string              `json:"session_id,omitempty"`
	Filename  string              `json:"filename,omitempty"`
}

// NewTask validates a schedule request and builds the entry. start and end
// use TimeLayout; interval and duration are seconds.
func NewTask(taskType, start, end string, intervalSec, durationSec int, res cammodel.Resolution) (*Task, error) {
	tt := TaskType(strings.ToLower(taskType))
	if tt != TypeRecording && tt != TypeTimelapse {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTask, taskType)
	}

	startAt, err := time.ParseInLocation(TimeLayout, start, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrInvalidTask, err)
	}
	endAt, err := time.ParseInLocation(TimeLayout, end, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrInvalidTask, err)
	}
	if !endAt.After(startAt) {
		return nil, fmt.Errorf("%w: end not after start", ErrInvalidTask)
	}
	if intervalSec <= 0 {
		intervalSec = 5
	}
	if durationSec <= 0 {
		durationSec = 60
	}

	return &Task{
		ID:       uuid.NewString()[:8],
		Type:     tt,
		Start:    startAt,
		End:      endAt,
		Interval: time.Duration(intervalSec) * time.Second,
		Duration: time.Duration(durationSec) * time.Second,
		Res:      res,
		Status:   StatusScheduled,
	}, nil
}

// Store holds the in-memory task list behind a narrow lock. The list is not
// durable across restarts.
type Store struct {
	mu    sync.Mutex
	tasks []*Task
}

// NewStore returns an empty task list.
func NewStore() *Store { return &Store{} }

// Add appends a task.
func (s *Store) Add(t *Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// Remove deletes a task by ID.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	s.tasks = out
}

// List returns value copies of every task for read-only surfaces.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// snapshot returns a shallow copy of the task pointer list so one poll cycle
// tolerates concurrent add/remove.
func (s *Store) snapshot() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}

// Status reads a task's current status under the store lock. Tasks are
// shared between the scheduler and their workers; direct field reads race
// with Transition and SetResult.
func (s *Store) Status(t *Task) TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Status
}

// SetFilename records the worker's output file.
func (s *Store) SetFilename(t *Task, filename string) {
	s.mu.Lock()
	t.Filename = filename
	s.mu.Unlock()
}

// SetSessionID records the timelapse session behind an in-progress task.
func (s *Store) SetSessionID(t *Task, id string) {
	s.mu.Lock()
	t.SessionID = id
	s.mu.Unlock()
}

// Transition flips a task's status only when it still holds from. Returns
// whether the flip happened.
func (s *Store) Transition(t *Task, from, to TaskStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status != from {
		return false
	}
	t.Status = to
	return true
}

// SetResult records the worker's terminal transition.
func (s *Store) SetResult(t *Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		t.Status = StatusError
		return
	}
	t.Status = StatusCompleted
}
