// Package task tracks asynchronous synthesis jobs from submission to a
// terminal state, for polling surfaces and best-effort abort.
package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

// State names one position in a task's lifecycle.
type State string

// Task lifecycle states.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

var (
	// ErrTaskNotFound indicates an unknown task ID.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotAbortable indicates the task already reached a terminal state.
	ErrNotAbortable = errors.New("task is not abortable")
)

// Result holds the artifact locations and summary of a completed task.
type Result struct {
	AudioPath       string  `json:"audio_path"`
	MetadataPath    string  `json:"metadata_path"`
	EngineUsed      string  `json:"engine_used"`
	DurationSeconds float64 `json:"duration_seconds"`
	SegmentCount    int     `json:"segment_count"`
	WordErrorRate   float64 `json:"word_error_rate"`
}

// Snapshot is the externally visible view of one task.
type Snapshot struct {
	ID           string  `json:"id"`
	State        State   `json:"state"`
	SegmentsDone int     `json:"segments_done"`
	SegmentTotal int     `json:"segment_total"`
	Error        string  `json:"error,omitempty"`
	Result       *Result `json:"result,omitempty"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type record struct {
	snapshot Snapshot
	cancel   context.CancelFunc
}

// Manager is the in-memory task table. All methods are safe for
// concurrent use.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*record
	clock func() time.Time
	log   *logger.Logger
}

// NewManager creates an empty task table.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		tasks: make(map[string]*record),
		clock: time.Now,
		log:   log,
	}
}

// Create registers a queued task and derives a cancellable context for its
// execution. Aborting the task cancels the returned context.
func (m *Manager) Create(ctx context.Context) (string, context.Context) {
	taskCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[id] = &record{
		snapshot: Snapshot{
			ID:        id,
			State:     StateQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	return id, taskCtx
}

// Get returns the current view of a task.
func (m *Manager) Get(id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, found := m.tasks[id]
	if !found {
		return Snapshot{}, ErrTaskNotFound
	}

	return rec.snapshot, nil
}

// SetRunning moves a queued task to running with its segment total.
func (m *Manager) SetRunning(id string, segmentTotal int) error {
	return m.update(id, func(s *Snapshot) {
		s.State = StateRunning
		s.SegmentTotal = segmentTotal
	})
}

// SetProgress records how many segments have been rendered.
func (m *Manager) SetProgress(id string, segmentsDone int) error {
	return m.update(id, func(s *Snapshot) {
		s.SegmentsDone = segmentsDone
	})
}

// Complete marks a task finished with its result. An aborted task stays
// aborted even if the pipeline raced past the cancellation.
func (m *Manager) Complete(id string, result *Result) error {
	return m.update(id, func(s *Snapshot) {
		if s.State == StateAborted {
			return
		}

		s.State = StateCompleted
		s.Result = result
		s.SegmentsDone = s.SegmentTotal
	})
}

// Fail marks a task failed with its error message.
func (m *Manager) Fail(id string, taskErr error) error {
	return m.update(id, func(s *Snapshot) {
		if s.State == StateAborted {
			return
		}

		s.State = StateFailed
		s.Error = taskErr.Error()
	})
}

// Abort cancels a queued or running task. The cancellation is best
// effort: in-flight engine calls finish or time out on their own.
func (m *Manager) Abort(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.tasks[id]
	if !found {
		return ErrTaskNotFound
	}

	state := rec.snapshot.State
	if state != StateQueued && state != StateRunning {
		return ErrNotAbortable
	}

	rec.snapshot.State = StateAborted
	rec.snapshot.UpdatedAt = m.clock()
	rec.cancel()

	return nil
}

// Cleanup removes terminal tasks older than retention as of now. Queued
// and running tasks always survive. It returns the removal count.
func (m *Manager) Cleanup(now time.Time, retention time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for id, rec := range m.tasks {
		state := rec.snapshot.State
		if state == StateQueued || state == StateRunning {
			continue
		}

		if now.Sub(rec.snapshot.UpdatedAt) > retention {
			delete(m.tasks, id)

			removed++
		}
	}

	return removed
}

// StartCleaner runs periodic cleanups until the context is cancelled.
func (m *Manager) StartCleaner(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := m.Cleanup(now, retention); removed > 0 {
					m.log.Info("Task cleanup removed %d finished tasks", removed)
				}
			}
		}
	}()
}

// Len reports the number of tracked tasks.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tasks)
}

// SetClock overrides the time source, used by tests to age tasks.
func (m *Manager) SetClock(clock func() time.Time) {
	m.clock = clock
}

func (m *Manager) update(id string, mutate func(*Snapshot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.tasks[id]
	if !found {
		return ErrTaskNotFound
	}

	mutate(&rec.snapshot)
	rec.snapshot.UpdatedAt = m.clock()

	return nil
}
