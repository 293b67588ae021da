package task

import (
	"context"
	"log/slog"
	"sync"
)

// Scheduler runs the background tasks of exactly one owner. Tasks are queued
// at construction (or with Add) and each gets its own goroutine on Start.
// Cancellation is cooperative: Stop cancels the shared context and returns
// without waiting for the loops to observe it.
type Scheduler[O Owner] struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []Task[O]
	started []Task[O]
	ctx     context.Context
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

func NewScheduler[O Owner](logger *slog.Logger, tasks ...Task[O]) *Scheduler[O] {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler[O]{logger: logger}
	s.queue = append(s.queue, tasks...)
	return s
}

// Add queues a task for the next Start call.
func (s *Scheduler[O]) Add(t Task[O]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, t)
}

// Start drains the registration queue and spawns one execution per task
// against owner, then returns. With an empty queue it is a no-op.
func (s *Scheduler[O]) Start(owner O) {
	s.mu.Lock()
	if s.cancel == nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	tasks := s.queue
	s.queue = nil
	s.started = append(s.started, tasks...)
	ctx := s.ctx
	s.mu.Unlock()

	for _, t := range tasks {
		s.wg.Add(1)
		Executions.Inc()
		go func(t Task[O]) {
			defer s.wg.Done()
			defer Executions.Dec()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("task panicked", "task", t.Name(), "owner", owner.Name(), "panic", r)
				}
			}()
			s.logger.Debug("task started", "task", t.Name(), "owner", owner.Name())
			if err := t.Run(ctx, owner); err != nil {
				// Task-local failure: this execution ends, siblings keep going.
				s.logger.Error("task failed", "task", t.Name(), "owner", owner.Name(), "error", err)
				return
			}
			s.logger.Debug("task finished", "task", t.Name(), "owner", owner.Name())
		}(t)
	}
}

// Stop cancels every spawned execution and clears the task list. It does not
// wait for the executions to terminate; use Wait for drain semantics.
func (s *Scheduler[O]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.started = nil
}

// Wait blocks until all spawned executions have returned.
func (s *Scheduler[O]) Wait() {
	s.wg.Wait()
}

// Started reports how many tasks have been handed an execution.
func (s *Scheduler[O]) Started() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.started)
}

// Pending reports how many tasks are queued but not yet started.
func (s *Scheduler[O]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
