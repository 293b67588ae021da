package task

import (
	"context"
	"sync/atomic"
	"time"
)

// Owner is any entity background work can be bound to: the server, a single
// connection, or a live session. The only capability a task needs from its
// owner here is a stable identity for logging.
type Owner interface {
	Name() string
}

// Func is the unit of work a task repeats. Returning an error terminates that
// task's execution; the scheduler logs it and leaves sibling tasks alone.
type Func[O Owner] func(ctx context.Context, owner O) error

// Task is one schedulable policy loop. Run blocks until the policy completes
// or ctx is cancelled, whichever comes first.
type Task[O Owner] interface {
	Name() string
	Run(ctx context.Context, owner O) error
	Running() bool
}

// pauseDelay is how long a paused task sleeps before re-checking its flag.
const pauseDelay = 100 * time.Millisecond

type state struct {
	name    string
	running atomic.Bool
	paused  atomic.Bool
}

func (s *state) Name() string  { return s.name }
func (s *state) Running() bool { return s.running.Load() }
func (s *state) Paused() bool  { return s.paused.Load() }

// Pause suspends the task at its next iteration boundary. The loop keeps
// polling the flag; it never exits just because it is paused.
func (s *state) Pause() { s.paused.Store(true) }

// Resume lifts a pause.
func (s *state) Resume() { s.paused.Store(false) }

// sleep waits d or until ctx is cancelled. It reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Loop runs its work forever with a fixed delay between iterations, until
// externally stopped.
type Loop[O Owner] struct {
	state
	interval time.Duration
	process  Func[O]
}

func NewLoop[O Owner](name string, interval time.Duration, process Func[O]) *Loop[O] {
	t := &Loop[O]{interval: interval, process: process}
	t.name = name
	return t
}

func (t *Loop[O]) Run(ctx context.Context, owner O) error {
	t.running.Store(true)
	defer t.running.Store(false)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if t.paused.Load() {
			if !sleep(ctx, pauseDelay) {
				return nil
			}
			continue
		}
		if err := t.process(ctx, owner); err != nil {
			return err
		}
		if !sleep(ctx, t.interval) {
			return nil
		}
	}
}

// FixedCount is a Loop that stops itself once it has executed a configured
// number of times.
type FixedCount[O Owner] struct {
	state
	maxRuns  int
	interval time.Duration
	process  Func[O]
	runs     atomic.Int64
}

func NewFixedCount[O Owner](name string, maxRuns int, interval time.Duration, process Func[O]) *FixedCount[O] {
	t := &FixedCount[O]{maxRuns: maxRuns, interval: interval, process: process}
	t.name = name
	return t
}

// Runs reports how many iterations have completed so far.
func (t *FixedCount[O]) Runs() int { return int(t.runs.Load()) }

func (t *FixedCount[O]) Run(ctx context.Context, owner O) error {
	t.running.Store(true)
	defer t.running.Store(false)
	for int(t.runs.Load()) < t.maxRuns {
		if ctx.Err() != nil {
			return nil
		}
		if t.paused.Load() {
			if !sleep(ctx, pauseDelay) {
				return nil
			}
			continue
		}
		if err := t.process(ctx, owner); err != nil {
			return err
		}
		t.runs.Add(1)
		if !sleep(ctx, t.interval) {
			return nil
		}
	}
	return nil
}

// DelayOnce sleeps a before-delay, runs its work exactly once, sleeps an
// after-delay and ends on its own.
type DelayOnce[O Owner] struct {
	state
	before  time.Duration
	after   time.Duration
	process Func[O]
}

func NewDelayOnce[O Owner](name string, before, after time.Duration, process Func[O]) *DelayOnce[O] {
	t := &DelayOnce[O]{before: before, after: after, process: process}
	t.name = name
	return t
}

func (t *DelayOnce[O]) Run(ctx context.Context, owner O) error {
	t.running.Store(true)
	defer t.running.Store(false)
	if !sleep(ctx, t.before) {
		return nil
	}
	for t.paused.Load() {
		if !sleep(ctx, pauseDelay) {
			return nil
		}
	}
	if err := t.process(ctx, owner); err != nil {
		return err
	}
	if !sleep(ctx, t.after) {
		return nil
	}
	return nil
}
