package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOwner struct{}

func (testOwner) Name() string { return "test-owner" }

func TestSchedulerSpawnsOneExecutionPerTask(t *testing.T) {
	tasks := []*Loop[testOwner]{
		NewLoop[testOwner]("a", time.Millisecond, noop),
		NewLoop[testOwner]("b", time.Millisecond, noop),
		NewLoop[testOwner]("c", time.Millisecond, noop),
	}
	s := NewScheduler[testOwner](nil)
	for _, task := range tasks {
		s.Add(task)
	}

	s.Start(testOwner{})
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
	})

	require.Equal(t, 3, s.Started())
	require.Equal(t, 0, s.Pending())
	require.Eventually(t, func() bool {
		for _, task := range tasks {
			if !task.Running() {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	require.Eventually(t, func() bool {
		for _, task := range tasks {
			if task.Running() {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerStartWithEmptyQueueIsNoop(t *testing.T) {
	s := NewScheduler[testOwner](nil)
	s.Start(testOwner{})
	assert.Equal(t, 0, s.Started())
	s.Stop()
	s.Wait()
}

func TestLoopTaskIterationLowerBound(t *testing.T) {
	var count atomic.Int64
	interval := 5 * time.Millisecond
	task := NewLoop[testOwner]("ticker", interval, func(ctx context.Context, o testOwner) error {
		count.Add(1)
		return nil
	})
	s := NewScheduler[testOwner](nil, task)
	s.Start(testOwner{})

	time.Sleep(200 * time.Millisecond)
	s.Stop()
	s.Wait()

	// floor(200ms/5ms) = 40; allow generous scheduling jitter.
	assert.GreaterOrEqual(t, count.Load(), int64(10))
}

func TestFixedCountTaskStopsItself(t *testing.T) {
	var count atomic.Int64
	task := NewFixedCount[testOwner]("bounded", 3, time.Millisecond, func(ctx context.Context, o testOwner) error {
		count.Add(1)
		return nil
	})
	s := NewScheduler[testOwner](nil, task)
	s.Start(testOwner{})
	s.Wait()

	assert.Equal(t, int64(3), count.Load())
	assert.Equal(t, 3, task.Runs())
	assert.False(t, task.Running())
}

func TestDelayOnceTaskRunsExactlyOnce(t *testing.T) {
	var count atomic.Int64
	task := NewDelayOnce[testOwner]("once", 5*time.Millisecond, 5*time.Millisecond, func(ctx context.Context, o testOwner) error {
		count.Add(1)
		return nil
	})
	s := NewScheduler[testOwner](nil, task)
	s.Start(testOwner{})
	s.Wait()

	assert.Equal(t, int64(1), count.Load())
	assert.False(t, task.Running())
}

func TestPauseSuspendsWithoutExiting(t *testing.T) {
	var count atomic.Int64
	task := NewLoop[testOwner]("pausable", time.Millisecond, func(ctx context.Context, o testOwner) error {
		count.Add(1)
		return nil
	})
	s := NewScheduler[testOwner](nil, task)
	s.Start(testOwner{})
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
	})

	require.Eventually(t, func() bool { return count.Load() > 0 }, time.Second, time.Millisecond)

	task.Pause()
	time.Sleep(20 * time.Millisecond) // let in-flight iteration settle
	paused := count.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, paused, count.Load(), "paused task kept iterating")
	assert.True(t, task.Running(), "pause must not end the execution")

	task.Resume()
	require.Eventually(t, func() bool { return count.Load() > paused }, time.Second, time.Millisecond)
}

func TestTaskErrorDoesNotAffectSiblings(t *testing.T) {
	var healthy atomic.Int64
	failing := NewLoop[testOwner]("failing", time.Millisecond, func(ctx context.Context, o testOwner) error {
		return errors.New("boom")
	})
	sibling := NewLoop[testOwner]("healthy", time.Millisecond, func(ctx context.Context, o testOwner) error {
		healthy.Add(1)
		return nil
	})
	s := NewScheduler[testOwner](nil, failing, sibling)
	s.Start(testOwner{})
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
	})

	require.Eventually(t, func() bool { return !failing.Running() }, time.Second, time.Millisecond)
	before := healthy.Load()
	require.Eventually(t, func() bool { return healthy.Load() > before }, time.Second, time.Millisecond)
}

func noop(ctx context.Context, o testOwner) error { return nil }
