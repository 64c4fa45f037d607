// Package schedule runs a function repeatedly on a fixed interval until stopped.
//
// The next tick is armed only after the previous one returns, so ticks of a
// single Task never overlap. Stop may be called from inside the tick function.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Option configures a Task.
type Option func(*Task)

// Immediate runs the first tick right away instead of after one interval.
func Immediate() Option {
	return func(t *Task) { t.immediate = true }
}

// Task is a running periodic job.
type Task struct {
	interval  time.Duration
	fn        func(ctx context.Context)
	immediate bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Every starts fn on the given interval. The task ends when ctx is cancelled or Stop is called.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context), opts ...Option) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		interval: interval,
		fn:       fn,
		running:  true,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.loop(ctx)
	return t
}

func (t *Task) loop(ctx context.Context) {
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		close(t.done)
	}()

	if t.immediate {
		if ctx.Err() != nil {
			return
		}
		t.fn(ctx)
	}

	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		t.fn(ctx)
		timer.Reset(t.interval)
	}
}

// Stop cancels the task. It does not wait for an in-flight tick; use Done for that.
func (t *Task) Stop() {
	t.cancel()
}

// Done is closed once the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Running reports whether the task loop is still alive.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
