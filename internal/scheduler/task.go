// Package scheduler runs a function on a fixed interval in its own
// goroutine.  A Task has an explicit Start/Stop lifecycle; Stop waits for
// the goroutine to exit so no ticker outlives its owner.
package scheduler

import (
	"context"
	"sync"
	"time"
)

type Task struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped task.  fn is called once per interval with a
// context that is cancelled when the task stops.
func New(name string, interval time.Duration, fn func(ctx context.Context)) *Task {
	if interval <= 0 {
		interval = time.Second
	}
	return &Task{name: name, interval: interval, fn: fn}
}

func (t *Task) Name() string { return t.name }

// Start launches the task.  Starting a running task is a no-op.  The task
// also stops when parent is cancelled.
func (t *Task) Start(parent context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	go t.run(ctx, done)
}

func (t *Task) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fn(ctx)
		}
	}
}

// Stop cancels the task and waits for an in-flight run to return.  Stopping
// a stopped task is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
