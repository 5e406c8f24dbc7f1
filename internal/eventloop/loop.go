// Package eventloop provides the single logical execution context on which
// transmitter events, timers and control commands are processed.
//
// Tasks run one at a time in FIFO order. Code running on the loop never
// needs locks for state that is only touched from the loop.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when posting to a loop that has been stopped.
var ErrStopped = errors.New("event loop stopped")

// Loop is a FIFO task queue drained by a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	started bool
	stopped bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a loop. Tasks may be posted before Start; they run once the
// loop is started or when RunPending is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run()
}

// Post queues fn for execution on the loop. Post never blocks and may be
// called from the loop itself.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call runs fn on the loop and waits for it to finish or for ctx to end.
// Call must not be used from a task running on the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for event loop: %w", ctx.Err())
	case <-l.done:
		return ErrStopped
	}
}

// Timer is a one-shot timer whose callback runs on the loop.
type Timer struct {
	t       *time.Timer
	stopped atomic.Bool
}

// Stop cancels the timer. After Stop returns on the loop, the callback is
// guaranteed not to run.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.stopped.Store(true)
	t.t.Stop()
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		_ = l.Post(func() {
			if !tm.stopped.Load() {
				fn()
			}
		})
	})
	return tm
}

// RunPending runs every queued task on the calling goroutine and returns how
// many ran. It is meant for loops that were never started, such as in
// tests or when the owner drives the loop itself.
func (l *Loop) RunPending() int {
	ran := 0
	for {
		fn := l.next()
		if fn == nil {
			return ran
		}
		fn()
		ran++
	}
}

// Stop rejects further posts, lets the worker finish the task in progress
// and waits for it to exit. Tasks still queued are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		for fn := l.next(); fn != nil; fn = l.next() {
			select {
			case <-l.done:
				return
			default:
			}
			fn()
		}

		select {
		case <-l.wake:
		case <-l.done:
			return
		}
	}
}
