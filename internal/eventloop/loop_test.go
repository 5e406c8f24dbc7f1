package eventloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := New()
	l.Start()
	defer l.Stop()

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, l.Post(func() { order = append(order, i) }))
	}

	var got []int
	require.NoError(t, l.Call(context.Background(), func() { got = append(got, order...) }))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopPostFromLoopDoesNotDeadlock(t *testing.T) {
	l := New()
	l.Start()
	defer l.Stop()

	done := make(chan struct{})
	require.NoError(t, l.Post(func() {
		_ = l.Post(func() { close(done) })
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "nested post never ran")
	}
}

func TestLoopCallTimeout(t *testing.T) {
	l := New() // never started, so the task cannot run

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Call(ctx, func() {})
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestLoopRunPending(t *testing.T) {
	l := New()
	count := 0
	require.NoError(t, l.Post(func() { count++ }))
	require.NoError(t, l.Post(func() {
		count++
		_ = l.Post(func() { count++ })
	}))

	assert.Equal(t, 3, l.RunPending())
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, l.RunPending())
}

func TestLoopAfterFunc(t *testing.T) {
	l := New()
	l.Start()
	defer l.Stop()

	fired := make(chan struct{})
	l.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timer never fired")
	}
}

func TestLoopTimerStop(t *testing.T) {
	l := New()
	var fired atomic.Bool

	tm := l.AfterFunc(time.Millisecond, func() { fired.Store(true) })
	time.Sleep(20 * time.Millisecond) // callback is queued but not run
	tm.Stop()
	l.RunPending()

	assert.False(t, fired.Load(), "stopped timer callback must not run")

	var nilTimer *Timer
	nilTimer.Stop()
}

func TestLoopStop(t *testing.T) {
	l := New()
	l.Start()
	l.Stop()
	l.Stop()

	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrStopped)
}
