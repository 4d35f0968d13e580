package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"PulseMail/internal/models"
)

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1, zaptest.NewLogger(t))

	assert.True(t, q.Enqueue(models.Firing{ScheduleID: 1}))
	assert.False(t, q.Enqueue(models.Firing{ScheduleID: 2}))

	q.Close()
	q.Close()
	assert.False(t, q.Enqueue(models.Firing{ScheduleID: 3}))

	f, ok := <-q.C()
	require.True(t, ok)
	assert.Equal(t, int64(1), f.ScheduleID)
	_, ok = <-q.C()
	assert.False(t, ok)
}

func TestPoolRunsEveryFiring(t *testing.T) {
	q := NewQueue(10, zaptest.NewLogger(t))
	var mu sync.Mutex
	var seen []int64

	var wg sync.WaitGroup
	StartPool(context.Background(), &wg, 3, q.C(), HandlerFunc(func(_ context.Context, f models.Firing) {
		mu.Lock()
		seen = append(seen, f.ScheduleID)
		mu.Unlock()
	}), zaptest.NewLogger(t))

	for i := int64(1); i <= 5; i++ {
		require.True(t, q.Enqueue(models.Firing{ScheduleID: i, FiredAt: time.Now()}))
	}
	q.Close()
	wg.Wait()

	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestPoolSkipsReentrantFiring(t *testing.T) {
	q := NewQueue(10, zaptest.NewLogger(t))
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var runs atomic.Int32

	var wg sync.WaitGroup
	StartPool(context.Background(), &wg, 2, q.C(), HandlerFunc(func(_ context.Context, f models.Firing) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	}), zaptest.NewLogger(t))

	require.True(t, q.Enqueue(models.Firing{ScheduleID: 7}))
	<-started
	require.True(t, q.Enqueue(models.Firing{ScheduleID: 7}))

	// the second worker picks the duplicate up and must skip it
	assert.Eventually(t, func() bool { return len(q.C()) == 0 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	close(release)
	q.Close()
	wg.Wait()
	assert.Equal(t, int32(1), runs.Load())
}

func TestPoolStopsOnCancel(t *testing.T) {
	q := NewQueue(1, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	StartPool(ctx, &wg, 2, q.C(), HandlerFunc(func(context.Context, models.Firing) {}), zaptest.NewLogger(t))
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestPoolReleasesScheduleAfterPanic(t *testing.T) {
	q := NewQueue(10, zaptest.NewLogger(t))
	var runs atomic.Int32

	var wg sync.WaitGroup
	StartPool(context.Background(), &wg, 1, q.C(), HandlerFunc(func(_ context.Context, f models.Firing) {
		if runs.Add(1) == 1 {
			panic("boom")
		}
	}), zaptest.NewLogger(t))

	require.True(t, q.Enqueue(models.Firing{ScheduleID: 7}))
	require.True(t, q.Enqueue(models.Firing{ScheduleID: 7}))
	q.Close()
	wg.Wait()

	assert.Equal(t, int32(2), runs.Load(), "the second firing runs after the first panicked")
}
