package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue(t *testing.T) (*Queue, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	q := New("test", NewMemoryStore(), Options{
		Retries:          3,
		Backoff:          2 * time.Second,
		RemoveOnComplete: true,
	}, WithClock(clock.Now))
	return q, clock
}

func TestWorker_RetriesWithExponentialBackoff(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(t)

	var attempts atomic.Int32
	w := NewWorker(q, func(ctx context.Context, job *Job) (any, error) {
		attempts.Add(1)
		return nil, errors.New("push service unavailable")
	}, WorkerOptions{Concurrency: 1})

	handle, err := q.Add(ctx, "send", map[string]string{"userId": "u1"})
	require.NoError(t, err)

	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, delay := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		job, err := q.Job(ctx, handle.ID)
		require.NoError(t, err)
		require.Equal(t, StateWaiting, job.State)
		assert.Equal(t, delay, job.RunAt.Sub(clock.Now()))

		// до наступления runAt задача не выдаётся
		clock.Advance(delay - time.Millisecond)
		n, err = w.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		clock.Advance(time.Millisecond)
		n, err = w.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	job, err := q.Job(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, 4, job.AttemptsMade)
	require.NotNil(t, job.LastError)
	assert.Contains(t, *job.LastError, "push service unavailable")

	// пятой попытки нет
	clock.Advance(time.Hour)
	n, err = w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(4), attempts.Load())

	failed, err := q.Failed(ctx)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestWorker_CompletedJobIsRemoved(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	w := NewWorker(q, func(ctx context.Context, job *Job) (any, error) {
		var payload map[string]string
		require.NoError(t, DecodePayload(job, &payload))
		assert.Equal(t, "u1", payload["userId"])
		return map[string]bool{"success": true}, nil
	}, WorkerOptions{Concurrency: 2})

	handle, err := q.Add(ctx, "send", map[string]string{"userId": "u1"})
	require.NoError(t, err)

	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = q.Job(ctx, handle.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestWorker_UnrecoverableFailsImmediately(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(t)

	w := NewWorker(q, func(ctx context.Context, job *Job) (any, error) {
		return nil, Unrecoverable(errors.New("bad payload"))
	}, WorkerOptions{Concurrency: 1})

	handle, err := q.Add(ctx, "send", map[string]string{})
	require.NoError(t, err)

	_, err = w.Drain(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	job, err := q.Job(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, 1, job.AttemptsMade)
}

func TestWorker_PanicCountsAsFailedAttempt(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	w := NewWorker(q, func(ctx context.Context, job *Job) (any, error) {
		panic("boom")
	}, WorkerOptions{Concurrency: 1})

	handle, err := q.Add(ctx, "send", map[string]string{})
	require.NoError(t, err)

	_, err = w.Drain(ctx)
	require.NoError(t, err)

	job, err := q.Job(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, job.State)
	require.NotNil(t, job.LastError)
	assert.Contains(t, *job.LastError, "boom")
}

func TestWorker_RespectsConcurrencyLimit(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	w := NewWorker(q, func(ctx context.Context, job *Job) (any, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}, WorkerOptions{Concurrency: 3})

	for i := 0; i < 10; i++ {
		_, err := q.Add(ctx, "send", map[string]int{"n": i})
		require.NoError(t, err)
	}

	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRequeueActive_ReturnsOnlyExpiredLeases(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Add(ctx, &Job{ID: "j1", QueueName: "test", State: StateWaiting, RunAt: now}))
	claimed, err := store.Claim(ctx, "test", now, now.Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// аренда ещё действует: задачу держит живой воркер
	n, err := store.RequeueActive(ctx, "test", now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, store.Extend(ctx, claimed[0], now.Add(2*time.Minute)))
	n, err = store.RequeueActive(ctx, "test", now.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = store.RequeueActive(ctx, "test", now.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, job.State)
	assert.Nil(t, job.LockedUntil)
}

func TestStaleAttemptCannotFinishReclaimedJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Add(ctx, &Job{ID: "j1", QueueName: "test", State: StateWaiting, RunAt: now}))
	first, err := store.Claim(ctx, "test", now, now.Add(time.Second), 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	later := now.Add(time.Minute)
	_, err = store.RequeueActive(ctx, "test", later)
	require.NoError(t, err)
	second, err := store.Claim(ctx, "test", later, later.Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].AttemptsMade)

	assert.ErrorIs(t, store.Extend(ctx, first[0], later.Add(time.Hour)), ErrLeaseLost)
	assert.ErrorIs(t, store.Complete(ctx, first[0], nil, later), ErrLeaseLost)
	assert.ErrorIs(t, store.Fail(ctx, first[0], "boom", later), ErrLeaseLost)

	require.NoError(t, store.Complete(ctx, second[0], nil, later))
	job, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, job.State)
}

func TestWorker_ExtendsLeaseWhileHandlerRuns(t *testing.T) {
	ctx := context.Background()
	q := New("test", NewMemoryStore(), Options{}, WithLease(90*time.Millisecond))

	release := make(chan struct{})
	w := NewWorker(q, func(ctx context.Context, job *Job) (any, error) {
		<-release
		return nil, nil
	}, WorkerOptions{Concurrency: 1})

	handle, err := q.Add(ctx, "send", map[string]string{"userId": "u1"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.Drain(ctx)
	}()

	// несколько сроков аренды: без продления задача считалась бы брошенной
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		n, err := q.store.RequeueActive(ctx, "test", q.now())
		require.NoError(t, err)
		require.Zero(t, n)
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	<-done

	job, err := q.Job(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, job.State)
	assert.Equal(t, 1, job.AttemptsMade)
}
