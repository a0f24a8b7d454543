package queue_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"suchat_backend/internal/queue"
	"suchat_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStore_RequeueSkipsLiveLease(t *testing.T) {
	ctx := context.Background()
	store := queue.NewGormStore(helpers.NewTestDB(t))
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Add(ctx, &queue.Job{
		ID:        "j1",
		QueueName: "push",
		Name:      "send",
		State:     queue.StateWaiting,
		RunAt:     now,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	claimed, err := store.Claim(ctx, "push", now, now.Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	n, err := store.RequeueActive(ctx, "push", now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.RequeueActive(ctx, "push", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// брошенную задачу забирает другой воркер, старая попытка её уже не закрывает
	later := now.Add(2 * time.Minute)
	reclaimed, err := store.Claim(ctx, "push", later, later.Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)

	assert.ErrorIs(t, store.Retry(ctx, claimed[0], later, "boom"), queue.ErrLeaseLost)
	require.NoError(t, store.Complete(ctx, reclaimed[0], []byte(`{"sent":1}`), later))

	job, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, queue.StateCompleted, job.State)
	assert.Equal(t, 2, job.AttemptsMade)
	assert.Nil(t, job.LockedUntil)
}

func TestWorker_SecondProcessDoesNotStealRunningJob(t *testing.T) {
	ctx := context.Background()
	store := queue.NewGormStore(helpers.NewTestDB(t))
	opts := queue.Options{Retries: 3, Backoff: time.Second}
	lease := 150 * time.Millisecond

	// две очереди над одной таблицей - два процесса
	first := queue.New("push", store, opts, queue.WithLease(lease))
	second := queue.New("push", store, opts, queue.WithLease(lease))

	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	handler := func(ctx context.Context, job *queue.Job) (any, error) {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
		return map[string]int{"sent": 1}, nil
	}
	stolen := func(ctx context.Context, job *queue.Job) (any, error) {
		runs.Add(1)
		return nil, nil
	}

	handle, err := first.Add(ctx, "send", map[string]string{"userId": "bob"})
	require.NoError(t, err)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		_, _ = queue.NewWorker(first, handler, queue.WorkerOptions{Concurrency: 1}).Drain(ctx)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first worker did not pick up the job")
	}

	// второй процесс стартует и опрашивает очередь дольше нескольких сроков аренды
	runCtx, cancel := context.WithTimeout(ctx, 6*lease)
	defer cancel()
	err = queue.NewWorker(second, stolen, queue.WorkerOptions{
		Concurrency:  1,
		PollInterval: 10 * time.Millisecond,
	}).Run(runCtx)
	require.NoError(t, err)

	close(release)
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("first worker did not finish")
	}

	assert.EqualValues(t, 1, runs.Load())

	job, err := first.Job(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateCompleted, job.State)
	assert.Equal(t, 1, job.AttemptsMade)
}
