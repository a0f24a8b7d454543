package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"suchat_backend/internal/logger"

	"github.com/rs/xid"
)

// Queue - клиент очереди: ставит задачи и отдаёт их воркеру.
type Queue struct {
	name     string
	store    Store
	defaults Options
	now      func() time.Time
	// lease - срок аренды захваченной задачи, воркер продлевает его каждую треть
	lease    time.Duration
	// wake будит воркер сразу после Add, не дожидаясь интервала опроса
	wake     chan struct{}
}

type QueueOption func(*Queue)

// WithClock подменяет часы (тесты задержек).
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.now = now
	}
}

// DefaultLease - аренда задачи по умолчанию
const DefaultLease = 30 * time.Second

// WithLease задаёт срок аренды. Задача живого воркера, не продлившего аренду
// дольше этого срока, считается брошенной.
func WithLease(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.lease = d
		}
	}
}

func New(name string, store Store, defaults Options, opts ...QueueOption) *Queue {
	q := &Queue{
		name:     name,
		store:    store,
		defaults: defaults,
		// UTC: в sqlite время сравнивается как строка
		now:      func() time.Time { return time.Now().UTC() },
		lease:    DefaultLease,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Name() string {
	return q.name
}

// Add ставит задачу с параметрами повторов по умолчанию.
func (q *Queue) Add(ctx context.Context, name string, payload any) (Handle, error) {
	return q.AddWithOptions(ctx, name, payload, q.defaults)
}

func (q *Queue) AddWithOptions(ctx context.Context, name string, payload any, opts Options) (Handle, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Handle{}, fmt.Errorf("marshal job payload: %w", err)
	}

	now := q.now()
	job := &Job{
		ID:               xid.New().String(),
		QueueName:        q.name,
		Name:             name,
		Payload:          data,
		State:            StateWaiting,
		MaxRetries:       opts.Retries,
		BackoffMs:        opts.Backoff.Milliseconds(),
		RemoveOnComplete: opts.RemoveOnComplete,
		RemoveOnFail:     opts.RemoveOnFail,
		RunAt:            now.Add(opts.Delay),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := q.store.Add(ctx, job); err != nil {
		return Handle{}, fmt.Errorf("enqueue %s: %w", name, err)
	}

	logger.JobLog(q.name, job.ID, string(StateWaiting), 0, nil)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return Handle{ID: job.ID, Queue: q.name}, nil
}

// Job возвращает задачу по id (для инспекции упавших).
func (q *Queue) Job(ctx context.Context, id string) (*Job, error) {
	return q.store.Get(ctx, id)
}

// Failed - задачи, исчерпавшие попытки.
func (q *Queue) Failed(ctx context.Context) ([]Job, error) {
	return q.store.List(ctx, q.name, StateFailed)
}

// Waiting - задачи в ожидании, включая отложенные повторы.
func (q *Queue) Waiting(ctx context.Context) ([]Job, error) {
	return q.store.List(ctx, q.name, StateWaiting)
}
