package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"suchat_backend/internal/logger"

	"golang.org/x/sync/semaphore"
)

// Handler обрабатывает одну задачу. Ошибка запускает повтор с задержкой.
type Handler func(ctx context.Context, job *Job) (any, error)

type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
}

// Worker выполняет задачи очереди с ограниченным параллелизмом.
// Слоты раздаёт FIFO-семафор: ожидающий захват не крутится в цикле.
type Worker struct {
	queue        *Queue
	handler      Handler
	sem          *semaphore.Weighted
	pollInterval time.Duration
	wg           sync.WaitGroup
}

func NewWorker(q *Queue, handler Handler, opts WorkerOptions) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Worker{
		queue:        q,
		handler:      handler,
		sem:          semaphore.NewWeighted(int64(opts.Concurrency)),
		pollInterval: opts.PollInterval,
	}
}

// Run обрабатывает задачи до отмены ctx и дожидается уже начатых.
// Раз в срок аренды возвращает в ожидание задачи, чья аренда истекла.
func (w *Worker) Run(ctx context.Context) error {
	w.recoverExpired(ctx)
	lastRecovery := w.queue.now()

	logger.Info("queue worker started", "queue", w.queue.name)
	defer func() {
		w.wg.Wait()
		logger.Info("queue worker stopped", "queue", w.queue.name)
	}()

	for {
		if now := w.queue.now(); now.Sub(lastRecovery) >= w.queue.lease {
			w.recoverExpired(ctx)
			lastRecovery = now
		}

		started, err := w.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WorkerLog(w.queue.name, "claim", err)
		}
		if started {
			continue
		}

		timer := time.NewTimer(w.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-w.queue.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// recoverExpired возвращает в ожидание задачи упавших воркеров.
// Задачи живых воркеров не трогает: их аренда продлевается.
func (w *Worker) recoverExpired(ctx context.Context) {
	n, err := w.queue.store.RequeueActive(ctx, w.queue.name, w.queue.now())
	if err != nil {
		if ctx.Err() == nil {
			logger.WorkerLog(w.queue.name, "requeue_expired", err)
		}
		return
	}
	if n > 0 {
		logger.Info("requeued abandoned jobs", "queue", w.queue.name, "count", n)
	}
}

// Drain запускает все готовые на текущий момент задачи и ждёт их завершения.
// Возвращает число обработанных задач.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		started, err := w.next(ctx)
		if err != nil {
			w.wg.Wait()
			return n, err
		}
		if !started {
			break
		}
		n++
	}
	w.wg.Wait()
	return n, nil
}

// next занимает слот, забирает одну задачу и запускает её в горутине.
func (w *Worker) next(ctx context.Context) (bool, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}

	now := w.queue.now()
	jobs, err := w.queue.store.Claim(ctx, w.queue.name, now, now.Add(w.queue.lease), 1)
	if err != nil || len(jobs) == 0 {
		w.sem.Release(1)
		return false, err
	}

	job := jobs[0]
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.sem.Release(1)
		// доставка не прерывается на середине при остановке
		w.process(context.WithoutCancel(ctx), job)
	}()
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *Job) {
	ctx = logger.WithCorrelationID(ctx, job.ID)
	stop := w.keepLease(ctx, job)
	result, err := w.invoke(ctx, job)
	stop()
	now := w.queue.now()
	store := w.queue.store

	if err == nil {
		var data []byte
		if result != nil {
			data, _ = json.Marshal(result)
		}
		if cerr := store.Complete(ctx, job, data, now); cerr != nil {
			logger.WorkerLog(w.queue.name, "complete", cerr)
			return
		}
		logger.JobLog(w.queue.name, job.ID, string(StateCompleted), job.AttemptsMade, nil)
		return
	}

	if job.CanRetry() && !isUnrecoverable(err) {
		runAt := now.Add(job.NextDelay())
		if rerr := store.Retry(ctx, job, runAt, err.Error()); rerr != nil {
			logger.WorkerLog(w.queue.name, "retry", rerr)
			return
		}
		logger.JobLog(w.queue.name, job.ID, "delayed", job.AttemptsMade, err)
		return
	}

	if ferr := store.Fail(ctx, job, err.Error(), now); ferr != nil {
		logger.WorkerLog(w.queue.name, "fail", ferr)
		return
	}
	logger.JobLog(w.queue.name, job.ID, string(StateFailed), job.AttemptsMade, err)
}

// keepLease продлевает аренду задачи, пока работает обработчик.
// Возвращённая функция останавливает продление и ждёт его выхода.
func (w *Worker) keepLease(ctx context.Context, job *Job) func() {
	lease := w.queue.lease
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(lease / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				err := w.queue.store.Extend(ctx, job, w.queue.now().Add(lease))
				if err == nil {
					continue
				}
				logger.WorkerLog(w.queue.name, "extend_lease", err)
				if errors.Is(err, ErrLeaseLost) {
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// invoke вызывает обработчик, превращая панику в ошибку попытки.
func (w *Worker) invoke(ctx context.Context, job *Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

// DecodePayload разбирает payload задачи в v.
func DecodePayload(job *Job, v any) error {
	if len(job.Payload) == 0 {
		return Unrecoverable(errors.New("empty job payload"))
	}
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return Unrecoverable(fmt.Errorf("decode job payload: %w", err))
	}
	return nil
}
