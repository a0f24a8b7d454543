package workers

import (
	"context"
	"sync"
	"time"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/queue"
)

// PushWorker обрабатывает очередь push-уведомлений и раз в час
// сообщает о задачах, исчерпавших попытки.
type PushWorker struct {
	queue       *queue.Queue
	worker      *queue.Worker
	reportEvery time.Duration
	wg          sync.WaitGroup
}

func NewPushWorker(q *queue.Queue, dispatcher *notification.Dispatcher, opts queue.WorkerOptions) *PushWorker {
	return &PushWorker{
		queue:       q,
		worker:      queue.NewWorker(q, dispatcher.Handle, opts),
		reportEvery: time.Hour,
	}
}

// Start запускает воркер очереди и отчёт по упавшим задачам
func (w *PushWorker) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		_ = w.worker.Run(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.reportFailed(ctx)
	}()
}

// Wait блокируется, пока не завершатся начатые доставки
func (w *PushWorker) Wait() {
	w.wg.Wait()
}

// Drain обрабатывает готовые задачи синхронно (batch-процесс и тесты)
func (w *PushWorker) Drain(ctx context.Context) (int, error) {
	return w.worker.Drain(ctx)
}

func (w *PushWorker) reportFailed(ctx context.Context) {
	ticker := time.NewTicker(w.reportEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("push failed-jobs reporter stopped")
			return
		case <-ticker.C:
			failed, err := w.queue.Failed(ctx)
			if err != nil {
				logger.WorkerLog("push_worker", "report_failed", err)
				continue
			}
			if len(failed) > 0 {
				logger.Warn("push jobs left for inspection", "queue", w.queue.Name(), "count", len(failed))
			}
		}
	}
}
