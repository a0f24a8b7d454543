package queue

import (
	"context"
	"time"
)

// Store - хранилище задач. Claim должен быть безопасен для нескольких воркеров.
//
// Complete, Retry, Fail и Extend применяются только к той попытке, которую
// захватил воркер (state = active, тот же AttemptsMade). Иначе ErrLeaseLost.
type Store interface {
	Add(ctx context.Context, job *Job) error
	// Claim переводит до limit готовых задач в active, увеличивает AttemptsMade
	// и выдаёт аренду до lockedUntil
	Claim(ctx context.Context, queue string, now, lockedUntil time.Time, limit int) ([]*Job, error)
	// Extend продлевает аренду захваченной задачи, job не изменяется
	Extend(ctx context.Context, job *Job, lockedUntil time.Time) error
	Complete(ctx context.Context, job *Job, result []byte, now time.Time) error
	Retry(ctx context.Context, job *Job, runAt time.Time, errMsg string) error
	Fail(ctx context.Context, job *Job, errMsg string, now time.Time) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, queue string, state JobState) ([]Job, error)
	// RequeueActive возвращает в ожидание active-задачи с арендой, истёкшей к now
	RequeueActive(ctx context.Context, queue string, now time.Time) (int64, error)
}
