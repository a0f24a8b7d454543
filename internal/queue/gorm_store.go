package queue

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore - хранилище задач в таблице queue_jobs.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Add(ctx context.Context, job *Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *gormStore) Claim(ctx context.Context, queue string, now, lockedUntil time.Time, limit int) ([]*Job, error) {
	db := s.db.WithContext(ctx)

	var candidates []Job
	err := db.Where("queue_name = ? AND state = ? AND run_at <= ?", queue, StateWaiting, now).
		Order("run_at ASC").Order("id ASC").
		Limit(limit * 2).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*Job, 0, limit)
	for i := range candidates {
		if len(claimed) == limit {
			break
		}
		job := candidates[i]
		// условный UPDATE: задачу забирает только один воркер
		res := db.Model(&Job{}).
			Where("id = ? AND state = ?", job.ID, StateWaiting).
			Updates(map[string]any{
				"state":         StateActive,
				"attempts_made": gorm.Expr("attempts_made + 1"),
				"locked_until":  lockedUntil,
				"updated_at":    now,
			})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			job.State = StateActive
			job.AttemptsMade++
			until := lockedUntil
			job.LockedUntil = &until
			claimed = append(claimed, &job)
		}
	}
	return claimed, nil
}

// owned - строка всё ещё принадлежит этой попытке воркера
func (s *gormStore) owned(ctx context.Context, job *Job) *gorm.DB {
	return s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND state = ? AND attempts_made = ?", job.ID, StateActive, job.AttemptsMade)
}

func leaseResult(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (s *gormStore) Extend(ctx context.Context, job *Job, lockedUntil time.Time) error {
	return leaseResult(s.owned(ctx, job).Update("locked_until", lockedUntil))
}

func (s *gormStore) Complete(ctx context.Context, job *Job, result []byte, now time.Time) error {
	if job.RemoveOnComplete {
		return leaseResult(s.owned(ctx, job).Delete(&Job{}))
	}
	err := leaseResult(s.owned(ctx, job).Updates(map[string]any{
		"state":        StateCompleted,
		"result":       result,
		"finished_at":  now,
		"locked_until": nil,
		"updated_at":   now,
	}))
	if err != nil {
		return err
	}
	job.State = StateCompleted
	job.FinishedAt = &now
	job.Result = result
	job.LockedUntil = nil
	return nil
}

func (s *gormStore) Retry(ctx context.Context, job *Job, runAt time.Time, errMsg string) error {
	err := leaseResult(s.owned(ctx, job).Updates(map[string]any{
		"state":        StateWaiting,
		"run_at":       runAt,
		"last_error":   errMsg,
		"locked_until": nil,
	}))
	if err != nil {
		return err
	}
	job.State = StateWaiting
	job.RunAt = runAt
	job.LastError = &errMsg
	job.LockedUntil = nil
	return nil
}

func (s *gormStore) Fail(ctx context.Context, job *Job, errMsg string, now time.Time) error {
	if job.RemoveOnFail {
		return leaseResult(s.owned(ctx, job).Delete(&Job{}))
	}
	err := leaseResult(s.owned(ctx, job).Updates(map[string]any{
		"state":        StateFailed,
		"last_error":   errMsg,
		"finished_at":  now,
		"locked_until": nil,
		"updated_at":   now,
	}))
	if err != nil {
		return err
	}
	job.State = StateFailed
	job.LastError = &errMsg
	job.FinishedAt = &now
	job.LockedUntil = nil
	return nil
}

func (s *gormStore) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *gormStore) List(ctx context.Context, queue string, state JobState) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).
		Where("queue_name = ? AND state = ?", queue, state).
		Order("created_at ASC").Order("id ASC").
		Find(&jobs).Error
	return jobs, err
}

func (s *gormStore) RequeueActive(ctx context.Context, queue string, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("queue_name = ? AND state = ? AND (locked_until IS NULL OR locked_until < ?)", queue, StateActive, now).
		Updates(map[string]any{
			"state":        StateWaiting,
			"locked_until": nil,
		})
	return res.RowsAffected, res.Error
}
