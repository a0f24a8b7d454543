package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryStore - хранилище задач в памяти процесса.
func NewMemoryStore() Store {
	return &memoryStore{jobs: make(map[string]*Job)}
}

func copyJob(j *Job) *Job {
	cp := *j
	if j.LastError != nil {
		msg := *j.LastError
		cp.LastError = &msg
	}
	if j.FinishedAt != nil {
		at := *j.FinishedAt
		cp.FinishedAt = &at
	}
	if j.LockedUntil != nil {
		until := *j.LockedUntil
		cp.LockedUntil = &until
	}
	return &cp
}

func (s *memoryStore) Add(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *memoryStore) Claim(_ context.Context, queue string, now, lockedUntil time.Time, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ready := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.QueueName == queue && job.State == StateWaiting && !job.RunAt.After(now) {
			ready = append(ready, job)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].RunAt.Equal(ready[j].RunAt) {
			return ready[i].ID < ready[j].ID
		}
		return ready[i].RunAt.Before(ready[j].RunAt)
	})
	if len(ready) > limit {
		ready = ready[:limit]
	}

	claimed := make([]*Job, 0, len(ready))
	for _, job := range ready {
		until := lockedUntil
		job.State = StateActive
		job.AttemptsMade++
		job.LockedUntil = &until
		job.UpdatedAt = now
		claimed = append(claimed, copyJob(job))
	}
	return claimed, nil
}

// owned возвращает строку, если она принадлежит этой попытке воркера. Вызывать под mu.
func (s *memoryStore) owned(job *Job) (*Job, error) {
	stored, ok := s.jobs[job.ID]
	if !ok || stored.State != StateActive || stored.AttemptsMade != job.AttemptsMade {
		return nil, ErrLeaseLost
	}
	return stored, nil
}

func (s *memoryStore) Extend(_ context.Context, job *Job, lockedUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.owned(job)
	if err != nil {
		return err
	}
	stored.LockedUntil = &lockedUntil
	return nil
}

func (s *memoryStore) Complete(_ context.Context, job *Job, result []byte, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.owned(job)
	if err != nil {
		return err
	}
	if job.RemoveOnComplete {
		delete(s.jobs, job.ID)
		return nil
	}
	stored.State = StateCompleted
	stored.Result = result
	stored.FinishedAt = &now
	stored.LockedUntil = nil
	stored.UpdatedAt = now
	job.State = StateCompleted
	return nil
}

func (s *memoryStore) Retry(_ context.Context, job *Job, runAt time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.owned(job)
	if err != nil {
		return err
	}
	stored.State = StateWaiting
	stored.RunAt = runAt
	stored.LastError = &errMsg
	stored.LockedUntil = nil
	job.State = StateWaiting
	job.RunAt = runAt
	return nil
}

func (s *memoryStore) Fail(_ context.Context, job *Job, errMsg string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.owned(job)
	if err != nil {
		return err
	}
	if job.RemoveOnFail {
		delete(s.jobs, job.ID)
		return nil
	}
	stored.State = StateFailed
	stored.LastError = &errMsg
	stored.FinishedAt = &now
	stored.LockedUntil = nil
	stored.UpdatedAt = now
	job.State = StateFailed
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(job), nil
}

func (s *memoryStore) List(_ context.Context, queue string, state JobState) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0)
	for _, job := range s.jobs {
		if job.QueueName == queue && job.State == state {
			jobs = append(jobs, *copyJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (s *memoryStore) RequeueActive(_ context.Context, queue string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, job := range s.jobs {
		if job.QueueName != queue || job.State != StateActive {
			continue
		}
		if job.LockedUntil != nil && !job.LockedUntil.Before(now) {
			continue
		}
		job.State = StateWaiting
		job.LockedUntil = nil
		n++
	}
	return n, nil
}
