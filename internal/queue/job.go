// Package queue - надёжная очередь задач поверх хранилища (sql или память)
// с повторными попытками и экспоненциальной задержкой.
package queue

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrLeaseLost - задачу вернули в ожидание и, возможно, уже захватил другой воркер
	ErrLeaseLost = errors.New("job lease lost")
)

// Job - строка очереди. AttemptsMade растёт при каждом захвате воркером.
// Пока задача active, воркер продлевает LockedUntil; просроченную аренду
// забирает восстановление.
type Job struct {
	ID               string         `gorm:"primaryKey;size:32" json:"id"`
	QueueName        string         `gorm:"size:64;not null;index:idx_queue_jobs_ready,priority:1" json:"queue"`
	Name             string         `gorm:"size:64;not null" json:"name"`
	Payload          datatypes.JSON `json:"payload"`
	State            JobState       `gorm:"size:16;not null;index:idx_queue_jobs_ready,priority:2" json:"state"`
	AttemptsMade     int            `gorm:"not null;default:0" json:"attemptsMade"`
	MaxRetries       int            `gorm:"not null" json:"maxRetries"`
	BackoffMs        int64          `gorm:"not null" json:"backoffMs"`
	RemoveOnComplete bool           `json:"removeOnComplete"`
	RemoveOnFail     bool           `json:"removeOnFail"`
	RunAt            time.Time      `gorm:"not null;index:idx_queue_jobs_ready,priority:3" json:"runAt"`
	LockedUntil      *time.Time     `gorm:"index" json:"lockedUntil,omitempty"`
	LastError        *string        `gorm:"type:text" json:"lastError,omitempty"`
	Result           datatypes.JSON `json:"result,omitempty"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (Job) TableName() string {
	return "queue_jobs"
}

// NextDelay - задержка перед следующей попыткой: base * 2^(attemptsMade-1)
func (j *Job) NextDelay() time.Duration {
	if j.AttemptsMade < 1 {
		return 0
	}
	return time.Duration(j.BackoffMs) * time.Millisecond << (j.AttemptsMade - 1)
}

// CanRetry - осталось ли место для ещё одной попытки после неудачной
func (j *Job) CanRetry() bool {
	return j.AttemptsMade <= j.MaxRetries
}

// Options - параметры повторов задачи
type Options struct {
	// Retries - число повторов после первой неудачной попытки
	Retries int
	// Backoff - базовая задержка, удваивается с каждой попыткой
	Backoff          time.Duration
	RemoveOnComplete bool
	RemoveOnFail     bool
	Delay            time.Duration
}

// Handle возвращается из Add сразу после постановки задачи
type Handle struct {
	ID    string `json:"jobId"`
	Queue string `json:"queue"`
}

type unrecoverableError struct {
	err error
}

func (e *unrecoverableError) Error() string { return e.err.Error() }
func (e *unrecoverableError) Unwrap() error { return e.err }

// Unrecoverable помечает ошибку, после которой задача не повторяется.
func Unrecoverable(err error) error {
	return &unrecoverableError{err: err}
}

func isUnrecoverable(err error) bool {
	var target *unrecoverableError
	return errors.As(err, &target)
}
