// Package batch - периодические задачи вне веб-процесса: напоминания о событиях расписания.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/repositories"

	"golang.org/x/sync/semaphore"
)

// RunResult - итог одного прогона напоминаний
type RunResult struct {
	Minute    string   `json:"minute"`
	Targets   int      `json:"targets"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Schedules []string `json:"schedules"`
}

// ReminderJob находит расписания, чья минута напоминания наступила,
// и ставит по одному push на каждого участника.
type ReminderJob struct {
	schedules   repositories.ScheduleRepository
	notifier    notification.Notifier
	loc         *time.Location
	concurrency int
	now         func() time.Time
}

func NewReminderJob(schedules repositories.ScheduleRepository, notifier notification.Notifier, loc *time.Location, concurrency int) *ReminderJob {
	if loc == nil {
		loc = time.Local
	}
	if concurrency < 1 {
		concurrency = 10
	}
	return &ReminderJob{
		schedules:   schedules,
		notifier:    notifier,
		loc:         loc,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// WithConcurrency возвращает копию с другим лимитом параллельных постановок
func (j *ReminderJob) WithConcurrency(n int) *ReminderJob {
	if n < 1 {
		return j
	}
	cp := *j
	cp.concurrency = n
	return &cp
}

// Minute - текущая минута в формате дат расписаний (секунды обнулены)
func (j *ReminderJob) Minute() string {
	return j.now().In(j.loc).Truncate(time.Minute).Format(chat.DateLayout)
}

// Run выполняет один прогон. Ошибка отдельного получателя не прерывает
// остальных; счётчик notificationSent растёт у расписаний, где хотя бы
// одна постановка удалась.
func (j *ReminderJob) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	minute := j.Minute()
	result := &RunResult{Minute: minute, Schedules: []string{}}

	targets, err := j.schedules.FindDueReminders(ctx, minute)
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	result.Targets = len(targets)
	logger.Info("reminder batch started", "minute", minute, "targets", len(targets), "concurrency", j.concurrency)
	if len(targets) == 0 {
		return result, nil
	}

	var (
		sem       = semaphore.NewWeighted(int64(j.concurrency))
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded = make(map[string]struct{})
	)
	for _, target := range targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			// ctx отменён: оставшиеся получатели считаются неудачными
			mu.Lock()
			result.Failed++
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(t repositories.ReminderTarget) {
			defer wg.Done()
			defer sem.Release(1)

			_, err := j.notifier.Enqueue(ctx, j.Build(t))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				logger.Error("reminder enqueue failed", "schedule_id", t.Schedule.ID, "user_id", t.UserID, "error", err)
				return
			}
			result.Sent++
			succeeded[t.Schedule.ID] = struct{}{}
		}(target)
	}
	wg.Wait()

	for id := range succeeded {
		result.Schedules = append(result.Schedules, id)
	}
	sort.Strings(result.Schedules)

	if len(result.Schedules) > 0 {
		// ctx может быть уже отменён таймаутом, отметку всё равно нужно записать
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := j.schedules.IncrementNotificationSent(markCtx, result.Schedules); err != nil {
			return result, fmt.Errorf("mark schedules notified: %w", err)
		}
	}

	logger.Info("reminder batch finished",
		"minute", minute,
		"sent", result.Sent,
		"failed", result.Failed,
		"schedules", len(result.Schedules),
		"duration", time.Since(started),
	)
	return result, nil
}

// Build собирает push для одного участника расписания
func (j *ReminderJob) Build(t repositories.ReminderTarget) notification.SendPushJob {
	start := t.Schedule.StartDate
	if parsed, err := time.ParseInLocation(chat.DateLayout, t.Schedule.StartDate, j.loc); err == nil {
		start = parsed.Format("2006-01-02 15:04")
	}

	body := "Start time: " + start
	if t.Schedule.Memo != nil && *t.Schedule.Memo != "" {
		body = *t.Schedule.Memo + "\nStart: " + start
	}

	return notification.SendPushJob{
		UserID: t.UserID,
		Title:  "Schedule reminder: " + t.Schedule.Title,
		Body:   body,
		Data: map[string]any{
			"type":       "schedule",
			"scheduleId": t.Schedule.ID,
			"roomId":     t.Schedule.RoomID,
			"timestamp":  j.now().UTC().Format(time.RFC3339),
		},
		Tag: "schedule-" + t.Schedule.ID,
	}
}
