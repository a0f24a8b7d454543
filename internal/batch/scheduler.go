package batch

import (
	"context"
	"fmt"
	"time"

	"suchat_backend/internal/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler запускает напоминания по cron-выражениям в текущем процессе.
type Scheduler struct {
	cron *cron.Cron
	job  *ReminderJob
	// after вызывается после каждого прогона (например, отправка из памяти)
	after func(ctx context.Context)
	ctx   context.Context
}

func NewScheduler(job *ReminderJob, loc *time.Location, after func(ctx context.Context)) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		// SkipIfStillRunning: прогон не накладывается сам на себя
		cron:  cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{}))),
		job:   job,
		after: after,
		ctx:   context.Background(),
	}
}

// Register добавляет включённые записи. Ошибочное выражение или неизвестная
// задача пропускаются с предупреждением; возвращается число добавленных.
func (s *Scheduler) Register(schedules []ScheduleConfig) int {
	added := 0
	for _, sc := range schedules {
		if !sc.Enabled {
			continue
		}
		if sc.Job != "" && sc.Job != JobReminders {
			logger.Warn("unknown batch job, skipping", "schedule", sc.Name, "job", sc.Job)
			continue
		}
		entry := sc
		if _, err := s.cron.AddFunc(entry.Cron, func() { s.runEntry(entry) }); err != nil {
			logger.Error("failed to register batch schedule", "schedule", entry.Name, "cron", entry.Cron, "error", err)
			continue
		}
		logger.Info("batch schedule registered", "schedule", entry.Name, "cron", entry.Cron, "description", entry.Description)
		added++
	}
	return added
}

// Start запускает cron, прогоны получают ctx
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
}

// Stop останавливает cron и дожидается текущих прогонов
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runEntry(sc ScheduleConfig) {
	ctx := s.ctx
	if sc.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(sc.TimeoutSec)*time.Second)
		defer cancel()
	}

	logger.Info("batch schedule fired", "schedule", sc.Name)
	if _, err := s.job.WithConcurrency(sc.Concurrency).Run(ctx); err != nil {
		logger.Error("batch run failed", "schedule", sc.Name, "error", err)
	}
	if s.after != nil {
		s.after(ctx)
	}
}

// cronLogger направляет сообщения cron в общий логгер
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", fmt.Sprint(err))...)
}
