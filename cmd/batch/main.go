package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"suchat_backend/internal/app"
	"suchat_backend/internal/batch"
	"suchat_backend/internal/config"
	"suchat_backend/internal/logger"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/workers"
)

const usage = `usage: batch <command>

commands:
  run-once    send reminders for the current minute and exit
  scheduler   run reminders by cron schedules until SIGINT/SIGTERM
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	logger.Init(cfg.Server.Env, cfg.Server.LogLevel)

	infra, err := app.NewInfra(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize infrastructure", "error", err)
	}
	defer infra.Close()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid batch timezone", "error", err)
	}
	job := batch.NewReminderJob(infra.Store.Schedules, infra.Dispatcher, loc, cfg.Batch.Concurrency)

	// В памяти очередь живёт только в этом процессе: доставляем сами.
	// Для sql задачи забирает воркер веб-процесса.
	pushWorker := workers.NewPushWorker(infra.Queue, infra.Dispatcher, queue.WorkerOptions{
		Concurrency:  cfg.Queue.Concurrency,
		PollInterval: cfg.QueuePollInterval(),
	})
	drain := func(ctx context.Context) {
		if cfg.Store.Backend != "memory" {
			return
		}
		if n, err := pushWorker.Drain(ctx); err != nil {
			logger.Error("push drain failed", "error", err)
		} else {
			logger.Info("push jobs delivered", "count", n)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch flag.Arg(0) {
	case "run-once":
		result, err := job.Run(ctx)
		if err != nil {
			logger.Error("Reminder batch failed", "error", err)
			infra.Close()
			os.Exit(1)
		}
		drain(ctx)
		logger.Info("Reminder batch done", "minute", result.Minute, "sent", result.Sent, "failed", result.Failed)

	case "scheduler":
		schedules, err := batch.LoadSchedules(cfg.Batch.Schedules, cfg.Batch.ConfigPath)
		if err != nil {
			logger.Fatal("Failed to load batch schedules", "error", err)
		}
		scheduler := batch.NewScheduler(job, loc, drain)
		if scheduler.Register(schedules) == 0 {
			logger.Warn("No enabled batch schedules, exiting")
			return
		}
		scheduler.Start(ctx)
		logger.Info("Batch scheduler started")

		<-ctx.Done()
		logger.Info("Batch scheduler stopping...")
		scheduler.Stop()
		logger.Info("Batch scheduler stopped")

	default:
		flag.Usage()
		os.Exit(2)
	}
}
