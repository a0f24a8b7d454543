package app

import (
	"fmt"

	"suchat_backend/database"
	"suchat_backend/internal/config"
	"suchat_backend/internal/logger"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/repositories/memory"
	"suchat_backend/internal/repositories/sqlstore"

	"github.com/valkey-io/valkey-go"
	"gorm.io/gorm"
)

// Infra - общая инфраструктура веб-процесса и batch-процесса:
// хранилище, очередь push-задач и диспетчер доставки.
type Infra struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *repositories.Store
	Queue      *queue.Queue
	Dispatcher *notification.Dispatcher
	Valkey     valkey.Client
}

// NewInfra подключает хранилище, выбранное конфигурацией, и собирает очередь.
func NewInfra(cfg *config.Config) (*Infra, error) {
	infra := &Infra{Config: cfg}

	var jobs queue.Store
	switch cfg.Store.Backend {
	case "memory":
		logger.Warn("using in-memory store, data will not survive a restart")
		infra.Store = memory.New()
		jobs = queue.NewMemoryStore()
	default:
		logger.Info("connecting to database", "driver", cfg.Database.Driver)
		db, err := database.Open(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate || cfg.Database.Driver == "sqlite" {
			if err := database.AutoMigrate(db); err != nil {
				return nil, err
			}
		}
		logger.Info("database connected")
		infra.DB = db
		infra.Store = sqlstore.New(db)
		jobs = queue.NewGormStore(db)
	}

	infra.Queue = queue.New(cfg.Queue.Name, jobs, queue.Options{
		Retries:          cfg.Queue.Retries,
		Backoff:          cfg.QueueBackoff(),
		RemoveOnComplete: true,
		RemoveOnFail:     false,
	}, queue.WithLease(cfg.QueueLease()))

	var sender notification.Sender
	if cfg.PushEnabled() {
		sender = notification.NewWebPushSender(notification.WebPushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subject:         cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		})
	} else {
		logger.Warn("VAPID keys are not set, push notifications are only logged")
		sender = notification.LogSender{}
	}
	infra.Dispatcher = notification.NewDispatcher(infra.Store.Subscriptions, sender, infra.Queue, notification.Defaults{
		Icon:  cfg.Push.Icon,
		Badge: cfg.Push.Badge,
	})

	if len(cfg.Valkey.Addrs) > 0 {
		client, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: cfg.Valkey.Addrs,
			Password:    cfg.Valkey.Password,
		})
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("connect valkey: %w", err)
		}
		logger.Info("valkey connected", "addrs", cfg.Valkey.Addrs)
		infra.Valkey = client
	}

	return infra, nil
}

// Close освобождает соединения. Повторный вызов безопасен.
func (i *Infra) Close() {
	if i.Valkey != nil {
		i.Valkey.Close()
		i.Valkey = nil
	}
	if i.DB != nil {
		if sqlDB, err := i.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		i.DB = nil
	}
}
