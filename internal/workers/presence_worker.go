package workers

import (
	"context"
	"time"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/presence"
)

// PresenceWorker продлевает записи присутствия этого процесса в общем реестре.
// Если процесс упадёт, его записи истекут по TTL.
type PresenceWorker struct {
	registry presence.Registry
	interval time.Duration
}

func NewPresenceWorker(registry presence.Registry, interval time.Duration) *PresenceWorker {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &PresenceWorker{registry: registry, interval: interval}
}

// Start запускает heartbeat в фоне
func (w *PresenceWorker) Start(ctx context.Context) {
	go w.heartbeat(ctx)
}

func (w *PresenceWorker) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("presence worker stopped")
			return
		case <-ticker.C:
			if err := w.registry.Heartbeat(ctx); err != nil {
				logger.WorkerLog("presence_worker", "heartbeat", err)
			}
		}
	}
}
