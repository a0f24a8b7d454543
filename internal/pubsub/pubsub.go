// Package pubsub - шина доставки кадров комнат всем процессам шлюза.
package pubsub

import (
	"context"
	"sync"

	"suchat_backend/internal/logger"
)

// Deliver получает кадр для локальных подписчиков комнаты
type Deliver func(roomID string, frame []byte)

type Fabric interface {
	Publish(ctx context.Context, roomID string, frame []byte) error
	// Run доставляет опубликованные кадры в deliver до отмены ctx
	Run(ctx context.Context, deliver Deliver) error
}

// Local - шина внутри одного процесса, доставка синхронная.
type Local struct {
	mu      sync.RWMutex
	deliver Deliver
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Publish(_ context.Context, roomID string, frame []byte) error {
	l.mu.RLock()
	deliver := l.deliver
	l.mu.RUnlock()

	if deliver == nil {
		logger.Warn("pubsub frame dropped, no subscriber", "room_id", roomID)
		return nil
	}
	deliver(roomID, frame)
	return nil
}

func (l *Local) Run(ctx context.Context, deliver Deliver) error {
	l.mu.Lock()
	l.deliver = deliver
	l.mu.Unlock()

	<-ctx.Done()

	l.mu.Lock()
	l.deliver = nil
	l.mu.Unlock()
	return nil
}
