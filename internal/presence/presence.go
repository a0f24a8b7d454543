// Package presence отвечает на вопрос "кто сейчас смотрит комнату": по живым
// соединениям, подписанным на её broadcast-группу.
package presence

import (
	"context"
	"sync"
)

// Registry - реестр присутствия. Join/Leave считаются по соединениям,
// пользователь присутствует, пока у него есть хотя бы одно.
type Registry interface {
	Join(ctx context.Context, roomID, userID string) error
	Leave(ctx context.Context, roomID, userID string) error
	// Present - id пользователей, подключённых к комнате
	Present(ctx context.Context, roomID string) (map[string]struct{}, error)
	Heartbeat(ctx context.Context) error
	Close(ctx context.Context) error
}

// Local - реестр одного процесса.
type Local struct {
	mu    sync.RWMutex
	rooms map[string]map[string]int
}

func NewLocal() *Local {
	return &Local{rooms: make(map[string]map[string]int)}
}

// join возвращает новое число соединений пользователя в комнате
func (l *Local) join(roomID, userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, ok := l.rooms[roomID]
	if !ok {
		users = make(map[string]int)
		l.rooms[roomID] = users
	}
	users[userID]++
	return users[userID]
}

func (l *Local) leave(roomID, userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, ok := l.rooms[roomID]
	if !ok || users[userID] == 0 {
		return 0
	}
	users[userID]--
	n := users[userID]
	if n == 0 {
		delete(users, userID)
	}
	if len(users) == 0 {
		delete(l.rooms, roomID)
	}
	return n
}

// snapshot - копия счётчиков для heartbeat
func (l *Local) snapshot() map[string]map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]map[string]int, len(l.rooms))
	for roomID, users := range l.rooms {
		cp := make(map[string]int, len(users))
		for userID, n := range users {
			cp[userID] = n
		}
		out[roomID] = cp
	}
	return out
}

func (l *Local) Join(_ context.Context, roomID, userID string) error {
	l.join(roomID, userID)
	return nil
}

func (l *Local) Leave(_ context.Context, roomID, userID string) error {
	l.leave(roomID, userID)
	return nil
}

func (l *Local) Present(_ context.Context, roomID string) (map[string]struct{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	present := make(map[string]struct{}, len(l.rooms[roomID]))
	for userID := range l.rooms[roomID] {
		present[userID] = struct{}{}
	}
	return present, nil
}

func (l *Local) Heartbeat(context.Context) error {
	return nil
}

func (l *Local) Close(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rooms = make(map[string]map[string]int)
	return nil
}
