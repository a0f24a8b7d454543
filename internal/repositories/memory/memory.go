// Package memory - in-memory реализация репозиториев для тестов и локального запуска.
package memory

import (
	"sort"
	"time"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"

	"github.com/google/uuid"
)

// New собирает Store без внешних зависимостей.
func New() *repositories.Store {
	return &repositories.Store{
		Chat:          NewChatRepository(),
		Schedules:     NewScheduleRepository(),
		Albums:        NewAlbumRepository(),
		Subscriptions: NewPushSubscriptionRepository(),
		Devices:       NewDeviceRepository(),
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newID() string {
	return uuid.NewString()
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// sortMessagesDesc - порядок (timestamp, id) от новых к старым
func sortMessagesDesc(messages []chat.Message) {
	sort.Slice(messages, func(i, j int) bool {
		return messages[j].Before(messages[i].Cursor())
	})
}
