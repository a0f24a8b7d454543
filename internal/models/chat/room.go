package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Room struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	Name        string  `gorm:"size:255;not null;index" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	// DMKey - "a:b" из отсортированных id, только для личных диалогов
	DMKey         *string    `gorm:"size:320;uniqueIndex" json:"dmKey,omitempty"`
	LastMessageID *string    `gorm:"size:36" json:"lastMessageId,omitempty"`
	LastMessageAt *time.Time `gorm:"index" json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (Room) TableName() string {
	return "chat_rooms"
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// IsDirect - личный диалог двух пользователей
func (r *Room) IsDirect() bool {
	return r.DMKey != nil
}

// RoomWithUnread - комната в списке пользователя
type RoomWithUnread struct {
	Room
	UnreadCount int64 `json:"unreadCount"`
}
