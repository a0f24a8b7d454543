package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
	// MessageMultiFile - упорядоченный список файлов в Files
	MessageMultiFile MessageType = "multi-file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageFile, MessageMultiFile:
		return true
	}
	return false
}

// FileAttachment - элемент мульти-файлового сообщения
type FileAttachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
}

type Message struct {
	ID        string                              `gorm:"primaryKey;size:36" json:"id"`
	RoomID    string                              `gorm:"size:36;not null;index:idx_messages_room_ts,priority:1" json:"roomId"`
	UserID    string                              `gorm:"size:64;not null;index" json:"userId"`
	Content   string                              `gorm:"type:text" json:"content"`
	Type      MessageType                         `gorm:"size:16;not null;default:text" json:"type"`
	FileURL   *string                             `json:"fileUrl,omitempty"`
	FileName  *string                             `json:"fileName,omitempty"`
	FileSize  *int64                              `json:"fileSize,omitempty"`
	Files     datatypes.JSONSlice[FileAttachment] `json:"files,omitempty"`
	Timestamp time.Time                           `gorm:"column:sent_at;not null;index:idx_messages_room_ts,priority:2" json:"timestamp"`
}

func (Message) TableName() string {
	return "chat_messages"
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = NewMessageID()
	}
	return nil
}

// NewMessageID - UUIDv7: внутри процесса id растут вместе со временем,
// поэтому тай-брейк по id в пределах одной миллисекунды совпадает с порядком записи
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Cursor - позиция (timestamp, id) для keyset-пагинации истории
type Cursor struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}

// Before - true, если сообщение строго раньше курсора в порядке (timestamp, id)
func (m *Message) Before(c Cursor) bool {
	if m.Timestamp.Equal(c.Timestamp) {
		return m.ID < c.ID
	}
	return m.Timestamp.Before(c.Timestamp)
}

// After - true, если сообщение строго позже курсора
func (m *Message) After(c Cursor) bool {
	if m.Timestamp.Equal(c.Timestamp) {
		return m.ID > c.ID
	}
	return m.Timestamp.After(c.Timestamp)
}

func (m *Message) Cursor() Cursor {
	return Cursor{Timestamp: m.Timestamp, ID: m.ID}
}
