package chat

import "time"

type ParticipantRole string

const (
	RoleOwner  ParticipantRole = "owner"
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Participant - членство пользователя в комнате, ключ (room_id, user_id)
type Participant struct {
	RoomID            string          `gorm:"primaryKey;size:36" json:"roomId"`
	UserID            string          `gorm:"primaryKey;size:64;index" json:"userId"`
	Role              ParticipantRole `gorm:"size:16;not null;default:member" json:"role"`
	LastReadMessageID *string         `gorm:"size:36" json:"lastReadMessageId,omitempty"`
	Muted             bool            `gorm:"not null;default:false" json:"muted"`
	Pinned            bool            `gorm:"not null;default:false" json:"pinned"`
	JoinedAt          time.Time       `gorm:"not null" json:"joinedAt"`
}

func (Participant) TableName() string {
	return "chat_room_participants"
}
