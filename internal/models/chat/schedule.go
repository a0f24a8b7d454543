package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout - формат дат расписаний: yyyymmddHHMMSS
const DateLayout = "20060102150405"

type Schedule struct {
	ID        string  `gorm:"primaryKey;size:36" json:"id"`
	RoomID    string  `gorm:"size:36;not null;index" json:"roomId"`
	CreatedBy string  `gorm:"size:64;not null" json:"createdBy"`
	Title     string  `gorm:"size:255;not null" json:"title"`
	Memo      *string `gorm:"type:text" json:"memo,omitempty"`
	StartDate string  `gorm:"size:14;not null" json:"startDate"`
	EndDate   *string `gorm:"size:14" json:"endDate,omitempty"`
	// NotificationDateTime - минута напоминания в том же формате
	NotificationDateTime    *string   `gorm:"size:14;index" json:"notificationDateTime,omitempty"`
	NotificationInterval    *string   `gorm:"size:32" json:"notificationInterval,omitempty"`
	NotificationRepeatCount *string   `gorm:"size:32" json:"notificationRepeatCount,omitempty"`
	NotificationSent        int       `gorm:"not null;default:0" json:"notificationSent"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`

	Participants []ScheduleParticipant `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
}

func (Schedule) TableName() string {
	return "room_schedules"
}

func (s *Schedule) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ParticipantIDs - id пользователей, прикреплённых к расписанию
func (s *Schedule) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

type ScheduleParticipant struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ScheduleID string    `gorm:"size:36;not null;uniqueIndex:idx_schedule_user" json:"scheduleId"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:idx_schedule_user;index" json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (ScheduleParticipant) TableName() string {
	return "room_schedule_participants"
}

func (p *ScheduleParticipant) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
