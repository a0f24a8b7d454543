package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AlbumItem struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID       string    `gorm:"size:36;not null;index" json:"roomId"`
	FolderID     *string   `gorm:"size:36;index" json:"folderId,omitempty"`
	UploadedBy   string    `gorm:"size:64;not null" json:"uploadedBy"`
	Type         string    `gorm:"size:16;not null" json:"type"` // image, video
	FileURL      string    `gorm:"type:text;not null" json:"fileUrl"`
	ThumbnailURL *string   `gorm:"type:text" json:"thumbnailUrl,omitempty"`
	FileName     string    `gorm:"size:255" json:"fileName"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `gorm:"not null;index" json:"uploadedAt"`
}

func (AlbumItem) TableName() string {
	return "room_album_items"
}

func (a *AlbumItem) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type AlbumFolder struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID      string    `gorm:"size:36;not null;index" json:"roomId"`
	ParentID    *string   `gorm:"size:36;index" json:"parentId,omitempty"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	CreatedBy   string    `gorm:"size:64;not null" json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (AlbumFolder) TableName() string {
	return "room_album_folders"
}

func (f *AlbumFolder) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
