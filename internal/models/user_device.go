package models

import "time"

// UserDevice - реестр устройств пользователя
type UserDevice struct {
	BaseModel
	UserID      string     `gorm:"size:64;not null;uniqueIndex:idx_user_device" json:"userId"`
	DeviceID    string     `gorm:"size:128;not null;uniqueIndex:idx_user_device" json:"deviceId"`
	DeviceType  string     `gorm:"size:32;not null;default:web" json:"deviceType"`
	DeviceName  *string    `gorm:"size:255" json:"deviceName,omitempty"`
	UserAgent   *string    `gorm:"type:text" json:"userAgent,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	IsActive    bool       `gorm:"not null;default:true" json:"isActive"`
}

func (UserDevice) TableName() string {
	return "user_devices"
}
