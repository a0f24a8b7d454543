package models

// PushSubscription - Web Push подписка устройства, уникальна по (user_id, device_id)
type PushSubscription struct {
	BaseModel
	UserID     string  `gorm:"size:64;not null;uniqueIndex:idx_push_user_device;index" json:"userId"`
	DeviceID   string  `gorm:"size:128;not null;uniqueIndex:idx_push_user_device" json:"deviceId"`
	DeviceType string  `gorm:"size:32;not null;default:web" json:"deviceType"` // web, android, ios
	DeviceName *string `gorm:"size:255" json:"deviceName,omitempty"`
	Endpoint   string  `gorm:"type:text;not null" json:"endpoint"`
	P256dh     string  `gorm:"type:text;not null" json:"-"`
	Auth       string  `gorm:"type:text;not null" json:"-"`
	UserAgent  *string `gorm:"type:text" json:"userAgent,omitempty"`
	IsActive   bool    `gorm:"not null;default:true;index" json:"isActive"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
