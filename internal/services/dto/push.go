package dto

import (
	"time"

	"suchat_backend/internal/models"
)

type SubscribeRequest struct {
	Endpoint   string  `json:"endpoint" validate:"required,url,max=2048"`
	P256dh     string  `json:"p256dh" validate:"required,max=256"`
	Auth       string  `json:"auth" validate:"required,max=256"`
	DeviceID   string  `json:"deviceId" validate:"required,max=128"`
	DeviceType string  `json:"deviceType" validate:"omitempty,is-device-type"`
	DeviceName *string `json:"deviceName,omitempty" validate:"omitempty,max=255"`
	UserAgent  *string `json:"userAgent,omitempty" validate:"omitempty,max=1024"`
}

type SubscribeResponse struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscriptionId"`
	DeviceID       string `json:"deviceId"`
	DeviceType     string `json:"deviceType"`
}

// UnsubscribeRequest - пустой deviceId означает устаревший путь "все подписки пользователя"
type UnsubscribeRequest struct {
	DeviceID string `json:"deviceId" validate:"omitempty,max=128"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type SubscriptionSummary struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	DeviceType string    `json:"deviceType"`
	DeviceName *string   `json:"deviceName,omitempty"`
	Endpoint   string    `json:"endpoint"`
	UserAgent  *string   `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SubscriptionListResponse struct {
	Count         int                   `json:"count"`
	Subscriptions []SubscriptionSummary `json:"subscriptions"`
}

type JobResponse struct {
	JobID string `json:"jobId"`
}

type UpdateDeviceNameRequest struct {
	DeviceName string `json:"deviceName" validate:"required,max=255"`
}

type RegisterDeviceRequest struct {
	DeviceID   string  `json:"deviceId" validate:"required,max=128"`
	DeviceType string  `json:"deviceType" validate:"omitempty,is-device-type"`
	DeviceName *string `json:"deviceName,omitempty" validate:"omitempty,max=255"`
	UserAgent  *string `json:"userAgent,omitempty" validate:"omitempty,max=1024"`
}

type DeviceListResponse struct {
	Success bool                `json:"success"`
	Count   int                 `json:"count"`
	Devices []models.UserDevice `json:"devices"`
}

// SummarizeSubscription обрезает endpoint: целиком его клиенту не отдаём
func SummarizeSubscription(sub *models.PushSubscription) SubscriptionSummary {
	endpoint := sub.Endpoint
	if len(endpoint) > 50 {
		endpoint = endpoint[:50] + "..."
	}
	return SubscriptionSummary{
		ID:         sub.ID,
		DeviceID:   sub.DeviceID,
		DeviceType: sub.DeviceType,
		DeviceName: sub.DeviceName,
		Endpoint:   endpoint,
		UserAgent:  sub.UserAgent,
		CreatedAt:  sub.CreatedAt,
	}
}
