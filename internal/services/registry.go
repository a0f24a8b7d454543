package services

import (
	"suchat_backend/internal/notification"
	"suchat_backend/internal/repositories"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	ChatService     ChatService
	ScheduleService ScheduleService
	AlbumService    AlbumService
	PushService     PushService
	DeviceService   DeviceService
}

// NewServiceContainer собирает сервисы поверх выбранного хранилища.
func NewServiceContainer(store *repositories.Store, notifier notification.Notifier, vapidPublicKey string) *ServiceContainer {
	chatService := NewChatService(store.Chat)
	return &ServiceContainer{
		ChatService:     chatService,
		ScheduleService: NewScheduleService(store.Schedules, chatService),
		AlbumService:    NewAlbumService(store.Albums, chatService),
		PushService:     NewPushService(store.Subscriptions, notifier, vapidPublicKey),
		DeviceService:   NewDeviceService(store.Devices, store.Subscriptions),
	}
}
