package handlers

import (
	"suchat_backend/internal/services"
	"suchat_backend/internal/validator"
	"suchat_backend/ws"
)

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	ChatHandler     *ChatHandler
	ScheduleHandler *ScheduleHandler
	AlbumHandler    *AlbumHandler
	PushHandler     *PushHandler
	DeviceHandler   *DeviceHandler
	WSHandler       *WSHandler
}

func NewAppHandlers(v *validator.Validator, svc *services.ServiceContainer, manager *ws.Manager) *AppHandlers {
	base := NewBaseHandler(v)
	return &AppHandlers{
		ChatHandler:     NewChatHandler(base, svc.ChatService),
		ScheduleHandler: NewScheduleHandler(base, svc.ScheduleService),
		AlbumHandler:    NewAlbumHandler(base, svc.AlbumService),
		PushHandler:     NewPushHandler(base, svc.PushService),
		DeviceHandler:   NewDeviceHandler(base, svc.DeviceService),
		WSHandler:       NewWSHandler(base, manager),
	}
}
