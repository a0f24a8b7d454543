package services

import (
	"context"
	"errors"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models"
	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"
)

type PushService interface {
	Subscribe(ctx context.Context, userID string, req *dto.SubscribeRequest) (*dto.SubscribeResponse, error)
	Unsubscribe(ctx context.Context, userID, deviceID string) (*dto.SuccessResponse, error)
	GetUserSubscriptions(ctx context.Context, userID string) (*dto.SubscriptionListResponse, error)
	UpdateDeviceName(ctx context.Context, userID, deviceID, name string) error
	SendTestPush(ctx context.Context, userID string) (*dto.JobResponse, error)
	// NotifyRoomMessage ставит по задаче на каждого получателя, возвращает число задач
	NotifyRoomMessage(ctx context.Context, room *chat.Room, msg *chat.Message, recipients []string) (int, error)
	VAPIDPublicKey() string
}

type pushService struct {
	subsRepo  repositories.PushSubscriptionRepository
	notifier  notification.Notifier
	publicKey string
}

func NewPushService(subsRepo repositories.PushSubscriptionRepository, notifier notification.Notifier, vapidPublicKey string) PushService {
	return &pushService{
		subsRepo:  subsRepo,
		notifier:  notifier,
		publicKey: vapidPublicKey,
	}
}

// Subscribe - upsert по (userId, deviceId), повторная подписка реактивирует запись
func (s *pushService) Subscribe(ctx context.Context, userID string, req *dto.SubscribeRequest) (*dto.SubscribeResponse, error) {
	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = "web"
	}
	sub := &models.PushSubscription{
		UserID:     userID,
		DeviceID:   req.DeviceID,
		DeviceType: deviceType,
		DeviceName: req.DeviceName,
		Endpoint:   req.Endpoint,
		P256dh:     req.P256dh,
		Auth:       req.Auth,
		UserAgent:  req.UserAgent,
	}
	if err := s.subsRepo.Upsert(ctx, sub); err != nil {
		return nil, handlePushError(err)
	}

	logger.CtxInfo(ctx, "push subscription saved", "device_id", sub.DeviceID, "device_type", sub.DeviceType)
	return &dto.SubscribeResponse{
		Success:        true,
		SubscriptionID: sub.ID,
		DeviceID:       sub.DeviceID,
		DeviceType:     sub.DeviceType,
	}, nil
}

// Unsubscribe выключает подписку устройства. Пустой deviceId - устаревший
// путь без мультиустройств: удаляются все подписки пользователя.
func (s *pushService) Unsubscribe(ctx context.Context, userID, deviceID string) (*dto.SuccessResponse, error) {
	if deviceID == "" {
		affected, err := s.subsRepo.DeleteByUser(ctx, userID)
		if err != nil {
			return nil, handlePushError(err)
		}
		logger.CtxWarn(ctx, "legacy unsubscribe without device id", "removed", affected)
		return &dto.SuccessResponse{Success: affected > 0}, nil
	}

	sub, err := s.subsRepo.FindByUserDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return &dto.SuccessResponse{Success: false}, nil
		}
		return nil, handlePushError(err)
	}
	if err := s.subsRepo.Deactivate(ctx, sub.ID); err != nil {
		return nil, handlePushError(err)
	}

	logger.CtxInfo(ctx, "push subscription disabled", "device_id", deviceID)
	return &dto.SuccessResponse{Success: true}, nil
}

func (s *pushService) GetUserSubscriptions(ctx context.Context, userID string) (*dto.SubscriptionListResponse, error) {
	subs, err := s.subsRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, handlePushError(err)
	}

	resp := &dto.SubscriptionListResponse{
		Count:         len(subs),
		Subscriptions: make([]dto.SubscriptionSummary, 0, len(subs)),
	}
	for i := range subs {
		resp.Subscriptions = append(resp.Subscriptions, dto.SummarizeSubscription(&subs[i]))
	}
	return resp, nil
}

func (s *pushService) UpdateDeviceName(ctx context.Context, userID, deviceID, name string) error {
	if err := s.subsRepo.UpdateDeviceName(ctx, userID, deviceID, name); err != nil {
		return handlePushError(err)
	}
	return nil
}

func (s *pushService) SendTestPush(ctx context.Context, userID string) (*dto.JobResponse, error) {
	subs, err := s.subsRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, handlePushError(err)
	}
	if len(subs) == 0 {
		return nil, apperrors.ErrNoActiveSubscriptions
	}

	handle, err := s.notifier.Enqueue(ctx, notification.SendPushJob{
		UserID: userID,
		Title:  "Test notification",
		Body:   "Push notifications are working",
		Data:   map[string]any{"type": "test"},
		Tag:    "test-notification",
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.JobResponse{JobID: handle.ID}, nil
}

// NotifyRoomMessage - одна задача на получателя; tag комнаты схлопывает
// уведомления одной комнаты на клиенте
func (s *pushService) NotifyRoomMessage(ctx context.Context, room *chat.Room, msg *chat.Message, recipients []string) (int, error) {
	job := RoomMessagePush(room, msg)

	var errs []error
	queued := 0
	for _, userID := range recipients {
		job.UserID = userID
		if _, err := s.notifier.Enqueue(ctx, job); err != nil {
			errs = append(errs, err)
			continue
		}
		queued++
	}
	if len(errs) > 0 {
		return queued, errors.Join(errs...)
	}
	return queued, nil
}

func (s *pushService) VAPIDPublicKey() string {
	return s.publicKey
}

// RoomMessagePush - payload уведомления о новом сообщении (без получателя)
func RoomMessagePush(room *chat.Room, msg *chat.Message) notification.SendPushJob {
	title := room.Name
	if title == "" {
		title = "New message"
	}
	return notification.SendPushJob{
		Title: title,
		Body:  messagePreview(msg),
		Data: map[string]any{
			"roomId":    room.ID,
			"messageId": msg.ID,
			"type":      "chat_message",
		},
		Tag: "room-" + room.ID,
	}
}

func messagePreview(msg *chat.Message) string {
	switch msg.Type {
	case chat.MessageImage:
		return "sent a photo"
	case chat.MessageVideo:
		return "sent a video"
	case chat.MessageFile, chat.MessageMultiFile:
		return "sent a file"
	}
	return msg.Content
}

func handlePushError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return apperrors.ErrSubscriptionNotFound.WithError(err)
	}
	return apperrors.DatabaseError(err)
}
