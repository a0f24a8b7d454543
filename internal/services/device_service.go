package services

import (
	"context"
	"errors"
	"strings"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"
)

type DeviceService interface {
	RegisterOrUpdateDevice(ctx context.Context, userID string, req *dto.RegisterDeviceRequest) (*models.UserDevice, error)
	GetUserDevices(ctx context.Context, userID string) ([]models.UserDevice, error)
	UpdateDeviceName(ctx context.Context, userID, deviceID, name string) (*models.UserDevice, error)
	DeactivateDevice(ctx context.Context, userID, deviceID string) error
	DeleteDevice(ctx context.Context, userID, deviceID string) error
}

type deviceService struct {
	deviceRepo repositories.DeviceRepository
	subsRepo   repositories.PushSubscriptionRepository
}

func NewDeviceService(deviceRepo repositories.DeviceRepository, subsRepo repositories.PushSubscriptionRepository) DeviceService {
	return &deviceService{
		deviceRepo: deviceRepo,
		subsRepo:   subsRepo,
	}
}

func (s *deviceService) RegisterOrUpdateDevice(ctx context.Context, userID string, req *dto.RegisterDeviceRequest) (*models.UserDevice, error) {
	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = "web"
	}
	device := &models.UserDevice{
		UserID:     userID,
		DeviceID:   req.DeviceID,
		DeviceType: deviceType,
		DeviceName: req.DeviceName,
		UserAgent:  req.UserAgent,
	}
	if err := s.deviceRepo.Upsert(ctx, device); err != nil {
		return nil, handleDeviceError(err)
	}

	logger.CtxInfo(ctx, "device registered", "device_id", device.DeviceID, "device_type", device.DeviceType)
	return device, nil
}

func (s *deviceService) GetUserDevices(ctx context.Context, userID string) ([]models.UserDevice, error) {
	devices, err := s.deviceRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, handleDeviceError(err)
	}
	return devices, nil
}

// UpdateDeviceName переименовывает устройство и его push-подписку, если она есть
func (s *deviceService) UpdateDeviceName(ctx context.Context, userID, deviceID, name string) (*models.UserDevice, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequestError("Device name is required")
	}

	device, err := s.deviceRepo.UpdateName(ctx, userID, deviceID, name)
	if err != nil {
		return nil, handleDeviceError(err)
	}
	if err := s.subsRepo.UpdateDeviceName(ctx, userID, deviceID, name); err != nil &&
		!errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return nil, handleDeviceError(err)
	}
	return device, nil
}

// DeactivateDevice - отсутствие устройства не ошибка
func (s *deviceService) DeactivateDevice(ctx context.Context, userID, deviceID string) error {
	if err := s.deviceRepo.Deactivate(ctx, userID, deviceID); err != nil {
		return handleDeviceError(err)
	}
	return nil
}

// DeleteDevice удаляет устройство вместе с его push-подпиской
func (s *deviceService) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	if err := s.deviceRepo.Delete(ctx, userID, deviceID); err != nil {
		return handleDeviceError(err)
	}
	if _, err := s.subsRepo.DeleteByUserDevice(ctx, userID, deviceID); err != nil {
		return handleDeviceError(err)
	}
	logger.CtxInfo(ctx, "device deleted", "device_id", deviceID)
	return nil
}

func handleDeviceError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, repositories.ErrDeviceNotFound) {
		return apperrors.ErrDeviceNotFound.WithError(err)
	}
	return apperrors.DatabaseError(err)
}
