package sqlstore

import (
	"context"
	"errors"

	"suchat_backend/internal/models"
	"suchat_backend/internal/repositories"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pushSubscriptionRepository struct {
	db *gorm.DB
}

func NewPushSubscriptionRepository(db *gorm.DB) repositories.PushSubscriptionRepository {
	return &pushSubscriptionRepository{db: db}
}

func (r *pushSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	sub.IsActive = true
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"endpoint", "p256dh", "auth", "device_type", "device_name", "user_agent", "is_active", "updated_at",
		}),
	}).Create(sub).Error
	if err != nil {
		return err
	}

	// при конфликте id в sub не совпадает с сохранённым, перечитываем строку
	stored, err := r.FindByUserDevice(ctx, sub.UserID, sub.DeviceID)
	if err != nil {
		return err
	}
	*sub = *stored
	return nil
}

func (r *pushSubscriptionRepository) FindByUserDevice(ctx context.Context, userID, deviceID string) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *pushSubscriptionRepository) FindByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *pushSubscriptionRepository) FindActiveByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

func (r *pushSubscriptionRepository) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.PushSubscription{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *pushSubscriptionRepository) UpdateDeviceName(ctx context.Context, userID, deviceID, name string) error {
	if _, err := r.FindByUserDevice(ctx, userID, deviceID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.PushSubscription{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Update("device_name", name).Error
}

func (r *pushSubscriptionRepository) DeleteByUserDevice(ctx context.Context, userID, deviceID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Delete(&models.PushSubscription{})
	return res.RowsAffected, res.Error
}

func (r *pushSubscriptionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PushSubscription{})
	return res.RowsAffected, res.Error
}

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) repositories.DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Upsert(ctx context.Context, device *models.UserDevice) error {
	loginAt := now()
	device.LastLoginAt = &loginAt
	device.IsActive = true

	// незаданные имя и user agent не затирают сохранённые
	columns := []string{"device_type", "last_login_at", "is_active", "updated_at"}
	if device.DeviceName != nil {
		columns = append(columns, "device_name")
	}
	if device.UserAgent != nil {
		columns = append(columns, "user_agent")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(device).Error
	if err != nil {
		return err
	}

	stored, err := r.findOne(ctx, device.UserID, device.DeviceID)
	if err != nil {
		return err
	}
	*device = *stored
	return nil
}

func (r *deviceRepository) FindByUser(ctx context.Context, userID string) ([]models.UserDevice, error) {
	var devices []models.UserDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_login_at DESC").
		Find(&devices).Error
	return devices, err
}

func (r *deviceRepository) findOne(ctx context.Context, userID, deviceID string) (*models.UserDevice, error) {
	var device models.UserDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepository) UpdateName(ctx context.Context, userID, deviceID, name string) (*models.UserDevice, error) {
	if _, err := r.findOne(ctx, userID, deviceID); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.UserDevice{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Update("device_name", name).Error; err != nil {
		return nil, err
	}
	return r.findOne(ctx, userID, deviceID)
}

func (r *deviceRepository) Deactivate(ctx context.Context, userID, deviceID string) error {
	return r.db.WithContext(ctx).Model(&models.UserDevice{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Update("is_active", false).Error
}

func (r *deviceRepository) Delete(ctx context.Context, userID, deviceID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Delete(&models.UserDevice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrDeviceNotFound
	}
	return nil
}
