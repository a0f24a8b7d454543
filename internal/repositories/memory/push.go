package memory

import (
	"context"
	"sort"
	"sync"

	"suchat_backend/internal/models"
	"suchat_backend/internal/repositories"
)

type deviceKey struct {
	userID   string
	deviceID string
}

type pushSubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[deviceKey]*models.PushSubscription
}

func NewPushSubscriptionRepository() repositories.PushSubscriptionRepository {
	return &pushSubscriptionRepository{subs: make(map[deviceKey]*models.PushSubscription)}
}

func copySubscription(s *models.PushSubscription) models.PushSubscription {
	cp := *s
	cp.DeviceName = cloneString(s.DeviceName)
	cp.UserAgent = cloneString(s.UserAgent)
	return cp
}

func (r *pushSubscriptionRepository) Upsert(_ context.Context, sub *models.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey{userID: sub.UserID, deviceID: sub.DeviceID}
	ts := now()
	if existing, ok := r.subs[key]; ok {
		existing.Endpoint = sub.Endpoint
		existing.P256dh = sub.P256dh
		existing.Auth = sub.Auth
		existing.DeviceType = sub.DeviceType
		existing.DeviceName = cloneString(sub.DeviceName)
		existing.UserAgent = cloneString(sub.UserAgent)
		existing.IsActive = true
		existing.UpdatedAt = ts
		*sub = copySubscription(existing)
		return nil
	}

	if sub.ID == "" {
		sub.ID = newID()
	}
	sub.IsActive = true
	sub.CreatedAt = ts
	sub.UpdatedAt = ts
	stored := copySubscription(sub)
	r.subs[key] = &stored
	return nil
}

func (r *pushSubscriptionRepository) FindByUserDevice(_ context.Context, userID, deviceID string) (*models.PushSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[deviceKey{userID: userID, deviceID: deviceID}]
	if !ok {
		return nil, repositories.ErrSubscriptionNotFound
	}
	cp := copySubscription(sub)
	return &cp, nil
}

func (r *pushSubscriptionRepository) list(userID string, activeOnly bool) []models.PushSubscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]models.PushSubscription, 0)
	for key, sub := range r.subs {
		if key.userID != userID || (activeOnly && !sub.IsActive) {
			continue
		}
		subs = append(subs, copySubscription(sub))
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs
}

func (r *pushSubscriptionRepository) FindByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	subs := r.list(userID, false)
	// новые первыми, как в sql-реализации
	for i, j := 0, len(subs)-1; i < j; i, j = i+1, j-1 {
		subs[i], subs[j] = subs[j], subs[i]
	}
	return subs, nil
}

func (r *pushSubscriptionRepository) FindActiveByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	return r.list(userID, true), nil
}

func (r *pushSubscriptionRepository) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if sub.ID == id {
			sub.IsActive = false
			sub.UpdatedAt = now()
		}
	}
	return nil
}

func (r *pushSubscriptionRepository) UpdateDeviceName(_ context.Context, userID, deviceID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[deviceKey{userID: userID, deviceID: deviceID}]
	if !ok {
		return repositories.ErrSubscriptionNotFound
	}
	sub.DeviceName = &name
	return nil
}

func (r *pushSubscriptionRepository) DeleteByUserDevice(_ context.Context, userID, deviceID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey{userID: userID, deviceID: deviceID}
	if _, ok := r.subs[key]; !ok {
		return 0, nil
	}
	delete(r.subs, key)
	return 1, nil
}

func (r *pushSubscriptionRepository) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key := range r.subs {
		if key.userID == userID {
			delete(r.subs, key)
			removed++
		}
	}
	return removed, nil
}

type deviceRepository struct {
	mu      sync.RWMutex
	devices map[deviceKey]*models.UserDevice
}

func NewDeviceRepository() repositories.DeviceRepository {
	return &deviceRepository{devices: make(map[deviceKey]*models.UserDevice)}
}

func copyDevice(d *models.UserDevice) models.UserDevice {
	cp := *d
	cp.DeviceName = cloneString(d.DeviceName)
	cp.UserAgent = cloneString(d.UserAgent)
	cp.LastLoginAt = cloneTime(d.LastLoginAt)
	return cp
}

func (r *deviceRepository) Upsert(_ context.Context, device *models.UserDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := now()
	key := deviceKey{userID: device.UserID, deviceID: device.DeviceID}
	if existing, ok := r.devices[key]; ok {
		existing.DeviceType = device.DeviceType
		if device.DeviceName != nil {
			existing.DeviceName = cloneString(device.DeviceName)
		}
		if device.UserAgent != nil {
			existing.UserAgent = cloneString(device.UserAgent)
		}
		existing.LastLoginAt = &ts
		existing.IsActive = true
		existing.UpdatedAt = ts
		*device = copyDevice(existing)
		return nil
	}

	if device.ID == "" {
		device.ID = newID()
	}
	device.LastLoginAt = &ts
	device.IsActive = true
	device.CreatedAt = ts
	device.UpdatedAt = ts
	stored := copyDevice(device)
	r.devices[key] = &stored
	return nil
}

func (r *deviceRepository) FindByUser(_ context.Context, userID string) ([]models.UserDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]models.UserDevice, 0)
	for key, d := range r.devices {
		if key.userID == userID {
			devices = append(devices, copyDevice(d))
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastLoginAt.After(*devices[j].LastLoginAt)
	})
	return devices, nil
}

func (r *deviceRepository) UpdateName(_ context.Context, userID, deviceID, name string) (*models.UserDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceKey{userID: userID, deviceID: deviceID}]
	if !ok {
		return nil, repositories.ErrDeviceNotFound
	}
	d.DeviceName = &name
	d.UpdatedAt = now()
	cp := copyDevice(d)
	return &cp, nil
}

func (r *deviceRepository) Deactivate(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[deviceKey{userID: userID, deviceID: deviceID}]; ok {
		d.IsActive = false
	}
	return nil
}

func (r *deviceRepository) Delete(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey{userID: userID, deviceID: deviceID}
	if _, ok := r.devices[key]; !ok {
		return repositories.ErrDeviceNotFound
	}
	delete(r.devices, key)
	return nil
}
