package repositories

import (
	"context"
	"errors"
	"strings"

	"suchat_backend/internal/models"
	"suchat_backend/internal/models/chat"
)

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrDuplicateDMKey       = errors.New("dm key already exists")
	ErrScheduleNotFound     = errors.New("schedule not found")
	ErrAlbumItemNotFound    = errors.New("album item not found")
	ErrAlbumFolderNotFound  = errors.New("album folder not found")
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	ErrDeviceNotFound       = errors.New("device not found")
)

// ChatRepository - комнаты, участники и журнал сообщений.
type ChatRepository interface {
	// CreateRoom возвращает ErrDuplicateDMKey при конфликте dmKey
	CreateRoom(ctx context.Context, room *chat.Room) error
	FindRoomByID(ctx context.Context, id string) (*chat.Room, error)
	FindRoomByName(ctx context.Context, name string) (*chat.Room, error)
	FindRoomByDMKey(ctx context.Context, dmKey string) (*chat.Room, error)
	// FindUserRooms - комнаты пользователя, свежие переписки первыми
	FindUserRooms(ctx context.Context, userID string) ([]chat.Room, error)

	// UpsertParticipant создаёт членство или обновляет роль существующего
	UpsertParticipant(ctx context.Context, p *chat.Participant) error
	FindParticipant(ctx context.Context, roomID, userID string) (*chat.Participant, error)
	FindParticipants(ctx context.Context, roomID string) ([]chat.Participant, error)
	// DeleteParticipant идемпотентен
	DeleteParticipant(ctx context.Context, roomID, userID string) error
	// UpdateLastRead возвращает false, если участника нет
	UpdateLastRead(ctx context.Context, roomID, userID, messageID string) (bool, error)

	// AppendMessage атомарно сохраняет сообщение, двигает указатель последнего
	// сообщения комнаты и отметку прочтения отправителя
	AppendMessage(ctx context.Context, msg *chat.Message) error
	FindMessageByID(ctx context.Context, id string) (*chat.Message, error)
	// FindRoomMessages - от новых к старым, строго до курсора (если задан)
	FindRoomMessages(ctx context.Context, roomID string, before *chat.Cursor, limit int) ([]chat.Message, error)
	CountMessages(ctx context.Context, roomID string) (int64, error)
	CountMessagesAfter(ctx context.Context, roomID string, after chat.Cursor) (int64, error)
}

// ReminderTarget - одна строка (расписание, участник) для batch-напоминаний
type ReminderTarget struct {
	Schedule chat.Schedule
	UserID   string
}

// ScheduleFilter - диапазон по startDate (включительно), пустые границы не применяются
type ScheduleFilter struct {
	From string
	To   string
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *chat.Schedule) error
	FindByID(ctx context.Context, id string) (*chat.Schedule, error)
	FindByRoom(ctx context.Context, roomID string, filter ScheduleFilter) ([]chat.Schedule, error)
	FindByParticipant(ctx context.Context, userID string) ([]chat.Schedule, error)
	// Update сохраняет поля (включая notificationSent) и, если participantIDs != nil, заменяет участников
	Update(ctx context.Context, s *chat.Schedule, participantIDs []string) error
	Delete(ctx context.Context, id string) error

	// FindDueReminders: notificationDateTime = now, startDate >= now, notificationSent = 0
	FindDueReminders(ctx context.Context, now string) ([]ReminderTarget, error)
	IncrementNotificationSent(ctx context.Context, ids []string) error
}

// AlbumFilter - RootOnly выбирает элементы без папки, иначе FolderID (если задан)
type AlbumFilter struct {
	FolderID *string
	RootOnly bool
	Type     string
}

type AlbumRepository interface {
	CreateItem(ctx context.Context, item *chat.AlbumItem) error
	FindItemByID(ctx context.Context, id string) (*chat.AlbumItem, error)
	FindItems(ctx context.Context, roomID string, filter AlbumFilter) ([]chat.AlbumItem, error)
	MoveItem(ctx context.Context, id string, folderID *string) error
	DeleteItem(ctx context.Context, id string) error

	CreateFolder(ctx context.Context, folder *chat.AlbumFolder) error
	FindFolderByID(ctx context.Context, id string) (*chat.AlbumFolder, error)
	// FindFolders - папки комнаты на уровне parentID (nil - корень)
	FindFolders(ctx context.Context, roomID string, parentID *string) ([]chat.AlbumFolder, error)
	FindChildFolders(ctx context.Context, parentID string) ([]chat.AlbumFolder, error)
	UpdateFolder(ctx context.Context, folder *chat.AlbumFolder) error
	// DeleteFolders атомарно переносит файлы папок в корень и удаляет папки
	DeleteFolders(ctx context.Context, ids []string) error
}

type PushSubscriptionRepository interface {
	// Upsert по (userId, deviceId); повторная подписка реактивирует запись
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	FindByUserDevice(ctx context.Context, userID, deviceID string) (*models.PushSubscription, error)
	FindByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	FindActiveByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	Deactivate(ctx context.Context, id string) error
	UpdateDeviceName(ctx context.Context, userID, deviceID, name string) error
	DeleteByUserDevice(ctx context.Context, userID, deviceID string) (int64, error)
	// DeleteByUser - устаревший путь без deviceId, удаляет все подписки пользователя
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type DeviceRepository interface {
	// Upsert регистрирует устройство и обновляет lastLoginAt
	Upsert(ctx context.Context, device *models.UserDevice) error
	FindByUser(ctx context.Context, userID string) ([]models.UserDevice, error)
	UpdateName(ctx context.Context, userID, deviceID, name string) (*models.UserDevice, error)
	// Deactivate - no-op для отсутствующего устройства
	Deactivate(ctx context.Context, userID, deviceID string) error
	Delete(ctx context.Context, userID, deviceID string) error
}

// Store - набор репозиториев одного бэкенда, выбирается один раз при старте
type Store struct {
	Chat          ChatRepository
	Schedules     ScheduleRepository
	Albums        AlbumRepository
	Subscriptions PushSubscriptionRepository
	Devices       DeviceRepository
}

// dmKeyEscaper экранирует разделитель внутри id, ключ остаётся однозначным
var dmKeyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// DMKey - канонический ключ личного диалога: отсортированная пара id через ':'.
// ':' и '\' внутри id экранируются обратной косой чертой.
func DMKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return dmKeyEscaper.Replace(userA) + ":" + dmKeyEscaper.Replace(userB)
}
