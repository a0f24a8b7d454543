package sqlstore

import (
	"context"
	"errors"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) repositories.ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateRoom(ctx context.Context, room *chat.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if room.DMKey != nil && isUniqueViolation(err) {
			return repositories.ErrDuplicateDMKey
		}
		return err
	}
	return nil
}

func (r *chatRepository) findRoom(ctx context.Context, query string, arg any) (*chat.Room, error) {
	var room chat.Room
	err := r.db.WithContext(ctx).Where(query, arg).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *chatRepository) FindRoomByID(ctx context.Context, id string) (*chat.Room, error) {
	return r.findRoom(ctx, "id = ?", id)
}

func (r *chatRepository) FindRoomByName(ctx context.Context, name string) (*chat.Room, error) {
	return r.findRoom(ctx, "name = ?", name)
}

func (r *chatRepository) FindRoomByDMKey(ctx context.Context, dmKey string) (*chat.Room, error) {
	return r.findRoom(ctx, "dm_key = ?", dmKey)
}

func (r *chatRepository) FindUserRooms(ctx context.Context, userID string) ([]chat.Room, error) {
	var rooms []chat.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_room_participants p ON p.room_id = chat_rooms.id").
		Where("p.user_id = ?", userID).
		Order("CASE WHEN chat_rooms.last_message_at IS NULL THEN 1 ELSE 0 END").
		Order("chat_rooms.last_message_at DESC").
		Order("chat_rooms.created_at DESC").
		Find(&rooms).Error
	return rooms, err
}

func (r *chatRepository) UpsertParticipant(ctx context.Context, p *chat.Participant) error {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now()
	}
	if p.Role == "" {
		p.Role = chat.RoleMember
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(p).Error
}

func (r *chatRepository) FindParticipant(ctx context.Context, roomID, userID string) (*chat.Participant, error) {
	var p chat.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *chatRepository) FindParticipants(ctx context.Context, roomID string) ([]chat.Participant, error) {
	var participants []chat.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}

func (r *chatRepository) DeleteParticipant(ctx context.Context, roomID, userID string) error {
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&chat.Participant{}).Error
}

func (r *chatRepository) UpdateLastRead(ctx context.Context, roomID, userID, messageID string) (bool, error) {
	// mysql считает только изменённые строки, поэтому существование проверяем отдельно
	var count int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&chat.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	err := db.Model(&chat.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_message_id", messageID).Error
	return err == nil, err
}

func (r *chatRepository) AppendMessage(ctx context.Context, msg *chat.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now()
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	if err := tx.Create(msg).Error; err != nil {
		return err
	}

	res := tx.Model(&chat.Room{}).
		Where("id = ?", msg.RoomID).
		Updates(map[string]any{
			"last_message_id": msg.ID,
			"last_message_at": msg.Timestamp,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrRoomNotFound
	}

	// Отправитель всегда прочитал своё сообщение
	if err := tx.Model(&chat.Participant{}).
		Where("room_id = ? AND user_id = ?", msg.RoomID, msg.UserID).
		Update("last_read_message_id", msg.ID).Error; err != nil {
		return err
	}

	return tx.Commit().Error
}

func (r *chatRepository) FindMessageByID(ctx context.Context, id string) (*chat.Message, error) {
	var msg chat.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *chatRepository) FindRoomMessages(ctx context.Context, roomID string, before *chat.Cursor, limit int) ([]chat.Message, error) {
	q := r.db.WithContext(ctx)
	if before != nil {
		q = q.Where("room_id = ? AND (sent_at < ? OR (sent_at = ? AND id < ?))",
			roomID, before.Timestamp, before.Timestamp, before.ID)
	} else {
		q = q.Where("room_id = ?", roomID)
	}

	var messages []chat.Message
	err := q.Order("sent_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

func (r *chatRepository) CountMessages(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&chat.Message{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

func (r *chatRepository) CountMessagesAfter(ctx context.Context, roomID string, after chat.Cursor) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&chat.Message{}).
		Where("room_id = ? AND (sent_at > ? OR (sent_at = ? AND id > ?))",
			roomID, after.Timestamp, after.Timestamp, after.ID).
		Count(&count).Error
	return count, err
}
