package services

import (
	"context"
	"errors"
	"strings"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"

	"golang.org/x/sync/errgroup"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	// unreadFanout - сколько счётчиков непрочитанного считаем параллельно
	unreadFanout = 8
)

type ChatService interface {
	// Rooms
	CreateRoom(ctx context.Context, name string, description, dmKey *string) (*chat.Room, error)
	CreateRoomWithMembers(ctx context.Context, creatorID string, req *dto.CreateRoomRequest) (*chat.Room, error)
	GetRoom(ctx context.Context, roomID string) (*chat.Room, error)
	GetRoomByName(ctx context.Context, name string) (*chat.Room, error)
	GetUserRooms(ctx context.Context, userID string) ([]chat.Room, error)
	GetUserRoomsWithUnread(ctx context.Context, userID string) ([]chat.RoomWithUnread, error)
	FindOrCreateDMRoom(ctx context.Context, userA, userB, nameA, nameB string) (*chat.Room, error)

	// Membership
	JoinRoom(ctx context.Context, roomID, userID string, role chat.ParticipantRole) error
	EnsureParticipant(ctx context.Context, roomID, userID string) (*chat.Participant, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	GetRoomParticipants(ctx context.Context, roomID string) ([]chat.Participant, error)
	RequireMember(ctx context.Context, roomID, userID string) (*chat.Participant, error)

	// Messages
	SendMessage(ctx context.Context, userID string, req *dto.SendMessageRequest) (*chat.Message, error)
	GetRoomMessages(ctx context.Context, roomID string, limit int, before *chat.Cursor) ([]chat.Message, error)
	GetMessagePage(ctx context.Context, roomID, userID string, query *dto.MessagesQuery) (*dto.MessagePage, error)

	// Read tracking
	UpdateLastRead(ctx context.Context, roomID, userID, messageID string) (bool, error)
	GetUnreadCount(ctx context.Context, roomID, userID string) (int64, error)
}

type chatService struct {
	chatRepo repositories.ChatRepository
}

func NewChatService(chatRepo repositories.ChatRepository) ChatService {
	return &chatService{
		chatRepo: chatRepo,
	}
}

// --- Rooms ---

// CreateRoom - при конфликте dmKey возвращает ошибку конфликта, вызывающий
// должен перечитать существующую комнату
func (s *chatService) CreateRoom(ctx context.Context, name string, description, dmKey *string) (*chat.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ErrInvalidOperation("chat", "Room name is required")
	}

	room := &chat.Room{
		Name:        name,
		Description: description,
		DMKey:       dmKey,
	}
	if err := s.chatRepo.CreateRoom(ctx, room); err != nil {
		return nil, handleChatError(err)
	}

	logger.CtxInfo(ctx, "room created", "room_id", room.ID, "direct", room.IsDirect())
	return room, nil
}

// CreateRoomWithMembers - создатель становится owner, остальные - member.
// Ровно один приглашённый означает личный диалог с dmKey.
func (s *chatService) CreateRoomWithMembers(ctx context.Context, creatorID string, req *dto.CreateRoomRequest) (*chat.Room, error) {
	var dmKey *string
	if len(req.ParticipantIDs) == 1 && req.ParticipantIDs[0] != creatorID {
		key := repositories.DMKey(creatorID, req.ParticipantIDs[0])
		dmKey = &key
	}

	room, err := s.CreateRoom(ctx, req.Name, req.Description, dmKey)
	if err != nil {
		if dmKey != nil && apperrors.Is(err, repositories.ErrDuplicateDMKey) {
			existing, findErr := s.chatRepo.FindRoomByDMKey(ctx, *dmKey)
			if findErr != nil {
				return nil, handleChatError(findErr)
			}
			logger.CtxInfo(ctx, "direct room already exists", "room_id", existing.ID)
			return existing, nil
		}
		return nil, err
	}

	if err := s.JoinRoom(ctx, room.ID, creatorID, chat.RoleOwner); err != nil {
		return nil, err
	}
	for _, id := range uniqueIDs(req.ParticipantIDs, creatorID) {
		if err := s.JoinRoom(ctx, room.ID, id, chat.RoleMember); err != nil {
			return nil, err
		}
	}
	return room, nil
}

func (s *chatService) GetRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	room, err := s.chatRepo.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return room, nil
}

func (s *chatService) GetRoomByName(ctx context.Context, name string) (*chat.Room, error) {
	room, err := s.chatRepo.FindRoomByName(ctx, name)
	if err != nil {
		return nil, handleChatError(err)
	}
	return room, nil
}

func (s *chatService) GetUserRooms(ctx context.Context, userID string) ([]chat.Room, error) {
	rooms, err := s.chatRepo.FindUserRooms(ctx, userID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return rooms, nil
}

func (s *chatService) GetUserRoomsWithUnread(ctx context.Context, userID string) ([]chat.RoomWithUnread, error) {
	rooms, err := s.GetUserRooms(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]chat.RoomWithUnread, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(unreadFanout)
	for i := range rooms {
		i := i
		result[i].Room = rooms[i]
		g.Go(func() error {
			count, err := s.GetUnreadCount(gctx, rooms[i].ID, userID)
			if err != nil {
				return err
			}
			result[i].UnreadCount = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindOrCreateDMRoom - уникальный dmKey решает гонку двух создателей:
// проигравший перечитывает комнату победителя
func (s *chatService) FindOrCreateDMRoom(ctx context.Context, userA, userB, nameA, nameB string) (*chat.Room, error) {
	if userA == "" || userB == "" {
		return nil, apperrors.ErrInvalidOperation("chat", "Both user ids are required")
	}
	if userA == userB {
		return nil, apperrors.ErrSelfDirectMessage
	}

	key := repositories.DMKey(userA, userB)
	room, err := s.chatRepo.FindRoomByDMKey(ctx, key)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repositories.ErrRoomNotFound) {
		return nil, handleChatError(err)
	}

	room = &chat.Room{
		Name:  dmRoomName(userA, userB, nameA, nameB),
		DMKey: &key,
	}
	if err := s.chatRepo.CreateRoom(ctx, room); err != nil {
		if !errors.Is(err, repositories.ErrDuplicateDMKey) {
			return nil, handleChatError(err)
		}
		room, err = s.chatRepo.FindRoomByDMKey(ctx, key)
		if err != nil {
			return nil, handleChatError(err)
		}
		logger.CtxDebug(ctx, "direct room create race lost, using existing", "room_id", room.ID)
	} else {
		logger.CtxInfo(ctx, "direct room created", "room_id", room.ID)
	}

	for _, id := range []string{userA, userB} {
		if _, err := s.EnsureParticipant(ctx, room.ID, id); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// --- Membership ---

// JoinRoom создаёт членство или меняет роль существующего участника
func (s *chatService) JoinRoom(ctx context.Context, roomID, userID string, role chat.ParticipantRole) error {
	if role == "" {
		role = chat.RoleMember
	}
	if !role.Valid() {
		return apperrors.ErrInvalidOperation("chat", "Invalid participant role")
	}
	if _, err := s.chatRepo.FindRoomByID(ctx, roomID); err != nil {
		return handleChatError(err)
	}

	p := &chat.Participant{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	}
	if err := s.chatRepo.UpsertParticipant(ctx, p); err != nil {
		return handleChatError(err)
	}
	return nil
}

// EnsureParticipant добавляет участника как member, только если его ещё нет.
// Роль существующего участника не трогает.
func (s *chatService) EnsureParticipant(ctx context.Context, roomID, userID string) (*chat.Participant, error) {
	p, err := s.chatRepo.FindParticipant(ctx, roomID, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, handleChatError(err)
	}

	if err := s.JoinRoom(ctx, roomID, userID, chat.RoleMember); err != nil {
		return nil, err
	}
	p, err = s.chatRepo.FindParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return p, nil
}

// LeaveRoom идемпотентен: отсутствие участника не ошибка
func (s *chatService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	if err := s.chatRepo.DeleteParticipant(ctx, roomID, userID); err != nil {
		return handleChatError(err)
	}
	return nil
}

func (s *chatService) GetRoomParticipants(ctx context.Context, roomID string) ([]chat.Participant, error) {
	participants, err := s.chatRepo.FindParticipants(ctx, roomID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return participants, nil
}

// RequireMember отличает несуществующую комнату от чужой
func (s *chatService) RequireMember(ctx context.Context, roomID, userID string) (*chat.Participant, error) {
	p, err := s.chatRepo.FindParticipant(ctx, roomID, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, handleChatError(err)
	}
	if _, err := s.chatRepo.FindRoomByID(ctx, roomID); err != nil {
		return nil, handleChatError(err)
	}
	return nil, apperrors.ErrNotRoomMember
}

// --- Messages ---

func (s *chatService) SendMessage(ctx context.Context, userID string, req *dto.SendMessageRequest) (*chat.Message, error) {
	msgType := chat.MessageType(req.Type)
	if !msgType.Valid() {
		return nil, apperrors.ErrInvalidMessageType
	}
	if _, err := s.RequireMember(ctx, req.RoomID, userID); err != nil {
		return nil, err
	}

	msg := &chat.Message{
		RoomID:  req.RoomID,
		UserID:  userID,
		Content: req.Content,
		Type:    msgType,
	}
	switch msgType {
	case chat.MessageText:
		if strings.TrimSpace(req.Content) == "" {
			return nil, apperrors.ErrInvalidOperation("chat", "Text message content is required")
		}
	case chat.MessageImage, chat.MessageVideo, chat.MessageFile:
		if req.FileURL == nil || *req.FileURL == "" {
			return nil, apperrors.ErrInvalidOperation("chat", "File url is required")
		}
		msg.FileURL = req.FileURL
		msg.FileName = req.FileName
		msg.FileSize = req.FileSize
	case chat.MessageMultiFile:
		if len(req.Files) == 0 {
			return nil, apperrors.ErrInvalidOperation("chat", "At least one file is required")
		}
		msg.Files = append(msg.Files, req.Files...)
	}

	if err := s.chatRepo.AppendMessage(ctx, msg); err != nil {
		return nil, handleChatError(err)
	}

	logger.CtxDebug(ctx, "message stored", "room_id", msg.RoomID, "message_id", msg.ID, "type", msg.Type)
	return msg, nil
}

// GetRoomMessages - от новых к старым, строго до курсора
func (s *chatService) GetRoomMessages(ctx context.Context, roomID string, limit int, before *chat.Cursor) ([]chat.Message, error) {
	messages, err := s.chatRepo.FindRoomMessages(ctx, roomID, before, clampLimit(limit))
	if err != nil {
		return nil, handleChatError(err)
	}
	return messages, nil
}

func (s *chatService) GetMessagePage(ctx context.Context, roomID, userID string, query *dto.MessagesQuery) (*dto.MessagePage, error) {
	if _, err := s.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	before, err := dto.DecodeCursor(query.Before)
	if err != nil {
		return nil, apperrors.NewBadRequestError("Invalid cursor")
	}

	limit := clampLimit(query.Limit)
	// на один больше, чтобы понять, есть ли следующая страница
	messages, err := s.chatRepo.FindRoomMessages(ctx, roomID, before, limit+1)
	if err != nil {
		return nil, handleChatError(err)
	}

	page := &dto.MessagePage{Messages: messages}
	if len(messages) > limit {
		page.Messages = messages[:limit]
		page.HasMore = true
		page.NextCursor = dto.EncodeCursor(page.Messages[limit-1].Cursor())
	}
	if page.Messages == nil {
		page.Messages = []chat.Message{}
	}
	return page, nil
}

// --- Read tracking ---

// UpdateLastRead возвращает false, если пользователь не участник комнаты
func (s *chatService) UpdateLastRead(ctx context.Context, roomID, userID, messageID string) (bool, error) {
	msg, err := s.chatRepo.FindMessageByID(ctx, messageID)
	if err != nil {
		return false, handleChatError(err)
	}
	if msg.RoomID != roomID {
		return false, apperrors.ErrMessageNotInRoom
	}

	ok, err := s.chatRepo.UpdateLastRead(ctx, roomID, userID, messageID)
	if err != nil {
		return false, handleChatError(err)
	}
	if !ok {
		logger.CtxDebug(ctx, "read pointer not updated: not a participant", "room_id", roomID)
	}
	return ok, nil
}

// GetUnreadCount - сообщения строго после lastRead в порядке (timestamp, id).
// Без lastRead, а также если сообщение lastRead удалено, считаются все сообщения.
func (s *chatService) GetUnreadCount(ctx context.Context, roomID, userID string) (int64, error) {
	p, err := s.chatRepo.FindParticipant(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return 0, nil
		}
		return 0, handleChatError(err)
	}

	if p.LastReadMessageID == nil {
		return s.countAll(ctx, roomID)
	}

	lastRead, err := s.chatRepo.FindMessageByID(ctx, *p.LastReadMessageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			logger.CtxWarn(ctx, "last read message is missing, counting all messages",
				"room_id", roomID,
				"message_id", *p.LastReadMessageID,
			)
			return s.countAll(ctx, roomID)
		}
		return 0, handleChatError(err)
	}

	count, err := s.chatRepo.CountMessagesAfter(ctx, roomID, lastRead.Cursor())
	if err != nil {
		return 0, handleChatError(err)
	}
	return count, nil
}

func (s *chatService) countAll(ctx context.Context, roomID string) (int64, error) {
	count, err := s.chatRepo.CountMessages(ctx, roomID)
	if err != nil {
		return 0, handleChatError(err)
	}
	return count, nil
}

// --- helpers ---

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

// uniqueIDs - id без повторов, пустых значений и exclude, порядок сохраняется
func uniqueIDs(ids []string, exclude string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dmRoomName(userA, userB, nameA, nameB string) string {
	if nameA == "" {
		nameA = userA
	}
	if nameB == "" {
		nameB = userB
	}
	return nameA + ", " + nameB
}

func handleChatError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrRoomNotFound):
		return apperrors.ErrRoomNotFound.WithError(err)
	case errors.Is(err, repositories.ErrMessageNotFound):
		return apperrors.ErrMessageNotFound.WithError(err)
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return apperrors.ErrNotRoomMember.WithError(err)
	case errors.Is(err, repositories.ErrDuplicateDMKey):
		return apperrors.ErrConflict(err, "chat", "Direct room already exists")
	}
	return apperrors.DatabaseError(err)
}
