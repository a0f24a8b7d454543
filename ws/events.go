package ws

import (
	"context"
	"time"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"

	"github.com/rs/xid"
)

type eventHandler func(m *Manager, ctx context.Context, c *Client, data []byte) (any, error)

var eventHandlers = map[string]eventHandler{
	EventJoinRoom:      (*Manager).handleJoinRoom,
	EventLeaveRoom:     (*Manager).handleLeaveRoom,
	EventSendMessage:   (*Manager).handleSendMessage,
	EventMarkAsRead:    (*Manager).handleMarkAsRead,
	EventCreateRoom:    (*Manager).handleCreateRoom,
	EventGetUserRooms:  (*Manager).handleGetUserRooms,
	EventGetOrCreateDM: (*Manager).handleGetOrCreateDM,
}

// Payloads. userId в кадре необязателен: пользователь берётся из токена,
// несовпадающий userId отклоняется.

type joinRoomPayload struct {
	UserID string `json:"userId" validate:"omitempty,max=64"`
	dto.JoinRoomRequest
}

type leaveRoomPayload struct {
	UserID string `json:"userId" validate:"omitempty,max=64"`
	RoomID string `json:"roomId" validate:"required,max=36"`
}

type sendMessagePayload struct {
	UserID string `json:"userId" validate:"omitempty,max=64"`
	dto.SendMessageRequest
}

type markAsReadPayload struct {
	UserID string `json:"userId" validate:"omitempty,max=64"`
	dto.MarkAsReadRequest
}

type createRoomPayload struct {
	UserID string `json:"userId" validate:"omitempty,max=64"`
	dto.CreateRoomRequest
}

type userRoomsPayload struct {
	UserID string `json:"userId" validate:"omitempty,max=64"`
}

type dmPayload struct {
	UserID1   string `json:"userId1" validate:"omitempty,max=64"`
	UserID2   string `json:"userId2" validate:"required,max=64"`
	UserName1 string `json:"userName1" validate:"omitempty,max=255"`
	UserName2 string `json:"userName2" validate:"omitempty,max=255"`
}

// membershipEvent - тело user_joined / user_left
type membershipEvent struct {
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

var errUserMismatch = apperrors.NewForbiddenError("userId does not match the authenticated user")

// dispatch выполняет событие и отвечает на ack результатом или отказом
func (m *Manager) dispatch(c *Client, frame *inboundFrame) {
	ctx := logger.WithRequestID(c.ctx, xid.New().String())

	handler, ok := eventHandlers[frame.Event]
	if !ok {
		logger.WSLog(frame.Event, c.UserID, "", apperrors.NewBadRequestError("unknown event"))
		m.fail(c, frame, apperrors.NewBadRequestError("Unknown event: "+frame.Event))
		return
	}

	result, err := handler(m, ctx, c, frame.Data)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.HTTPCode < 500 {
			logger.CtxWarn(ctx, "ws event rejected", "event", frame.Event, "reason", appErr.Code, "message", appErr.Message)
		} else {
			logger.CtxWithError(ctx, "ws event failed", err, "event", frame.Event)
		}
		m.fail(c, frame, err)
		return
	}

	logger.WSLog(frame.Event, c.UserID, "", nil)
	c.reply(frame.Ack, result)
}

// fail отвечает на ack, а без ack шлёт событие error
func (m *Manager) fail(c *Client, frame *inboundFrame, err error) {
	f := failureOf(err)
	if len(frame.Ack) > 0 {
		c.reply(frame.Ack, f)
		return
	}
	f.Event = frame.Event
	c.emit(EventError, f)
}

func authorize(c *Client, claimed string) error {
	if claimed != "" && claimed != c.UserID {
		return errUserMismatch
	}
	return nil
}

// handleJoinRoom - комната по id или по имени (создаётся при промахе),
// затем членство, подписка и начальное состояние комнаты для клиента
func (m *Manager) handleJoinRoom(ctx context.Context, c *Client, data []byte) (any, error) {
	var p joinRoomPayload
	if err := decodePayload(m.validator, data, &p); err != nil {
		return nil, err
	}
	if err := authorize(c, p.UserID); err != nil {
		return nil, err
	}

	room, err := m.resolveRoom(ctx, p.RoomID, p.RoomName)
	if err != nil {
		return nil, err
	}
	// роль существующего участника (например owner) не понижается
	if _, err := m.chatService.EnsureParticipant(ctx, room.ID, c.UserID); err != nil {
		return nil, err
	}
	if err := m.Subscribe(ctx, c, room.ID); err != nil {
		// без записи присутствия пользователь получит лишний push, не более
		logger.CtxWarn(ctx, "presence join failed", "room_id", room.ID, "error", err)
	}

	if err := m.BroadcastToRoom(ctx, room.ID, EventUserJoined, membershipEvent{
		UserID:    c.UserID,
		RoomID:    room.ID,
		Timestamp: time.Now(),
	}); err != nil {
		logger.CtxWarn(ctx, "user_joined broadcast failed", "room_id", room.ID, "error", err)
	}

	c.emit(EventRoomInfo, room)

	messages, err := m.chatService.GetRoomMessages(ctx, room.ID, m.opts.HistoryLimit, nil)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	c.emit(EventRoomMessages, messages)

	count, err := m.chatService.GetUnreadCount(ctx, room.ID, c.UserID)
	if err != nil {
		return nil, err
	}
	c.emit(EventUnreadCount, dto.UnreadCountResponse{RoomID: room.ID, Count: count})

	logger.CtxInfo(ctx, "user joined room", "room_id", room.ID)
	return Result{Success: true, RoomID: room.ID}, nil
}

func (m *Manager) resolveRoom(ctx context.Context, roomID, roomName string) (*chat.Room, error) {
	if roomName == "" {
		if roomID == "" {
			return nil, apperrors.ErrInvalidOperation("chat", "roomId or roomName is required")
		}
		return m.chatService.GetRoom(ctx, roomID)
	}

	room, err := m.chatService.GetRoomByName(ctx, roomName)
	if err == nil {
		return room, nil
	}
	if !apperrors.Is(err, apperrors.ErrRoomNotFound) {
		return nil, err
	}
	description := "Chat room: " + roomName
	logger.CtxDebug(ctx, "room not found by name, creating", "room_name", roomName)
	return m.chatService.CreateRoom(ctx, roomName, &description, nil)
}

func (m *Manager) handleLeaveRoom(ctx context.Context, c *Client, data []byte) (any, error) {
	var p leaveRoomPayload
	if err := decodePayload(m.validator, data, &p); err != nil {
		return nil, err
	}
	if err := authorize(c, p.UserID); err != nil {
		return nil, err
	}

	// выход из комнаты касается всех вкладок пользователя
	m.UnsubscribeUser(ctx, c.UserID, p.RoomID)
	if err := m.chatService.LeaveRoom(ctx, p.RoomID, c.UserID); err != nil {
		return nil, err
	}

	if err := m.BroadcastToRoom(ctx, p.RoomID, EventUserLeft, membershipEvent{
		UserID:    c.UserID,
		RoomID:    p.RoomID,
		Timestamp: time.Now(),
	}); err != nil {
		logger.CtxWarn(ctx, "user_left broadcast failed", "room_id", p.RoomID, "error", err)
	}
	return Result{Success: true, RoomID: p.RoomID}, nil
}

// handleSendMessage - сначала запись, потом broadcast, потом push отсутствующим.
// Несохранённое сообщение никому не рассылается.
func (m *Manager) handleSendMessage(ctx context.Context, c *Client, data []byte) (any, error) {
	var p sendMessagePayload
	if err := decodePayload(m.validator, data, &p); err != nil {
		return nil, err
	}
	if err := authorize(c, p.UserID); err != nil {
		return nil, err
	}

	msg, err := m.chatService.SendMessage(ctx, c.UserID, &p.SendMessageRequest)
	if err != nil {
		return nil, err
	}

	if err := m.BroadcastToRoom(ctx, msg.RoomID, EventNewMessage, msg); err != nil {
		logger.CtxWithError(ctx, "new_message broadcast failed", err, "room_id", msg.RoomID, "message_id", msg.ID)
	}
	m.notifyAbsent(ctx, msg)
	return msg, nil
}

// notifyAbsent ставит push участникам, которые сейчас не подключены к комнате.
// Ошибки только логируются: доставка push не влияет на отправку сообщения.
func (m *Manager) notifyAbsent(ctx context.Context, msg *chat.Message) {
	room, err := m.chatService.GetRoom(ctx, msg.RoomID)
	if err != nil {
		logger.CtxWithError(ctx, "push fan-out: room lookup failed", err, "room_id", msg.RoomID)
		return
	}
	participants, err := m.chatService.GetRoomParticipants(ctx, msg.RoomID)
	if err != nil {
		logger.CtxWithError(ctx, "push fan-out: participants lookup failed", err, "room_id", msg.RoomID)
		return
	}
	present, err := m.presence.Present(ctx, msg.RoomID)
	if err != nil {
		// лучше лишний push, чем пропущенный
		logger.CtxWarn(ctx, "push fan-out: presence lookup failed, notifying everyone", "room_id", msg.RoomID, "error", err)
		present = map[string]struct{}{}
	}

	recipients := AbsentRecipients(participants, present, msg.UserID)
	logger.CtxDebug(ctx, "push fan-out targets",
		"room_id", msg.RoomID,
		"targets", len(recipients),
		"participants", len(participants),
		"present", len(present),
	)
	if len(recipients) == 0 {
		return
	}

	queued, err := m.pushService.NotifyRoomMessage(ctx, room, msg, recipients)
	if err != nil {
		logger.CtxWithError(ctx, "push fan-out: enqueue failed", err, "room_id", msg.RoomID, "queued", queued)
		return
	}
	logger.CtxInfo(ctx, "push notifications queued", "room_id", msg.RoomID, "count", queued)
}

// AbsentRecipients - участники комнаты кроме отправителя и подключённых к ней
func AbsentRecipients(participants []chat.Participant, present map[string]struct{}, senderID string) []string {
	recipients := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.UserID == senderID {
			continue
		}
		if _, ok := present[p.UserID]; ok {
			continue
		}
		recipients = append(recipients, p.UserID)
	}
	return recipients
}

func (m *Manager) handleMarkAsRead(ctx context.Context, c *Client, data []byte) (any, error) {
	var p markAsReadPayload
	if err := decodePayload(m.validator, data, &p); err != nil {
		return nil, err
	}
	if err := authorize(c, p.UserID); err != nil {
		return nil, err
	}

	ok, err := m.chatService.UpdateLastRead(ctx, p.RoomID, c.UserID, p.MessageID)
	if err != nil {
		return nil, err
	}
	return Result{Success: ok}, nil
}

func (m *Manager) handleCreateRoom(ctx context.Context, c *Client, data []byte) (any, error) {
	var p createRoomPayload
	if err := decodePayload(m.validator, data, &p); err != nil {
		return nil, err
	}
	if err := authorize(c, p.UserID); err != nil {
		return nil, err
	}

	room, err := m.chatService.CreateRoomWithMembers(ctx, c.UserID, &p.CreateRoomRequest)
	if err != nil {
		return nil, err
	}
	if err := m.Subscribe(ctx, c, room.ID); err != nil {
		logger.CtxWarn(ctx, "presence join failed", "room_id", room.ID, "error", err)
	}

	c.emit(EventRoomCreated, room)
	return room, nil
}

func (m *Manager) handleGetUserRooms(ctx context.Context, c *Client, data []byte) (any, error) {
	var p userRoomsPayload
	if err := decodePayload(m.validator, data, &p); err != nil {
		return nil, err
	}
	if err := authorize(c, p.UserID); err != nil {
		return nil, err
	}

	rooms, err := m.chatService.GetUserRoomsWithUnread(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []chat.RoomWithUnread{}
	}
	return rooms, nil
}

// handleGetOrCreateDM - вызывающий должен быть одной из сторон диалога
func (m *Manager) handleGetOrCreateDM(ctx context.Context, c *Client, data []byte) (any, error) {
	var p dmPayload
	if err := decodePayload(m.validator, data, &p); err != nil {
		return nil, err
	}
	if p.UserID1 == "" {
		p.UserID1 = c.UserID
	}
	if p.UserID1 != c.UserID && p.UserID2 != c.UserID {
		return nil, errUserMismatch
	}

	return m.chatService.FindOrCreateDMRoom(ctx, p.UserID1, p.UserID2, p.UserName1, p.UserName2)
}
