package memory

import (
	"context"
	"sort"
	"sync"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"
)

type participantKey struct {
	roomID string
	userID string
}

type chatRepository struct {
	mu           sync.RWMutex
	rooms        map[string]*chat.Room
	participants map[participantKey]*chat.Participant
	messages     map[string]*chat.Message
	// roomMessages - id сообщений комнаты в порядке добавления
	roomMessages map[string][]string
}

func NewChatRepository() repositories.ChatRepository {
	return &chatRepository{
		rooms:        make(map[string]*chat.Room),
		participants: make(map[participantKey]*chat.Participant),
		messages:     make(map[string]*chat.Message),
		roomMessages: make(map[string][]string),
	}
}

func copyRoom(r *chat.Room) *chat.Room {
	cp := *r
	cp.Description = cloneString(r.Description)
	cp.DMKey = cloneString(r.DMKey)
	cp.LastMessageID = cloneString(r.LastMessageID)
	cp.LastMessageAt = cloneTime(r.LastMessageAt)
	return &cp
}

func copyMessage(m *chat.Message) chat.Message {
	cp := *m
	cp.FileURL = cloneString(m.FileURL)
	cp.FileName = cloneString(m.FileName)
	if m.FileSize != nil {
		size := *m.FileSize
		cp.FileSize = &size
	}
	if m.Files != nil {
		cp.Files = append(cp.Files[:0:0], m.Files...)
	}
	return cp
}

func (r *chatRepository) CreateRoom(_ context.Context, room *chat.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room.DMKey != nil {
		for _, existing := range r.rooms {
			if existing.DMKey != nil && *existing.DMKey == *room.DMKey {
				return repositories.ErrDuplicateDMKey
			}
		}
	}
	if room.ID == "" {
		room.ID = newID()
	}
	ts := now()
	room.CreatedAt = ts
	room.UpdatedAt = ts
	r.rooms[room.ID] = copyRoom(room)
	return nil
}

func (r *chatRepository) FindRoomByID(_ context.Context, id string) (*chat.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, repositories.ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (r *chatRepository) findRoomBy(match func(*chat.Room) bool) (*chat.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// самая ранняя из совпавших, как First в sql-реализации
	var found *chat.Room
	for _, room := range r.rooms {
		if match(room) && (found == nil || room.CreatedAt.Before(found.CreatedAt)) {
			found = room
		}
	}
	if found == nil {
		return nil, repositories.ErrRoomNotFound
	}
	return copyRoom(found), nil
}

func (r *chatRepository) FindRoomByName(_ context.Context, name string) (*chat.Room, error) {
	return r.findRoomBy(func(room *chat.Room) bool { return room.Name == name })
}

func (r *chatRepository) FindRoomByDMKey(_ context.Context, dmKey string) (*chat.Room, error) {
	return r.findRoomBy(func(room *chat.Room) bool { return room.DMKey != nil && *room.DMKey == dmKey })
}

func (r *chatRepository) FindUserRooms(_ context.Context, userID string) ([]chat.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]chat.Room, 0)
	for key := range r.participants {
		if key.userID != userID {
			continue
		}
		if room, ok := r.rooms[key.roomID]; ok {
			rooms = append(rooms, *copyRoom(room))
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i].LastMessageAt, rooms[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r *chatRepository) UpsertParticipant(_ context.Context, p *chat.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Role == "" {
		p.Role = chat.RoleMember
	}
	key := participantKey{roomID: p.RoomID, userID: p.UserID}
	if existing, ok := r.participants[key]; ok {
		existing.Role = p.Role
		return nil
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now()
	}
	cp := *p
	cp.LastReadMessageID = cloneString(p.LastReadMessageID)
	r.participants[key] = &cp
	return nil
}

func (r *chatRepository) FindParticipant(_ context.Context, roomID, userID string) (*chat.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[participantKey{roomID: roomID, userID: userID}]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	cp := *p
	cp.LastReadMessageID = cloneString(p.LastReadMessageID)
	return &cp, nil
}

func (r *chatRepository) FindParticipants(_ context.Context, roomID string) ([]chat.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := make([]chat.Participant, 0)
	for key, p := range r.participants {
		if key.roomID == roomID {
			cp := *p
			cp.LastReadMessageID = cloneString(p.LastReadMessageID)
			participants = append(participants, cp)
		}
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].UserID < participants[j].UserID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

func (r *chatRepository) DeleteParticipant(_ context.Context, roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.participants, participantKey{roomID: roomID, userID: userID})
	return nil
}

func (r *chatRepository) UpdateLastRead(_ context.Context, roomID, userID, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantKey{roomID: roomID, userID: userID}]
	if !ok {
		return false, nil
	}
	id := messageID
	p.LastReadMessageID = &id
	return true, nil
}

func (r *chatRepository) AppendMessage(_ context.Context, msg *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[msg.RoomID]
	if !ok {
		return repositories.ErrRoomNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now()
	}
	if msg.ID == "" {
		msg.ID = chat.NewMessageID()
	}

	stored := copyMessage(msg)
	r.messages[msg.ID] = &stored
	r.roomMessages[msg.RoomID] = append(r.roomMessages[msg.RoomID], msg.ID)

	id, ts := msg.ID, msg.Timestamp
	room.LastMessageID = &id
	room.LastMessageAt = &ts
	room.UpdatedAt = now()

	if p, ok := r.participants[participantKey{roomID: msg.RoomID, userID: msg.UserID}]; ok {
		readID := msg.ID
		p.LastReadMessageID = &readID
	}
	return nil
}

func (r *chatRepository) FindMessageByID(_ context.Context, id string) (*chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, repositories.ErrMessageNotFound
	}
	cp := copyMessage(msg)
	return &cp, nil
}

func (r *chatRepository) FindRoomMessages(_ context.Context, roomID string, before *chat.Cursor, limit int) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.roomMessages[roomID]
	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		msg := r.messages[id]
		if before != nil && !msg.Before(*before) {
			continue
		}
		messages = append(messages, copyMessage(msg))
	}
	sortMessagesDesc(messages)
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (r *chatRepository) CountMessages(_ context.Context, roomID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.roomMessages[roomID])), nil
}

func (r *chatRepository) CountMessagesAfter(_ context.Context, roomID string, after chat.Cursor) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, id := range r.roomMessages[roomID] {
		if r.messages[id].After(after) {
			count++
		}
	}
	return count, nil
}
