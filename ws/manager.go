package ws

import (
	"context"
	"sync"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/presence"
	"suchat_backend/internal/pubsub"
	"suchat_backend/internal/services"
	"suchat_backend/internal/validator"
)

type Options struct {
	// HistoryLimit - размер последней страницы, отдаваемой на join_room
	HistoryLimit    int
	MaxMessageBytes int64
	SendBuffer      int
	// AllowedOrigins - пусто означает любой origin
	AllowedOrigins []string
}

// Manager - реестр соединений и broadcast-групп комнат этого процесса.
// Кадры комнат идут через Fabric, поэтому их получают соединения всех процессов.
type Manager struct {
	clients map[*Client]struct{}
	// rooms - локальные broadcast-группы: комната -> соединения
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	presence    presence.Registry
	fabric      pubsub.Fabric
	chatService services.ChatService
	pushService services.PushService
	validator   *validator.Validator
	opts        Options
}

func NewManager(
	registry presence.Registry,
	fabric pubsub.Fabric,
	chatService services.ChatService,
	pushService services.PushService,
	v *validator.Validator,
	opts Options,
) *Manager {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 64 * 1024
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Manager{
		clients:     make(map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		presence:    registry,
		fabric:      fabric,
		chatService: chatService,
		pushService: pushService,
		validator:   v,
		opts:        opts,
	}
}

// Run обслуживает регистрацию соединений и доставку кадров шины до отмены ctx.
func (m *Manager) Run(ctx context.Context) error {
	fabricDone := make(chan error, 1)
	go func() {
		fabricDone <- m.fabric.Run(ctx, m.deliver)
	}()

	defer close(m.done)
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = struct{}{}
			total := len(m.clients)
			m.mu.Unlock()
			logger.Info("ws client registered", "conn_id", client.ID, "user_id", client.UserID, "total", total)

		case client := <-m.unregister:
			m.remove(client)

		case <-ctx.Done():
			m.mu.RLock()
			clients := make([]*Client, 0, len(m.clients))
			for c := range m.clients {
				clients = append(clients, c)
			}
			m.mu.RUnlock()
			for _, c := range clients {
				m.remove(c)
			}
			err := <-fabricDone
			logger.Info("ws manager stopped")
			return err
		}
	}
}

// remove снимает соединение со всех комнат и закрывает его очередь отправки
func (m *Manager) remove(client *Client) {
	m.mu.Lock()
	if _, ok := m.clients[client]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, client)
	rooms := make([]string, 0, len(client.rooms))
	for roomID := range client.rooms {
		rooms = append(rooms, roomID)
		m.detach(roomID, client)
	}
	client.closeSend()
	total := len(m.clients)
	m.mu.Unlock()

	for _, roomID := range rooms {
		if err := m.presence.Leave(context.Background(), roomID, client.UserID); err != nil {
			logger.WSLog("disconnect", client.UserID, roomID, err)
		}
	}
	logger.Info("ws client unregistered", "conn_id", client.ID, "user_id", client.UserID, "total", total)
}

// detach вызывается под m.mu
func (m *Manager) detach(roomID string, client *Client) {
	delete(client.rooms, roomID)
	if group, ok := m.rooms[roomID]; ok {
		delete(group, client)
		if len(group) == 0 {
			delete(m.rooms, roomID)
		}
	}
}

// Subscribe добавляет соединение в broadcast-группу комнаты.
// Присутствие отмечается один раз на пару (соединение, комната).
func (m *Manager) Subscribe(ctx context.Context, client *Client, roomID string) error {
	m.mu.Lock()
	if _, ok := m.clients[client]; !ok {
		m.mu.Unlock()
		return nil
	}
	if _, ok := client.rooms[roomID]; ok {
		m.mu.Unlock()
		return nil
	}
	client.rooms[roomID] = struct{}{}
	group, ok := m.rooms[roomID]
	if !ok {
		group = make(map[*Client]struct{})
		m.rooms[roomID] = group
	}
	group[client] = struct{}{}
	m.mu.Unlock()

	return m.presence.Join(ctx, roomID, client.UserID)
}

// UnsubscribeUser снимает с комнаты все соединения пользователя в этом процессе.
// Возвращает число снятых соединений.
func (m *Manager) UnsubscribeUser(ctx context.Context, userID, roomID string) int {
	m.mu.Lock()
	var detached int
	for client := range m.rooms[roomID] {
		if client.UserID == userID {
			m.detach(roomID, client)
			detached++
		}
	}
	m.mu.Unlock()

	// присутствие считается по соединениям
	for i := 0; i < detached; i++ {
		if err := m.presence.Leave(ctx, roomID, userID); err != nil {
			logger.WSLog("leave", userID, roomID, err)
		}
	}
	return detached
}

// BroadcastToRoom публикует событие для всех соединений комнаты во всех процессах
func (m *Manager) BroadcastToRoom(ctx context.Context, roomID, event string, data any) error {
	frame, err := encodeEvent(event, data)
	if err != nil {
		return err
	}
	return m.fabric.Publish(ctx, roomID, frame)
}

// deliver раздаёт кадр шины локальным соединениям комнаты.
// user_left из любого процесса снимает здесь остальные соединения вышедшего.
func (m *Manager) deliver(roomID string, frame []byte) {
	m.mu.RLock()
	for client := range m.rooms[roomID] {
		if !client.enqueue(frame) {
			// очередь заполнена, клиент отключается
			logger.Warn("ws client disconnected due to full send channel", "conn_id", client.ID, "user_id", client.UserID)
			go m.Unregister(client)
		}
	}
	m.mu.RUnlock()

	if userID := leftUserID(frame); userID != "" {
		m.UnsubscribeUser(context.Background(), userID, roomID)
	}
}

// Unregister не блокируется после остановки менеджера
func (m *Manager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Register возвращает false, если менеджер уже остановлен
func (m *Manager) Register(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		return false
	}
}

// GetClientCount возвращает количество подключенных клиентов
func (m *Manager) GetClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsSubscribed - подписано ли соединение на комнату
func (m *Manager) IsSubscribed(client *Client, roomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := client.rooms[roomID]
	return ok
}
