package ws

import (
	"context"
	"sync"
	"time"

	"suchat_backend/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/valyala/fastjson"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client - одно websocket-соединение аутентифицированного пользователя
type Client struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	send    chan []byte
	manager *Manager
	ctx     context.Context
	cancel  context.CancelFunc

	// rooms защищена manager.mu
	rooms map[string]struct{}

	mu     sync.Mutex
	closed bool
}

func newClient(m *Manager, conn *websocket.Conn, userID string) *Client {
	id := xid.New().String()
	ctx := logger.WithConnID(logger.WithUserID(context.Background(), userID), id)
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		ID:      id,
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, m.opts.SendBuffer),
		manager: m,
		ctx:     ctx,
		cancel:  cancel,
		rooms:   make(map[string]struct{}),
	}
}

// enqueue не блокируется: false, если очередь заполнена или закрыта
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// emit отправляет событие только этому соединению
func (c *Client) emit(event string, data any) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		logger.CtxWithError(c.ctx, "failed to encode ws event", err, "event", event)
		return
	}
	if !c.enqueue(frame) {
		logger.CtxWarn(c.ctx, "ws frame dropped", "event", event)
	}
}

func (c *Client) reply(ack []byte, data any) {
	if len(ack) == 0 {
		return
	}
	frame, err := encodeAck(ack, data)
	if err != nil {
		logger.CtxWithError(c.ctx, "failed to encode ws ack", err)
		return
	}
	if !c.enqueue(frame) {
		logger.CtxWarn(c.ctx, "ws ack dropped")
	}
}

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.manager.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.manager.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// кадры соединения обрабатываются по очереди, парсер переиспользуется
	var parser fastjson.Parser
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.CtxWarn(c.ctx, "ws read error", "error", err)
			}
			return
		}

		frame, err := parseFrame(&parser, raw)
		if err != nil {
			logger.CtxWarn(c.ctx, "malformed ws frame", "error", err)
			c.emit(EventError, failureOf(err))
			continue
		}
		c.manager.dispatch(c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// менеджер закрыл очередь
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.CtxWarn(c.ctx, "ws write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
