package ws

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var ErrManagerStopped = errors.New("ws manager stopped")

func (m *Manager) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
}

// checkOrigin - без списка разрешённых origin принимается любой
func (m *Manager) checkOrigin(r *http.Request) bool {
	if len(m.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range m.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Serve обновляет соединение и запускает его read/write циклы.
// userID уже проверен вызывающим (токен рукопожатия).
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := m.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам ответил клиенту ошибкой
		return err
	}

	client := newClient(m, conn, userID)
	if !m.Register(client) {
		client.cancel()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return ErrManagerStopped
	}

	go client.writePump()
	go client.readPump()
	return nil
}
