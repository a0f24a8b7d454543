package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"suchat_backend/internal/models/chat"
	"suchat_backend/test/helpers"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribePush(t *testing.T, ts *helpers.TestServer, token, deviceID, endpoint string) {
	t.Helper()
	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/push/subscribe", token, map[string]interface{}{
		"endpoint": endpoint,
		"p256dh":   "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
		"auth":     "tBHItJI5svbpez7KI4CCXg",
		"deviceId": deviceID,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
}

// wsCall отправляет кадр и ждёт ответа на его ack
func wsCall(t *testing.T, conn *websocket.Conn, ack int, event string, data interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event": event, "ack": ack, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		var reply struct {
			Ack  *int            `json:"ack"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(frame, &reply))
		if reply.Ack != nil && *reply.Ack == ack {
			return reply.Data
		}
	}
}

// TestPush_AbsentParticipantReceivesRoomNotification - сообщение по websocket
// сохраняется, а участник без соединения получает push с тегом комнаты
func TestPush_AbsentParticipantReceivesRoomNotification(t *testing.T) {
	ts := helpers.NewTestServer(t)
	aliceToken := ts.Token(t, "alice")
	bobToken := ts.Token(t, "bob")

	subscribePush(t, ts, aliceToken, "alice-laptop", "https://push.example/alice")
	subscribePush(t, ts, bobToken, "bob-phone", "https://push.example/bob")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/chat/rooms", aliceToken, map[string]interface{}{
		"name":           "Weekend",
		"participantIds": []string{"bob", "carol"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	var room chat.Room
	require.NoError(t, json.Unmarshal([]byte(body), &room))

	conn := ts.DialWS(t, aliceToken)
	joined := wsCall(t, conn, 1, "join_room", map[string]string{"roomId": room.ID})
	assert.Contains(t, string(joined), `"success":true`)

	raw := wsCall(t, conn, 2, "send_message", map[string]string{
		"roomId":  room.ID,
		"type":    "text",
		"content": "Hike on Saturday?",
	})
	var msg chat.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.NotEmpty(t, msg.ID)

	// сообщение сохранено и видно через REST
	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms/"+room.ID+"/messages", bobToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, msg.ID)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms/"+room.ID+"/unread-count", bobToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"count":1`)

	// bob и carol не подключены: две задачи, у carol нет подписки
	assert.Equal(t, 2, ts.DrainPush(t))

	bobPushes := ts.Sender.Payloads(t, "https://push.example/bob")
	require.Len(t, bobPushes, 1)
	assert.Equal(t, "room-"+room.ID, bobPushes[0].Tag)
	assert.Equal(t, "Weekend", bobPushes[0].Title)
	assert.Equal(t, "Hike on Saturday?", bobPushes[0].Body)

	assert.Empty(t, ts.Sender.Payloads(t, "https://push.example/alice"))
}

func TestPush_TestNotificationAndUnsubscribe(t *testing.T) {
	ts := helpers.NewTestServer(t)
	token := ts.Token(t, "dave")

	res, _ := ts.SendRequest(t, http.MethodPost, "/api/v1/push/test", token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	subscribePush(t, ts, token, "dave-tablet", "https://push.example/dave")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/push/test", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, "jobId")

	assert.Equal(t, 1, ts.DrainPush(t))
	pushes := ts.Sender.Payloads(t, "https://push.example/dave")
	require.Len(t, pushes, 1)
	assert.Equal(t, "test-notification", pushes[0].Tag)

	res, body = ts.SendRequest(t, http.MethodDelete, "/api/v1/push/unsubscribe", token, map[string]interface{}{
		"deviceId": "dave-tablet",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.JSONEq(t, `{"success":true}`, body)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/push/subscriptions", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"count":0`)
}
