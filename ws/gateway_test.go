package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/presence"
	"suchat_backend/internal/pubsub"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/repositories/memory"
	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"
	"suchat_backend/internal/validator"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

type capturingNotifier struct {
	mu   sync.Mutex
	jobs []notification.SendPushJob
}

func (n *capturingNotifier) Enqueue(_ context.Context, job notification.SendPushJob) (queue.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return queue.Handle{ID: job.UserID}, nil
}

func (n *capturingNotifier) forUser(userID string) []notification.SendPushJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.SendPushJob
	for _, j := range n.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out
}

type gateway struct {
	server   *httptest.Server
	chat     services.ChatService
	notifier *capturingNotifier
}

// newGateway - менеджер поверх памяти; пользователь берётся из ?user=
func newGateway(t *testing.T) *gateway {
	t.Helper()
	store := memory.New()
	notifier := &capturingNotifier{}
	chatSvc := services.NewChatService(store.Chat)
	pushSvc := services.NewPushService(store.Subscriptions, notifier, "")

	m := NewManager(presence.NewLocal(), pubsub.NewLocal(), chatSvc, pushSvc, validator.New(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = m.Serve(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &gateway{server: srv, chat: chatSvc, notifier: notifier}
}

func (g *gateway) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, ack int, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "ack": ack, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

// waitAck читает кадры до ответа на ack; события по пути собираются по имени
func waitAck(t *testing.T, conn *websocket.Conn, ack int) (json.RawMessage, map[string]json.RawMessage) {
	t.Helper()
	events := map[string]json.RawMessage{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame struct {
			Event string          `json:"event"`
			Ack   *int            `json:"ack"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		if frame.Ack != nil && *frame.Ack == ack {
			return frame.Data, events
		}
		if frame.Event != "" {
			events[frame.Event] = frame.Data
		}
	}
}

func TestGateway_PushGoesOnlyToAbsentParticipants(t *testing.T) {
	g := newGateway(t)
	room, err := g.chat.CreateRoomWithMembers(context.Background(), "alice", &dto.CreateRoomRequest{
		Name:           "Team",
		ParticipantIDs: []string{"bob"},
	})
	require.NoError(t, err)

	alice := g.dial(t, "alice")
	send(t, alice, EventJoinRoom, 1, map[string]string{"roomId": room.ID})
	joined, events := waitAck(t, alice, 1)

	var result Result
	require.NoError(t, json.Unmarshal(joined, &result))
	assert.True(t, result.Success)
	assert.Equal(t, room.ID, result.RoomID)
	assert.Contains(t, events, EventRoomInfo)
	assert.Contains(t, events, EventRoomMessages)
	assert.Contains(t, events, EventUnreadCount)

	send(t, alice, EventSendMessage, 2, map[string]string{"roomId": room.ID, "type": "text", "content": "hello bob"})
	raw, _ := waitAck(t, alice, 2)

	var msg chat.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "hello bob", msg.Content)
	assert.Equal(t, "alice", msg.UserID)

	bobJobs := g.notifier.forUser("bob")
	require.Len(t, bobJobs, 1)
	assert.Equal(t, "room-"+room.ID, bobJobs[0].Tag)
	assert.Empty(t, g.notifier.forUser("alice"))
}

func TestGateway_ConnectedParticipantGetsBroadcastNotPush(t *testing.T) {
	g := newGateway(t)
	room, err := g.chat.CreateRoomWithMembers(context.Background(), "alice", &dto.CreateRoomRequest{
		Name:           "Team",
		ParticipantIDs: []string{"bob", "carol"},
	})
	require.NoError(t, err)

	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")
	send(t, alice, EventJoinRoom, 1, map[string]string{"roomId": room.ID})
	waitAck(t, alice, 1)
	send(t, bob, EventJoinRoom, 1, map[string]string{"roomId": room.ID})
	waitAck(t, bob, 1)

	send(t, alice, EventSendMessage, 2, map[string]string{"roomId": room.ID, "type": "text", "content": "hi all"})
	waitAck(t, alice, 2)

	// bob получает new_message через broadcast; следующий ack гарантирует, что кадр уже прочитан
	send(t, bob, EventGetUserRooms, 3, map[string]string{})
	_, events := waitAck(t, bob, 3)
	require.Contains(t, events, EventNewMessage)

	assert.Empty(t, g.notifier.forUser("bob"))
	assert.Len(t, g.notifier.forUser("carol"), 1)
}

func TestGateway_LeaveRoomStopsEveryConnectionOfUser(t *testing.T) {
	g := newGateway(t)
	room, err := g.chat.CreateRoomWithMembers(context.Background(), "alice", &dto.CreateRoomRequest{
		Name:           "Team",
		ParticipantIDs: []string{"bob", "carol"},
	})
	require.NoError(t, err)

	alice := g.dial(t, "alice")
	laptop := g.dial(t, "bob")
	phone := g.dial(t, "bob")
	for _, conn := range []*websocket.Conn{alice, laptop, phone} {
		send(t, conn, EventJoinRoom, 1, map[string]string{"roomId": room.ID})
		waitAck(t, conn, 1)
	}

	send(t, laptop, EventLeaveRoom, 2, map[string]string{"roomId": room.ID})
	raw, _ := waitAck(t, laptop, 2)
	var result Result
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result.Success)

	send(t, alice, EventSendMessage, 2, map[string]string{"roomId": room.ID, "type": "text", "content": "still there?"})
	_, events := waitAck(t, alice, 2)
	assert.Contains(t, events, EventUserLeft)

	// второе соединение bob больше не получает кадры комнаты
	send(t, phone, EventGetUserRooms, 3, map[string]string{})
	_, events = waitAck(t, phone, 3)
	assert.NotContains(t, events, EventNewMessage)
}

func TestManager_UserLeftFromPeerDetachesLocalConnections(t *testing.T) {
	ctx := context.Background()
	registry := presence.NewLocal()
	m := NewManager(registry, pubsub.NewLocal(), nil, nil, validator.New(), Options{})

	bobTab := newClient(m, nil, "bob")
	bobPhone := newClient(m, nil, "bob")
	carol := newClient(m, nil, "carol")
	m.mu.Lock()
	for _, c := range []*Client{bobTab, bobPhone, carol} {
		m.clients[c] = struct{}{}
	}
	m.mu.Unlock()
	for _, c := range []*Client{bobTab, bobPhone, carol} {
		require.NoError(t, m.Subscribe(ctx, c, "r1"))
	}

	// кадр пришёл с шины от другого процесса, где bob вышел из комнаты
	frame, err := encodeEvent(EventUserLeft, membershipEvent{UserID: "bob", RoomID: "r1", Timestamp: time.Now()})
	require.NoError(t, err)
	m.deliver("r1", frame)

	assert.False(t, m.IsSubscribed(bobTab, "r1"))
	assert.False(t, m.IsSubscribed(bobPhone, "r1"))
	assert.True(t, m.IsSubscribed(carol, "r1"))

	present, err := registry.Present(ctx, "r1")
	require.NoError(t, err)
	assert.NotContains(t, present, "bob")
	assert.Contains(t, present, "carol")

	// другие события соединения не снимают
	frame, err = encodeEvent(EventUserJoined, membershipEvent{UserID: "carol", RoomID: "r1"})
	require.NoError(t, err)
	m.deliver("r1", frame)
	assert.True(t, m.IsSubscribed(carol, "r1"))
}

func TestGateway_FailuresAreReportedPerFrame(t *testing.T) {
	g := newGateway(t)
	conn := g.dial(t, "alice")

	send(t, conn, "dance", 1, map[string]string{})
	raw, _ := waitAck(t, conn, 1)
	var f Failure
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.False(t, f.Success)
	assert.Equal(t, "VALIDATION_FAILED", f.Reason)

	send(t, conn, EventSendMessage, 2, map[string]string{"userId": "mallory", "roomId": "r1", "type": "text", "content": "x"})
	raw, _ = waitAck(t, conn, 2)
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, "FORBIDDEN", f.Reason)

	// после отказов соединение продолжает работать
	send(t, conn, EventGetUserRooms, 3, map[string]string{})
	raw, _ = waitAck(t, conn, 3)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestAbsentRecipients(t *testing.T) {
	participants := []chat.Participant{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}}
	present := map[string]struct{}{"carol": {}}

	assert.Equal(t, []string{"bob"}, AbsentRecipients(participants, present, "alice"))
	assert.Equal(t, []string{"bob", "carol"}, AbsentRecipients(participants, map[string]struct{}{}, "alice"))
}

func TestParseFrame(t *testing.T) {
	var p fastjson.Parser

	frame, err := parseFrame(&p, []byte(`{"event":"join_room","ack":"a-1","data":{"roomId":"r1"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoinRoom, frame.Event)
	assert.Equal(t, `"a-1"`, string(frame.Ack))
	assert.JSONEq(t, `{"roomId":"r1"}`, string(frame.Data))

	frame, err = parseFrame(&p, []byte(`{"event":"get_user_rooms"}`))
	require.NoError(t, err)
	assert.Nil(t, frame.Ack)
	assert.Nil(t, frame.Data)

	for _, raw := range []string{`not json`, `{"ack":1}`, `{"event":"x","data":[1]}`} {
		_, err := parseFrame(&p, []byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestFailureOf_HidesInternalErrors(t *testing.T) {
	f := failureOf(assert.AnError)
	assert.Equal(t, "INTERNAL_ERROR", f.Reason)
	assert.Equal(t, "Internal server error", f.Message)
}
