package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"suchat_backend/internal/models/chat"
	"suchat_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_IsPublic(t *testing.T) {
	ts := helpers.NewTestServer(t)

	res, body := ts.SendRequest(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

// TestChat_RoomFlow - создание комнаты, список комнат участника, доступ посторонних
func TestChat_RoomFlow(t *testing.T) {
	ts := helpers.NewTestServer(t)
	alice := ts.Token(t, "alice")
	bob := ts.Token(t, "bob")
	mallory := ts.Token(t, "mallory")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/chat/rooms", alice, map[string]interface{}{
		"name":           "Project",
		"participantIds": []string{"bob", "carol"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)

	var room chat.Room
	require.NoError(t, json.Unmarshal([]byte(body), &room))
	require.NotEmpty(t, room.ID)
	assert.Nil(t, room.DMKey)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms", bob, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	var list struct {
		Rooms []chat.RoomWithUnread `json:"rooms"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, room.ID, list.Rooms[0].ID)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms/"+room.ID+"/participants", bob, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"count":3`)

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms/"+room.ID+"/messages", mallory, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/rooms/"+room.ID+"/messages?before=%25%25", bob, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// join добавляет постороннего как обычного участника
	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/chat/rooms/"+room.ID+"/join", mallory, map[string]interface{}{})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"role":"member"`)
}

func TestChat_DirectRoomIsReused(t *testing.T) {
	ts := helpers.NewTestServer(t)

	res, first := ts.SendRequest(t, http.MethodPost, "/api/v1/chat/rooms/dm", ts.Token(t, "alice"), map[string]interface{}{
		"userId": "bob",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, first)
	res, second := ts.SendRequest(t, http.MethodPost, "/api/v1/chat/rooms/dm", ts.Token(t, "bob"), map[string]interface{}{
		"userId": "alice",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, second)

	var a, b chat.Room
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	assert.Equal(t, a.ID, b.ID)

	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/chat/rooms/dm", ts.Token(t, "alice"), map[string]interface{}{
		"userId": "alice",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSchedule_HTTPFlow(t *testing.T) {
	ts := helpers.NewTestServer(t)
	alice := ts.Token(t, "alice")
	bob := ts.Token(t, "bob")
	carol := ts.Token(t, "carol")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/chat/rooms", alice, map[string]interface{}{
		"name":           "Planning",
		"participantIds": []string{"bob", "carol"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	var room chat.Room
	require.NoError(t, json.Unmarshal([]byte(body), &room))

	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/chat/schedule/"+room.ID, alice, map[string]interface{}{
		"title":                "Retro",
		"startDate":            "20300101100000",
		"notificationDateTime": "20300101090000",
		"participantIds":       []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	var created struct {
		Data chat.Schedule `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	scheduleID := created.Data.ID
	require.NotEmpty(t, scheduleID)

	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/chat/schedule/"+room.ID, alice, map[string]interface{}{
		"title":     "Bad date",
		"startDate": "2030-01-01 10:00",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/schedule/"+room.ID, carol, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.JSONEq(t, `{"success":true,"data":[]}`, body)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/chat/schedule/"+room.ID, bob, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, scheduleID)

	res, _ = ts.SendRequest(t, http.MethodPut, "/api/v1/chat/schedule/"+scheduleID, bob, map[string]interface{}{
		"title": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodDelete, "/api/v1/chat/schedule/"+scheduleID, alice, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
