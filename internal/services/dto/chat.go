package dto

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"suchat_backend/internal/models/chat"
)

// Request/Response structures

type CreateRoomRequest struct {
	Name           string   `json:"name" validate:"required,max=255"`
	Description    *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	ParticipantIDs []string `json:"participantIds,omitempty" validate:"omitempty,dive,required,max=64"`
}

type JoinRoomRequest struct {
	RoomID   string `json:"roomId" validate:"required_without=RoomName,max=36"`
	RoomName string `json:"roomName" validate:"omitempty,max=255"`
	Role     string `json:"role,omitempty" validate:"omitempty,is-room-role"`
}

type SendMessageRequest struct {
	RoomID   string                `json:"roomId" validate:"required,max=36"`
	Type     string                `json:"type" validate:"required,is-message-type"`
	Content  string                `json:"content" validate:"required_if=Type text,max=10000"`
	FileURL  *string               `json:"fileUrl,omitempty" validate:"omitempty,max=2048"`
	FileName *string               `json:"fileName,omitempty" validate:"omitempty,max=255"`
	FileSize *int64                `json:"fileSize,omitempty" validate:"omitempty,min=0"`
	Files    []chat.FileAttachment `json:"files,omitempty" validate:"required_if=Type multi-file,dive"`
}

type MarkAsReadRequest struct {
	RoomID    string `json:"roomId" validate:"required,max=36"`
	MessageID string `json:"messageId" validate:"required,max=36"`
}

type DMRequest struct {
	UserID     string `json:"userId" validate:"required,max=64"`
	UserName   string `json:"userName" validate:"omitempty,max=255"`
	MyUserName string `json:"myUserName" validate:"omitempty,max=255"`
}

// MessagesQuery - параметры страницы истории
type MessagesQuery struct {
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Before string `form:"before" validate:"omitempty,max=128"`
}

type MessagePage struct {
	Messages   []chat.Message `json:"messages"`
	NextCursor string         `json:"nextCursor,omitempty"`
	HasMore    bool           `json:"hasMore"`
}

type UnreadCountResponse struct {
	RoomID string `json:"roomId"`
	Count  int64  `json:"count"`
}

type ParticipantResponse struct {
	UserID   string               `json:"userId"`
	Role     chat.ParticipantRole `json:"role"`
	JoinedAt time.Time            `json:"joinedAt"`
}

var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor - непрозрачный курсор "unixMillis:id" в base64url
func EncodeCursor(c chat.Cursor) string {
	raw := strconv.FormatInt(c.Timestamp.UnixMilli(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (*chat.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ms, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &chat.Cursor{Timestamp: time.UnixMilli(millis).UTC(), ID: id}, nil
}
