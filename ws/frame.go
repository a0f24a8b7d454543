package ws

import (
	"bytes"
	"encoding/json"
	"errors"

	"suchat_backend/internal/validator"
	"suchat_backend/pkg/apperrors"

	"github.com/valyala/fastjson"
)

// Входящие события
const (
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
	EventSendMessage   = "send_message"
	EventMarkAsRead    = "mark_as_read"
	EventCreateRoom    = "create_room"
	EventGetUserRooms  = "get_user_rooms"
	EventGetOrCreateDM = "get_or_create_dm"
)

// Исходящие события
const (
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventRoomInfo     = "room_info"
	EventRoomMessages = "room_messages"
	EventUnreadCount  = "unread_count"
	EventNewMessage   = "new_message"
	EventRoomCreated  = "room_created"
	// EventError - ответ на кадр без ack, который не удалось обработать
	EventError = "error"
)

var errMalformedFrame = apperrors.NewBadRequestError("Malformed frame: expected {event, ack?, data?}")

// inboundFrame - {"event": "...", "ack": <any json>, "data": {...}}
type inboundFrame struct {
	Event string
	// Ack - сырое значение ack, возвращается клиенту как есть
	Ack  []byte
	Data []byte
}

type eventFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ackFrame struct {
	Ack  json.RawMessage `json:"ack"`
	Data any             `json:"data"`
}

// Result - ответ на ack
type Result struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId,omitempty"`
}

// Failure - ожидаемый отказ: {success: false, reason, message}
type Failure struct {
	Success bool              `json:"success"`
	Reason  string            `json:"reason"`
	Message string            `json:"message,omitempty"`
	Event   string            `json:"event,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// parseFrame читает только конверт; data разбирается обработчиком события
func parseFrame(p *fastjson.Parser, raw []byte) (*inboundFrame, error) {
	v, err := p.ParseBytes(raw)
	if err != nil {
		return nil, errMalformedFrame.WithError(err)
	}
	event := v.GetStringBytes("event")
	if len(event) == 0 {
		return nil, errMalformedFrame
	}

	frame := &inboundFrame{Event: string(event)}
	if ack := v.Get("ack"); ack != nil && ack.Type() != fastjson.TypeNull {
		frame.Ack = ack.MarshalTo(nil)
	}
	if data := v.Get("data"); data != nil && data.Type() != fastjson.TypeNull {
		if data.Type() != fastjson.TypeObject {
			return nil, errMalformedFrame
		}
		frame.Data = data.MarshalTo(nil)
	}
	return frame, nil
}

var userLeftPrefix = []byte(`{"event":"` + EventUserLeft + `"`)

// leftUserID - userId из кадра user_left, иначе пустая строка
func leftUserID(frame []byte) string {
	if !bytes.HasPrefix(frame, userLeftPrefix) {
		return ""
	}
	v, err := fastjson.ParseBytes(frame)
	if err != nil {
		return ""
	}
	return string(v.GetStringBytes("data", "userId"))
}

func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(eventFrame{Event: event, Data: data})
}

func encodeAck(ack []byte, data any) ([]byte, error) {
	return json.Marshal(ackFrame{Ack: ack, Data: data})
}

// decodePayload разбирает data события и проверяет его валидатором
func decodePayload(v *validator.Validator, data []byte, dst any) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.NewBadRequestError("Invalid payload: " + err.Error())
	}
	if err := v.Validate(dst); err != nil {
		var vErr *validator.ValidationError
		if errors.As(err, &vErr) {
			return apperrors.ValidationError(vErr.Errors)
		}
		return apperrors.InternalError(err)
	}
	return nil
}

// failureOf - ошибки приложения отдаются с кодом, прочие скрываются
func failureOf(err error) Failure {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.HTTPCode >= 500 {
		return Failure{Reason: string(apperrors.CodeInternalError), Message: "Internal server error"}
	}

	f := Failure{Reason: string(appErr.Code), Message: appErr.Message}
	if details, ok := appErr.Details.(map[string]string); ok {
		f.Details = details
	}
	return f
}
