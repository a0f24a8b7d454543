package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"suchat_backend/internal/logger"

	"github.com/valkey-io/valkey-go"
	"github.com/valyala/fastjson"
)

type envelope struct {
	RoomID string          `json:"roomId"`
	Frame  json.RawMessage `json:"frame"`
}

// Valkey - шина через один pub/sub канал на все комнаты: каждый процесс
// получает все кадры и раздаёт их своим соединениям.
type Valkey struct {
	client  valkey.Client
	channel string
}

func NewValkey(client valkey.Client, prefix string) *Valkey {
	return &Valkey{client: client, channel: prefix + "rooms"}
}

func (v *Valkey) Publish(ctx context.Context, roomID string, frame []byte) error {
	data, err := json.Marshal(envelope{RoomID: roomID, Frame: frame})
	if err != nil {
		return fmt.Errorf("marshal pubsub envelope: %w", err)
	}
	if err := v.client.Do(ctx, v.client.B().Publish().Channel(v.channel).Message(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("publish room frame: %w", err)
	}
	return nil
}

func (v *Valkey) Run(ctx context.Context, deliver Deliver) error {
	var parser fastjson.Parser
	backoff := 500 * time.Millisecond

	for {
		err := v.client.Receive(ctx, v.client.B().Subscribe().Channel(v.channel).Build(), func(msg valkey.PubSubMessage) {
			// колбэк вызывается последовательно, парсер можно переиспользовать
			val, err := parser.Parse(msg.Message)
			if err != nil {
				logger.Warn("malformed pubsub message", "error", err)
				return
			}
			roomID := string(val.GetStringBytes("roomId"))
			frame := val.Get("frame")
			if roomID == "" || frame == nil {
				return
			}
			deliver(roomID, frame.MarshalTo(nil))
		})
		if ctx.Err() != nil {
			return nil
		}

		logger.Warn("pubsub subscription lost, reconnecting", "channel", v.channel, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}
