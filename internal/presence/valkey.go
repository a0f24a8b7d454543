package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"suchat_backend/internal/logger"

	"github.com/valkey-io/valkey-go"
)

// Valkey - общий реестр для нескольких процессов.
//
// Ключи:
//
//	<prefix>presence:<room>:<instance>  hash user -> число соединений, с TTL
//	<prefix>presence:<room>:instances   set инстансов с соединениями в комнате
//
// Каждый процесс продлевает свои ключи через Heartbeat; записи упавшего
// процесса истекают сами.
type Valkey struct {
	client     valkey.Client
	prefix     string
	instanceID string
	ttl        time.Duration
	local      *Local
}

func NewValkey(client valkey.Client, prefix, instanceID string, ttl time.Duration) *Valkey {
	return &Valkey{
		client:     client,
		prefix:     prefix,
		instanceID: instanceID,
		ttl:        ttl,
		local:      NewLocal(),
	}
}

func (v *Valkey) roomKey(roomID, instanceID string) string {
	return fmt.Sprintf("%spresence:%s:%s", v.prefix, roomID, instanceID)
}

func (v *Valkey) instancesKey(roomID string) string {
	return fmt.Sprintf("%spresence:%s:instances", v.prefix, roomID)
}

func (v *Valkey) seconds() int64 {
	return int64(v.ttl / time.Second)
}

// write синхронизирует счётчик пользователя этого инстанса с общим реестром
func (v *Valkey) write(ctx context.Context, roomID, userID string, count int) error {
	key := v.roomKey(roomID, v.instanceID)
	var cmds valkey.Commands
	if count > 0 {
		cmds = append(cmds,
			v.client.B().Hset().Key(key).FieldValue().FieldValue(userID, strconv.Itoa(count)).Build(),
			v.client.B().Expire().Key(key).Seconds(v.seconds()).Build(),
			v.client.B().Sadd().Key(v.instancesKey(roomID)).Member(v.instanceID).Build(),
			v.client.B().Expire().Key(v.instancesKey(roomID)).Seconds(v.seconds()).Build(),
		)
	} else {
		cmds = append(cmds, v.client.B().Hdel().Key(key).Field(userID).Build())
	}

	for _, res := range v.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("presence write: %w", err)
		}
	}
	return nil
}

func (v *Valkey) Join(ctx context.Context, roomID, userID string) error {
	return v.write(ctx, roomID, userID, v.local.join(roomID, userID))
}

func (v *Valkey) Leave(ctx context.Context, roomID, userID string) error {
	return v.write(ctx, roomID, userID, v.local.leave(roomID, userID))
}

func (v *Valkey) Present(ctx context.Context, roomID string) (map[string]struct{}, error) {
	instances, err := v.client.Do(ctx, v.client.B().Smembers().Key(v.instancesKey(roomID)).Build()).AsStrSlice()
	if err != nil && !valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("presence instances: %w", err)
	}

	present := make(map[string]struct{})
	for _, instanceID := range instances {
		users, err := v.client.Do(ctx, v.client.B().Hkeys().Key(v.roomKey(roomID, instanceID)).Build()).AsStrSlice()
		if err != nil && !valkey.IsValkeyNil(err) {
			return nil, fmt.Errorf("presence users: %w", err)
		}
		if len(users) == 0 && instanceID != v.instanceID {
			// ключ истёк: инстанс больше не продлевает присутствие
			_ = v.client.Do(ctx, v.client.B().Srem().Key(v.instancesKey(roomID)).Member(instanceID).Build()).Error()
			continue
		}
		for _, userID := range users {
			present[userID] = struct{}{}
		}
	}

	// локальные соединения видны сразу, даже если valkey отстаёт
	local, _ := v.local.Present(ctx, roomID)
	for userID := range local {
		present[userID] = struct{}{}
	}
	return present, nil
}

func (v *Valkey) Heartbeat(ctx context.Context) error {
	for roomID, users := range v.local.snapshot() {
		for userID, count := range users {
			if err := v.write(ctx, roomID, userID, count); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Valkey) Close(ctx context.Context) error {
	for roomID := range v.local.snapshot() {
		cmds := valkey.Commands{
			v.client.B().Del().Key(v.roomKey(roomID, v.instanceID)).Build(),
			v.client.B().Srem().Key(v.instancesKey(roomID)).Member(v.instanceID).Build(),
		}
		for _, res := range v.client.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				logger.Warn("presence cleanup failed", "room_id", roomID, "error", err)
			}
		}
	}
	return v.local.Close(ctx)
}
