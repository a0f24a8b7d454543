package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"suchat_backend/internal/models"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender отвечает заранее заданной ошибкой по endpoint
type fakeSender struct {
	mu       sync.Mutex
	errs     map[string]error
	payloads map[string][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{errs: map[string]error{}, payloads: map[string][]byte{}}
}

func (s *fakeSender) Send(_ context.Context, target notification.Target, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[target.Endpoint] = payload
	return s.errs[target.Endpoint]
}

func (s *fakeSender) sent(endpoint string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads[endpoint]
}

func subscribe(t *testing.T, repo repositories.PushSubscriptionRepository, userID, deviceID, endpoint string) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), &models.PushSubscription{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceType: "web",
		Endpoint:   endpoint,
		P256dh:     "key",
		Auth:       "auth",
	}))
}

func newDispatcher(subs repositories.PushSubscriptionRepository, sender notification.Sender) (*notification.Dispatcher, *queue.Queue) {
	q := queue.New("push-test", queue.NewMemoryStore(), queue.Options{Retries: 3, Backoff: 2 * time.Second})
	d := notification.NewDispatcher(subs, sender, q, notification.Defaults{
		Icon:  "/icons/icon-192x192.png",
		Badge: "/icons/badge.png",
	})
	return d, q
}

func TestDeliver_GoneDeactivatesOnlyThatSubscription(t *testing.T) {
	ctx := context.Background()
	subs := memory.NewPushSubscriptionRepository()
	subscribe(t, subs, "u1", "laptop", "https://push.example/laptop")
	subscribe(t, subs, "u1", "phone", "https://push.example/phone")

	sender := newFakeSender()
	sender.errs["https://push.example/phone"] = &notification.DeliveryError{StatusCode: http.StatusGone}
	d, _ := newDispatcher(subs, sender)

	result, err := d.Deliver(ctx, notification.SendPushJob{UserID: "u1", Title: "Hi", Body: "there"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Deactivated)
	assert.Equal(t, 0, result.Failed)

	active, err := subs.FindActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "laptop", active[0].DeviceID)
}

func TestDeliver_TransientErrorIsReturnedForRetry(t *testing.T) {
	ctx := context.Background()
	subs := memory.NewPushSubscriptionRepository()
	subscribe(t, subs, "u1", "laptop", "https://push.example/laptop")

	sender := newFakeSender()
	sender.errs["https://push.example/laptop"] = &notification.DeliveryError{StatusCode: http.StatusInternalServerError}
	d, _ := newDispatcher(subs, sender)

	result, err := d.Deliver(ctx, notification.SendPushJob{UserID: "u1", Title: "Hi"})
	require.Error(t, err)
	assert.Equal(t, 1, result.Failed)

	active, err := subs.FindActiveByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 1, "transient errors must not deactivate the subscription")
}

func TestDeliver_NoSubscriptions(t *testing.T) {
	d, _ := newDispatcher(memory.NewPushSubscriptionRepository(), newFakeSender())

	result, err := d.Deliver(context.Background(), notification.SendPushJob{UserID: "nobody"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "no subscriptions", result.Message)
}

func TestRender_FillsDefaults(t *testing.T) {
	d, _ := newDispatcher(memory.NewPushSubscriptionRepository(), newFakeSender())

	raw, err := d.Render(notification.SendPushJob{UserID: "u1", Title: "T", Body: "B"})
	require.NoError(t, err)

	var p notification.Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "/icons/icon-192x192.png", p.Icon)
	assert.Equal(t, "/icons/badge.png", p.Badge)
	assert.NotNil(t, p.Data)
	assert.Regexp(t, `^msg-\d+$`, p.Tag)

	raw, err = d.Render(notification.SendPushJob{UserID: "u1", Tag: "room-1", Icon: "/custom.png"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "room-1", p.Tag)
	assert.Equal(t, "/custom.png", p.Icon)
}

func TestEnqueue_HandledByWorker(t *testing.T) {
	ctx := context.Background()
	subs := memory.NewPushSubscriptionRepository()
	subscribe(t, subs, "u2", "tablet", "https://push.example/tablet")

	sender := newFakeSender()
	d, q := newDispatcher(subs, sender)

	handle, err := d.Enqueue(ctx, notification.SendPushJob{UserID: "u2", Title: "Room", Body: "hello", Tag: "room-r1"})
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID)

	n, err := queue.NewWorker(q, d.Handle, queue.WorkerOptions{Concurrency: 1}).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var p notification.Payload
	require.NoError(t, json.Unmarshal(sender.sent("https://push.example/tablet"), &p))
	assert.Equal(t, "hello", p.Body)
	assert.Equal(t, "room-r1", p.Tag)
}

func TestEnqueue_RequiresUser(t *testing.T) {
	d, _ := newDispatcher(memory.NewPushSubscriptionRepository(), newFakeSender())

	_, err := d.Enqueue(context.Background(), notification.SendPushJob{Title: "x"})
	assert.Error(t, err)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, notification.IsPermanent(&notification.DeliveryError{StatusCode: http.StatusGone}))
	assert.True(t, notification.IsPermanent(&notification.DeliveryError{StatusCode: http.StatusNotFound}))
	assert.False(t, notification.IsPermanent(&notification.DeliveryError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, notification.IsPermanent(errors.New("dial tcp: timeout")))
}
