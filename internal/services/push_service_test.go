package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/repositories/memory"
	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier запоминает задачи вместо постановки в очередь
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []notification.SendPushJob
}

func (n *recordingNotifier) Enqueue(_ context.Context, job notification.SendPushJob) (queue.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return queue.Handle{ID: fmt.Sprintf("job-%d", len(n.jobs)), Queue: "push-notifications"}, nil
}

func newPushService() (services.PushService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return services.NewPushService(memory.NewPushSubscriptionRepository(), notifier, "BPublicKey"), notifier
}

func subscribeDevice(t *testing.T, svc services.PushService, userID, deviceID string) {
	t.Helper()
	_, err := svc.Subscribe(context.Background(), userID, &dto.SubscribeRequest{
		Endpoint: "https://push.example/" + userID + "/" + deviceID,
		P256dh:   "p256dh",
		Auth:     "auth",
		DeviceID: deviceID,
	})
	require.NoError(t, err)
}

func TestPush_SubscribeIsUpsertPerDevice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newPushService()

	subscribeDevice(t, svc, "alice", "laptop")
	subscribeDevice(t, svc, "alice", "laptop")
	subscribeDevice(t, svc, "alice", "phone")

	list, err := svc.GetUserSubscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "web", list.Subscriptions[0].DeviceType)

	resp, err := svc.Unsubscribe(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.True(t, resp.Success)

	resp, err = svc.Unsubscribe(ctx, "alice", "tablet")
	require.NoError(t, err)
	assert.False(t, resp.Success)

	list, err = svc.GetUserSubscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
}

func TestPush_LegacyUnsubscribeRemovesEverything(t *testing.T) {
	ctx := context.Background()
	svc, _ := newPushService()
	subscribeDevice(t, svc, "alice", "laptop")
	subscribeDevice(t, svc, "alice", "phone")

	resp, err := svc.Unsubscribe(ctx, "alice", "")
	require.NoError(t, err)
	assert.True(t, resp.Success)

	list, err := svc.GetUserSubscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, list.Count)
}

func TestPush_SendTestPushNeedsSubscription(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newPushService()

	_, err := svc.SendTestPush(ctx, "alice")
	assert.ErrorIs(t, err, apperrors.ErrNoActiveSubscriptions)
	assert.Empty(t, notifier.jobs)

	subscribeDevice(t, svc, "alice", "laptop")
	job, err := svc.SendTestPush(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.JobID)
	require.Len(t, notifier.jobs, 1)
	assert.Equal(t, "alice", notifier.jobs[0].UserID)
}

func TestPush_NotifyRoomMessageOneJobPerRecipient(t *testing.T) {
	svc, notifier := newPushService()
	room := &chat.Room{ID: "r1", Name: "Team"}
	msg := &chat.Message{ID: "m1", RoomID: "r1", UserID: "alice", Type: chat.MessageText, Content: "hello"}

	queued, err := svc.NotifyRoomMessage(context.Background(), room, msg, []string{"bob", "carol"})
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	require.Len(t, notifier.jobs, 2)
	for i, user := range []string{"bob", "carol"} {
		job := notifier.jobs[i]
		assert.Equal(t, user, job.UserID)
		assert.Equal(t, "room-r1", job.Tag)
		assert.Equal(t, "Team", job.Title)
		assert.Equal(t, "hello", job.Body)
		assert.Equal(t, "m1", job.Data["messageId"])
	}
}

func TestRoomMessagePush_PreviewAndFallbackTitle(t *testing.T) {
	job := services.RoomMessagePush(&chat.Room{ID: "r2"}, &chat.Message{ID: "m2", Type: chat.MessageImage})
	assert.Equal(t, "New message", job.Title)
	assert.Equal(t, "sent a photo", job.Body)
	assert.Empty(t, job.UserID)
}
