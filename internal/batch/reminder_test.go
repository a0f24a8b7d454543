package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu   sync.Mutex
	fail error
	jobs []notification.SendPushJob
}

func (n *fakeNotifier) Enqueue(_ context.Context, job notification.SendPushJob) (queue.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return queue.Handle{}, n.fail
	}
	n.jobs = append(n.jobs, job)
	return queue.Handle{ID: job.UserID}, nil
}

func (n *fakeNotifier) byUser() map[string]notification.SendPushJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]notification.SendPushJob, len(n.jobs))
	for _, j := range n.jobs {
		out[j.UserID] = j
	}
	return out
}

var tokyo = time.FixedZone("JST", 9*60*60)

// jobAt - задача, у которой "сейчас" = 2030-01-01 09:00:30 JST
func jobAt(repo repositories.ScheduleRepository, notifier notification.Notifier) *ReminderJob {
	j := NewReminderJob(repo, notifier, tokyo, 4)
	j.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 30, 0, time.UTC) }
	return j
}

func createSchedule(t *testing.T, repo repositories.ScheduleRepository, notifyAt string, users ...string) *chat.Schedule {
	t.Helper()
	memo := "Bring slides"
	sc := &chat.Schedule{
		RoomID:               "room-1",
		CreatedBy:            users[0],
		Title:                "Planning",
		Memo:                 &memo,
		StartDate:            "20300101100000",
		NotificationDateTime: &notifyAt,
	}
	for _, u := range users {
		sc.Participants = append(sc.Participants, chat.ScheduleParticipant{UserID: u})
	}
	require.NoError(t, repo.Create(context.Background(), sc))
	return sc
}

func TestReminderJob_MinuteUsesLocation(t *testing.T) {
	j := jobAt(memory.NewScheduleRepository(), &fakeNotifier{})
	assert.Equal(t, "20300101090000", j.Minute())
}

func TestReminderJob_SendsOncePerParticipant(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewScheduleRepository()
	notifier := &fakeNotifier{}
	sc := createSchedule(t, repo, "20300101090000", "alice", "bob")
	createSchedule(t, repo, "20300101091500", "carol")

	result, err := jobAt(repo, notifier).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Targets)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{sc.ID}, result.Schedules)

	jobs := notifier.byUser()
	require.Len(t, jobs, 2)
	bob := jobs["bob"]
	assert.Equal(t, "Schedule reminder: Planning", bob.Title)
	assert.Equal(t, "Bring slides\nStart: 2030-01-01 10:00", bob.Body)
	assert.Equal(t, "schedule-"+sc.ID, bob.Tag)
	assert.Equal(t, sc.ID, bob.Data["scheduleId"])
	assert.Equal(t, "room-1", bob.Data["roomId"])

	stored, err := repo.FindByID(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.NotificationSent)

	// повторный прогон в ту же минуту ничего не находит
	result, err = jobAt(repo, notifier).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Targets)
	assert.Len(t, notifier.byUser(), 2)
}

func TestReminderJob_TotalFailureKeepsScheduleDue(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewScheduleRepository()
	notifier := &fakeNotifier{fail: errors.New("queue unavailable")}
	sc := createSchedule(t, repo, "20300101090000", "alice", "bob")

	result, err := jobAt(repo, notifier).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, result.Schedules)

	stored, err := repo.FindByID(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.NotificationSent)

	notifier.fail = nil
	result, err = jobAt(repo, notifier).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
}

func TestReminderJob_SkipsStartedEvents(t *testing.T) {
	repo := memory.NewScheduleRepository()
	sc := &chat.Schedule{
		RoomID:               "room-1",
		CreatedBy:            "alice",
		Title:                "Already running",
		StartDate:            "20300101080000",
		NotificationDateTime: strPtr("20300101090000"),
		Participants:         []chat.ScheduleParticipant{{UserID: "alice"}},
	}
	require.NoError(t, repo.Create(context.Background(), sc))

	result, err := jobAt(repo, &fakeNotifier{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Targets)
}

func TestBuild_WithoutMemo(t *testing.T) {
	j := jobAt(memory.NewScheduleRepository(), &fakeNotifier{})
	job := j.Build(repositories.ReminderTarget{
		Schedule: chat.Schedule{ID: "s1", RoomID: "r1", Title: "Call", StartDate: "20300102153000"},
		UserID:   "bob",
	})
	assert.Equal(t, "bob", job.UserID)
	assert.Equal(t, "Start time: 2030-01-02 15:30", job.Body)
	assert.Equal(t, "schedule", job.Data["type"])
}

func strPtr(s string) *string { return &s }

func TestLoadSchedules_EnvWins(t *testing.T) {
	schedules, err := LoadSchedules(`[{"name":"every-minute","cron":"* * * * *","enabled":true}]`, "does-not-matter.json")
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "every-minute", schedules[0].Name)
}

func TestLoadSchedules_InvalidEnvFallsBackToDefaults(t *testing.T) {
	schedules, err := LoadSchedules("not json", filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedules(), schedules)
}

func TestLoadSchedules_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schedules:
  - name: lunch
    cron: "0 12 * * 1-5"
    enabled: true
    timeout_sec: 30
  - name: off
    cron: "0 0 * * *"
    enabled: false
`), 0o600))

	schedules, err := LoadSchedules("", path)
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, "lunch", schedules[0].Name)
	assert.Equal(t, 30, schedules[0].TimeoutSec)
	assert.False(t, schedules[1].Enabled)
}

func TestLoadSchedules_BrokenFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schedules": [`), 0o600))

	_, err := LoadSchedules("", path)
	assert.Error(t, err)
}

func TestScheduler_RegisterSkipsInvalidEntries(t *testing.T) {
	s := NewScheduler(jobAt(memory.NewScheduleRepository(), &fakeNotifier{}), tokyo, nil)
	added := s.Register([]ScheduleConfig{
		{Name: "ok", Cron: "0 9 * * *", Enabled: true},
		{Name: "explicit", Cron: "*/5 * * * *", Enabled: true, Job: JobReminders},
		{Name: "disabled", Cron: "0 9 * * *"},
		{Name: "bad-cron", Cron: "every day", Enabled: true},
		{Name: "other-job", Cron: "0 9 * * *", Enabled: true, Job: "cleanup"},
	})
	assert.Equal(t, 2, added)
}
