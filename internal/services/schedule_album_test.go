package services_test

import (
	"context"
	"testing"

	"suchat_backend/internal/repositories/memory"
	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSchedule_OnlyCreatorMayModify(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	chatSvc := services.NewChatService(store.Chat)
	svc := services.NewScheduleService(store.Schedules, chatSvc)
	room := createRoom(t, chatSvc, "alice", "bob", "carol")

	sc, err := svc.CreateSchedule(ctx, room.ID, "alice", &dto.CreateScheduleRequest{
		Title:          "Standup",
		StartDate:      "20300101090000",
		ParticipantIDs: []string{"bob"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, sc.ParticipantIDs())

	_, err = svc.UpdateSchedule(ctx, sc.ID, "bob", &dto.UpdateScheduleRequest{Title: strPtr("Hijacked")})
	assert.ErrorIs(t, err, apperrors.ErrNotScheduleCreator)

	err = svc.DeleteSchedule(ctx, sc.ID, "bob")
	assert.ErrorIs(t, err, apperrors.ErrNotScheduleCreator)

	require.NoError(t, svc.DeleteSchedule(ctx, sc.ID, "alice"))
	err = svc.DeleteSchedule(ctx, sc.ID, "alice")
	assert.ErrorIs(t, err, apperrors.ErrScheduleNotFound)
}

func TestSchedule_VisibleOnlyToCreatorAndParticipants(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	chatSvc := services.NewChatService(store.Chat)
	svc := services.NewScheduleService(store.Schedules, chatSvc)
	room := createRoom(t, chatSvc, "alice", "bob", "carol")

	_, err := svc.CreateSchedule(ctx, room.ID, "alice", &dto.CreateScheduleRequest{
		Title:          "1:1 with bob",
		StartDate:      "20300101090000",
		ParticipantIDs: []string{"bob"},
	})
	require.NoError(t, err)

	forBob, err := svc.GetSchedules(ctx, room.ID, "bob", &dto.ScheduleQuery{})
	require.NoError(t, err)
	assert.Len(t, forBob, 1)

	forCarol, err := svc.GetSchedules(ctx, room.ID, "carol", &dto.ScheduleQuery{})
	require.NoError(t, err)
	assert.Empty(t, forCarol)

	_, err = svc.GetSchedules(ctx, room.ID, "mallory", &dto.ScheduleQuery{})
	assert.ErrorIs(t, err, apperrors.ErrNotRoomMember)
}

func TestSchedule_RejectsEndBeforeStart(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	chatSvc := services.NewChatService(store.Chat)
	svc := services.NewScheduleService(store.Schedules, chatSvc)
	room := createRoom(t, chatSvc, "alice", "bob", "carol")

	_, err := svc.CreateSchedule(ctx, room.ID, "alice", &dto.CreateScheduleRequest{
		Title:     "Backwards",
		StartDate: "20300101090000",
		EndDate:   strPtr("20291231090000"),
	})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPCode)
}

func TestSchedule_NewReminderTimeResetsSentCounter(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	chatSvc := services.NewChatService(store.Chat)
	svc := services.NewScheduleService(store.Schedules, chatSvc)
	room := createRoom(t, chatSvc, "alice", "bob", "carol")

	sc, err := svc.CreateSchedule(ctx, room.ID, "alice", &dto.CreateScheduleRequest{
		Title:                "Review",
		StartDate:            "20300101100000",
		NotificationDateTime: strPtr("20300101090000"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Schedules.IncrementNotificationSent(ctx, []string{sc.ID}))

	// то же время - счётчик не трогаем
	updated, err := svc.UpdateSchedule(ctx, sc.ID, "alice", &dto.UpdateScheduleRequest{
		NotificationDateTime: strPtr("20300101090000"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.NotificationSent)

	updated, err = svc.UpdateSchedule(ctx, sc.ID, "alice", &dto.UpdateScheduleRequest{
		NotificationDateTime: strPtr("20300101093000"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.NotificationSent)
}

func newAlbum(t *testing.T) (services.AlbumService, services.ChatService, string) {
	t.Helper()
	store := memory.New()
	chatSvc := services.NewChatService(store.Chat)
	room := createRoom(t, chatSvc, "alice", "bob", "carol")
	return services.NewAlbumService(store.Albums, chatSvc), chatSvc, room.ID
}

func addItem(t *testing.T, svc services.AlbumService, roomID, userID string, folderID *string) string {
	t.Helper()
	item, err := svc.AddToAlbum(context.Background(), roomID, userID, &dto.AddAlbumItemRequest{
		Type:     "image",
		FileURL:  "https://cdn.example/a.png",
		FileName: "a.png",
		FileSize: 10,
		FolderID: folderID,
	})
	require.NoError(t, err)
	return item.ID
}

func TestAlbum_OnlyUploaderDeletes(t *testing.T) {
	ctx := context.Background()
	svc, _, roomID := newAlbum(t)
	itemID := addItem(t, svc, roomID, "alice", nil)

	err := svc.DeleteFromAlbum(ctx, itemID, "bob")
	assert.ErrorIs(t, err, apperrors.ErrNotAlbumOwner)

	err = svc.DeleteFromAlbum(ctx, itemID, "mallory")
	assert.ErrorIs(t, err, apperrors.ErrNotRoomMember)

	require.NoError(t, svc.DeleteFromAlbum(ctx, itemID, "alice"))
	err = svc.DeleteFromAlbum(ctx, itemID, "alice")
	assert.ErrorIs(t, err, apperrors.ErrAlbumItemNotFound)
}

func TestAlbum_BatchDeleteReportsPerItem(t *testing.T) {
	ctx := context.Background()
	svc, _, roomID := newAlbum(t)
	mine := addItem(t, svc, roomID, "alice", nil)
	theirs := addItem(t, svc, roomID, "bob", nil)

	resp, err := svc.DeleteMultipleFromAlbum(ctx, []string{mine, theirs, "missing", mine}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Deleted)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Success)
	assert.Equal(t, string(apperrors.ErrNotAlbumOwner.Code), resp.Results[1].Reason)
}

func TestAlbum_DeleteFolderMovesFilesToRoot(t *testing.T) {
	ctx := context.Background()
	svc, _, roomID := newAlbum(t)

	parent, err := svc.CreateFolder(ctx, roomID, "alice", &dto.CreateFolderRequest{Name: "Trips"})
	require.NoError(t, err)
	child, err := svc.CreateFolder(ctx, roomID, "alice", &dto.CreateFolderRequest{Name: "2024", ParentID: &parent.ID})
	require.NoError(t, err)
	grandchild, err := svc.CreateFolder(ctx, roomID, "alice", &dto.CreateFolderRequest{Name: "Summer", ParentID: &child.ID})
	require.NoError(t, err)

	addItem(t, svc, roomID, "bob", &grandchild.ID)
	addItem(t, svc, roomID, "alice", &parent.ID)

	tree, err := svc.GetFolders(ctx, roomID, "bob")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "Summer", tree[0].Children[0].Children[0].Name)

	err = svc.DeleteFolder(ctx, roomID, parent.ID, "bob")
	assert.ErrorIs(t, err, apperrors.ErrNotFolderOwner)

	require.NoError(t, svc.DeleteFolder(ctx, roomID, parent.ID, "alice"))

	tree, err = svc.GetFolders(ctx, roomID, "alice")
	require.NoError(t, err)
	assert.Empty(t, tree)

	root, err := svc.GetRoomAlbum(ctx, roomID, "alice", &dto.AlbumQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, root.Total)

	count, err := svc.GetAlbumCount(ctx, roomID, "carol", "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAlbum_FolderFromOtherRoomIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, chatSvc, roomID := newAlbum(t)
	other := createRoom(t, chatSvc, "alice", "dave", "erin")

	folder, err := svc.CreateFolder(ctx, other.ID, "alice", &dto.CreateFolderRequest{Name: "Elsewhere"})
	require.NoError(t, err)

	_, err = svc.AddToAlbum(ctx, roomID, "alice", &dto.AddAlbumItemRequest{
		Type:     "image",
		FileURL:  "https://cdn.example/b.png",
		FileName: "b.png",
		FolderID: &folder.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrAlbumFolderNotFound)
}

func TestAlbum_Pagination(t *testing.T) {
	ctx := context.Background()
	svc, _, roomID := newAlbum(t)
	for i := 0; i < 5; i++ {
		addItem(t, svc, roomID, "alice", nil)
	}

	page, err := svc.GetRoomAlbum(ctx, roomID, "bob", &dto.AlbumQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	page, err = svc.GetRoomAlbum(ctx, roomID, "bob", &dto.AlbumQuery{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}
