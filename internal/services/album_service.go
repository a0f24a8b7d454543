package services

import (
	"context"
	"errors"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"
)

const defaultAlbumLimit = 50

type AlbumService interface {
	// Items
	AddToAlbum(ctx context.Context, roomID, userID string, req *dto.AddAlbumItemRequest) (*chat.AlbumItem, error)
	GetRoomAlbum(ctx context.Context, roomID, userID string, query *dto.AlbumQuery) (*dto.AlbumPage, error)
	GetAlbumsByFolder(ctx context.Context, roomID, folderID, userID string, query *dto.AlbumQuery) (*dto.AlbumPage, error)
	GetAlbumCount(ctx context.Context, roomID, userID, folderID string) (int, error)
	DeleteFromAlbum(ctx context.Context, itemID, userID string) error
	DeleteMultipleFromAlbum(ctx context.Context, itemIDs []string, userID string) (*dto.AlbumBatchDeleteResponse, error)

	// Folders
	CreateFolder(ctx context.Context, roomID, userID string, req *dto.CreateFolderRequest) (*chat.AlbumFolder, error)
	GetFolders(ctx context.Context, roomID, userID string) ([]*dto.FolderNode, error)
	DeleteFolder(ctx context.Context, roomID, folderID, userID string) error
}

type albumService struct {
	albumRepo   repositories.AlbumRepository
	chatService ChatService
}

func NewAlbumService(albumRepo repositories.AlbumRepository, chatService ChatService) AlbumService {
	return &albumService{
		albumRepo:   albumRepo,
		chatService: chatService,
	}
}

// --- Items ---

func (s *albumService) AddToAlbum(ctx context.Context, roomID, userID string, req *dto.AddAlbumItemRequest) (*chat.AlbumItem, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if req.FolderID != nil && *req.FolderID != "" {
		if _, err := s.folderInRoom(ctx, roomID, *req.FolderID); err != nil {
			return nil, err
		}
	} else {
		req.FolderID = nil
	}

	item := &chat.AlbumItem{
		RoomID:       roomID,
		FolderID:     req.FolderID,
		UploadedBy:   userID,
		Type:         req.Type,
		FileURL:      req.FileURL,
		ThumbnailURL: req.ThumbnailURL,
		FileName:     req.FileName,
		FileSize:     req.FileSize,
	}
	if err := s.albumRepo.CreateItem(ctx, item); err != nil {
		return nil, handleAlbumError(err)
	}

	logger.CtxDebug(ctx, "album item added", "room_id", roomID, "item_id", item.ID)
	return item, nil
}

// GetRoomAlbum - без folderId только корень альбома
func (s *albumService) GetRoomAlbum(ctx context.Context, roomID, userID string, query *dto.AlbumQuery) (*dto.AlbumPage, error) {
	if query.FolderID != "" {
		return s.GetAlbumsByFolder(ctx, roomID, query.FolderID, userID, query)
	}
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	items, err := s.albumRepo.FindItems(ctx, roomID, repositories.AlbumFilter{RootOnly: true})
	if err != nil {
		return nil, handleAlbumError(err)
	}
	return paginateAlbum(items, query), nil
}

func (s *albumService) GetAlbumsByFolder(ctx context.Context, roomID, folderID, userID string, query *dto.AlbumQuery) (*dto.AlbumPage, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if _, err := s.folderInRoom(ctx, roomID, folderID); err != nil {
		return nil, err
	}
	items, err := s.albumRepo.FindItems(ctx, roomID, repositories.AlbumFilter{FolderID: &folderID})
	if err != nil {
		return nil, handleAlbumError(err)
	}
	return paginateAlbum(items, query), nil
}

// GetAlbumCount - без folderId считаются все элементы комнаты
func (s *albumService) GetAlbumCount(ctx context.Context, roomID, userID, folderID string) (int, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return 0, err
	}
	filter := repositories.AlbumFilter{}
	if folderID != "" {
		filter.FolderID = &folderID
	}
	items, err := s.albumRepo.FindItems(ctx, roomID, filter)
	if err != nil {
		return 0, handleAlbumError(err)
	}
	return len(items), nil
}

// DeleteFromAlbum - удалить может только загрузивший
func (s *albumService) DeleteFromAlbum(ctx context.Context, itemID, userID string) error {
	item, err := s.albumRepo.FindItemByID(ctx, itemID)
	if err != nil {
		return handleAlbumError(err)
	}
	if _, err := s.chatService.RequireMember(ctx, item.RoomID, userID); err != nil {
		return err
	}
	if item.UploadedBy != userID {
		return apperrors.ErrNotAlbumOwner
	}
	if err := s.albumRepo.DeleteItem(ctx, itemID); err != nil {
		return handleAlbumError(err)
	}
	return nil
}

// DeleteMultipleFromAlbum - результат по каждому элементу, ошибка одного не
// останавливает остальные
func (s *albumService) DeleteMultipleFromAlbum(ctx context.Context, itemIDs []string, userID string) (*dto.AlbumBatchDeleteResponse, error) {
	resp := &dto.AlbumBatchDeleteResponse{Results: make([]dto.AlbumDeleteResult, 0, len(itemIDs))}
	for _, id := range uniqueIDs(itemIDs, "") {
		err := s.DeleteFromAlbum(ctx, id, userID)
		if err == nil {
			resp.Deleted++
			resp.Results = append(resp.Results, dto.AlbumDeleteResult{ID: id, Success: true})
			continue
		}

		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.HTTPCode >= 500 {
			return nil, err
		}
		resp.Failed++
		resp.Results = append(resp.Results, dto.AlbumDeleteResult{ID: id, Reason: string(appErr.Code)})
	}

	logger.CtxInfo(ctx, "album batch delete", "deleted", resp.Deleted, "failed", resp.Failed)
	return resp, nil
}

// --- Folders ---

func (s *albumService) CreateFolder(ctx context.Context, roomID, userID string, req *dto.CreateFolderRequest) (*chat.AlbumFolder, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	parentID := req.ParentID
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		if _, err := s.folderInRoom(ctx, roomID, *parentID); err != nil {
			return nil, err
		}
	}

	folder := &chat.AlbumFolder{
		RoomID:      roomID,
		ParentID:    parentID,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	}
	if err := s.albumRepo.CreateFolder(ctx, folder); err != nil {
		return nil, handleAlbumError(err)
	}
	return folder, nil
}

// GetFolders - дерево папок комнаты, обход в ширину без рекурсии
func (s *albumService) GetFolders(ctx context.Context, roomID, userID string) ([]*dto.FolderNode, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	roots, err := s.albumRepo.FindFolders(ctx, roomID, nil)
	if err != nil {
		return nil, handleAlbumError(err)
	}

	result := make([]*dto.FolderNode, 0, len(roots))
	queue := make([]*dto.FolderNode, 0, len(roots))
	for _, f := range roots {
		node := &dto.FolderNode{AlbumFolder: f, Children: []*dto.FolderNode{}}
		result = append(result, node)
		queue = append(queue, node)
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		id := node.ID
		children, err := s.albumRepo.FindFolders(ctx, roomID, &id)
		if err != nil {
			return nil, handleAlbumError(err)
		}
		for _, c := range children {
			child := &dto.FolderNode{AlbumFolder: c, Children: []*dto.FolderNode{}}
			node.Children = append(node.Children, child)
			queue = append(queue, child)
		}
	}
	return result, nil
}

// DeleteFolder - только создатель; удаляются папка и все вложенные,
// их файлы переезжают в корень
func (s *albumService) DeleteFolder(ctx context.Context, roomID, folderID, userID string) error {
	folder, err := s.albumRepo.FindFolderByID(ctx, folderID)
	if err != nil {
		return handleAlbumError(err)
	}
	if roomID != "" && folder.RoomID != roomID {
		return apperrors.ErrAlbumFolderNotFound
	}
	if _, err := s.chatService.RequireMember(ctx, folder.RoomID, userID); err != nil {
		return err
	}
	if folder.CreatedBy != userID {
		return apperrors.ErrNotFolderOwner
	}

	ids, err := s.collectSubtree(ctx, folder.ID)
	if err != nil {
		return err
	}
	if err := s.albumRepo.DeleteFolders(ctx, ids); err != nil {
		return handleAlbumError(err)
	}

	logger.CtxInfo(ctx, "album folder deleted", "folder_id", folderID, "folders_removed", len(ids))
	return nil
}

// collectSubtree - id папки и всех потомков; явный стек вместо рекурсии
func (s *albumService) collectSubtree(ctx context.Context, rootID string) ([]string, error) {
	seen := map[string]struct{}{rootID: {}}
	ids := []string{rootID}
	stack := []string{rootID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.albumRepo.FindChildFolders(ctx, id)
		if err != nil {
			return nil, handleAlbumError(err)
		}
		for _, c := range children {
			// защита от циклов в parentId
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			ids = append(ids, c.ID)
			stack = append(stack, c.ID)
		}
	}
	return ids, nil
}

func (s *albumService) folderInRoom(ctx context.Context, roomID, folderID string) (*chat.AlbumFolder, error) {
	folder, err := s.albumRepo.FindFolderByID(ctx, folderID)
	if err != nil {
		return nil, handleAlbumError(err)
	}
	if folder.RoomID != roomID {
		return nil, apperrors.ErrAlbumFolderNotFound
	}
	return folder, nil
}

func paginateAlbum(items []chat.AlbumItem, query *dto.AlbumQuery) *dto.AlbumPage {
	limit, offset := defaultAlbumLimit, 0
	if query != nil {
		if query.Limit > 0 {
			limit = query.Limit
		}
		if query.Offset > 0 {
			offset = query.Offset
		}
	}

	page := &dto.AlbumPage{Total: len(items), Limit: limit, Offset: offset, Items: []chat.AlbumItem{}}
	if offset >= len(items) {
		return page
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	page.Items = items[offset:end]
	page.HasMore = end < len(items)
	return page
}

func handleAlbumError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrAlbumItemNotFound):
		return apperrors.ErrAlbumItemNotFound.WithError(err)
	case errors.Is(err, repositories.ErrAlbumFolderNotFound):
		return apperrors.ErrAlbumFolderNotFound.WithError(err)
	}
	return apperrors.DatabaseError(err)
}
