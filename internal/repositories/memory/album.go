package memory

import (
	"context"
	"sort"
	"sync"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"
)

type albumRepository struct {
	mu      sync.RWMutex
	items   map[string]*chat.AlbumItem
	folders map[string]*chat.AlbumFolder
}

func NewAlbumRepository() repositories.AlbumRepository {
	return &albumRepository{
		items:   make(map[string]*chat.AlbumItem),
		folders: make(map[string]*chat.AlbumFolder),
	}
}

func copyItem(item *chat.AlbumItem) chat.AlbumItem {
	cp := *item
	cp.FolderID = cloneString(item.FolderID)
	cp.ThumbnailURL = cloneString(item.ThumbnailURL)
	return cp
}

func copyFolder(folder *chat.AlbumFolder) chat.AlbumFolder {
	cp := *folder
	cp.ParentID = cloneString(folder.ParentID)
	cp.Description = cloneString(folder.Description)
	return cp
}

func (r *albumRepository) CreateItem(_ context.Context, item *chat.AlbumItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == "" {
		item.ID = newID()
	}
	if item.UploadedAt.IsZero() {
		item.UploadedAt = now()
	}
	stored := copyItem(item)
	r.items[item.ID] = &stored
	return nil
}

func (r *albumRepository) FindItemByID(_ context.Context, id string) (*chat.AlbumItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrAlbumItemNotFound
	}
	cp := copyItem(item)
	return &cp, nil
}

func (r *albumRepository) FindItems(_ context.Context, roomID string, filter repositories.AlbumFilter) ([]chat.AlbumItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]chat.AlbumItem, 0)
	for _, item := range r.items {
		if item.RoomID != roomID {
			continue
		}
		switch {
		case filter.RootOnly && item.FolderID != nil:
			continue
		case !filter.RootOnly && filter.FolderID != nil &&
			(item.FolderID == nil || *item.FolderID != *filter.FolderID):
			continue
		}
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		items = append(items, copyItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].UploadedAt.Equal(items[j].UploadedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].UploadedAt.After(items[j].UploadedAt)
	})
	return items, nil
}

func (r *albumRepository) MoveItem(_ context.Context, id string, folderID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return repositories.ErrAlbumItemNotFound
	}
	item.FolderID = cloneString(folderID)
	return nil
}

func (r *albumRepository) DeleteItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return repositories.ErrAlbumItemNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *albumRepository) CreateFolder(_ context.Context, folder *chat.AlbumFolder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if folder.ID == "" {
		folder.ID = newID()
	}
	folder.CreatedAt = now()
	stored := copyFolder(folder)
	r.folders[folder.ID] = &stored
	return nil
}

func (r *albumRepository) FindFolderByID(_ context.Context, id string) (*chat.AlbumFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	folder, ok := r.folders[id]
	if !ok {
		return nil, repositories.ErrAlbumFolderNotFound
	}
	cp := copyFolder(folder)
	return &cp, nil
}

func (r *albumRepository) FindFolders(_ context.Context, roomID string, parentID *string) ([]chat.AlbumFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	folders := make([]chat.AlbumFolder, 0)
	for _, folder := range r.folders {
		if folder.RoomID != roomID {
			continue
		}
		if parentID == nil && folder.ParentID != nil {
			continue
		}
		if parentID != nil && (folder.ParentID == nil || *folder.ParentID != *parentID) {
			continue
		}
		folders = append(folders, copyFolder(folder))
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

func (r *albumRepository) FindChildFolders(_ context.Context, parentID string) ([]chat.AlbumFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	folders := make([]chat.AlbumFolder, 0)
	for _, folder := range r.folders {
		if folder.ParentID != nil && *folder.ParentID == parentID {
			folders = append(folders, copyFolder(folder))
		}
	}
	return folders, nil
}

func (r *albumRepository) UpdateFolder(_ context.Context, folder *chat.AlbumFolder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.folders[folder.ID]
	if !ok {
		return repositories.ErrAlbumFolderNotFound
	}
	existing.Name = folder.Name
	existing.Description = cloneString(folder.Description)
	existing.ParentID = cloneString(folder.ParentID)
	return nil
}

func (r *albumRepository) DeleteFolders(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	for _, item := range r.items {
		if item.FolderID == nil {
			continue
		}
		if _, ok := doomed[*item.FolderID]; ok {
			item.FolderID = nil
		}
	}
	for id := range doomed {
		delete(r.folders, id)
	}
	return nil
}
