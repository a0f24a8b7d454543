package sqlstore

import (
	"context"
	"errors"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"

	"gorm.io/gorm"
)

type albumRepository struct {
	db *gorm.DB
}

func NewAlbumRepository(db *gorm.DB) repositories.AlbumRepository {
	return &albumRepository{db: db}
}

func (r *albumRepository) CreateItem(ctx context.Context, item *chat.AlbumItem) error {
	if item.UploadedAt.IsZero() {
		item.UploadedAt = now()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *albumRepository) FindItemByID(ctx context.Context, id string) (*chat.AlbumItem, error) {
	var item chat.AlbumItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrAlbumItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *albumRepository) FindItems(ctx context.Context, roomID string, filter repositories.AlbumFilter) ([]chat.AlbumItem, error) {
	q := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	switch {
	case filter.RootOnly:
		q = q.Where("folder_id IS NULL")
	case filter.FolderID != nil:
		q = q.Where("folder_id = ?", *filter.FolderID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}

	var items []chat.AlbumItem
	err := q.Order("uploaded_at DESC").Order("id DESC").Find(&items).Error
	return items, err
}

func (r *albumRepository) MoveItem(ctx context.Context, id string, folderID *string) error {
	res := r.db.WithContext(ctx).Model(&chat.AlbumItem{}).Where("id = ?", id).Update("folder_id", folderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrAlbumItemNotFound
	}
	return nil
}

func (r *albumRepository) DeleteItem(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&chat.AlbumItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrAlbumItemNotFound
	}
	return nil
}

func (r *albumRepository) CreateFolder(ctx context.Context, folder *chat.AlbumFolder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

func (r *albumRepository) FindFolderByID(ctx context.Context, id string) (*chat.AlbumFolder, error) {
	var folder chat.AlbumFolder
	if err := r.db.WithContext(ctx).First(&folder, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrAlbumFolderNotFound
		}
		return nil, err
	}
	return &folder, nil
}

func (r *albumRepository) FindFolders(ctx context.Context, roomID string, parentID *string) ([]chat.AlbumFolder, error) {
	q := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}

	var folders []chat.AlbumFolder
	err := q.Order("name ASC").Find(&folders).Error
	return folders, err
}

func (r *albumRepository) FindChildFolders(ctx context.Context, parentID string) ([]chat.AlbumFolder, error) {
	var folders []chat.AlbumFolder
	err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Find(&folders).Error
	return folders, err
}

func (r *albumRepository) UpdateFolder(ctx context.Context, folder *chat.AlbumFolder) error {
	res := r.db.WithContext(ctx).Model(&chat.AlbumFolder{}).Where("id = ?", folder.ID).Updates(map[string]any{
		"name":        folder.Name,
		"description": folder.Description,
		"parent_id":   folder.ParentID,
	})
	return res.Error
}

func (r *albumRepository) DeleteFolders(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	// файлы не удаляются, а переезжают в корень альбома
	if err := tx.Model(&chat.AlbumItem{}).
		Where("folder_id IN ?", ids).
		Update("folder_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Where("id IN ?", ids).Delete(&chat.AlbumFolder{}).Error; err != nil {
		return err
	}
	return tx.Commit().Error
}
