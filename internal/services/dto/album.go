package dto

import "suchat_backend/internal/models/chat"

type AddAlbumItemRequest struct {
	Type         string  `json:"type" validate:"required,is-album-type"`
	FileURL      string  `json:"fileUrl" validate:"required,max=2048"`
	ThumbnailURL *string `json:"thumbnailUrl,omitempty" validate:"omitempty,max=2048"`
	FileName     string  `json:"fileName" validate:"required,max=255"`
	FileSize     int64   `json:"fileSize" validate:"min=0"`
	FolderID     *string `json:"folderId,omitempty" validate:"omitempty,max=36"`
}

type CreateFolderRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	ParentID    *string `json:"parentId,omitempty" validate:"omitempty,max=36"`
}

type DeleteAlbumItemsRequest struct {
	AlbumIDs []string `json:"albumIds" validate:"required,min=1,max=200,dive,required"`
}

type AlbumQuery struct {
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset   int    `form:"offset" validate:"omitempty,min=0"`
	FolderID string `form:"folderId" validate:"omitempty,max=36"`
}

type AlbumPage struct {
	Items   []chat.AlbumItem `json:"items"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"hasMore"`
}

type AlbumDeleteResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type AlbumBatchDeleteResponse struct {
	Deleted int                 `json:"deleted"`
	Failed  int                 `json:"failed"`
	Results []AlbumDeleteResult `json:"results"`
}

// FolderNode - папка с вложенными папками
type FolderNode struct {
	chat.AlbumFolder
	Children []*FolderNode `json:"children"`
}
