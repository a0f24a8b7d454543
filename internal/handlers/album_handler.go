package handlers

import (
	"net/http"

	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type AlbumHandler struct {
	*BaseHandler
	albumService services.AlbumService
}

func NewAlbumHandler(base *BaseHandler, albumService services.AlbumService) *AlbumHandler {
	return &AlbumHandler{
		BaseHandler:  base,
		albumService: albumService,
	}
}

// RegisterRoutes. В gin имена параметров на одной позиции одного метода
// должны совпадать, поэтому у DELETE первый сегмент называется :id
// (комната для папок, элемент альбома для одиночного удаления).
func (h *AlbumHandler) RegisterRoutes(r *gin.RouterGroup) {
	album := r.Group("/chat/album")
	{
		album.GET("/:roomId/count", h.GetAlbumCount)
		album.GET("/:roomId/folders", h.GetFolders)
		album.POST("/:roomId/folders", h.CreateFolder)
		album.GET("/:roomId/folders/:folderId", h.GetAlbumsByFolder)
		album.GET("/:roomId", h.GetRoomAlbum)
		album.POST("/:roomId", h.AddToAlbum)
		album.DELETE("/batch", h.DeleteMultiple)
		album.DELETE("/:id/folders/:folderId", h.DeleteFolder)
		album.DELETE("/:id", h.DeleteFromAlbum)
	}
}

func (h *AlbumHandler) GetAlbumCount(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	count, err := h.albumService.GetAlbumCount(c.Request.Context(), c.Param("roomId"), userID, c.Query("folderId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *AlbumHandler) GetFolders(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	folders, err := h.albumService.GetFolders(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, folders)
}

func (h *AlbumHandler) CreateFolder(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateFolderRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	folder, err := h.albumService.CreateFolder(c.Request.Context(), c.Param("roomId"), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, folder)
}

func (h *AlbumHandler) GetAlbumsByFolder(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var query dto.AlbumQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	page, err := h.albumService.GetAlbumsByFolder(c.Request.Context(), c.Param("roomId"), c.Param("folderId"), userID, &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *AlbumHandler) GetRoomAlbum(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var query dto.AlbumQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	page, err := h.albumService.GetRoomAlbum(c.Request.Context(), c.Param("roomId"), userID, &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *AlbumHandler) AddToAlbum(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.AddAlbumItemRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	item, err := h.albumService.AddToAlbum(c.Request.Context(), c.Param("roomId"), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *AlbumHandler) DeleteMultiple(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.DeleteAlbumItemsRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.albumService.DeleteMultipleFromAlbum(c.Request.Context(), req.AlbumIDs, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AlbumHandler) DeleteFolder(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.albumService.DeleteFolder(c.Request.Context(), c.Param("id"), c.Param("folderId"), userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

func (h *AlbumHandler) DeleteFromAlbum(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.albumService.DeleteFromAlbum(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}
