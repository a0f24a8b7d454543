package handlers

import (
	"net/http"

	"suchat_backend/internal/middleware"
	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

// ChatHandler - REST-доступ к комнатам и истории. Отправка сообщений идёт
// только через websocket: там же broadcast и push.
type ChatHandler struct {
	*BaseHandler
	chatService services.ChatService
}

func NewChatHandler(base *BaseHandler, chatService services.ChatService) *ChatHandler {
	return &ChatHandler{
		BaseHandler: base,
		chatService: chatService,
	}
}

func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/chat/rooms")
	{
		rooms.POST("", h.CreateRoom)
		rooms.GET("", h.GetUserRooms)
		rooms.POST("/dm", h.GetOrCreateDM)
		rooms.GET("/:roomId", h.GetRoom)
		rooms.GET("/:roomId/participants", h.GetParticipants)
		rooms.POST("/:roomId/join", h.JoinRoom)
		rooms.POST("/:roomId/leave", h.LeaveRoom)
		rooms.GET("/:roomId/messages", h.GetMessages)
		rooms.POST("/:roomId/read", h.MarkAsRead)
		rooms.GET("/:roomId/unread-count", h.GetUnreadCount)
	}
}

func (h *ChatHandler) CreateRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateRoomRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	room, err := h.chatService.CreateRoomWithMembers(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *ChatHandler) GetUserRooms(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	rooms, err := h.chatService.GetUserRoomsWithUnread(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

func (h *ChatHandler) GetOrCreateDM(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.DMRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	myName := req.MyUserName
	if myName == "" {
		myName = c.GetString(middleware.UserNameKey)
	}

	room, err := h.chatService.FindOrCreateDMRoom(c.Request.Context(), userID, req.UserID, myName, req.UserName)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *ChatHandler) GetRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("roomId")

	if _, err := h.chatService.RequireMember(c.Request.Context(), roomID, userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	room, err := h.chatService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *ChatHandler) GetParticipants(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("roomId")

	if _, err := h.chatService.RequireMember(c.Request.Context(), roomID, userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	participants, err := h.chatService.GetRoomParticipants(c.Request.Context(), roomID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participants": participants, "count": len(participants)})
}

// JoinRoom - по REST пользователь добавляет только себя, роль не меняется
func (h *ChatHandler) JoinRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	p, err := h.chatService.EnsureParticipant(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *ChatHandler) LeaveRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.chatService.LeaveRoom(c.Request.Context(), c.Param("roomId"), userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

// GetMessages - страница истории от новых к старым; nextCursor ведёт к более старым
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var query dto.MessagesQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	page, err := h.chatService.GetMessagePage(c.Request.Context(), c.Param("roomId"), userID, &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req struct {
		MessageID string `json:"messageId" validate:"required,max=36"`
	}
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	updated, err := h.chatService.UpdateLastRead(c.Request.Context(), c.Param("roomId"), userID, req.MessageID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: updated})
}

func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("roomId")

	count, err := h.chatService.GetUnreadCount(c.Request.Context(), roomID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UnreadCountResponse{RoomID: roomID, Count: count})
}
