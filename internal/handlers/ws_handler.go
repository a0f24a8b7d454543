package handlers

import (
	"suchat_backend/internal/logger"
	"suchat_backend/ws"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	*BaseHandler
	Manager *ws.Manager
}

func NewWSHandler(base *BaseHandler, manager *ws.Manager) *WSHandler {
	return &WSHandler{
		BaseHandler: base,
		Manager:     manager,
	}
}

// RegisterRoutes - группа уже проверяет токен рукопожатия
func (h *WSHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.ServeWS)
}

func (h *WSHandler) ServeWS(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.Manager.Serve(c.Writer, c.Request, userID); err != nil {
		logger.CtxWarn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	logger.CtxInfo(c.Request.Context(), "websocket client connected")
}
