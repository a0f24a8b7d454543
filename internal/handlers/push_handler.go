package handlers

import (
	"net/http"

	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type PushHandler struct {
	*BaseHandler
	pushService services.PushService
}

func NewPushHandler(base *BaseHandler, pushService services.PushService) *PushHandler {
	return &PushHandler{
		BaseHandler: base,
		pushService: pushService,
	}
}

func (h *PushHandler) RegisterRoutes(r *gin.RouterGroup) {
	push := r.Group("/push")
	{
		push.GET("/vapid-public-key", h.GetVAPIDPublicKey)
		push.POST("/subscribe", h.Subscribe)
		push.DELETE("/unsubscribe", h.Unsubscribe)
		push.POST("/test", h.SendTestPush)
		push.GET("/subscriptions", h.GetSubscriptions)
	}
}

func (h *PushHandler) GetVAPIDPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publicKey": h.pushService.VAPIDPublicKey()})
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SubscribeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}
	if req.UserAgent == nil {
		if ua := c.Request.UserAgent(); ua != "" {
			req.UserAgent = &ua
		}
	}

	resp, err := h.pushService.Subscribe(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Unsubscribe - тело необязательно; без deviceId снимаются все подписки пользователя
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UnsubscribeRequest
	if c.Request.ContentLength != 0 {
		if !h.BindAndValidate_JSON(c, &req) {
			return
		}
	}
	if req.DeviceID == "" {
		req.DeviceID = c.Query("deviceId")
	}

	resp, err := h.pushService.Unsubscribe(c.Request.Context(), userID, req.DeviceID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PushHandler) SendTestPush(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.pushService.SendTestPush(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PushHandler) GetSubscriptions(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.pushService.GetUserSubscriptions(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
