package handlers

import (
	"net/http"

	"suchat_backend/internal/models"
	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	*BaseHandler
	deviceService services.DeviceService
}

func NewDeviceHandler(base *BaseHandler, deviceService services.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		BaseHandler:   base,
		deviceService: deviceService,
	}
}

func (h *DeviceHandler) RegisterRoutes(r *gin.RouterGroup) {
	devices := r.Group("/devices")
	{
		devices.GET("", h.GetMyDevices)
		devices.POST("", h.RegisterDevice)
		devices.PUT("/:deviceId/name", h.UpdateDeviceName)
		devices.POST("/:deviceId/deactivate", h.DeactivateDevice)
		devices.DELETE("/:deviceId", h.DeleteDevice)
	}
}

func (h *DeviceHandler) GetMyDevices(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	devices, err := h.deviceService.GetUserDevices(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	if devices == nil {
		devices = []models.UserDevice{}
	}

	c.JSON(http.StatusOK, dto.DeviceListResponse{
		Success: true,
		Count:   len(devices),
		Devices: devices,
	})
}

func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.RegisterDeviceRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}
	if req.UserAgent == nil {
		if ua := c.Request.UserAgent(); ua != "" {
			req.UserAgent = &ua
		}
	}

	device, err := h.deviceService.RegisterOrUpdateDevice(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "device": device})
}

func (h *DeviceHandler) UpdateDeviceName(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateDeviceNameRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	device, err := h.deviceService.UpdateDeviceName(c.Request.Context(), userID, c.Param("deviceId"), req.DeviceName)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "device": device})
}

func (h *DeviceHandler) DeactivateDevice(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.deviceService.DeactivateDevice(c.Request.Context(), userID, c.Param("deviceId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.deviceService.DeleteDevice(c.Request.Context(), userID, c.Param("deviceId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Device deleted"})
}
