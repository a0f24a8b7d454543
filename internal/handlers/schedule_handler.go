package handlers

import (
	"net/http"

	"suchat_backend/internal/services"
	"suchat_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	*BaseHandler
	scheduleService services.ScheduleService
}

func NewScheduleHandler(base *BaseHandler, scheduleService services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		BaseHandler:     base,
		scheduleService: scheduleService,
	}
}

// RegisterRoutes: у POST/GET параметр - комната, у PUT/DELETE - расписание
func (h *ScheduleHandler) RegisterRoutes(r *gin.RouterGroup) {
	schedules := r.Group("/chat/schedule")
	{
		schedules.POST("/:roomId", h.CreateSchedule)
		schedules.GET("/:roomId/participants", h.GetParticipants)
		schedules.GET("/:roomId", h.GetSchedules)
		schedules.PUT("/:scheduleId", h.UpdateSchedule)
		schedules.DELETE("/:scheduleId", h.DeleteSchedule)
	}
}

func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateScheduleRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	schedule, err := h.scheduleService.CreateSchedule(c.Request.Context(), c.Param("roomId"), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": schedule})
}

func (h *ScheduleHandler) GetParticipants(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	participants, err := h.scheduleService.GetScheduleParticipants(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": participants})
}

func (h *ScheduleHandler) GetSchedules(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var query dto.ScheduleQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	schedules, err := h.scheduleService.GetSchedules(c.Request.Context(), c.Param("roomId"), userID, &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": schedules})
}

func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateScheduleRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	schedule, err := h.scheduleService.UpdateSchedule(c.Request.Context(), c.Param("scheduleId"), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": schedule})
}

func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.scheduleService.DeleteSchedule(c.Request.Context(), c.Param("scheduleId"), userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}
