package routes

import (
	"net/http"

	"suchat_backend/internal/handlers"
	"suchat_backend/internal/logger"
	"suchat_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все HTTP и WebSocket маршруты.
// jwtSecret пустой - режим разработки без проверки токенов.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	jwtSecret string,
) {
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Регистрация HTTP API v1
	api := ginRouter.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		appHandlers.ChatHandler.RegisterRoutes(api)
		appHandlers.ScheduleHandler.RegisterRoutes(api)
		appHandlers.AlbumHandler.RegisterRoutes(api)
		appHandlers.PushHandler.RegisterRoutes(api)
		appHandlers.DeviceHandler.RegisterRoutes(api)
	}

	// Регистрация WebSocket: токен в ?token=, браузер не ставит заголовки
	wsGroup := ginRouter.Group("/ws")
	wsGroup.Use(middleware.AuthMiddleware(jwtSecret))
	appHandlers.WSHandler.RegisterRoutes(wsGroup)

	if jwtSecret == "" {
		logger.Warn("JWT secret is empty: requests are authenticated by X-User-ID / user_id without verification")
	}
	logger.Info("routes registered", "api", "/api/v1", "ws", "/ws")
}
