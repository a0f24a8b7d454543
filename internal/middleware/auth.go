package middleware

import (
	"strings"

	"suchat_backend/internal/auth"
	"suchat_backend/internal/logger"
	"suchat_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey - ключ gin.Context с id аутентифицированного пользователя
	UserIDKey = "userID"
	// UserNameKey - отображаемое имя из токена, если есть
	UserNameKey = "userName"
)

// AuthMiddleware - middleware проверки JWT.
// Токен берётся из заголовка Authorization, а для websocket-рукопожатия
// (браузер не умеет ставить заголовки) - из параметра token.
// С пустым secret работает режим разработки: id пользователя берётся из
// X-User-ID или user_id без проверки.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			userID := c.GetHeader("X-User-ID")
			if userID == "" {
				userID = c.Query("user_id")
			}
			if userID == "" {
				abortUnauthorized(c, "User id is required")
				return
			}
			setUser(c, userID, "")
			c.Next()
			return
		}

		tokenStr := bearerToken(c)
		if tokenStr == "" {
			abortUnauthorized(c, "Authorization header missing or invalid")
			return
		}

		claims, err := auth.ParseToken(secret, tokenStr)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "token rejected", "error", err, "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.ErrInvalidToken)
			c.Abort()
			return
		}

		setUser(c, claims.Subject(), claims.Name)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

func setUser(c *gin.Context, userID, name string) {
	c.Set(UserIDKey, userID)
	if name != "" {
		c.Set(UserNameKey, name)
	}
	ctx := logger.WithUserID(c.Request.Context(), userID)
	c.Request = c.Request.WithContext(ctx)
}

func abortUnauthorized(c *gin.Context, message string) {
	apperrors.HandleError(c, apperrors.NewUnauthorizedError(message))
	c.Abort()
}

// GetUserID извлекает ID пользователя из контекста
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return ""
	}

	id, ok := userID.(string)
	if !ok {
		return ""
	}

	return id
}
