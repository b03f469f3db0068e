package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/errcode"
)

const (
	userIDKey             = "userID"
	mustChangePasswordKey = "mustChangePassword"
)

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": errcode.Message(err), "code": errcode.Code(err)})
}

// AuthMiddleware 校验 Bearer 访问令牌，并将 userID 与改密标记注入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, http.StatusUnauthorized, errcode.ErrUnauthenticated)
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			LoggerFromContext(c).Debug("reject access token", "error", err)
			abortWithError(c, http.StatusUnauthorized, errcode.ErrUnauthenticated)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(mustChangePasswordKey, claims.MustChangePassword)
		c.Next()
	}
}

// UserIDFromContext 返回 AuthMiddleware 注入的用户 ID。
func UserIDFromContext(c *gin.Context) (uint, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id != 0
}
