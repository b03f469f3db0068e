package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/errcode"
)

// RequirePasswordChangeCompletedMiddleware 阻止未完成改密的账号访问简历接口。
// 仅依赖 access token 内的 must_change_password 声明，不查库。
func RequirePasswordChangeCompletedMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if mustChange, ok := c.Get(mustChangePasswordKey); ok {
			if v, ok := mustChange.(bool); ok && v {
				abortWithError(c, http.StatusForbidden, errcode.ErrPasswordChangeRequired)
				return
			}
		}
		c.Next()
	}
}
