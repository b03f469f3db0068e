package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/errcode"
)

// Error 以统一格式输出错误：{"error": ..., "code": ...}。
func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

// writeError 将业务错误映射为 HTTP 响应。系统错误只写日志，客户端只看到 "internal error"。
func writeError(c *gin.Context, err error) {
	status := errcode.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFromContext(c).Error("request failed", slog.Any("error", err))
	}
	Error(c, status, errcode.Code(err), errcode.Message(err))
}

// bindError 处理请求体解析失败。
func bindError(c *gin.Context, err error) {
	msg := err.Error()
	if errors.Is(err, io.EOF) {
		msg = "request body is required"
	}
	writeError(c, errcode.Validationf(msg))
}

// pathID 解析路径中的数字 ID。非法 ID 与不存在的资源一样返回 404。
func pathID(c *gin.Context, param, resource string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, strconv.IntSize)
	if err != nil || id == 0 {
		writeError(c, errcode.NotFoundf(resource))
		return 0, false
	}
	return uint(id), true
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		writeError(c, errcode.ErrUnauthenticated)
	}
	return userID, ok
}
