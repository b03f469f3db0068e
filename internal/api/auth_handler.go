package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/account"
	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/errcode"
)

// AuthHandler 处理注册、登录、当前用户与改密。
type AuthHandler struct {
	accounts *account.Service
	throttle *loginThrottle
	logger   *slog.Logger
}

// NewAuthHandler 构造认证处理器。redisClient 为空时不做登录限流。
func NewAuthHandler(accounts *account.Service, redisClient redis.UniversalClient, cfg config.AuthConfig, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	throttle := &loginThrottle{
		ratePerHour:   cfg.LoginRateLimitPerHour,
		lockThreshold: cfg.LoginLockThreshold,
		lockTTL:       cfg.LoginLockTTL,
		logger:        logger,
		now:           time.Now,
	}
	if redisClient != nil {
		throttle.store = redisClient
	}
	return &AuthHandler{accounts: accounts, throttle: throttle, logger: logger}
}

type userResponse struct {
	ID                 uint      `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

func newUserResponse(u database.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 创建新账号并直接返回访问令牌。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	session, err := h.accounts.Register(c.Request.Context(), account.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		middleware.LoggerFromContext(c).Info("register rejected", slog.Int("code", errcode.Code(err)))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "User registered successfully",
		"access_token": session.Token,
		"user":         newUserResponse(session.User),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 校验邮箱与密码并返回访问令牌。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if err := h.throttle.allow(ctx, c.ClientIP(), req.Email); err != nil {
		logger.Info("login throttled", slog.Int("code", errcode.Code(err)))
		writeError(c, err)
		return
	}

	session, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errcode.ErrInvalidCredentials) {
			logger.Info("login failed")
			h.throttle.recordFailure(ctx, req.Email)
		}
		writeError(c, err)
		return
	}

	h.throttle.reset(ctx, req.Email)
	c.JSON(http.StatusOK, gin.H{
		"access_token": session.Token,
		"user":         newUserResponse(session.User),
	})
}

// Me 返回令牌对应的用户；用户已被删除时返回 404。
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.accounts.UserByID(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(*user)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword 校验当前密码并更新为新密码，返回不带改密标记的新令牌。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	session, err := h.accounts.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		middleware.LoggerFromContext(c).Info("change password rejected", slog.Int("code", errcode.Code(err)))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Password updated successfully",
		"access_token": session.Token,
	})
}
