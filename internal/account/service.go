// Package account 管理用户账号：注册、登录、改密与账号开通。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/errcode"
)

const (
	minPasswordLength = 8
	// bcrypt 只使用前 72 字节。
	maxPasswordLength = auth.MaxPasswordBytes
	maxUsernameLength = 64
)

// Session 是登录态：用户与其访问令牌。
type Session struct {
	User  database.User
	Token string
}

// RegisterInput 是注册请求的字段。
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type mxResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Service 实现账号相关的业务逻辑。
type Service struct {
	db                  *gorm.DB
	auth                *auth.AuthService
	logger              *slog.Logger
	validate            *validator.Validate
	checkDeliverability bool
	resolver            mxResolver
}

// Option 调整 Service 的可选行为。
type Option func(*Service)

// WithDeliverabilityCheck 开启邮箱域名的 MX/A 记录检查。
func WithDeliverabilityCheck(enabled bool) Option {
	return func(s *Service) { s.checkDeliverability = enabled }
}

// WithLogger 指定服务日志。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService 构造账号服务。
func NewService(db *gorm.DB, authService *auth.AuthService, opts ...Option) *Service {
	s := &Service{
		db:       db,
		auth:     authService,
		logger:   slog.Default(),
		validate: validator.New(),
		resolver: net.DefaultResolver,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 创建新账号并返回访问令牌。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, errcode.ErrValidation
	}
	if len(username) > maxUsernameLength {
		return nil, errcode.Validationf(fmt.Sprintf("username must be at most %d characters", maxUsernameLength))
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	email, err := s.NormalizeEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, username, email, in.Password, false)
	if err != nil {
		return nil, err
	}

	token, err := s.auth.GenerateToken(user.ID, user.MustChangePassword)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	return &Session{User: *user, Token: token}, nil
}

// Provision 由运维创建账号，账号首次登录后必须改密。
func (s *Service) Provision(ctx context.Context, username, email, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(email) == "" || password == "" {
		return nil, errcode.ErrValidation
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	normalized, err := s.NormalizeEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.createUser(ctx, username, normalized, password, true)
}

func (s *Service) createUser(ctx context.Context, username, email, password string, mustChange bool) (*database.User, error) {
	db := s.db.WithContext(ctx)

	taken, err := exists(db.Model(&database.User{}).Where("username = ?", username))
	if err != nil {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if taken {
		return nil, errcode.ErrDuplicateUsername
	}
	taken, err = exists(db.Model(&database.User{}).Where("email = ?", email))
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if taken {
		return nil, errcode.ErrDuplicateEmail
	}

	hashed, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := database.User{
		Username:           username,
		Email:              email,
		PasswordHash:       hashed,
		MustChangePassword: mustChange,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发注册越过了预检查，由唯一索引兜底。
			if taken, lookupErr := exists(s.db.WithContext(ctx).Model(&database.User{}).Where("email = ?", email)); lookupErr == nil && taken {
				return nil, errcode.ErrDuplicateEmail
			}
			return nil, errcode.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login 校验邮箱与密码。无论是邮箱不存在还是密码错误，都返回同一个错误。
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, errcode.Validationf("missing email or password")
	}

	normalized, err := s.normalizeEmailFormat(email)
	if err != nil {
		auth.BurnPasswordCheck(password)
		return nil, errcode.ErrInvalidCredentials
	}

	var user database.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			auth.BurnPasswordCheck(password)
			return nil, errcode.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, errcode.ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(user.ID, user.MustChangePassword)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

// ChangePassword 校验当前密码后替换哈希，并返回新的访问令牌。
// 当前密码不匹配时存储的哈希保持不变。
func (s *Service) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) (*Session, error) {
	if currentPassword == "" || newPassword == "" {
		return nil, errcode.ErrValidation
	}

	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return nil, errcode.WithMessage(errcode.ErrInvalidCredentials, "current password is incorrect")
	}
	if err := checkPassword(newPassword); err != nil {
		return nil, err
	}
	if newPassword == currentPassword {
		return nil, errcode.Validationf("new password must be different from current password")
	}

	hashed, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"password_hash":        hashed,
		"must_change_password": false,
	}).Error; err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hashed
	user.MustChangePassword = false

	token, err := s.auth.GenerateToken(user.ID, false)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("password changed", slog.Uint64("user_id", uint64(user.ID)))
	return &Session{User: *user, Token: token}, nil
}

// UserByID 返回令牌所指向的用户；用户已被删除时返回 NotFound。
func (s *Service) UserByID(ctx context.Context, userID uint) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFoundf("user")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// NormalizeEmail 校验邮箱格式（可选校验域名可投递性），返回小写形式。
func (s *Service) NormalizeEmail(ctx context.Context, raw string) (string, error) {
	email, err := s.normalizeEmailFormat(raw)
	if err != nil {
		return "", err
	}
	if s.checkDeliverability {
		domain := email[strings.LastIndex(email, "@")+1:]
		if !s.domainAcceptsMail(ctx, domain) {
			return "", errcode.ErrInvalidEmail
		}
	}
	return email, nil
}

func (s *Service) normalizeEmailFormat(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", errcode.ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}

func (s *Service) domainAcceptsMail(ctx context.Context, domain string) bool {
	if records, err := s.resolver.LookupMX(ctx, domain); err == nil && len(records) > 0 {
		return true
	}
	hosts, err := s.resolver.LookupHost(ctx, domain)
	return err == nil && len(hosts) > 0
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return errcode.Validationf(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		return errcode.Validationf(fmt.Sprintf("password must be at most %d bytes", maxPasswordLength))
	}
	return nil
}

func exists(query *gorm.DB) (bool, error) {
	var count int64
	if err := query.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
