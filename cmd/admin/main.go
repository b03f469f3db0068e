package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"resumeBuilder/internal/account"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
)

func main() {
	var (
		username = flag.String("username", "", "账号用户名（必填）")
		email    = flag.String("email", "", "账号邮箱（必填）")
		driver   = flag.String("db-driver", "", "数据库驱动 postgres|sqlite（可选，默认读 DATABASE_DRIVER）")
		sqlite   = flag.String("sqlite-path", "", "SQLite 文件路径（可选，默认读 SQLITE_PATH）")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	u := strings.TrimSpace(*username)
	e := strings.TrimSpace(*email)
	if u == "" || e == "" {
		logger.Error("missing required flags: --username and --email")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", slog.Any("error", err))
		os.Exit(1)
	}
	if strings.TrimSpace(*driver) != "" {
		cfg.Database.Driver = strings.ToLower(strings.TrimSpace(*driver))
	}
	if strings.TrimSpace(*sqlite) != "" {
		cfg.Database.SQLitePath = *sqlite
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		logger.Error("init database failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("migrate database failed", slog.Any("error", err))
		os.Exit(1)
	}

	authService, err := auth.NewAuthService([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTokenTTL)
	if err != nil {
		logger.Error("init auth service failed", slog.Any("error", err))
		os.Exit(1)
	}
	accounts := account.NewService(db, authService, account.WithLogger(logger))

	password, err := generateRandomPassword(24)
	if err != nil {
		logger.Error("generate password failed", slog.Any("error", err))
		os.Exit(1)
	}

	user, err := accounts.Provision(context.Background(), u, e, password)
	if err != nil {
		logger.Error("provision account failed", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf("已创建账号（首次登录需强制改密）：\n")
	fmt.Printf("用户名: %s\n", user.Username)
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：请立即登录并修改密码（该密码仅显示一次）。\n")
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
