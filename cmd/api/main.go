package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/account"
	"resumeBuilder/internal/api"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	gin.SetMode(cfg.API.Mode)

	logger.Info("api bootstrapped",
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		logger.Error("init database failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("migrate database failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database migrated")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 未启用 MinIO 时保持接口为 nil，导出接口只返回占位响应。
	var snapshots api.SnapshotStorage
	if cfg.MinIO.Enabled {
		client, err := storage.NewClient(ctx, cfg.MinIO, logger)
		if err != nil {
			logger.Error("init object storage failed", slog.Any("error", err))
			os.Exit(1)
		}
		snapshots = client
	}

	authService, err := auth.NewAuthService([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTokenTTL)
	if err != nil {
		logger.Error("init auth service failed", slog.Any("error", err))
		os.Exit(1)
	}
	accounts := account.NewService(db, authService,
		account.WithDeliverabilityCheck(cfg.Auth.CheckEmailDeliverability),
		account.WithLogger(logger),
	)
	store := resume.NewStore(db, logger)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, accounts, authService, store, redisClient, snapshots, cfg.Auth, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("api stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
