package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/account"
	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/resume"
)

// RegisterRoutes 在 /api 前缀下注册业务路由。redisClient 与 snapshots 均可为空。
func RegisterRoutes(
	router *gin.Engine,
	accounts *account.Service,
	authService *auth.AuthService,
	store *resume.Store,
	redisClient redis.UniversalClient,
	snapshots SnapshotStorage,
	authCfg config.AuthConfig,
	logger *slog.Logger,
) {
	authHandler := NewAuthHandler(accounts, redisClient, authCfg, logger)
	resumeHandler := NewResumeHandler(store, snapshots)
	sectionHandler := NewSectionHandler(store)
	entryHandler := NewEntryHandler(store)
	authMiddleware := middleware.AuthMiddleware(authService)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", authMiddleware, authHandler.Me)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		resumeGroup := apiGroup.Group("/resumes")
		resumeGroup.Use(authMiddleware, passwordGate)
		{
			resumeGroup.POST("", resumeHandler.CreateResume)
			resumeGroup.GET("", resumeHandler.ListResumes)
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.PUT("/:id", resumeHandler.UpdateResume)
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.POST("/:id/duplicate", resumeHandler.DuplicateResume)
			resumeGroup.GET("/:id/export/pdf", resumeHandler.ExportPDF)

			resumeGroup.GET("/:id/sections", sectionHandler.ListSections)
			resumeGroup.POST("/:id/sections", sectionHandler.CreateSection)
			resumeGroup.PUT("/:id/sections/order", sectionHandler.ReorderSections)
			resumeGroup.PUT("/:id/sections/:section_id", sectionHandler.UpdateSection)
			resumeGroup.DELETE("/:id/sections/:section_id", sectionHandler.DeleteSection)

			resumeGroup.GET("/:id/sections/:section_id/entries", entryHandler.ListEntries)
			resumeGroup.POST("/:id/sections/:section_id/entries", entryHandler.CreateEntry)
			resumeGroup.PUT("/:id/sections/:section_id/entries/order", entryHandler.ReorderEntries)
			resumeGroup.PUT("/:id/sections/:section_id/entries/:entry_id", entryHandler.UpdateEntry)
			resumeGroup.DELETE("/:id/sections/:section_id/entries/:entry_id", entryHandler.DeleteEntry)
		}
	}
}
