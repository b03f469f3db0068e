package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/storage"
)

const snapshotCleanupTimeout = 10 * time.Second

// ResumeHandler 负责处理与简历相关的 API 请求。
type ResumeHandler struct {
	store     *resume.Store
	snapshots SnapshotStorage
}

// NewResumeHandler 构造 ResumeHandler。snapshots 为空表示未启用导出快照。
func NewResumeHandler(store *resume.Store, snapshots SnapshotStorage) *ResumeHandler {
	return &ResumeHandler{store: store, snapshots: snapshots}
}

// CreateResume 创建一份空简历。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req resume.ResumeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.store.CreateResume(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ListResumes 列出当前用户的全部简历。
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	views, err := h.store.ListResumes(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetResume 返回指定简历及其分组、条目。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	view, err := h.store.GetResume(c.Request.Context(), userID, resumeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateResume 更新标题或主题，未出现的字段保持不变。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	var patch resume.ResumePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.store.UpdateResume(c.Request.Context(), userID, resumeID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteResume 删除简历及其全部分组、条目，随后尽力清理导出快照。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	if err := h.store.DeleteResume(c.Request.Context(), userID, resumeID); err != nil {
		writeError(c, err)
		return
	}

	if h.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), snapshotCleanupTimeout)
		defer cancel()
		if err := h.snapshots.DeletePrefix(ctx, storage.ResumePrefix(userID, resumeID)); err != nil {
			middleware.LoggerFromContext(c).Warn("delete export snapshots failed",
				slog.Uint64("resume_id", uint64(resumeID)),
				slog.Any("error", err),
			)
		}
	}

	c.Status(http.StatusNoContent)
}

// DuplicateResume 深拷贝一份简历。
func (h *ResumeHandler) DuplicateResume(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	view, err := h.store.DuplicateResume(c.Request.Context(), userID, resumeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}
