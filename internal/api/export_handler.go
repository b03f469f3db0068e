package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/storage"
)

const (
	exportStubMessage   = "PDF export would be generated here"
	snapshotURLTTL      = 15 * time.Minute
	snapshotContentType = "application/json"
)

// SnapshotStorage 保存导出快照的对象存储。
type SnapshotStorage interface {
	PutObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

type exportResponse struct {
	Message     string       `json:"message"`
	Resume      *resume.View `json:"resume"`
	SnapshotURL string       `json:"snapshot_url,omitempty"`
}

// ExportPDF 返回导出占位结果。启用对象存储时额外保存一份 JSON 快照并返回限时下载链接；
// 快照失败不影响主响应。
func (h *ResumeHandler) ExportPDF(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	view, err := h.store.GetResume(ctx, userID, resumeID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := exportResponse{Message: exportStubMessage, Resume: view}
	if h.snapshots != nil {
		url, err := h.saveSnapshot(ctx, userID, view)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("save export snapshot failed",
				slog.Uint64("resume_id", uint64(resumeID)),
				slog.Any("error", err),
			)
		} else {
			resp.SnapshotURL = url
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResumeHandler) saveSnapshot(ctx context.Context, userID uint, view *resume.View) (string, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return "", err
	}

	key := storage.SnapshotKey(userID, view.ID, uuid.NewString())
	if err := h.snapshots.PutObject(ctx, key, data, snapshotContentType); err != nil {
		return "", err
	}
	return h.snapshots.PresignedURL(ctx, key, snapshotURLTTL)
}
