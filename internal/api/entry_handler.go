package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/resume"
)

// EntryHandler 处理分组内条目的增删改查与排序。
type EntryHandler struct {
	store *resume.Store
}

// NewEntryHandler 构造 EntryHandler。
func NewEntryHandler(store *resume.Store) *EntryHandler {
	return &EntryHandler{store: store}
}

type reorderEntriesRequest struct {
	Entries []resume.OrderUpdate `json:"entries"`
}

type entryPath struct {
	userID    uint
	resumeID  uint
	sectionID uint
}

func parseEntryPath(c *gin.Context) (entryPath, bool) {
	var p entryPath
	var ok bool
	if p.userID, ok = currentUserID(c); !ok {
		return p, false
	}
	if p.resumeID, ok = pathID(c, "id", "resume"); !ok {
		return p, false
	}
	if p.sectionID, ok = pathID(c, "section_id", "section"); !ok {
		return p, false
	}
	return p, true
}

// ListEntries 返回分组下的条目。
func (h *EntryHandler) ListEntries(c *gin.Context) {
	p, ok := parseEntryPath(c)
	if !ok {
		return
	}

	views, err := h.store.ListEntries(c.Request.Context(), p.userID, p.resumeID, p.sectionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// CreateEntry 在分组末尾追加条目。
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	p, ok := parseEntryPath(c)
	if !ok {
		return
	}

	var req resume.EntryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.store.CreateEntry(c.Request.Context(), p.userID, p.resumeID, p.sectionID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// UpdateEntry 只更新请求中出现的字段。
func (h *EntryHandler) UpdateEntry(c *gin.Context) {
	p, ok := parseEntryPath(c)
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entry_id", "entry")
	if !ok {
		return
	}

	var patch resume.EntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.store.UpdateEntry(c.Request.Context(), p.userID, p.resumeID, p.sectionID, entryID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteEntry 删除单个条目。
func (h *EntryHandler) DeleteEntry(c *gin.Context) {
	p, ok := parseEntryPath(c)
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entry_id", "entry")
	if !ok {
		return
	}

	if err := h.store.DeleteEntry(c.Request.Context(), p.userID, p.resumeID, p.sectionID, entryID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderEntries 批量更新条目排序值，未知 ID 会被忽略。
func (h *EntryHandler) ReorderEntries(c *gin.Context) {
	p, ok := parseEntryPath(c)
	if !ok {
		return
	}

	var req reorderEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Entries == nil {
		writeError(c, errcode.ErrValidation)
		return
	}

	views, err := h.store.ReorderEntries(c.Request.Context(), p.userID, p.resumeID, p.sectionID, req.Entries)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}
