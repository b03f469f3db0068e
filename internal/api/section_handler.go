package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/resume"
)

// SectionHandler 处理简历分组的增删改查与排序。
type SectionHandler struct {
	store *resume.Store
}

// NewSectionHandler 构造 SectionHandler。
func NewSectionHandler(store *resume.Store) *SectionHandler {
	return &SectionHandler{store: store}
}

type reorderSectionsRequest struct {
	Sections []resume.OrderUpdate `json:"sections"`
}

// ListSections 返回简历下的分组。
func (h *SectionHandler) ListSections(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	views, err := h.store.ListSections(c.Request.Context(), userID, resumeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// CreateSection 在简历末尾追加分组。
func (h *SectionHandler) CreateSection(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	var req resume.SectionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.store.CreateSection(c.Request.Context(), userID, resumeID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// UpdateSection 更新分组标题或排序值。
func (h *SectionHandler) UpdateSection(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}
	sectionID, ok := pathID(c, "section_id", "section")
	if !ok {
		return
	}

	var patch resume.SectionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.store.UpdateSection(c.Request.Context(), userID, resumeID, sectionID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteSection 删除分组及其条目。
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}
	sectionID, ok := pathID(c, "section_id", "section")
	if !ok {
		return
	}

	if err := h.store.DeleteSection(c.Request.Context(), userID, resumeID, sectionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderSections 批量更新分组排序值，未知 ID 会被忽略。
func (h *SectionHandler) ReorderSections(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resumeID, ok := pathID(c, "id", "resume")
	if !ok {
		return
	}

	var req reorderSectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Sections == nil {
		writeError(c, errcode.ErrValidation)
		return
	}

	views, err := h.store.ReorderSections(c.Request.Context(), userID, resumeID, req.Sections)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}
