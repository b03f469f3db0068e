// Package resume 实现简历、分组、条目三级结构的存取：归属校验、排序、复制与 slug 生成。
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/metrics"
	"resumeBuilder/internal/slug"
)

const (
	// DefaultTheme 是未指定主题时使用的主题。
	DefaultTheme = "classic"

	maxResumeTitleLength  = 255
	maxThemeLength        = 50
	maxSectionTitleLength = 100
	maxEntryTitleLength   = 200
	// 为 "-N" 后缀预留空间。
	maxSlugBaseLength = 240

	copyTitlePrefix = "Copy of "
)

// Store 提供简历树的全部读写操作，每个调用都以请求者 ID 作为归属依据。
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore 构造 Store。logger 为空时使用默认 logger。
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// CreateResume 为用户创建一份空简历，并从标题派生唯一 slug。
func (s *Store) CreateResume(ctx context.Context, userID uint, in ResumeInput) (view *View, err error) {
	defer track("create_resume")(&err)

	title, err := requiredText(in.Title, "title", maxResumeTitleLength)
	if err != nil {
		return nil, err
	}
	theme := DefaultTheme
	if in.Theme != nil && strings.TrimSpace(*in.Theme) != "" {
		if theme, err = requiredText(*in.Theme, "theme", maxThemeLength); err != nil {
			return nil, err
		}
	}

	var created database.Resume
	err = retryOnSlugConflict(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			slugValue, err := uniqueSlug(ctx, tx, title, 0)
			if err != nil {
				return err
			}
			created = database.Resume{
				Title:  title,
				Slug:   slugValue,
				Theme:  theme,
				UserID: userID,
			}
			return tx.Create(&created).Error
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create resume: %w", err)
	}

	s.logger.InfoContext(ctx, "resume created",
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("resume_id", uint64(created.ID)),
		slog.String("slug", created.Slug),
	)
	v := newView(created)
	return &v, nil
}

// ListResumes 返回用户拥有的全部简历。
func (s *Store) ListResumes(ctx context.Context, userID uint) (views []View, err error) {
	defer track("list_resumes")(&err)

	var resumes []database.Resume
	if err := preloadTree(s.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}

	views = make([]View, 0, len(resumes))
	for _, r := range resumes {
		views = append(views, newView(r))
	}
	return views, nil
}

// GetResume 返回用户拥有的某份简历。
func (s *Store) GetResume(ctx context.Context, userID, resumeID uint) (view *View, err error) {
	defer track("get_resume")(&err)

	db := s.db.WithContext(ctx)
	if _, err := resolveOwnedResume(db, userID, resumeID); err != nil {
		return nil, err
	}
	resume, err := loadTree(db, resumeID)
	if err != nil {
		return nil, err
	}
	v := newView(*resume)
	return &v, nil
}

// UpdateResume 只覆盖 patch 中出现的字段。修改标题会重新生成 slug。
func (s *Store) UpdateResume(ctx context.Context, userID, resumeID uint, patch ResumePatch) (view *View, err error) {
	defer track("update_resume")(&err)

	var title, theme string
	if patch.Title != nil {
		if title, err = requiredText(*patch.Title, "title", maxResumeTitleLength); err != nil {
			return nil, err
		}
	}
	if patch.Theme != nil {
		if theme, err = requiredText(*patch.Theme, "theme", maxThemeLength); err != nil {
			return nil, err
		}
	}

	var updated *database.Resume
	err = retryOnSlugConflict(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			resume, err := resolveOwnedResume(tx, userID, resumeID)
			if err != nil {
				return err
			}

			updates := map[string]any{"updated_at": tx.NowFunc()}
			if patch.Title != nil {
				slugValue, err := uniqueSlug(ctx, tx, title, resume.ID)
				if err != nil {
					return err
				}
				updates["title"] = title
				updates["slug"] = slugValue
			}
			if patch.Theme != nil {
				updates["theme"] = theme
			}
			if err := tx.Model(resume).Updates(updates).Error; err != nil {
				return err
			}

			updated, err = loadTree(tx, resume.ID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update resume: %w", err)
	}

	v := newView(*updated)
	return &v, nil
}

// DeleteResume 在一个事务内按条目、分组、简历的顺序删除整棵树。
func (s *Store) DeleteResume(ctx context.Context, userID, resumeID uint) (err error) {
	defer track("delete_resume")(&err)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resume, err := resolveOwnedResume(tx, userID, resumeID)
		if err != nil {
			return err
		}

		sectionIDs := tx.Model(&database.Section{}).Select("id").Where("resume_id = ?", resume.ID)
		if err := tx.Where("section_id IN (?)", sectionIDs).Delete(&database.Entry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("resume_id = ?", resume.ID).Delete(&database.Section{}).Error; err != nil {
			return err
		}
		return tx.Delete(resume).Error
	})
	if err != nil {
		return fmt.Errorf("delete resume: %w", err)
	}

	s.logger.InfoContext(ctx, "resume deleted",
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("resume_id", uint64(resumeID)),
	)
	return nil
}

// DuplicateResume 深拷贝一份简历：新标题为 "Copy of " + 原标题，slug 由新标题派生，
// 分组与条目保留原排序值但使用新 ID。整个复制在一个事务内完成。
func (s *Store) DuplicateResume(ctx context.Context, userID, resumeID uint) (view *View, err error) {
	defer track("duplicate_resume")(&err)

	var duplicated *database.Resume
	err = retryOnSlugConflict(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := resolveOwnedResume(tx, userID, resumeID); err != nil {
				return err
			}
			source, err := loadTree(tx, resumeID)
			if err != nil {
				return err
			}

			title := truncateRunes(copyTitlePrefix+source.Title, maxResumeTitleLength)
			slugValue, err := uniqueSlug(ctx, tx, title, 0)
			if err != nil {
				return err
			}

			dup := database.Resume{
				Title:  title,
				Slug:   slugValue,
				Theme:  source.Theme,
				UserID: userID,
			}
			if err := tx.Create(&dup).Error; err != nil {
				return err
			}

			for _, section := range source.Sections {
				newSection := database.Section{
					Title:     section.Title,
					SortOrder: section.SortOrder,
					ResumeID:  dup.ID,
				}
				if err := tx.Create(&newSection).Error; err != nil {
					return err
				}
				if len(section.Entries) == 0 {
					continue
				}

				entries := make([]database.Entry, 0, len(section.Entries))
				for _, entry := range section.Entries {
					entries = append(entries, database.Entry{
						Title:       entry.Title,
						Subtitle:    entry.Subtitle,
						Description: entry.Description,
						StartDate:   copyDate(entry.StartDate),
						EndDate:     copyDate(entry.EndDate),
						Current:     entry.Current,
						SortOrder:   entry.SortOrder,
						SectionID:   newSection.ID,
					})
				}
				if err := tx.Create(&entries).Error; err != nil {
					return err
				}
			}

			duplicated, err = loadTree(tx, dup.ID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate resume: %w", err)
	}

	s.logger.InfoContext(ctx, "resume duplicated",
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("source_id", uint64(resumeID)),
		slog.Uint64("resume_id", uint64(duplicated.ID)),
	)
	v := newView(*duplicated)
	return &v, nil
}

// preloadTree 按排序值（相同时按 ID）预加载分组与条目。
func preloadTree(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sections", orderedSiblings).
		Preload("Sections.Entries", orderedSiblings)
}

func orderedSiblings(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("id ASC")
}

func loadTree(tx *gorm.DB, resumeID uint) (*database.Resume, error) {
	var resume database.Resume
	if err := preloadTree(tx).First(&resume, resumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFoundf("resume")
		}
		return nil, fmt.Errorf("load resume: %w", err)
	}
	return &resume, nil
}

// uniqueSlug 在事务内扫描已有 slug；excludeID 非零时忽略该简历自身。
func uniqueSlug(ctx context.Context, tx *gorm.DB, title string, excludeID uint) (string, error) {
	base := truncateBytes(slug.Slugify(title), maxSlugBaseLength)
	return slug.Unique(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		query := tx.WithContext(ctx).Model(&database.Resume{}).Where("slug = ?", candidate)
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	})
}

// retryOnSlugConflict 在唯一索引冲突时整体重试一次：并发请求可能在扫描之后抢先占用同一 slug。
// 重试包含整个事务，因为 Postgres 在语句出错后会中止当前事务。
func retryOnSlugConflict(fn func() error) error {
	err := fn()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = fn()
	}
	return err
}

// nextSortOrder 返回同级最大排序值加一；没有同级时为 1。
func nextSortOrder(tx *gorm.DB, model any, parentColumn string, parentID uint) (int, error) {
	var maxOrder int
	err := tx.Model(model).
		Where(parentColumn+" = ?", parentID).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, fmt.Errorf("next sort order: %w", err)
	}
	return maxOrder + 1, nil
}

func validateOrderUpdates(items []OrderUpdate) error {
	for _, item := range items {
		if item.Order == nil {
			return errcode.Validationf("each item requires id and order")
		}
	}
	return nil
}

func requiredText(value, field string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errcode.Validationf(field + " is required")
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", errcode.Validationf(fmt.Sprintf("%s must be at most %d characters", field, maxLen))
	}
	return trimmed, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimRight(s[:cut], "-_")
}

func track(operation string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		metrics.ObserveStoreOperation(operation, start, *errp)
	}
}
