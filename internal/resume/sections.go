package resume

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"resumeBuilder/internal/database"
)

// ListSections 返回简历下的全部分组（含条目），按排序值升序。
func (s *Store) ListSections(ctx context.Context, userID, resumeID uint) (views []SectionView, err error) {
	defer track("list_sections")(&err)

	db := s.db.WithContext(ctx)
	if _, err := resolveOwnedResume(db, userID, resumeID); err != nil {
		return nil, err
	}
	return listSections(db, resumeID)
}

// CreateSection 在简历末尾追加一个分组。
func (s *Store) CreateSection(ctx context.Context, userID, resumeID uint, in SectionInput) (view *SectionView, err error) {
	defer track("create_section")(&err)

	title, err := requiredText(in.Title, "title", maxSectionTitleLength)
	if err != nil {
		return nil, err
	}

	var section database.Section
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := resolveOwnedResume(tx, userID, resumeID); err != nil {
			return err
		}
		order, err := nextSortOrder(tx, &database.Section{}, "resume_id", resumeID)
		if err != nil {
			return err
		}
		section = database.Section{
			Title:     title,
			SortOrder: order,
			ResumeID:  resumeID,
		}
		return tx.Create(&section).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}

	v := newSectionView(section)
	return &v, nil
}

// UpdateSection 只覆盖 patch 中出现的字段，并总是刷新 updated_at。
func (s *Store) UpdateSection(ctx context.Context, userID, resumeID, sectionID uint, patch SectionPatch) (view *SectionView, err error) {
	defer track("update_section")(&err)

	var title string
	if patch.Title != nil {
		if title, err = requiredText(*patch.Title, "title", maxSectionTitleLength); err != nil {
			return nil, err
		}
	}

	var updated database.Section
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		section, err := resolveOwnedSection(tx, userID, resumeID, sectionID)
		if err != nil {
			return err
		}

		updates := map[string]any{"updated_at": tx.NowFunc()}
		if patch.Title != nil {
			updates["title"] = title
		}
		if patch.Order != nil {
			updates["sort_order"] = *patch.Order
		}
		if err := tx.Model(section).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Preload("Entries", orderedSiblings).First(&updated, section.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update section: %w", err)
	}

	v := newSectionView(updated)
	return &v, nil
}

// DeleteSection 先删除分组下的条目，再删除分组本身。
func (s *Store) DeleteSection(ctx context.Context, userID, resumeID, sectionID uint) (err error) {
	defer track("delete_section")(&err)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		section, err := resolveOwnedSection(tx, userID, resumeID, sectionID)
		if err != nil {
			return err
		}
		if err := tx.Where("section_id = ?", section.ID).Delete(&database.Entry{}).Error; err != nil {
			return err
		}
		return tx.Delete(section).Error
	})
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// ReorderSections 批量改写分组排序值。无法解析到本简历下分组的 ID 会被静默跳过；
// 任一更新失败时整批回滚。返回重新排序后的完整列表。
func (s *Store) ReorderSections(ctx context.Context, userID, resumeID uint, items []OrderUpdate) (views []SectionView, err error) {
	defer track("reorder_sections")(&err)

	if err := validateOrderUpdates(items); err != nil {
		return nil, err
	}

	skipped := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := resolveOwnedResume(tx, userID, resumeID); err != nil {
			return err
		}

		now := tx.NowFunc()
		for _, item := range items {
			result := tx.Model(&database.Section{}).
				Where("id = ? AND resume_id = ?", item.ID, resumeID).
				Updates(map[string]any{"sort_order": *item.Order, "updated_at": now})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				skipped++
			}
		}

		views, err = listSections(tx, resumeID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reorder sections: %w", err)
	}

	if skipped > 0 {
		s.logger.DebugContext(ctx, "reorder skipped unknown sections",
			slog.Uint64("resume_id", uint64(resumeID)),
			slog.Int("skipped", skipped),
		)
	}
	return views, nil
}

func listSections(tx *gorm.DB, resumeID uint) ([]SectionView, error) {
	var sections []database.Section
	if err := tx.Preload("Entries", orderedSiblings).
		Where("resume_id = ?", resumeID).
		Scopes(orderedSiblings).
		Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	views := make([]SectionView, 0, len(sections))
	for _, section := range sections {
		views = append(views, newSectionView(section))
	}
	return views, nil
}
