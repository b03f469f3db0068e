package resume

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resumeBuilder/internal/database"
)

// ListEntries 返回分组下的条目，按排序值升序。
func (s *Store) ListEntries(ctx context.Context, userID, resumeID, sectionID uint) (views []EntryView, err error) {
	defer track("list_entries")(&err)

	db := s.db.WithContext(ctx)
	if _, err := resolveOwnedSection(db, userID, resumeID, sectionID); err != nil {
		return nil, err
	}
	return listEntries(db, sectionID)
}

// CreateEntry 在分组末尾追加一个条目。
func (s *Store) CreateEntry(ctx context.Context, userID, resumeID, sectionID uint, in EntryInput) (view *EntryView, err error) {
	defer track("create_entry")(&err)

	title, err := requiredText(in.Title, "title", maxEntryTitleLength)
	if err != nil {
		return nil, err
	}

	var entry database.Entry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := resolveOwnedSection(tx, userID, resumeID, sectionID); err != nil {
			return err
		}
		order, err := nextSortOrder(tx, &database.Entry{}, "section_id", sectionID)
		if err != nil {
			return err
		}
		entry = database.Entry{
			Title:       title,
			Subtitle:    in.Subtitle,
			Description: in.Description,
			StartDate:   in.StartDate.column(),
			EndDate:     in.EndDate.column(),
			Current:     in.Current,
			SortOrder:   order,
			SectionID:   sectionID,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	v := newEntryView(entry)
	return &v, nil
}

// UpdateEntry 只覆盖 patch 中出现的字段，并总是刷新 updated_at。
func (s *Store) UpdateEntry(ctx context.Context, userID, resumeID, sectionID, entryID uint, patch EntryPatch) (view *EntryView, err error) {
	defer track("update_entry")(&err)

	var title string
	if patch.Title != nil {
		if title, err = requiredText(*patch.Title, "title", maxEntryTitleLength); err != nil {
			return nil, err
		}
	}

	var updated database.Entry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := resolveOwnedSection(tx, userID, resumeID, sectionID); err != nil {
			return err
		}
		entry, err := resolveEntry(tx, sectionID, entryID)
		if err != nil {
			return err
		}

		updates := map[string]any{"updated_at": tx.NowFunc()}
		if patch.Title != nil {
			updates["title"] = title
		}
		if patch.Subtitle != nil {
			updates["subtitle"] = *patch.Subtitle
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.StartDate.Set {
			updates["start_date"] = patch.StartDate.column()
		}
		if patch.EndDate.Set {
			updates["end_date"] = patch.EndDate.column()
		}
		if patch.Current != nil {
			updates["current"] = *patch.Current
		}
		if patch.Order != nil {
			updates["sort_order"] = *patch.Order
		}
		if err := tx.Model(entry).Updates(updates).Error; err != nil {
			return err
		}

		return tx.First(&updated, entry.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}

	v := newEntryView(updated)
	return &v, nil
}

// DeleteEntry 只删除该条目。
func (s *Store) DeleteEntry(ctx context.Context, userID, resumeID, sectionID, entryID uint) (err error) {
	defer track("delete_entry")(&err)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := resolveOwnedSection(tx, userID, resumeID, sectionID); err != nil {
			return err
		}
		entry, err := resolveEntry(tx, sectionID, entryID)
		if err != nil {
			return err
		}
		return tx.Delete(entry).Error
	})
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// ReorderEntries 与 ReorderSections 语义相同，作用于分组内的条目。
func (s *Store) ReorderEntries(ctx context.Context, userID, resumeID, sectionID uint, items []OrderUpdate) (views []EntryView, err error) {
	defer track("reorder_entries")(&err)

	if err := validateOrderUpdates(items); err != nil {
		return nil, err
	}

	skipped := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := resolveOwnedSection(tx, userID, resumeID, sectionID); err != nil {
			return err
		}

		now := tx.NowFunc()
		for _, item := range items {
			result := tx.Model(&database.Entry{}).
				Where("id = ? AND section_id = ?", item.ID, sectionID).
				Updates(map[string]any{"sort_order": *item.Order, "updated_at": now})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				skipped++
			}
		}

		views, err = listEntries(tx, sectionID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reorder entries: %w", err)
	}

	if skipped > 0 {
		s.logger.DebugContext(ctx, "reorder skipped unknown entries",
			slog.Uint64("section_id", uint64(sectionID)),
			slog.Int("skipped", skipped),
		)
	}
	return views, nil
}

func listEntries(tx *gorm.DB, sectionID uint) ([]EntryView, error) {
	var entries []database.Entry
	if err := tx.Where("section_id = ?", sectionID).
		Scopes(orderedSiblings).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, newEntryView(entry))
	}
	return views, nil
}

func copyDate(d *datatypes.Date) *datatypes.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
