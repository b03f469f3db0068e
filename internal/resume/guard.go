package resume

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/errcode"
)

// resolveOwnedResume 是唯一的鉴权入口：简历不存在与不属于当前用户都返回 NotFound。
func resolveOwnedResume(tx *gorm.DB, userID, resumeID uint) (*database.Resume, error) {
	var resume database.Resume
	err := tx.Where("id = ? AND user_id = ?", resumeID, userID).First(&resume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFoundf("resume")
		}
		return nil, fmt.Errorf("resolve resume: %w", err)
	}
	return &resume, nil
}

// resolveSection 要求分组挂在给定简历下；父级不匹配同样视为不存在。
func resolveSection(tx *gorm.DB, resumeID, sectionID uint) (*database.Section, error) {
	var section database.Section
	err := tx.Where("id = ? AND resume_id = ?", sectionID, resumeID).First(&section).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFoundf("section")
		}
		return nil, fmt.Errorf("resolve section: %w", err)
	}
	return &section, nil
}

func resolveEntry(tx *gorm.DB, sectionID, entryID uint) (*database.Entry, error) {
	var entry database.Entry
	err := tx.Where("id = ? AND section_id = ?", entryID, sectionID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFoundf("entry")
		}
		return nil, fmt.Errorf("resolve entry: %w", err)
	}
	return &entry, nil
}

// resolveOwnedSection 依次校验简历归属与分组归属。
func resolveOwnedSection(tx *gorm.DB, userID, resumeID, sectionID uint) (*database.Section, error) {
	if _, err := resolveOwnedResume(tx, userID, resumeID); err != nil {
		return nil, err
	}
	return resolveSection(tx, resumeID, sectionID)
}
