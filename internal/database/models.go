package database

import (
	"time"

	"gorm.io/datatypes"
)

// User 表示系统中的账号信息。
// Email 以规范化（小写）形式存储。
type User struct {
	ID                 uint      `gorm:"primaryKey"`
	Username           string    `gorm:"uniqueIndex;size:64;not null"`
	Email              string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash       string    `gorm:"size:255;not null"`
	MustChangePassword bool      `gorm:"not null"`
	Resumes            []Resume  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Resume 表示用户创建的简历。Slug 全局唯一，由数据库唯一索引兜底。
type Resume struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"size:255;not null"`
	Slug      string    `gorm:"uniqueIndex;size:255;not null"`
	Theme     string    `gorm:"size:50;not null"`
	UserID    uint      `gorm:"index;not null"`
	Sections  []Section `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Section 是简历中的有序分组。
type Section struct {
	ID        uint    `gorm:"primaryKey"`
	Title     string  `gorm:"size:100;not null"`
	SortOrder int     `gorm:"column:sort_order;not null"`
	ResumeID  uint    `gorm:"index;not null"`
	Entries   []Entry `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry 是分组中的单条经历（工作、教育等）。
type Entry struct {
	ID          uint            `gorm:"primaryKey"`
	Title       string          `gorm:"size:200;not null"`
	Subtitle    string          `gorm:"size:200"`
	Description string          `gorm:"type:text"`
	StartDate   *datatypes.Date `gorm:"type:date"`
	EndDate     *datatypes.Date `gorm:"type:date"`
	Current     bool            `gorm:"not null"`
	SortOrder   int             `gorm:"column:sort_order;not null"`
	SectionID   uint            `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Models 按依赖顺序列出需要迁移的模型。
func Models() []any {
	return []any{&User{}, &Resume{}, &Section{}, &Entry{}}
}
