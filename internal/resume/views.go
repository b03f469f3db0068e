package resume

import (
	"time"

	"gorm.io/datatypes"

	"resumeBuilder/internal/database"
)

// View 是简历的完整序列化形式，分组与条目均按排序值升序排列。
type View struct {
	ID        uint          `json:"id"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	Theme     string        `json:"theme"`
	UserID    uint          `json:"user_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Sections  []SectionView `json:"sections"`
}

// SectionView 是分组的序列化形式。
type SectionView struct {
	ID        uint        `json:"id"`
	Title     string      `json:"title"`
	Order     int         `json:"order"`
	ResumeID  uint        `json:"resume_id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Entries   []EntryView `json:"entries"`
}

// EntryView 是条目的序列化形式，日期为 YYYY-MM-DD 或 null。
type EntryView struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Description string    `json:"description"`
	StartDate   *string   `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	Current     bool      `json:"current"`
	Order       int       `json:"order"`
	SectionID   uint      `json:"section_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newView(r database.Resume) View {
	sections := make([]SectionView, 0, len(r.Sections))
	for _, s := range r.Sections {
		sections = append(sections, newSectionView(s))
	}
	return View{
		ID:        r.ID,
		Title:     r.Title,
		Slug:      r.Slug,
		Theme:     r.Theme,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Sections:  sections,
	}
}

func newSectionView(s database.Section) SectionView {
	entries := make([]EntryView, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, newEntryView(e))
	}
	return SectionView{
		ID:        s.ID,
		Title:     s.Title,
		Order:     s.SortOrder,
		ResumeID:  s.ResumeID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Entries:   entries,
	}
}

func newEntryView(e database.Entry) EntryView {
	return EntryView{
		ID:          e.ID,
		Title:       e.Title,
		Subtitle:    e.Subtitle,
		Description: e.Description,
		StartDate:   formatDate(e.StartDate),
		EndDate:     formatDate(e.EndDate),
		Current:     e.Current,
		Order:       e.SortOrder,
		SectionID:   e.SectionID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func formatDate(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}
	s := time.Time(*d).Format(dateLayout)
	return &s
}
