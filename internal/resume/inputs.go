package resume

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const dateLayout = "2006-01-02"

// ResumeInput 是创建简历的参数；Theme 为空时使用默认主题。
type ResumeInput struct {
	Title string  `json:"title"`
	Theme *string `json:"theme"`
}

// ResumePatch 只包含请求中出现的字段。
type ResumePatch struct {
	Title *string `json:"title"`
	Theme *string `json:"theme"`
}

// SectionInput 是创建分组的参数，排序值由服务端分配。
type SectionInput struct {
	Title string `json:"title"`
}

// SectionPatch 只包含请求中出现的字段。
type SectionPatch struct {
	Title *string `json:"title"`
	Order *int    `json:"order"`
}

// EntryInput 是创建条目的参数，排序值由服务端分配。
type EntryInput struct {
	Title       string       `json:"title"`
	Subtitle    string       `json:"subtitle"`
	Description string       `json:"description"`
	StartDate   OptionalDate `json:"start_date"`
	EndDate     OptionalDate `json:"end_date"`
	Current     bool         `json:"current"`
}

// EntryPatch 只包含请求中出现的字段。日期字段显式传 null 或空串表示清空。
type EntryPatch struct {
	Title       *string      `json:"title"`
	Subtitle    *string      `json:"subtitle"`
	Description *string      `json:"description"`
	StartDate   OptionalDate `json:"start_date"`
	EndDate     OptionalDate `json:"end_date"`
	Current     *bool        `json:"current"`
	Order       *int         `json:"order"`
}

// OrderUpdate 是批量排序中的一项。
type OrderUpdate struct {
	ID    uint `json:"id"`
	Order *int `json:"order"`
}

// OptionalDate 区分“字段未出现”和“字段为 null”，取值格式为 YYYY-MM-DD。
type OptionalDate struct {
	Set   bool
	Value *time.Time
}

// DateOf 构造一个已设置的日期。
func DateOf(t time.Time) OptionalDate {
	return OptionalDate{Set: true, Value: &t}
}

// UnmarshalJSON 实现 json.Unmarshaler；JSON null 也会调用此方法。
func (d *OptionalDate) UnmarshalJSON(data []byte) error {
	d.Set = true
	d.Value = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string in YYYY-MM-DD format")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	d.Value = &parsed
	return nil
}

func (d OptionalDate) column() *datatypes.Date {
	if d.Value == nil {
		return nil
	}
	date := datatypes.Date(*d.Value)
	return &date
}
