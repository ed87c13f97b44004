// Package model 定义值班排班引擎的核心数据模型
package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// ConstraintCategory 约束类别
type ConstraintCategory string

const (
	ConstraintHard ConstraintCategory = "hard" // 硬约束（必须满足）
	ConstraintSoft ConstraintCategory = "soft" // 软约束（尽量满足）
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSON 数据
type JSONMap map[string]interface{}

// DateRange 日期范围（闭区间）
type DateRange struct {
	StartDate string `json:"start_date" yaml:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date" yaml:"end_date"`     // YYYY-MM-DD
}

// Dates 展开为逐日日期列表
func (r DateRange) Dates() ([]string, error) {
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return nil, fmt.Errorf("开始日期格式错误: %w", err)
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return nil, fmt.Errorf("结束日期格式错误: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("结束日期 %s 早于开始日期 %s", r.EndDate, r.StartDate)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

// SplitByWeekend 把日期按周末拆分为平日与假日
func SplitByWeekend(dates []string) (weekdays, holidays []string, err error) {
	for _, date := range dates {
		t, err := time.Parse(DateLayout, date)
		if err != nil {
			return nil, nil, fmt.Errorf("日期格式错误 %q: %w", date, err)
		}
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			holidays = append(holidays, date)
		} else {
			weekdays = append(weekdays, date)
		}
	}
	return weekdays, holidays, nil
}

// IsValidDate 检查日期格式
func IsValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// IsNextDay 检查 next 是否是 prev 的下一个日历日
func IsNextDay(prev, next string) bool {
	p, err1 := time.Parse(DateLayout, prev)
	n, err2 := time.Parse(DateLayout, next)
	if err1 != nil || err2 != nil {
		return false
	}
	return n.Sub(p) == 24*time.Hour
}

// SortDates 按时间顺序排序并去重
func SortDates(dates []string) []string {
	seen := make(map[string]bool, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	// YYYY-MM-DD 字典序即时间顺序
	sort.Strings(out)
	return out
}
