// Package validator 提供值班表冲突检测
package validator

import (
	"fmt"
	"sort"

	"github.com/paiban/zhiban/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictUnknownStaff   ConflictType = "unknown_staff"   // 人员不在名单中
	ConflictOutsideHorizon ConflictType = "outside_horizon" // 日期不在排班范围内
	ConflictRoleMismatch   ConflictType = "role_mismatch"   // 角色不符
	ConflictAvailability   ConflictType = "availability"    // 不可用日期
	ConflictDoubleBooking  ConflictType = "double_booking"  // 同日重复排班
	ConflictQuota          ConflictType = "quota"           // 超出配额
	ConflictConsecutive    ConflictType = "consecutive"     // 连续天数过多
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	StaffID  string       `json:"staff_id,omitempty"`
	Date     string       `json:"date,omitempty"`
	Role     model.Role   `json:"role,omitempty"`
	Message  string       `json:"message"`
}

// IsError 是否为硬冲突
func (c Conflict) IsError() bool {
	return c.Severity == "error"
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	MaxConsecutiveDays int  // 最大连续值班天数，0 使用默认值
	CheckAvailability  bool // 是否检查不可用日期
	CheckQuota         bool // 是否检查配额
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		MaxConsecutiveDays: model.DefaultMaxConsecutiveDays,
		CheckAvailability:  true,
		CheckQuota:         true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// ForDomain 按运行视图的约束集创建检测器
func ForDomain(domain *model.Domain) *ConflictDetector {
	cfg := DefaultDetectorConfig()
	if n := domain.Constraints().MaxConsecutiveDays; n > 0 {
		cfg.MaxConsecutiveDays = n
	}
	return NewConflictDetector(cfg)
}

func (d *ConflictDetector) maxDays() int {
	if d.config.MaxConsecutiveDays <= 0 {
		return model.DefaultMaxConsecutiveDays
	}
	return d.config.MaxConsecutiveDays
}

// DetectAll 检测值班表中的全部冲突，按日期、人员排序
func (d *ConflictDetector) DetectAll(domain *model.Domain, schedule *model.Schedule) []Conflict {
	var conflicts []Conflict

	// 按人员收集在岗日期
	onDuty := make([][]int, domain.StaffCount())
	weekday := make([]int, domain.StaffCount())
	holiday := make([]int, domain.StaffCount())

	for i := 0; i < schedule.Len(); i++ {
		slot := schedule.SlotAt(i)
		di, inHorizon := domain.DateIndex(slot.Date)
		seen := make(map[string]model.Role)

		for _, r := range model.AllRoles {
			id, ok := slot.Get(r).StaffID()
			if !ok {
				continue
			}
			if !inHorizon {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictOutsideHorizon,
					Severity: "error",
					StaffID:  id,
					Date:     slot.Date,
					Role:     r,
					Message:  fmt.Sprintf("%s 不在排班日期范围内", slot.Date),
				})
				continue
			}
			si, known := domain.StaffIndex(id)
			if !known {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictUnknownStaff,
					Severity: "error",
					StaffID:  id,
					Date:     slot.Date,
					Role:     r,
					Message:  fmt.Sprintf("人员 %s 不在名单中", id),
				})
				continue
			}
			conflicts = append(conflicts, d.checkSlot(domain, di, r, si)...)

			if prev, dup := seen[id]; dup {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictDoubleBooking,
					Severity: "error",
					StaffID:  id,
					Date:     slot.Date,
					Role:     r,
					Message:  fmt.Sprintf("人员 %s 在 %s 同时担任%s与%s", id, slot.Date, prev.Label(), r.Label()),
				})
				continue
			}
			seen[id] = r
			onDuty[si] = append(onDuty[si], di)
			if domain.IsHoliday(di) {
				holiday[si]++
			} else {
				weekday[si]++
			}
		}
	}

	for si, s := range domain.StaffList() {
		if d.config.CheckQuota {
			conflicts = append(conflicts, quotaConflicts(s, weekday[si], holiday[si])...)
		}
		conflicts = append(conflicts, d.detectConsecutive(domain, s, onDuty[si])...)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Date != conflicts[j].Date {
			return conflicts[i].Date < conflicts[j].Date
		}
		return conflicts[i].StaffID < conflicts[j].StaffID
	})
	return conflicts
}

// DetectForAssignment 检测把人员填入 (date, role) 后新增的冲突
func (d *ConflictDetector) DetectForAssignment(domain *model.Domain, schedule *model.Schedule, date string, role model.Role, staffID string) []Conflict {
	if _, ok := domain.DateIndex(date); !ok {
		return []Conflict{{
			Type:     ConflictOutsideHorizon,
			Severity: "error",
			StaffID:  staffID,
			Date:     date,
			Role:     role,
			Message:  fmt.Sprintf("%s 不在排班日期范围内", date),
		}}
	}

	trial := schedule.Clone()
	if err := trial.Assign(date, role, staffID); err != nil {
		return []Conflict{{Type: ConflictOutsideHorizon, Severity: "error", StaffID: staffID, Date: date, Role: role, Message: err.Error()}}
	}

	// 原表已存在的冲突不算新冲突
	existing := make(map[Conflict]bool)
	for _, c := range d.DetectAll(domain, schedule) {
		existing[c] = true
	}
	var fresh []Conflict
	for _, c := range d.DetectAll(domain, trial) {
		if c.StaffID == staffID && !existing[c] {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

// checkSlot 单个分配的角色与可用性检查
func (d *ConflictDetector) checkSlot(domain *model.Domain, date int, role model.Role, staff int) []Conflict {
	var conflicts []Conflict
	s := domain.StaffAt(staff)
	if s.Role != role {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictRoleMismatch,
			Severity: "error",
			StaffID:  s.ID,
			Date:     domain.Date(date),
			Role:     role,
			Message:  fmt.Sprintf("%s 是%s，不能担任%s", s.DisplayName(), s.Role.Label(), role.Label()),
		})
	}
	if d.config.CheckAvailability && domain.Unavailable(staff, date) {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictAvailability,
			Severity: "error",
			StaffID:  s.ID,
			Date:     domain.Date(date),
			Role:     role,
			Message:  fmt.Sprintf("%s 在 %s 不可值班", s.DisplayName(), domain.Date(date)),
		})
	}
	return conflicts
}

func quotaConflicts(s *model.Staff, weekday, holiday int) []Conflict {
	var conflicts []Conflict
	if weekday > s.WeekdayQuota {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictQuota,
			Severity: "error",
			StaffID:  s.ID,
			Role:     s.Role,
			Message:  fmt.Sprintf("%s 平日值班 %d 次，超过配额 %d", s.DisplayName(), weekday, s.WeekdayQuota),
		})
	}
	if holiday > s.HolidayQuota {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictQuota,
			Severity: "error",
			StaffID:  s.ID,
			Role:     s.Role,
			Message:  fmt.Sprintf("%s 假日值班 %d 次，超过配额 %d", s.DisplayName(), holiday, s.HolidayQuota),
		})
	}
	return conflicts
}

// detectConsecutive 检测超出上限的连续值班段，每段报告一次
func (d *ConflictDetector) detectConsecutive(domain *model.Domain, s *model.Staff, dates []int) []Conflict {
	if len(dates) == 0 {
		return nil
	}
	sort.Ints(dates)

	var conflicts []Conflict
	limit := d.maxDays()
	start := 0
	flush := func(end int) {
		if n := end - start + 1; n > limit {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictConsecutive,
				Severity: "warning",
				StaffID:  s.ID,
				Date:     domain.Date(dates[start]),
				Role:     s.Role,
				Message:  fmt.Sprintf("%s 自 %s 起连续值班 %d 天，超过限制 %d 天", s.DisplayName(), domain.Date(dates[start]), n, limit),
			})
		}
	}
	for i := 1; i < len(dates); i++ {
		if dates[i] == dates[i-1]+1 && domain.AdjacentPrev(dates[i]) {
			continue
		}
		flush(i - 1)
		start = i
	}
	flush(len(dates) - 1)
	return conflicts
}
