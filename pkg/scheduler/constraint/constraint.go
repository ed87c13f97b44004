// Package constraint 定义约束接口和管理器
package constraint

import (
	"github.com/paiban/zhiban/pkg/model"
)

// Type 约束类型标识
type Type string

const (
	// 合法性约束（束搜索与回填均不可违反）
	TypeRoleMatch          Type = "role_match"
	TypeUnavailableDate    Type = "unavailable_date"
	TypeQuota              Type = "quota"
	TypeDoubleBooking      Type = "double_booking"
	TypeMaxConsecutiveDays Type = "max_consecutive_days"

	// 偏好类约束
	TypePreferredDate Type = "preferred_date"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重 (1-100)
	Weight() int

	// Evaluate 评估整个值班表
	// 返回：是否满足、违反次数、违反详情
	Evaluate(ctx *Context) (valid bool, count int, details []ViolationDetail)

	// Check 检查把 staff 分配到 (date, role) 空岗位是否合法
	Check(ctx *Context, date int, role model.Role, staff int) bool
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type       `json:"constraint_type"`
	ConstraintName string     `json:"constraint_name"`
	StaffID        string     `json:"staff_id,omitempty"`
	Date           string     `json:"date,omitempty"`
	Role           model.Role `json:"role,omitempty"`
	Message        string     `json:"message"`
	Severity       string     `json:"severity"` // error/warning
	Count          int        `json:"count"`
}

// Context 约束评估上下文：运行视图 + 当前值班表 + 每人值班计数
type Context struct {
	Domain   *model.Domain
	Schedule *model.Schedule

	weekday []int
	holiday []int
}

// NewContext 创建上下文并统计计数
func NewContext(domain *model.Domain, schedule *model.Schedule) *Context {
	ctx := &Context{
		Domain:   domain,
		Schedule: schedule,
		weekday:  make([]int, domain.StaffCount()),
		holiday:  make([]int, domain.StaffCount()),
	}
	for d := 0; d < schedule.Len(); d++ {
		slot := schedule.SlotAt(d)
		for _, r := range model.AllRoles {
			id, ok := slot.Get(r).StaffID()
			if !ok {
				continue
			}
			si, known := domain.StaffIndex(id)
			if !known {
				continue
			}
			if domain.IsHoliday(d) {
				ctx.holiday[si]++
			} else {
				ctx.weekday[si]++
			}
		}
	}
	return ctx
}

// WithCounts 使用调用方维护的计数创建上下文，不复制切片
func WithCounts(domain *model.Domain, schedule *model.Schedule, weekday, holiday []int) *Context {
	return &Context{Domain: domain, Schedule: schedule, weekday: weekday, holiday: holiday}
}

// Assign 写入分配并更新计数
func (c *Context) Assign(date int, role model.Role, staff int) {
	c.Schedule.SetAt(date, role, model.Assigned(c.Domain.StaffAt(staff).ID))
	if c.Domain.IsHoliday(date) {
		c.holiday[staff]++
	} else {
		c.weekday[staff]++
	}
}

// DutyCount 人员在某日期类型上的值班次数
func (c *Context) DutyCount(staff int, holiday bool) int {
	if holiday {
		return c.holiday[staff]
	}
	return c.weekday[staff]
}

// TotalDuties 人员总值班次数
func (c *Context) TotalDuties(staff int) int {
	return c.weekday[staff] + c.holiday[staff]
}

// OnDuty 人员当天是否已在岗
func (c *Context) OnDuty(staff, date int) bool {
	_, ok := c.Schedule.SlotAt(date).RoleOf(c.Domain.StaffAt(staff).ID)
	return ok
}

// RunAround 目标日期前后紧邻的连续在岗天数（不含目标日）
func (c *Context) RunAround(staff, date int) (before, after int) {
	for d := date; c.Domain.AdjacentPrev(d) && c.OnDuty(staff, d-1); d-- {
		before++
	}
	for d := date; c.Domain.AdjacentNext(d) && c.OnDuty(staff, d+1); d++ {
		after++
	}
	return before, after
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	HardCount      int               `json:"hard_count"`
	SoftCount      int               `json:"soft_count"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
	ByType         map[Type]int      `json:"by_type"`
}
