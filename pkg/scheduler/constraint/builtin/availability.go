package builtin

import (
	"fmt"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// RoleMatchConstraint 角色匹配约束：人员只能担任自己的角色
type RoleMatchConstraint struct {
	*BaseConstraint
}

// NewRoleMatchConstraint 创建角色匹配约束
func NewRoleMatchConstraint() *RoleMatchConstraint {
	return &RoleMatchConstraint{
		BaseConstraint: NewBaseConstraint("角色匹配", constraint.TypeRoleMatch, constraint.CategoryHard, 100),
	}
}

// Evaluate 评估整个值班表
func (c *RoleMatchConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	visit(ctx, func(date int, role model.Role, staffID string, staff int) {
		dateStr := ctx.Schedule.SlotAt(date).Date
		if staff < 0 {
			violations = append(violations, c.CreateViolation(staffID, dateStr, role,
				fmt.Sprintf("人员 %s 不在名单中", staffID), 1))
			return
		}
		if own := ctx.Domain.StaffAt(staff).Role; own != role {
			violations = append(violations, c.CreateViolation(staffID, dateStr, role,
				fmt.Sprintf("人员 %s 的角色为%s，不能担任%s", staffID, own.Label(), role.Label()), 1))
		}
	})
	return len(violations) == 0, len(violations), violations
}

// Check 检查单个分配
func (c *RoleMatchConstraint) Check(ctx *constraint.Context, date int, role model.Role, staff int) bool {
	return ctx.Domain.StaffAt(staff).Role == role
}

// UnavailableDateConstraint 不可值班日期约束
type UnavailableDateConstraint struct {
	*BaseConstraint
}

// NewUnavailableDateConstraint 创建不可值班日期约束
func NewUnavailableDateConstraint() *UnavailableDateConstraint {
	return &UnavailableDateConstraint{
		BaseConstraint: NewBaseConstraint("不可值班日期", constraint.TypeUnavailableDate, constraint.CategoryHard, 100),
	}
}

// Evaluate 评估整个值班表
func (c *UnavailableDateConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	visit(ctx, func(date int, role model.Role, staffID string, staff int) {
		if staff < 0 || !ctx.Domain.Unavailable(staff, date) {
			return
		}
		dateStr := ctx.Schedule.SlotAt(date).Date
		violations = append(violations, c.CreateViolation(staffID, dateStr, role,
			fmt.Sprintf("人员 %s 在 %s 不可值班", staffID, dateStr), 1))
	})
	return len(violations) == 0, len(violations), violations
}

// Check 检查单个分配
func (c *UnavailableDateConstraint) Check(ctx *constraint.Context, date int, role model.Role, staff int) bool {
	return !ctx.Domain.Unavailable(staff, date)
}

// DoubleBookingConstraint 同日重复排班约束
type DoubleBookingConstraint struct {
	*BaseConstraint
}

// NewDoubleBookingConstraint 创建同日重复排班约束
func NewDoubleBookingConstraint() *DoubleBookingConstraint {
	return &DoubleBookingConstraint{
		BaseConstraint: NewBaseConstraint("同日不重复排班", constraint.TypeDoubleBooking, constraint.CategoryHard, 100),
	}
}

// Evaluate 评估整个值班表，同一人同日每多担任一个岗位计一次
func (c *DoubleBookingConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	count := 0
	for d := 0; d < ctx.Schedule.Len(); d++ {
		slot := ctx.Schedule.SlotAt(d)
		seen := make(map[string]int, len(model.AllRoles))
		for _, r := range model.AllRoles {
			if id, ok := slot.Get(r).StaffID(); ok {
				seen[id]++
			}
		}
		for id, n := range seen {
			if n < 2 {
				continue
			}
			count += n - 1
			violations = append(violations, c.CreateViolation(id, slot.Date, 0,
				fmt.Sprintf("人员 %s 在 %s 同时担任 %d 个岗位", id, slot.Date, n), n-1))
		}
	}
	return count == 0, count, violations
}

// Check 检查单个分配
func (c *DoubleBookingConstraint) Check(ctx *constraint.Context, date int, role model.Role, staff int) bool {
	return !ctx.OnDuty(staff, date)
}
