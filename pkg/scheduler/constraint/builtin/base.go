// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// CreateViolation 创建违反详情
func (c *BaseConstraint) CreateViolation(staffID, date string, role model.Role, message string, count int) constraint.ViolationDetail {
	severity := "warning"
	if c.category == constraint.CategoryHard {
		severity = "error"
	}

	return constraint.ViolationDetail{
		ConstraintType: c.typ,
		ConstraintName: c.name,
		StaffID:        staffID,
		Date:           date,
		Role:           role,
		Message:        message,
		Severity:       severity,
		Count:          count,
	}
}

// Evaluate 默认评估实现（子类需覆盖）
func (c *BaseConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	return true, 0, nil
}

// Check 默认分配检查实现（子类需覆盖）
func (c *BaseConstraint) Check(ctx *constraint.Context, date int, role model.Role, staff int) bool {
	return true
}

// visit 遍历值班表中的每个已分配岗位；staff 为 -1 表示人员不在名单中
func visit(ctx *constraint.Context, fn func(date int, role model.Role, staffID string, staff int)) {
	for d := 0; d < ctx.Schedule.Len(); d++ {
		slot := ctx.Schedule.SlotAt(d)
		for _, r := range model.AllRoles {
			id, ok := slot.Get(r).StaffID()
			if !ok {
				continue
			}
			si, known := ctx.Domain.StaffIndex(id)
			if !known {
				si = -1
			}
			fn(d, r, id, si)
		}
	}
}
