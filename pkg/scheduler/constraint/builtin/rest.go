package builtin

import (
	"fmt"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// MaxConsecutiveDaysConstraint 最大连续值班天数约束
// 评分时按软约束计；构造阶段通过 Check 禁止突破上限
type MaxConsecutiveDaysConstraint struct {
	*BaseConstraint
	maxDays int
}

// NewMaxConsecutiveDaysConstraint 创建最大连续值班天数约束
func NewMaxConsecutiveDaysConstraint(maxDays int) *MaxConsecutiveDaysConstraint {
	return &MaxConsecutiveDaysConstraint{
		BaseConstraint: NewBaseConstraint(
			"最大连续值班天数",
			constraint.TypeMaxConsecutiveDays,
			constraint.CategorySoft,
			80,
		),
		maxDays: maxDays,
	}
}

// MaxDays 上限
func (c *MaxConsecutiveDaysConstraint) MaxDays() int {
	return c.maxDays
}

// Evaluate 评估整个值班表，每段连续值班超出上限的天数计入
func (c *MaxConsecutiveDaysConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	total := 0

	for si, s := range ctx.Domain.StaffList() {
		for _, run := range Runs(ctx, si) {
			if run.Length <= c.maxDays {
				continue
			}
			excess := run.Length - c.maxDays
			total += excess
			violations = append(violations, c.CreateViolation(s.ID, ctx.Domain.Date(run.Start), s.Role,
				fmt.Sprintf("人员 %s 自 %s 起连续值班 %d 天，超过限制 %d 天",
					s.ID, ctx.Domain.Date(run.Start), run.Length, c.maxDays), excess))
		}
	}

	return total == 0, total, violations
}

// Check 检查单个分配
func (c *MaxConsecutiveDaysConstraint) Check(ctx *constraint.Context, date int, role model.Role, staff int) bool {
	before, after := ctx.RunAround(staff, date)
	return before+1+after <= c.maxDays
}

// Run 一段连续值班
type Run struct {
	Start  int // 起始日期位置
	Length int
}

// Runs 计算人员的全部连续值班段（按日历日相邻判断）
func Runs(ctx *constraint.Context, staff int) []Run {
	var runs []Run
	current := Run{Start: -1}
	for d := 0; d < ctx.Schedule.Len(); d++ {
		if !ctx.OnDuty(staff, d) {
			if current.Length > 0 {
				runs = append(runs, current)
			}
			current = Run{Start: -1}
			continue
		}
		if current.Length > 0 && ctx.Domain.AdjacentPrev(d) {
			current.Length++
			continue
		}
		if current.Length > 0 {
			runs = append(runs, current)
		}
		current = Run{Start: d, Length: 1}
	}
	if current.Length > 0 {
		runs = append(runs, current)
	}
	return runs
}
