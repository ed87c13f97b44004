package builtin

import (
	"fmt"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// PreferredDateConstraint 偏好日期约束（软约束）
// 未兑现的偏好记为提示，不影响分配合法性
type PreferredDateConstraint struct {
	*BaseConstraint
}

// NewPreferredDateConstraint 创建偏好日期约束
func NewPreferredDateConstraint(weight int) *PreferredDateConstraint {
	return &PreferredDateConstraint{
		BaseConstraint: NewBaseConstraint("偏好日期", constraint.TypePreferredDate, constraint.CategorySoft, weight),
	}
}

// Evaluate 评估整个值班表
func (c *PreferredDateConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail

	for si, s := range ctx.Domain.StaffList() {
		for d := 0; d < ctx.Domain.DateCount(); d++ {
			// 不可值班优先于偏好
			if !ctx.Domain.Preferred(si, d) || ctx.Domain.Unavailable(si, d) || ctx.OnDuty(si, d) {
				continue
			}
			violations = append(violations, c.CreateViolation(s.ID, ctx.Domain.Date(d), s.Role,
				fmt.Sprintf("人员 %s 偏好在 %s 值班但未安排", s.ID, ctx.Domain.Date(d)), 1))
		}
	}

	return len(violations) == 0, len(violations), violations
}

// Check 偏好不限制分配
func (c *PreferredDateConstraint) Check(ctx *constraint.Context, date int, role model.Role, staff int) bool {
	return true
}
