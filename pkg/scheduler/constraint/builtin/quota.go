package builtin

import (
	"fmt"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// QuotaConstraint 平日/假日值班配额约束
type QuotaConstraint struct {
	*BaseConstraint
}

// NewQuotaConstraint 创建配额约束
func NewQuotaConstraint() *QuotaConstraint {
	return &QuotaConstraint{
		BaseConstraint: NewBaseConstraint("值班配额", constraint.TypeQuota, constraint.CategoryHard, 90),
	}
}

// Evaluate 评估整个值班表，超出配额的每一次值班计一次
func (c *QuotaConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	count := 0

	for si, s := range ctx.Domain.StaffList() {
		for _, holiday := range []bool{false, true} {
			excess := ctx.DutyCount(si, holiday) - s.Quota(holiday)
			if excess <= 0 {
				continue
			}
			count += excess
			kind := "平日"
			if holiday {
				kind = "假日"
			}
			violations = append(violations, c.CreateViolation(s.ID, "", s.Role,
				fmt.Sprintf("人员 %s %s值班 %d 次，超出配额 %d 次", s.ID, kind, ctx.DutyCount(si, holiday), excess), excess))
		}
	}

	return count == 0, count, violations
}

// Check 检查单个分配
func (c *QuotaConstraint) Check(ctx *constraint.Context, date int, role model.Role, staff int) bool {
	holiday := ctx.Domain.IsHoliday(date)
	return ctx.DutyCount(staff, holiday) < ctx.Domain.Quota(staff, holiday)
}
