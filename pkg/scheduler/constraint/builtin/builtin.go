package builtin

import (
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// RegisterDutyConstraints 按约束集注册值班约束
func RegisterDutyConstraints(manager *constraint.Manager, cs model.ConstraintSet) {
	maxDays := cs.MaxConsecutiveDays
	if maxDays <= 0 {
		maxDays = model.DefaultMaxConsecutiveDays
	}

	// 注册硬约束
	manager.Register(NewRoleMatchConstraint())
	manager.Register(NewUnavailableDateConstraint())
	manager.Register(NewDoubleBookingConstraint())
	manager.Register(NewQuotaConstraint())

	// 注册软约束
	manager.Register(NewMaxConsecutiveDaysConstraint(maxDays))
	manager.Register(NewPreferredDateConstraint(50))
}

// NewDutyManager 创建已注册值班约束的管理器
func NewDutyManager(cs model.ConstraintSet) *constraint.Manager {
	m := constraint.NewManager()
	RegisterDutyConstraints(m, cs)
	return m
}
