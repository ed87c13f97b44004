// Package constraint 定义约束接口和管理器
package constraint

import (
	"sort"
	"sync"

	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
)

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
	logger      *logger.SchedulerLogger
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
		logger:      logger.NewSchedulerLogger(),
	}
}

// SetLogger 替换日志器
func (m *Manager) SetLogger(l *logger.SchedulerLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = l
}

// Register 注册约束，同类型约束会被替换
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.constraints {
		if existing.Type() == c.Type() {
			m.constraints[i] = c
			return
		}
	}

	m.constraints = append(m.constraints, c)

	// 硬约束在前，权重高的在前；同权重按类型名保证顺序稳定
	sort.SliceStable(m.constraints, func(i, j int) bool {
		ci, cj := m.constraints[i], m.constraints[j]
		if ci.Category() != cj.Category() {
			return ci.Category() == CategoryHard
		}
		if ci.Weight() != cj.Weight() {
			return ci.Weight() > cj.Weight()
		}
		return ci.Type() < cj.Type()
	})
}

// Unregister 注销约束
func (m *Manager) Unregister(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.constraints {
		if c.Type() == t {
			m.constraints = append(m.constraints[:i], m.constraints[i+1:]...)
			return
		}
	}
}

// GetConstraint 获取约束
func (m *Manager) GetConstraint(t Type) Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// GetAll 获取所有约束
func (m *Manager) GetAll() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Constraint, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// GetByCategory 按类别获取约束
func (m *Manager) GetByCategory(cat Category) []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Constraint
	for _, c := range m.constraints {
		if c.Category() == cat {
			result = append(result, c)
		}
	}
	return result
}

// Evaluate 评估所有约束
func (m *Manager) Evaluate(ctx *Context) *Result {
	constraints := m.GetAll()

	result := &Result{
		IsValid:        true,
		HardViolations: make([]ViolationDetail, 0),
		SoftViolations: make([]ViolationDetail, 0),
		ByType:         make(map[Type]int),
	}

	for _, c := range constraints {
		valid, count, details := c.Evaluate(ctx)
		if valid {
			continue
		}
		result.ByType[c.Type()] += count

		if c.Category() == CategoryHard {
			result.IsValid = false
			result.HardCount += count
			result.HardViolations = append(result.HardViolations, details...)
			for _, d := range details {
				m.logger.ConstraintViolation(c.Name(), d.Message)
			}
		} else {
			result.SoftCount += count
			result.SoftViolations = append(result.SoftViolations, details...)
		}
	}

	return result
}

// CanAssign 检查分配是否合法，返回第一个不满足的约束类型
func (m *Manager) CanAssign(ctx *Context, date int, role model.Role, staff int) (bool, Type) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if !c.Check(ctx, date, role, staff) {
			return false, c.Type()
		}
	}
	return true, ""
}

// Blocking 返回阻止该分配的全部约束类型
func (m *Manager) Blocking(ctx *Context, date int, role model.Role, staff int) []Type {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var types []Type
	for _, c := range m.constraints {
		if !c.Check(ctx, date, role, staff) {
			types = append(types, c.Type())
		}
	}
	return types
}

// Legal 返回可合法填入 (date, role) 的人员，按人员标识顺序
func (m *Manager) Legal(ctx *Context, date int, role model.Role) []int {
	var legal []int
	for _, s := range ctx.Domain.StaffByRole(role) {
		if ok, _ := m.CanAssign(ctx, date, role, s); ok {
			legal = append(legal, s)
		}
	}
	return legal
}

// Clear 清除所有约束
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make([]Constraint, 0)
}

// Count 返回约束数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.constraints)
}

// Summary 返回约束摘要
func (m *Manager) Summary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hard := 0
	soft := 0
	types := make([]string, 0, len(m.constraints))
	for _, c := range m.constraints {
		if c.Category() == CategoryHard {
			hard++
		} else {
			soft++
		}
		types = append(types, string(c.Type()))
	}

	return map[string]interface{}{
		"total": len(m.constraints),
		"hard":  hard,
		"soft":  soft,
		"types": types,
	}
}
