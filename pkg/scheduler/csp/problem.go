// Package csp 以约束满足搜索回填值班表中的空缺岗位
package csp

import (
	"context"
	"time"

	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// variable 一个空缺岗位
type variable struct {
	date    int
	role    model.Role
	holiday bool
}

// Problem 回填问题：变量为空缺岗位，取值为可填入的人员
// 已填岗位视为固定部分
type Problem struct {
	domain  *model.Domain
	manager *constraint.Manager
	base    *model.Schedule
	fixed   *constraint.Context
	maxDays int

	vars   []variable
	arena  *arena
	drains []map[constraint.Type]bool // 每个变量被删除取值的原因
}

// NewProblem 由基础值班表构建回填问题，并按固定部分做一元过滤
func NewProblem(domain *model.Domain, manager *constraint.Manager, base *model.Schedule) *Problem {
	maxDays := domain.Constraints().MaxConsecutiveDays
	if maxDays <= 0 {
		maxDays = model.DefaultMaxConsecutiveDays
	}
	p := &Problem{
		domain:  domain,
		manager: manager,
		base:    base,
		fixed:   constraint.NewContext(domain, base),
		maxDays: maxDays,
	}

	for _, ref := range base.Unfilled(domain.Roles()) {
		di, ok := domain.DateIndex(ref.Date)
		if !ok {
			continue
		}
		p.vars = append(p.vars, variable{date: di, role: ref.Role, holiday: domain.IsHoliday(di)})
	}

	p.drains = make([]map[constraint.Type]bool, len(p.vars))
	initial := make([][]int, len(p.vars))
	for i, v := range p.vars {
		p.drains[i] = make(map[constraint.Type]bool)
		candidates := domain.StaffByRole(v.role)
		if len(candidates) == 0 {
			p.drain(i, constraint.TypeRoleMatch)
		}
		for _, s := range candidates {
			if blocked := manager.Blocking(p.fixed, v.date, v.role, s); len(blocked) > 0 {
				p.drain(i, blocked...)
				continue
			}
			initial[i] = append(initial[i], s)
		}
	}
	p.arena = newArena(initial, domain.StaffCount())
	return p
}

// Len 变量数
func (p *Problem) Len() int {
	return len(p.vars)
}

// Variables 全部变量对应的岗位
func (p *Problem) Variables() []model.SlotRef {
	out := make([]model.SlotRef, len(p.vars))
	for i := range p.vars {
		out[i] = p.ref(i)
	}
	return out
}

// DomainOf 变量当前可取的人员标识
func (p *Problem) DomainOf(i int) []string {
	values := p.arena.live(i)
	out := make([]string, len(values))
	for k, s := range values {
		out[k] = p.domain.StaffAt(s).ID
	}
	return out
}

// CheckUnary 一元过滤后取值域为空的变量
func (p *Problem) CheckUnary() *errors.InfeasibilityFault {
	var empty []int
	for i := range p.vars {
		if p.arena.size[i] == 0 {
			empty = append(empty, i)
		}
	}
	if len(empty) == 0 {
		return nil
	}
	return p.fault("固定部分下无人可填", empty, nil)
}

func (p *Problem) ref(i int) model.SlotRef {
	return model.SlotRef{Date: p.domain.Date(p.vars[i].date), Role: p.vars[i].role}
}

func (p *Problem) drain(i int, types ...constraint.Type) {
	for _, t := range types {
		p.drains[i][t] = true
	}
}

func (p *Problem) fault(reason string, vars []int, extra map[constraint.Type]bool) *errors.InfeasibilityFault {
	names := make([]string, 0, len(vars))
	var types []string
	for _, v := range vars {
		names = append(names, p.ref(v).String())
		for t := range p.drains[v] {
			types = append(types, string(t))
		}
	}
	for t := range extra {
		types = append(types, string(t))
	}
	return errors.NewInfeasibilityFault(reason, names, types)
}

// pairConsistent 同一人员 s 同时填入变量 i 与 j 是否合法（相对固定部分）
// 不同人员之间没有二元约束
func (p *Problem) pairConsistent(i, j, s int) (bool, constraint.Type) {
	vi, vj := p.vars[i], p.vars[j]
	if vi.date == vj.date {
		return false, constraint.TypeDoubleBooking
	}
	if vi.holiday == vj.holiday && p.domain.Quota(s, vi.holiday)-p.fixed.DutyCount(s, vi.holiday) < 2 {
		return false, constraint.TypeQuota
	}
	if p.jointRun(s, vi.date, vj.date) > p.maxDays {
		return false, constraint.TypeMaxConsecutiveDays
	}
	return true, ""
}

// jointRun 两个日期同时在岗时包含二者的连续段长度；不在同一段时返回 0
func (p *Problem) jointRun(s, a, b int) int {
	if a > b {
		a, b = b, a
	}
	on := func(d int) bool {
		return d == a || d == b || p.fixed.OnDuty(s, d)
	}
	lo, hi := a, a
	for p.domain.AdjacentPrev(lo) && on(lo-1) {
		lo--
	}
	for p.domain.AdjacentNext(hi) && on(hi+1) {
		hi++
	}
	if hi < b {
		return 0
	}
	return hi - lo + 1
}

func budgetOut(ctx context.Context, deadline time.Time) bool {
	return ctx.Err() != nil || (!deadline.IsZero() && time.Now().After(deadline))
}
