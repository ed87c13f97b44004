package csp

import (
	"context"
	"time"

	"github.com/paiban/zhiban/pkg/errors"
)

type arc struct {
	u, w int
}

// related 存在二元约束的变量对：共享某个人员且该人员同时填入二者不合法
func (p *Problem) related() [][]int {
	n := len(p.vars)
	out := make([][]int, n)
	for u := 0; u < n; u++ {
		values := p.arena.live(u)
		for w := u + 1; w < n; w++ {
			for _, s := range values {
				if !p.arena.has(w, s) {
					continue
				}
				if ok, _ := p.pairConsistent(u, w, s); !ok {
					out[u] = append(out[u], w)
					out[w] = append(out[w], u)
					break
				}
			}
		}
	}
	return out
}

// Propagate 以 AC-3 在二元约束上传播到不动点
// 返回 false 表示预算耗尽；取值域被清空时返回无解诊断
func (p *Problem) Propagate(ctx context.Context, deadline time.Time) (bool, *errors.InfeasibilityFault) {
	if budgetOut(ctx, deadline) {
		return false, nil
	}
	neighbors := p.related()

	queue := make([]arc, 0)
	queued := make(map[arc]bool)
	push := func(a arc) {
		if !queued[a] {
			queued[a] = true
			queue = append(queue, a)
		}
	}
	for u, ns := range neighbors {
		for _, w := range ns {
			push(arc{u, w})
		}
	}

	for steps := 0; len(queue) > 0; steps++ {
		if steps%64 == 0 && budgetOut(ctx, deadline) {
			return false, nil
		}
		a := queue[0]
		queue = queue[1:]
		delete(queued, a)

		if !p.revise(a.u, a.w) {
			continue
		}
		if p.arena.size[a.u] == 0 {
			return true, p.fault("弧相容传播后无人可填", []int{a.u}, nil)
		}
		for _, x := range neighbors[a.u] {
			if x != a.w {
				push(arc{x, a.u})
			}
		}
	}
	return true, nil
}

// revise 删除 u 中在 w 里没有支持的取值
// 不同人员总是相容，因此只有当 w 只剩人员 s 且 s 不能同时填入二者时才删除 s
func (p *Problem) revise(u, w int) bool {
	s, ok := p.arena.only(w)
	if !ok || !p.arena.has(u, s) {
		return false
	}
	if consistent, typ := p.pairConsistent(u, w, s); !consistent {
		p.arena.prune(u, s)
		p.drain(u, typ)
		return true
	}
	return false
}
