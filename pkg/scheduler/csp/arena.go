package csp

import "math/bits"

// varSet 变量集合（位图）
type varSet []uint64

func newVarSet(n int) varSet {
	return make(varSet, (n+63)/64)
}

func (s varSet) add(v int) {
	s[v>>6] |= 1 << (uint(v) & 63)
}

func (s varSet) remove(v int) {
	s[v>>6] &^= 1 << (uint(v) & 63)
}

func (s varSet) has(v int) bool {
	return s[v>>6]&(1<<(uint(v)&63)) != 0
}

func (s varSet) union(o varSet) {
	for i := range o {
		s[i] |= o[i]
	}
}

func (s varSet) empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s varSet) clone() varSet {
	return append(varSet(nil), s...)
}

func (s varSet) each(fn func(v int)) {
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(i*64 + b)
			w &^= 1 << uint(b)
		}
	}
}

// removal 一次取值删除：深度、变量、人员位置、导致删除的已赋值变量
type removal struct {
	depth    int
	v        int
	value    int
	culprits varSet
}

// arena 各变量的取值域
// 深度 0 的删除是永久的；搜索中的删除按深度记入撤销日志，回溯时整层撤销
type arena struct {
	initial [][]int  // 初始取值（人员位置升序）
	present [][]bool // [var][staff]
	size    []int
	trail   []removal
	byVar   [][]int // 每个变量在 trail 中的删除记录位置
}

func newArena(initial [][]int, staffCount int) *arena {
	a := &arena{
		initial: initial,
		present: make([][]bool, len(initial)),
		size:    make([]int, len(initial)),
		byVar:   make([][]int, len(initial)),
	}
	for v, values := range initial {
		a.present[v] = make([]bool, staffCount)
		for _, s := range values {
			a.present[v][s] = true
		}
		a.size[v] = len(values)
	}
	return a
}

func (a *arena) has(v, s int) bool {
	return a.present[v][s]
}

// live 当前取值（人员位置升序）
func (a *arena) live(v int) []int {
	out := make([]int, 0, a.size[v])
	for _, s := range a.initial[v] {
		if a.present[v][s] {
			out = append(out, s)
		}
	}
	return out
}

// only 取值域只剩一个值时返回该值
func (a *arena) only(v int) (int, bool) {
	if a.size[v] != 1 {
		return 0, false
	}
	for _, s := range a.initial[v] {
		if a.present[v][s] {
			return s, true
		}
	}
	return 0, false
}

// total 全部变量的取值数之和
func (a *arena) total() int {
	n := 0
	for _, s := range a.size {
		n += s
	}
	return n
}

// prune 永久删除（传播阶段）
func (a *arena) prune(v, s int) {
	if a.present[v][s] {
		a.present[v][s] = false
		a.size[v]--
	}
}

// remove 在 depth 层删除，记入撤销日志
func (a *arena) remove(depth, v, s int, culprits varSet) {
	if !a.present[v][s] {
		return
	}
	a.present[v][s] = false
	a.size[v]--
	a.byVar[v] = append(a.byVar[v], len(a.trail))
	a.trail = append(a.trail, removal{depth: depth, v: v, value: s, culprits: culprits})
}

// undo 撤销 depth 层及更深层的全部删除
func (a *arena) undo(depth int) {
	for len(a.trail) > 0 {
		r := a.trail[len(a.trail)-1]
		if r.depth < depth {
			return
		}
		a.trail = a.trail[:len(a.trail)-1]
		a.byVar[r.v] = a.byVar[r.v][:len(a.byVar[r.v])-1]
		a.present[r.v][r.value] = true
		a.size[r.v]++
	}
}

// culprits 把变量当前有效删除的责任变量并入 into
func (a *arena) culprits(v int, into varSet) {
	for _, i := range a.byVar[v] {
		if c := a.trail[i].culprits; c != nil {
			into.union(c)
		}
	}
}
