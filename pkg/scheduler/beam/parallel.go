package beam

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelEvaluator 并行展开束中的条目
// 结果按条目下标写回，与串行执行得到相同输出
type ParallelEvaluator struct {
	workers int
}

// NewParallelEvaluator 创建并行评估器；workers <= 1 时串行执行
func NewParallelEvaluator(workers int) *ParallelEvaluator {
	if workers < 1 {
		workers = 1
	}
	return &ParallelEvaluator{workers: workers}
}

// Workers 协程数
func (p *ParallelEvaluator) Workers() int {
	return p.workers
}

// ExpandBatch 对 n 个条目执行 expand，返回按下标排列的结果
func (p *ParallelEvaluator) ExpandBatch(ctx context.Context, n int, expand func(i int) []*Entry) ([][]*Entry, error) {
	results := make([][]*Entry, n)
	if n == 0 {
		return results, nil
	}

	if p.workers == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = expand(i)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = expand(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FindBest 返回得分最高的条目，同分取靠前者
func FindBest(entries []*Entry) *Entry {
	if len(entries) == 0 {
		return nil
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Score > best.Score {
			best = e
		}
	}
	return best
}
