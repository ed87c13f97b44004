package pool

import (
	"math"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/samber/lo"
)

// TopN 得分最高的 n 个候选
func (p *Pool) TopN(n int) []*Candidate {
	all := p.All()
	sortByScore(all)
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// ByGrade 指定等级的候选，按插入顺序
func (p *Pool) ByGrade(g model.Grade) []*Candidate {
	return lo.Filter(p.All(), func(c *Candidate, _ int) bool {
		return c.Grade == g
	})
}

// ByMethod 指定生成方式的候选
func (p *Pool) ByMethod(m model.GenerationMethod) []*Candidate {
	return lo.Filter(p.All(), func(c *Candidate, _ int) bool {
		return c.Method == m
	})
}

// GradeDistribution 各等级候选数
func (p *Pool) GradeDistribution() map[model.Grade]int {
	out := make(map[model.Grade]int)
	for g, cs := range lo.GroupBy(p.All(), func(c *Candidate) model.Grade { return c.Grade }) {
		out[g] = len(cs)
	}
	return out
}

// DiversityMetrics 候选池多样性指标
type DiversityMetrics struct {
	PoolSize          int            `json:"pool_size"`
	MeanScore         float64        `json:"mean_score"`
	StdScore          float64        `json:"std_score"`
	MinScore          float64        `json:"min_score"`
	MaxScore          float64        `json:"max_score"`
	GradeDistribution map[string]int `json:"grade_distribution"`
	MethodCounts      map[string]int `json:"method_counts"`
	UniqueSchedules   int            `json:"unique_schedules"`
}

// Diversity 计算多样性指标
func (p *Pool) Diversity() DiversityMetrics {
	all := p.All()
	m := DiversityMetrics{
		PoolSize:          len(all),
		GradeDistribution: make(map[string]int),
		MethodCounts:      make(map[string]int),
	}
	if len(all) == 0 {
		return m
	}

	scores := lo.Map(all, func(c *Candidate, _ int) float64 { return c.Score })
	m.MeanScore = lo.Sum(scores) / float64(len(scores))
	m.MinScore = lo.Min(scores)
	m.MaxScore = lo.Max(scores)
	variance := lo.SumBy(scores, func(s float64) float64 {
		d := s - m.MeanScore
		return d * d
	}) / float64(len(scores))
	m.StdScore = math.Sqrt(variance)

	for g, n := range p.GradeDistribution() {
		m.GradeDistribution[g.String()] = n
	}
	for _, c := range all {
		m.MethodCounts[string(c.Method)]++
	}
	// 导出时未附带值班表的候选不参与去重
	withSchedule := lo.Filter(all, func(c *Candidate, _ int) bool { return c.Schedule != nil })
	m.UniqueSchedules = len(lo.UniqBy(withSchedule, func(c *Candidate) string { return c.Schedule.Key() }))
	return m
}

// Trajectory 从根到叶的一条候选演化路径
type Trajectory struct {
	IDs    []model.CandidateID `json:"ids"`
	Scores []float64           `json:"scores"`
}

// Gain 路径首尾得分差
func (t Trajectory) Gain() float64 {
	if len(t.Scores) == 0 {
		return 0
	}
	return t.Scores[len(t.Scores)-1] - t.Scores[0]
}

// Trajectories 以每个没有子候选的候选为叶，沿父链构建路径，按叶标识升序
func (p *Pool) Trajectories() []Trajectory {
	all := p.All()
	hasChild := make(map[model.CandidateID]bool)
	for _, c := range all {
		if c.HasParent() {
			hasChild[c.ParentID] = true
		}
	}

	var out []Trajectory
	for _, leaf := range all {
		if hasChild[leaf.ID] {
			continue
		}
		chain := lo.Reverse(p.Lineage(leaf.ID))
		out = append(out, Trajectory{
			IDs:    lo.Map(chain, func(c *Candidate, _ int) model.CandidateID { return c.ID }),
			Scores: lo.Map(chain, func(c *Candidate, _ int) float64 { return c.Score }),
		})
	}
	return out
}
