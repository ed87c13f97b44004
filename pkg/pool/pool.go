// Package pool 候选解池：记录搜索过程中产生的全部候选及其血缘
package pool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paiban/zhiban/pkg/features"
	"github.com/paiban/zhiban/pkg/model"
)

// Candidate 池中的一个候选
type Candidate struct {
	ID        model.CandidateID
	Timestamp time.Time
	Schedule  *model.Schedule
	Score     float64
	Breakdown model.ScoreBreakdown
	Features  features.Features
	Grade     model.Grade
	Method    model.GenerationMethod
	Iteration int
	ParentID  model.CandidateID // 0 表示无父候选
}

// HasParent 是否有父候选
func (c *Candidate) HasParent() bool {
	return c.ParentID != 0
}

// RecordInput 记录一个候选所需的输入
type RecordInput struct {
	Schedule  *model.Schedule
	Breakdown model.ScoreBreakdown
	Features  features.Features
	Method    model.GenerationMethod
	Iteration int
	ParentID  model.CandidateID
}

// Pool 只追加的候选账本
type Pool struct {
	mu         sync.RWMutex
	thresholds []model.GradeThreshold
	candidates []*Candidate
	byID       map[model.CandidateID]*Candidate
	nextID     model.CandidateID
	finalized  bool
	now        func() time.Time
}

// New 创建候选池；thresholds 为空时使用默认门槛
func New(thresholds []model.GradeThreshold) *Pool {
	if len(thresholds) == 0 {
		thresholds = model.DefaultThresholds()
	}
	return &Pool{
		thresholds: thresholds,
		byID:       make(map[model.CandidateID]*Candidate),
		nextID:     1,
		now:        time.Now,
	}
}

// Thresholds 定级门槛
func (p *Pool) Thresholds() []model.GradeThreshold {
	return p.thresholds
}

// Record 记录候选，返回新分配的标识
// 值班表会被复制，之后对原值班表的修改不影响池中记录
func (p *Pool) Record(in RecordInput) (model.CandidateID, error) {
	if in.Schedule == nil {
		return 0, fmt.Errorf("候选值班表不能为空")
	}
	if !in.Method.Valid() {
		return 0, fmt.Errorf("未知生成方式: %q", in.Method)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finalized {
		return 0, fmt.Errorf("候选池已封存")
	}
	if in.ParentID != 0 {
		if _, ok := p.byID[in.ParentID]; !ok {
			return 0, fmt.Errorf("父候选不存在: %s", in.ParentID)
		}
	}

	c := &Candidate{
		ID:        p.nextID,
		Timestamp: p.now().UTC(),
		Schedule:  in.Schedule.Clone(),
		Score:     in.Breakdown.Total,
		Breakdown: in.Breakdown,
		Features:  in.Features,
		Grade:     model.GradeFor(in.Breakdown.Total, in.Features.GradeFacts(), p.thresholds),
		Method:    in.Method,
		Iteration: in.Iteration,
		ParentID:  in.ParentID,
	}
	p.nextID++
	p.candidates = append(p.candidates, c)
	p.byID[c.ID] = c
	return c.ID, nil
}

// restore 按原标识放回导出的候选，用于从导出文件重建
func (p *Pool) restore(c *Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.ID == 0 || c.ID < p.nextID {
		return fmt.Errorf("候选标识未按递增顺序: %s", c.ID)
	}
	p.candidates = append(p.candidates, c)
	p.byID[c.ID] = c
	p.nextID = c.ID + 1
	return nil
}

// Get 按标识查询
func (p *Pool) Get(id model.CandidateID) (*Candidate, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byID[id]
	return c, ok
}

// Len 候选数
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.candidates)
}

// All 按插入顺序返回全部候选
func (p *Pool) All() []*Candidate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Candidate(nil), p.candidates...)
}

// Best 得分最高的候选，同分取最早记录的
func (p *Pool) Best() (*Candidate, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var best *Candidate
	for _, c := range p.candidates {
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	return best, best != nil
}

// Lineage 从 id 沿父链走到根，结果以 id 自身开头
func (p *Pool) Lineage(id model.CandidateID) []*Candidate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var chain []*Candidate
	for id != 0 {
		c, ok := p.byID[id]
		if !ok {
			break
		}
		chain = append(chain, c)
		id = c.ParentID
	}
	return chain
}

// Summary 封存时的池摘要
type Summary struct {
	Candidates int                 `json:"candidates"`
	BestID     model.CandidateID   `json:"best_id"`
	BestScore  float64             `json:"best_score"`
	BestGrade  model.Grade         `json:"best_grade"`
	Grades     map[model.Grade]int `json:"grades"`
}

// Finalize 封存候选池，之后不再接受记录
func (p *Pool) Finalize() Summary {
	p.mu.Lock()
	p.finalized = true
	p.mu.Unlock()

	s := Summary{Candidates: p.Len(), Grades: p.GradeDistribution()}
	if best, ok := p.Best(); ok {
		s.BestID = best.ID
		s.BestScore = best.Score
		s.BestGrade = best.Grade
	}
	return s
}

// Finalized 是否已封存
func (p *Pool) Finalized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.finalized
}

// sortByScore 得分降序，同分按标识升序
func sortByScore(cs []*Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].ID < cs[j].ID
	})
}
