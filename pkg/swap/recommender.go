package swap

import (
	"fmt"
	"sort"

	"github.com/paiban/zhiban/pkg/model"
)

// Recommender 换班推荐器
type Recommender struct {
	domain    *model.Domain
	evaluator *SwapEvaluator
}

// NewRecommender 创建推荐器
func NewRecommender(domain *model.Domain) *Recommender {
	return &Recommender{
		domain:    domain,
		evaluator: NewSwapEvaluator(domain),
	}
}

// Evaluator 返回底层评估器
func (r *Recommender) Evaluator() *SwapEvaluator {
	return r.evaluator
}

// RecommendOptions 推荐选项
type RecommendOptions struct {
	MaxResults    int      `json:"max_results"`
	MinScore      *float64 `json:"min_score,omitempty"` // 换班后得分下限
	AllowExchange bool     `json:"allow_exchange"`
}

// DefaultRecommendOptions 默认推荐选项
func DefaultRecommendOptions() RecommendOptions {
	return RecommendOptions{MaxResults: 5, AllowExchange: true}
}

// SwapRecommendation 换班推荐
type SwapRecommendation struct {
	Rank         int             `json:"rank"`
	Target       string          `json:"target"`
	TargetName   string          `json:"target_name"`
	SwapType     string          `json:"swap_type"`
	ExchangeDate string          `json:"exchange_date,omitempty"`
	Evaluation   *SwapEvaluation `json:"evaluation"`
	Reason       string          `json:"reason"`
}

// Request 还原为换班请求
func (s *SwapRecommendation) Request(date string, role model.Role) SwapRequest {
	return SwapRequest{Date: date, Role: role, Target: s.Target, ExchangeDate: s.ExchangeDate}
}

// RecommendSwapTargets 为某日某角色推荐接班人选
// 依次考察同角色人员直接接班，以及与其已有值班日互换
func (r *Recommender) RecommendSwapTargets(schedule *model.Schedule, date string, role model.Role, opts RecommendOptions) ([]*SwapRecommendation, error) {
	if _, ok := r.domain.DateIndex(date); !ok {
		return nil, fmt.Errorf("日期 %s 不在值班表中", date)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("无效角色: %d", int(role))
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultRecommendOptions().MaxResults
	}

	current, hasCurrent := schedule.Get(date, role).StaffID()
	recommendations := make([]*SwapRecommendation, 0)

	for _, idx := range r.domain.StaffByRole(role) {
		staff := r.domain.StaffAt(idx)
		if hasCurrent && staff.ID == current {
			continue
		}

		// 直接接班
		eval := r.evaluator.EvaluateSwap(schedule, SwapRequest{Date: date, Role: role, Target: staff.ID})
		if r.accept(eval, opts) {
			recommendations = append(recommendations, r.recommendation(staff, eval, ""))
		}

		if !opts.AllowExchange || !hasCurrent {
			continue
		}
		for _, exDate := range r.findExchangeDates(schedule, role, staff.ID, date) {
			eval := r.evaluator.EvaluateSwap(schedule, SwapRequest{Date: date, Role: role, Target: staff.ID, ExchangeDate: exDate})
			if r.accept(eval, opts) {
				recommendations = append(recommendations, r.recommendation(staff, eval, exDate))
			}
		}
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]
		if a.Evaluation.ScoreAfter != b.Evaluation.ScoreAfter {
			return a.Evaluation.ScoreAfter > b.Evaluation.ScoreAfter
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.ExchangeDate < b.ExchangeDate
	})

	if len(recommendations) > opts.MaxResults {
		recommendations = recommendations[:opts.MaxResults]
	}
	for i, rec := range recommendations {
		rec.Rank = i + 1
	}
	return recommendations, nil
}

// FindBestSwapMatch 为需要调休的人员寻找最佳换班
func (r *Recommender) FindBestSwapMatch(schedule *model.Schedule, staffID, date string) (*SwapRecommendation, error) {
	slot, ok := schedule.Slot(date)
	if !ok {
		return nil, fmt.Errorf("日期 %s 不在值班表中", date)
	}
	role, ok := slot.RoleOf(staffID)
	if !ok {
		return nil, fmt.Errorf("人员 %s 在 %s 没有值班", staffID, date)
	}

	recs, err := r.RecommendSwapTargets(schedule, date, role, RecommendOptions{MaxResults: 1, AllowExchange: true})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s 没有可行的换班人选", date, role.Label())
	}
	return recs[0], nil
}

// ApplySwap 应用换班，返回新的值班表，原表不变
func (r *Recommender) ApplySwap(schedule *model.Schedule, req SwapRequest) (*model.Schedule, *SwapEvaluation, error) {
	eval := r.evaluator.EvaluateSwap(schedule, req)
	if !eval.Feasible {
		for _, issue := range eval.Issues {
			if issue.Severity == "error" {
				return nil, eval, fmt.Errorf("换班不可行: %s", issue.Message)
			}
		}
		return nil, eval, fmt.Errorf("换班不可行")
	}
	return eval.Schedule(), eval, nil
}

func (r *Recommender) accept(eval *SwapEvaluation, opts RecommendOptions) bool {
	if !eval.Feasible {
		return false
	}
	return opts.MinScore == nil || eval.ScoreAfter >= *opts.MinScore
}

// findExchangeDates 目标人员以同一角色值班、且可互换的日期
func (r *Recommender) findExchangeDates(schedule *model.Schedule, role model.Role, staffID, exclude string) []string {
	var dates []string
	for i := 0; i < schedule.Len(); i++ {
		slot := schedule.SlotAt(i)
		if slot.Date == exclude {
			continue
		}
		if id, ok := slot.Get(role).StaffID(); ok && id == staffID {
			dates = append(dates, slot.Date)
		}
	}
	return dates
}

func (r *Recommender) recommendation(staff *model.Staff, eval *SwapEvaluation, exDate string) *SwapRecommendation {
	return &SwapRecommendation{
		Target:       staff.ID,
		TargetName:   staff.DisplayName(),
		SwapType:     eval.SwapType,
		ExchangeDate: exDate,
		Evaluation:   eval,
		Reason:       generateReason(eval),
	}
}

// generateReason 生成推荐理由
func generateReason(eval *SwapEvaluation) string {
	var reasons []string

	if eval.SwapType == TypeExchange {
		reasons = append(reasons, "双方值班次数不变")
	}
	if eval.Impact != nil && eval.Impact.Target.PreferenceSatisfied {
		reasons = append(reasons, "符合接班人偏好日期")
	}
	if eval.ScoreChange > 0 {
		reasons = append(reasons, fmt.Sprintf("得分提高 %.2f", eval.ScoreChange))
	}
	if len(eval.Issues) == 0 {
		reasons = append(reasons, "无新增冲突")
	}

	if len(reasons) == 0 {
		return "可行"
	}
	result := reasons[0]
	for _, reason := range reasons[1:] {
		result += "，" + reason
	}
	return result
}
