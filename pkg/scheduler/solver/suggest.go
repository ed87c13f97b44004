package solver

import (
	"strings"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// DefaultSuggestionLimit 默认建议条数
const DefaultSuggestionLimit = 5

// Suggestion 空缺岗位的处理建议
type Suggestion struct {
	Date       string     `json:"date"`
	Role       model.Role `json:"role"`
	Candidates []string   `json:"candidates"`
	Message    string     `json:"message"`
}

// Suggest 为前 limit 个空缺岗位列出当前可合法填入的人员
func Suggest(domain *model.Domain, cm *constraint.Manager, schedule *model.Schedule, limit int) []Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	ctx := constraint.NewContext(domain, schedule)

	var out []Suggestion
	for _, ref := range schedule.Unfilled(domain.Roles()) {
		if len(out) >= limit {
			break
		}
		di, ok := domain.DateIndex(ref.Date)
		if !ok {
			continue
		}

		sg := Suggestion{Date: ref.Date, Role: ref.Role, Candidates: []string{}}
		for _, si := range cm.Legal(ctx, di, ref.Role) {
			sg.Candidates = append(sg.Candidates, domain.StaffAt(si).ID)
		}
		if len(sg.Candidates) == 0 {
			sg.Message = "无可用医师"
		} else {
			sg.Message = "可安排: " + strings.Join(sg.Candidates, "、")
		}
		out = append(out, sg)
	}
	return out
}
