package handler

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/roster"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/swap"
)

// SwapHandler 换班处理器
type SwapHandler struct {
	engineCfg config.EngineConfig
}

// NewSwapHandler 创建换班处理器
func NewSwapHandler(engineCfg config.EngineConfig) *SwapHandler {
	return &SwapHandler{engineCfg: engineCfg}
}

// SwapEvaluateRequest 换班评估请求
type SwapEvaluateRequest struct {
	roster.Input
	swap.SwapRequest
	Schedule *model.Schedule `json:"schedule"`
}

// SwapEvaluateResponse 换班评估响应
type SwapEvaluateResponse struct {
	Success    bool                 `json:"success"`
	Evaluation *swap.SwapEvaluation `json:"evaluation"`
	Schedule   *model.Schedule      `json:"schedule,omitempty"` // 可行时为换班后的值班表
}

// SwapRecommendRequest 换班推荐请求
// 指定 staff_id 时在其当日岗位上寻找最佳换班，否则按 date+role 推荐
type SwapRecommendRequest struct {
	roster.Input
	Schedule  *model.Schedule        `json:"schedule"`
	Date      string                 `json:"date"`
	Role      model.Role             `json:"role,omitempty"`
	StaffID   string                 `json:"staff_id,omitempty"`
	Recommend *swap.RecommendOptions `json:"recommend,omitempty"`
}

// SwapRecommendResponse 换班推荐响应
type SwapRecommendResponse struct {
	Success         bool                       `json:"success"`
	Date            string                     `json:"date"`
	Role            model.Role                 `json:"role"`
	Current         string                     `json:"current,omitempty"`
	Recommendations []*swap.SwapRecommendation `json:"recommendations"`
}

// SwapFillRequest 交换链补缺请求
type SwapFillRequest struct {
	roster.Input
	Schedule *model.Schedule    `json:"schedule"`
	Chain    *swap.ChainOptions `json:"chain,omitempty"`
}

// SwapFillResponse 交换链补缺响应
type SwapFillResponse struct {
	Success bool             `json:"success"` // 全部空缺均已填补
	Gaps    []swap.Gap       `json:"gaps"`    // 补缺前的空缺分析
	Report  *swap.FillReport `json:"report"`
}

// Evaluate 评估一次换班
func (h *SwapHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req SwapEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	domain, appErr := req.Domain(h.engineCfg)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	if appErr := checkSchedule(domain, req.Schedule); appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.Target == "" {
		respondError(w, errors.InvalidInput("target", "接班人员不能为空"))
		return
	}

	eval := swap.NewSwapEvaluator(domain).EvaluateSwap(req.Schedule, req.SwapRequest)
	resp := SwapEvaluateResponse{Success: eval.Feasible, Evaluation: eval}
	if eval.Feasible {
		resp.Schedule = eval.Schedule()
	}
	logger.WithContext(r.Context()).Debug().
		Str("date", req.Date).
		Str("target", req.Target).
		Bool("feasible", eval.Feasible).
		Float64("score_change", eval.ScoreChange).
		Msg("换班评估")
	respondJSON(w, http.StatusOK, resp)
}

// Recommend 推荐换班人选
func (h *SwapHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req SwapRecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	domain, appErr := req.Domain(h.engineCfg)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	if appErr := checkSchedule(domain, req.Schedule); appErr != nil {
		respondError(w, appErr)
		return
	}

	slot, ok := req.Schedule.Slot(req.Date)
	if !ok {
		respondError(w, errors.InvalidInput("date", "日期不在值班表中"))
		return
	}
	role := req.Role
	if req.StaffID != "" {
		if role, ok = slot.RoleOf(req.StaffID); !ok {
			respondError(w, errors.InvalidInput("staff_id", "该人员当日没有值班"))
			return
		}
	}
	if !role.Valid() {
		respondError(w, errors.InvalidInput("role", "必须指定角色或人员"))
		return
	}

	opts := swap.DefaultRecommendOptions()
	if req.Recommend != nil {
		opts = *req.Recommend
	}
	recs, err := swap.NewRecommender(domain).RecommendSwapTargets(req.Schedule, req.Date, role, opts)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "推荐换班失败"))
		return
	}

	current, _ := slot.Get(role).StaffID()
	respondJSON(w, http.StatusOK, SwapRecommendResponse{
		Success:         true,
		Date:            req.Date,
		Role:            role,
		Current:         current,
		Recommendations: recs,
	})
}

// Fill 用交换链填补空缺
func (h *SwapHandler) Fill(w http.ResponseWriter, r *http.Request) {
	var req SwapFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	domain, appErr := req.Domain(h.engineCfg)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	if appErr := checkSchedule(domain, req.Schedule); appErr != nil {
		respondError(w, appErr)
		return
	}

	opts := swap.DefaultChainOptions()
	if req.Chain != nil {
		opts = *req.Chain
	}
	recommender := swap.NewRecommender(domain)
	gaps := recommender.AnalyzeGaps(req.Schedule)
	report, err := recommender.FillGaps(r.Context(), req.Schedule, opts)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeTimeout, "补缺超时或被取消"))
		return
	}

	logger.WithContext(r.Context()).Info().
		Int("gaps", len(gaps)).
		Int("filled", len(report.Chains)).
		Int("remaining", len(report.Remaining)).
		Msg("交换链补缺完成")
	respondJSON(w, http.StatusOK, SwapFillResponse{
		Success: len(report.Remaining) == 0,
		Gaps:    gaps,
		Report:  report,
	})
}

// checkSchedule 值班表不能为空，且日期与排班范围一致
func checkSchedule(domain *model.Domain, schedule *model.Schedule) *errors.AppError {
	if schedule == nil {
		return errors.InvalidInput("schedule", "值班表不能为空")
	}
	if !slices.Equal(schedule.Dates(), domain.Dates()) {
		return errors.InvalidInput("schedule", "值班表日期与排班范围不一致")
	}
	return nil
}
