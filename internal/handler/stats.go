package handler

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/roster"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/features"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
	"github.com/paiban/zhiban/pkg/stats"
)

// StatsHandler 值班表统计处理器
type StatsHandler struct {
	engineCfg config.EngineConfig
	fairness  *stats.FairnessAnalyzer
	coverage  *stats.CoverageAnalyzer
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(engineCfg config.EngineConfig) *StatsHandler {
	return &StatsHandler{
		engineCfg: engineCfg,
		fairness:  stats.NewFairnessAnalyzer(),
		coverage:  stats.NewCoverageAnalyzer(),
	}
}

// StatsRequest 统计请求
type StatsRequest struct {
	roster.Input
	Schedule *model.Schedule `json:"schedule"`
	Baseline *model.Schedule `json:"baseline,omitempty"` // 公平性对比的基准值班表
	Report   bool            `json:"report,omitempty"`   // 附带文本覆盖率报告
}

// FairnessResponse 公平性响应
type FairnessResponse struct {
	Success    bool                   `json:"success"`
	Data       *stats.FairnessMetrics `json:"data,omitempty"`
	Comparison map[string]float64     `json:"comparison,omitempty"`
}

// CoverageResponse 覆盖率响应
type CoverageResponse struct {
	Success bool                   `json:"success"`
	Data    *stats.CoverageMetrics `json:"data,omitempty"`
	Report  string                 `json:"report,omitempty"`
}

// FeaturesResponse 特征响应
type FeaturesResponse struct {
	Success bool               `json:"success"`
	Data    features.Features  `json:"data"`
	Vector  map[string]float64 `json:"vector"`
	Names   []string           `json:"names"`
}

// Fairness 公平性分析
func (h *StatsHandler) Fairness(w http.ResponseWriter, r *http.Request) {
	req, domain, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp := FairnessResponse{Success: true, Data: h.fairness.Analyze(domain, req.Schedule)}
	if req.Baseline != nil {
		if !slices.Equal(req.Baseline.Dates(), domain.Dates()) {
			respondError(w, errors.InvalidInput("baseline", "基准值班表日期与排班范围不一致"))
			return
		}
		resp.Comparison = h.fairness.CompareSchedules(domain, req.Baseline, req.Schedule)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Coverage 覆盖率分析
func (h *StatsHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	req, domain, ok := h.decode(w, r)
	if !ok {
		return
	}

	metrics := h.coverage.Analyze(domain, req.Schedule)
	resp := CoverageResponse{Success: true, Data: metrics}
	if req.Report {
		resp.Report = h.coverage.GenerateCoverageReport(metrics)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Features 提取值班表特征
func (h *StatsHandler) Features(w http.ResponseWriter, r *http.Request) {
	req, domain, ok := h.decode(w, r)
	if !ok {
		return
	}

	f := features.NewExtractor(domain, scorer.New(domain)).Extract(req.Schedule)
	respondJSON(w, http.StatusOK, FeaturesResponse{
		Success: true,
		Data:    f,
		Vector:  f.ToMap(),
		Names:   features.Names(),
	})
}

// decode 解析请求并构建运行视图，失败时已写出错误响应
func (h *StatsHandler) decode(w http.ResponseWriter, r *http.Request) (*StatsRequest, *model.Domain, bool) {
	var req StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return nil, nil, false
	}
	domain, appErr := req.Domain(h.engineCfg)
	if appErr != nil {
		respondError(w, appErr)
		return nil, nil, false
	}
	if appErr := checkSchedule(domain, req.Schedule); appErr != nil {
		respondError(w, appErr)
		return nil, nil, false
	}
	return &req, domain, true
}
