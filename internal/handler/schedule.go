// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/metrics"
	"github.com/paiban/zhiban/internal/repository"
	"github.com/paiban/zhiban/internal/roster"
	"github.com/paiban/zhiban/pkg/analyzer"
	"github.com/paiban/zhiban/pkg/engine"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
	"github.com/paiban/zhiban/pkg/validator"
)

// persistTimeout 保存运行结果的时限，与请求上下文无关
const persistTimeout = 5 * time.Second

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	engineCfg config.EngineConfig
	engine    *engine.Engine
	runs      *repository.RunRepository // 可为 nil，此时不保存结果
}

// NewScheduleHandler 创建排班处理器
func NewScheduleHandler(engineCfg config.EngineConfig, runs *repository.RunRepository) *ScheduleHandler {
	return &ScheduleHandler{
		engineCfg: engineCfg,
		engine:    engine.New(),
		runs:      runs,
	}
}

// RunResponse 排班运行响应
type RunResponse struct {
	Success   bool                   `json:"success"`
	Partial   bool                   `json:"partial,omitempty"` // 预算耗尽或被取消，仍有空缺
	Message   string                 `json:"message,omitempty"`
	Persisted bool                   `json:"persisted"`
	Result    *engine.ScheduleResult `json:"result,omitempty"`
	Error     *errors.AppError       `json:"error,omitempty"`
}

// ValidateRequest 值班表评估请求
type ValidateRequest struct {
	roster.Input
	Schedule *model.Schedule `json:"schedule"`
}

// ValidateResponse 值班表评估响应
type ValidateResponse struct {
	IsValid   bool                 `json:"is_valid"`
	Score     float64              `json:"score"`
	Grade     model.Grade          `json:"grade"`
	Breakdown model.ScoreBreakdown `json:"breakdown"`
	Unfilled  []model.SlotRef      `json:"unfilled,omitempty"`
	Conflicts []validator.Conflict `json:"conflicts,omitempty"`
}

// Run 执行一次排班
func (h *ScheduleHandler) Run(w http.ResponseWriter, r *http.Request) {
	var in roster.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	req, appErr := in.Request(h.engineCfg)
	if appErr != nil {
		metrics.RecordScheduleRun(metrics.RunObservation{Outcome: metrics.OutcomeInvalid})
		respondError(w, appErr)
		return
	}

	result, err := h.execute(r.Context(), req)
	h.respondRun(w, r, in, result, err)
}

// Stream 执行排班并以 Server-Sent Events 推送进度，最后一条事件为 result
func (h *ScheduleHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, errors.New(errors.CodeInternal, "响应不支持流式输出"))
		return
	}

	var in roster.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	req, appErr := in.Request(h.engineCfg)
	if appErr != nil {
		metrics.RecordScheduleRun(metrics.RunObservation{Outcome: metrics.OutcomeInvalid})
		respondError(w, appErr)
		return
	}

	progress := make(chan model.Progress, 64)
	req.Progress = progress

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var (
		result *engine.ScheduleResult
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(progress)
		result, runErr = h.execute(r.Context(), req)
	}()
	for p := range progress {
		writeEvent(w, "progress", p)
		flusher.Flush()
	}
	<-done

	resp, _ := h.runResponse(r.Context(), in, result, runErr)
	writeEvent(w, "result", resp)
	flusher.Flush()
}

// AnalyzeResponse 排班前分析响应
type AnalyzeResponse struct {
	Success  bool             `json:"success"`
	Analysis *analyzer.Report `json:"analysis"`
}

// Analyze 只做排班前分析，不执行排班
func (h *ScheduleHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var in roster.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	domain, appErr := in.Domain(h.engineCfg)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	respondJSON(w, http.StatusOK, AnalyzeResponse{Success: true, Analysis: analyzer.Analyze(domain)})
}

// Validate 评估调用方给出的值班表
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
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

	sc := scorer.New(domain)
	score, breakdown := sc.Score(req.Schedule)
	conflicts := validator.ForDomain(domain).DetectAll(domain, req.Schedule)

	resp := ValidateResponse{
		IsValid:   breakdown.HardViolations == 0,
		Score:     score,
		Grade:     sc.Grade(breakdown),
		Breakdown: breakdown,
		Unfilled:  req.Schedule.Unfilled(domain.Roles()),
		Conflicts: conflicts,
	}
	respondJSON(w, http.StatusOK, resp)
}

// execute 执行排班并记录指标
func (h *ScheduleHandler) execute(ctx context.Context, req engine.Request) (*engine.ScheduleResult, error) {
	done := metrics.RunStarted()
	defer done()

	start := time.Now()
	result, err := h.engine.Run(ctx, req)

	obs := metrics.RunObservation{Outcome: outcome(result, err), Duration: time.Since(start)}
	if result != nil {
		obs.Grade = result.Grade.String()
		obs.Score = result.Score
		obs.Unfilled = len(result.Unfilled)
		obs.Candidates = result.PoolSummary.Candidates
	}
	metrics.RecordScheduleRun(obs)
	return result, err
}

func outcome(result *engine.ScheduleResult, err error) string {
	switch {
	case errors.Is(err, errors.CodeNoFeasibleSolution):
		return metrics.OutcomeInfeasible
	case errors.Is(err, errors.CodeValidationFail):
		return metrics.OutcomeInvalid
	case err != nil || result == nil:
		return metrics.OutcomeError
	case result.Incomplete:
		return metrics.OutcomeIncomplete
	default:
		return metrics.OutcomeComplete
	}
}

// runResponse 组装运行响应并按需保存，返回 HTTP 状态码
func (h *ScheduleHandler) runResponse(ctx context.Context, in roster.Input, result *engine.ScheduleResult, err error) (RunResponse, int) {
	if result == nil {
		appErr := toAppError(err)
		return RunResponse{Success: false, Message: appErr.Message, Error: appErr}, appErr.HTTPStatus
	}

	resp := RunResponse{Result: result}
	status := http.StatusOK
	switch {
	case err != nil:
		resp.Error = toAppError(err)
		resp.Message = "无可行解，返回尽力而为的结果"
		status = resp.Error.HTTPStatus
	case result.Incomplete:
		resp.Success, resp.Partial = true, true
		resp.Message = "搜索预算耗尽或被取消，结果仍有空缺"
	default:
		resp.Success = true
		resp.Message = "排班完成"
	}

	if h.runs != nil && in.Persist(true) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if _, perr := h.runs.Save(pctx, result); perr != nil {
			logger.WithContext(ctx).Error().Err(perr).Str("run_id", result.RunID).Msg("保存排班运行失败")
		} else {
			resp.Persisted = true
		}
	}
	return resp, status
}

func (h *ScheduleHandler) respondRun(w http.ResponseWriter, r *http.Request, in roster.Input, result *engine.ScheduleResult, err error) {
	resp, status := h.runResponse(r.Context(), in, result, err)
	if result == nil {
		respondError(w, resp.Error)
		return
	}
	respondJSON(w, status, resp)
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Warn().Err(err).Str("event", event).Msg("序列化事件失败")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// toAppError 把任意错误转为 AppError
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var fault *errors.InfeasibilityFault
	if errors.As(err, &fault) {
		return fault.ToAppError()
	}
	if err == nil {
		return errors.New(errors.CodeInternal, "未知错误")
	}
	return errors.Wrap(err, errors.CodeInternal, "服务器内部错误")
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	errors.WriteJSON(w, err)
}
