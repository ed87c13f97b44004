package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/repository"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/pool"
)

// RunsHandler 已保存运行与候选池的查询处理器
type RunsHandler struct {
	runs       *repository.RunRepository
	candidates *repository.CandidateRepository
	thresholds []model.GradeThreshold
}

// NewRunsHandler 创建运行查询处理器
func NewRunsHandler(engineCfg config.EngineConfig, db repository.TxDB) *RunsHandler {
	return &RunsHandler{
		runs:       repository.NewRunRepository(db),
		candidates: repository.NewCandidateRepository(db),
		thresholds: engineCfg.ToConstraintSet(nil, nil).Thresholds,
	}
}

// Repository 返回运行仓储，供排班处理器保存结果
func (h *RunsHandler) Repository() *repository.RunRepository {
	return h.runs
}

// RunListResponse 运行列表响应
type RunListResponse struct {
	Success bool                  `json:"success"`
	Data    []*repository.Run     `json:"data"`
	Total   int                   `json:"total"`
	Filter  repository.ListFilter `json:"filter"`
}

// RunDetailResponse 运行详情响应
type RunDetailResponse struct {
	Success bool                       `json:"success"`
	Data    *repository.Run            `json:"data"`
	Fault   *errors.InfeasibilityFault `json:"fault,omitempty"`
	Grades  map[string]int             `json:"grades,omitempty"`
}

// PoolAnalysisResponse 候选池分析响应
type PoolAnalysisResponse struct {
	Success      bool                  `json:"success"`
	Diversity    pool.DiversityMetrics `json:"diversity"`
	Trajectories []TrajectoryView      `json:"trajectories"`
	Top          []pool.ExportRecord   `json:"top"`
}

// TrajectoryView 演化路径视图
type TrajectoryView struct {
	pool.Trajectory
	Gain float64 `json:"gain"`
}

// List 列出已保存的运行
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, appErr := parseListFilter(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	runs, total, err := h.runs.List(r.Context(), filter)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	if runs == nil {
		runs = []*repository.Run{}
	}
	respondJSON(w, http.StatusOK, RunListResponse{Success: true, Data: runs, Total: total, Filter: filter})
}

// Get 查询单次运行
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		run *repository.Run
		err error
	)
	if id == "latest" {
		run, err = h.runs.GetLatest(r.Context())
	} else {
		run, err = h.runs.GetByID(r.Context(), id)
	}
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	resp := RunDetailResponse{Success: true, Data: run}
	if resp.Fault, err = run.DecodeFault(); err != nil {
		respondError(w, toAppError(err))
		return
	}
	if resp.Grades, err = h.candidates.CountByGrade(r.Context(), run.ID); err != nil {
		respondError(w, toAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete 删除运行及其候选
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.runs.Delete(r.Context(), id); err != nil {
		respondError(w, toAppError(err))
		return
	}
	logger.WithContext(r.Context()).Info().Str("run_id", id).Msg("已删除排班运行")
	w.WriteHeader(http.StatusNoContent)
}

// Candidates 导出运行的候选池，format=json|csv|training
func (h *RunsHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "json"
	}

	p, err := h.candidates.LoadPool(r.Context(), id, h.thresholds)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	// 先写入缓冲区，导出失败时仍可返回错误响应
	var buf bytes.Buffer
	contentType := "application/json"
	switch format {
	case "json":
		err = p.WriteJSON(&buf, q.Get("schedule") != "false")
	case "csv":
		contentType = "text/csv; charset=utf-8"
		w.Header().Set("Content-Disposition", `attachment; filename="`+id+`-candidates.csv"`)
		err = p.WriteCSV(&buf)
	case "training":
		respondJSON(w, http.StatusOK, p.SupervisedRows())
		return
	default:
		respondError(w, errors.InvalidInput("format", "仅支持 json、csv、training"))
		return
	}
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "导出候选池失败"))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Candidate 查询单个候选及其祖先链
func (h *RunsHandler) Candidate(w http.ResponseWriter, r *http.Request) {
	cid, err := model.ParseCandidateID(r.PathValue("cid"))
	if err != nil {
		respondError(w, errors.InvalidInput("cid", err.Error()))
		return
	}
	p, err := h.candidates.LoadPool(r.Context(), r.PathValue("id"), h.thresholds)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	if _, ok := p.Get(cid); !ok {
		respondError(w, errors.NotFound("候选", cid.String()))
		return
	}

	lineage := p.Lineage(cid)
	records := make([]pool.ExportRecord, len(lineage))
	for i, c := range lineage {
		records[i] = c.Export(i == 0)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    records[0],
		"lineage": records,
	})
}

// Pool 候选池多样性与演化路径分析
func (h *RunsHandler) Pool(w http.ResponseWriter, r *http.Request) {
	p, err := h.candidates.LoadPool(r.Context(), r.PathValue("id"), h.thresholds)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	top := 5
	if v := r.URL.Query().Get("top"); v != "" {
		if top, err = strconv.Atoi(v); err != nil || top < 0 {
			respondError(w, errors.InvalidInput("top", "必须为非负整数"))
			return
		}
	}

	resp := PoolAnalysisResponse{Success: true, Diversity: p.Diversity()}
	for _, t := range p.Trajectories() {
		resp.Trajectories = append(resp.Trajectories, TrajectoryView{Trajectory: t, Gain: t.Gain()})
	}
	for _, c := range p.TopN(top) {
		resp.Top = append(resp.Top, c.Export(false))
	}
	respondJSON(w, http.StatusOK, resp)
}

// parseListFilter 从查询参数构建过滤器
func parseListFilter(r *http.Request) (repository.ListFilter, *errors.AppError) {
	q := r.URL.Query()
	f := repository.DefaultListFilter().
		WithGrade(q.Get("grade")).
		WithDateRange(q.Get("start_date"), q.Get("end_date"))

	limit, appErr := intParam(q.Get("limit"), "limit", f.Limit)
	if appErr != nil {
		return f, appErr
	}
	offset, appErr := intParam(q.Get("offset"), "offset", f.Offset)
	if appErr != nil {
		return f, appErr
	}
	f = f.WithLimit(limit).WithOffset(offset)
	if v := q.Get("order_by"); v != "" {
		f.OrderBy = v
	}
	if v := q.Get("order_dir"); v != "" {
		f.OrderDir = v
	}
	return f, nil
}

func intParam(v, name string, def int) (int, *errors.AppError) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.InvalidInput(name, "必须为整数")
	}
	return n, nil
}
