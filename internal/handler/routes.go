package handler

import (
	"net/http"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/repository"
)

// NewRouter 注册 API v1 路由；db 为 nil 时不保存运行，也不提供 /runs 查询
func NewRouter(engineCfg config.EngineConfig, db repository.TxDB) *http.ServeMux {
	mux := http.NewServeMux()

	var runs *repository.RunRepository
	if db != nil {
		rh := NewRunsHandler(engineCfg, db)
		runs = rh.Repository()

		mux.HandleFunc("GET /api/v1/runs", rh.List)
		mux.HandleFunc("GET /api/v1/runs/{id}", rh.Get)
		mux.HandleFunc("DELETE /api/v1/runs/{id}", rh.Delete)
		mux.HandleFunc("GET /api/v1/runs/{id}/candidates", rh.Candidates)
		mux.HandleFunc("GET /api/v1/runs/{id}/candidates/{cid}", rh.Candidate)
		mux.HandleFunc("GET /api/v1/runs/{id}/pool", rh.Pool)
	}

	// 排班
	sh := NewScheduleHandler(engineCfg, runs)
	mux.HandleFunc("POST /api/v1/schedule/run", sh.Run)
	mux.HandleFunc("POST /api/v1/schedule/stream", sh.Stream)
	mux.HandleFunc("POST /api/v1/schedule/validate", sh.Validate)
	mux.HandleFunc("POST /api/v1/schedule/analyze", sh.Analyze)

	// 换班
	sw := NewSwapHandler(engineCfg)
	mux.HandleFunc("POST /api/v1/schedule/swap/evaluate", sw.Evaluate)
	mux.HandleFunc("POST /api/v1/schedule/swap/recommend", sw.Recommend)
	mux.HandleFunc("POST /api/v1/schedule/swap/fill", sw.Fill)

	// 统计
	st := NewStatsHandler(engineCfg)
	mux.HandleFunc("POST /api/v1/stats/fairness", st.Fairness)
	mux.HandleFunc("POST /api/v1/stats/coverage", st.Coverage)
	mux.HandleFunc("POST /api/v1/stats/features", st.Features)

	// 约束
	mux.HandleFunc("GET /api/v1/constraints/library", ConstraintLibrary)

	mux.HandleFunc("GET /api/v1/{$}", apiIndex)
	return mux
}

// apiIndex 列出可用端点
func apiIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "值班排班引擎 API",
		"version": "v1",
		"endpoints": map[string]string{
			"POST /api/v1/schedule/run":               "执行排班",
			"POST /api/v1/schedule/stream":            "执行排班并推送进度 (SSE)",
			"POST /api/v1/schedule/validate":          "评估值班表",
			"POST /api/v1/schedule/analyze":           "排班前分析（供需、难度、瓶颈）",
			"POST /api/v1/schedule/swap/evaluate":     "评估换班",
			"POST /api/v1/schedule/swap/recommend":    "推荐换班人选",
			"POST /api/v1/schedule/swap/fill":         "交换链补缺",
			"POST /api/v1/stats/fairness":             "公平性分析",
			"POST /api/v1/stats/coverage":             "覆盖率分析",
			"POST /api/v1/stats/features":             "特征提取",
			"GET  /api/v1/constraints/library":        "约束目录",
			"GET  /api/v1/runs":                       "已保存的运行",
			"GET  /api/v1/runs/{id}":                  "运行详情，id 可为 latest",
			"GET  /api/v1/runs/{id}/candidates":       "导出候选池 (json/csv/training)",
			"GET  /api/v1/runs/{id}/candidates/{cid}": "候选及祖先链",
			"GET  /api/v1/runs/{id}/pool":             "候选池分析",
			"DELETE /api/v1/runs/{id}":                "删除运行",
		},
	})
}
