package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/database"
	"github.com/paiban/zhiban/pkg/model"
)

const fullRoster = `{
	"start_date": "2025-08-04",
	"end_date": "2025-08-06",
	"staff": [
		{"id": "A1", "role": "attending", "weekday_quota": 5, "holiday_quota": 2},
		{"id": "R1", "role": "resident", "weekday_quota": 5, "holiday_quota": 2}
	],
	"options": {"max_consecutive_days": 3}
}`

const faultRoster = `{
	"start_date": "2025-08-04",
	"end_date": "2025-08-08",
	"staff": [
		{"id": "A1", "role": "attending", "weekday_quota": 1}
	],
	"options": {"max_consecutive_days": 3, "required_roles": ["attending"]}
}`

const fullSchedule = `[
	{"date": "2025-08-04", "attending": "A1", "resident": "R1"},
	{"date": "2025-08-05", "attending": "A1", "resident": "R1"},
	{"date": "2025-08-06", "attending": "A1", "resident": "R1"}
]`

func newTestRouter(t *testing.T, withDB bool) http.Handler {
	t.Helper()
	cfg := config.Default().Engine
	if !withDB {
		return NewRouter(cfg, nil)
	}
	db, err := database.New(context.Background(), &config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRouter(cfg, db)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response failed: %v\n%s", err, rec.Body.String())
	}
}

// withSchedule 把值班表并入排班输入
func withSchedule(roster, schedule string) string {
	return strings.TrimSuffix(strings.TrimSpace(roster), "}") + `, "schedule": ` + schedule + "}"
}

func TestScheduleRun(t *testing.T) {
	h := newTestRouter(t, false)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"完整排班", fullRoster, http.StatusOK, ""},
		{"配额不足", faultRoster, http.StatusUnprocessableEntity, "NO_FEASIBLE_SOLUTION"},
		{"人员为空", `{"start_date": "2025-08-04", "end_date": "2025-08-06", "staff": []}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"日期范围无效", `{"start_date": "2025-08-06", "end_date": "2025-08-04", "staff": []}`, http.StatusBadRequest, "INVALID_TIME_RANGE"},
		{"假日不在范围内", `{"start_date": "2025-08-04", "end_date": "2025-08-06", "holidays": ["2025-09-01"], "staff": []}`, http.StatusBadRequest, "INVALID_TIME_RANGE"},
		{"请求体无效", `{`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/schedule/run", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, expected %d\n%s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			var body struct {
				Success bool `json:"success"`
				Result  *struct {
					Feasible bool        `json:"feasible"`
					Grade    model.Grade `json:"grade"`
					Unfilled []model.SlotRef
					Analysis *struct {
						Difficulty string `json:"difficulty"`
					} `json:"analysis"`
				} `json:"result"`
				Error *struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			decode(t, rec, &body)

			switch tt.wantStatus {
			case http.StatusOK:
				if !body.Success || body.Result == nil || !body.Result.Feasible {
					t.Errorf("Expected a feasible successful run: %s", rec.Body.String())
				}
				if body.Result != nil && (body.Result.Analysis == nil || body.Result.Analysis.Difficulty == "") {
					t.Errorf("Expected the pre-run analysis on the result: %s", rec.Body.String())
				}
			case http.StatusUnprocessableEntity:
				if body.Success || body.Result == nil || body.Error == nil || body.Error.Code != tt.wantCode {
					t.Errorf("Expected fault with best-effort result: %s", rec.Body.String())
				}
			default:
				if body.Success || body.Error == nil || body.Error.Code != tt.wantCode {
					t.Errorf("Expected error envelope with code %q: %s", tt.wantCode, rec.Body.String())
				}
			}
		})
	}
}

func TestScheduleRun_ExplicitDates(t *testing.T) {
	h := newTestRouter(t, false)
	body := `{
		"weekdays": ["2025-08-04", "2025-08-05"],
		"holidays": ["2025-08-09"],
		"staff": [
			{"id": "A1", "role": "attending", "weekday_quota": 5, "holiday_quota": 2},
			{"id": "R1", "role": "resident", "weekday_quota": 5, "holiday_quota": 2}
		],
		"options": {"max_consecutive_days": 3}
	}`
	rec := do(t, h, http.MethodPost, "/api/v1/schedule/run", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Result struct {
			Schedule *model.Schedule `json:"schedule"`
		} `json:"result"`
	}
	decode(t, rec, &resp)
	want := []string{"2025-08-04", "2025-08-05", "2025-08-09"}
	got := resp.Result.Schedule.Dates()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("dates = %v, expected %v", got, want)
	}
}

func TestScheduleStream(t *testing.T) {
	h := newTestRouter(t, false)
	rec := do(t, h, http.MethodPost, "/api/v1/schedule/stream", fullRoster)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	last := strings.LastIndex(body, "event: ")
	if last < 0 || !strings.HasPrefix(body[last:], "event: result\n") {
		t.Fatalf("Expected the final event to be result:\n%s", body)
	}
	data := strings.TrimPrefix(strings.SplitN(body[last:], "\n", 3)[1], "data: ")
	var resp RunResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatalf("decode result event failed: %v", err)
	}
	if !resp.Success || resp.Result == nil {
		t.Errorf("Expected a successful result event: %s", data)
	}
}

func TestScheduleValidate(t *testing.T) {
	h := newTestRouter(t, false)

	swapped := `[
		{"date": "2025-08-04", "attending": "R1", "resident": "A1"},
		{"date": "2025-08-05", "attending": "A1", "resident": "R1"},
		{"date": "2025-08-06", "attending": null, "resident": "R1"}
	]`
	tests := []struct {
		name         string
		schedule     string
		wantStatus   int
		wantValid    bool
		wantUnfilled int
		wantConflict string
	}{
		{"合法值班表", fullSchedule, http.StatusOK, true, 0, ""},
		{"角色不符与空缺", swapped, http.StatusOK, false, 1, "role_mismatch"},
		{"日期不一致", `[{"date": "2025-08-04", "attending": "A1", "resident": "R1"}]`, http.StatusBadRequest, false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/schedule/validate", withSchedule(fullRoster, tt.schedule))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, expected %d\n%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ValidateResponse
			decode(t, rec, &resp)
			if resp.IsValid != tt.wantValid {
				t.Errorf("is_valid = %v, expected %v", resp.IsValid, tt.wantValid)
			}
			if len(resp.Unfilled) != tt.wantUnfilled {
				t.Errorf("unfilled = %v, expected %d", resp.Unfilled, tt.wantUnfilled)
			}
			if tt.wantConflict != "" {
				found := false
				for _, c := range resp.Conflicts {
					found = found || string(c.Type) == tt.wantConflict
				}
				if !found {
					t.Errorf("Expected a %s conflict, got %+v", tt.wantConflict, resp.Conflicts)
				}
			}
		})
	}
}

func TestScheduleAnalyze(t *testing.T) {
	h := newTestRouter(t, false)

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantFeasible bool
		wantProblem  string
	}{
		{"配额充足", fullRoster, http.StatusOK, true, ""},
		{"配额不足", faultRoster, http.StatusOK, false, "平日主治岗位供给不足：需要 5，可提供 1"},
		{"日期范围无效", `{"start_date": "2025-08-06", "end_date": "2025-08-04", "staff": []}`, http.StatusBadRequest, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/schedule/analyze", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, expected %d\n%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Success  bool `json:"success"`
				Analysis struct {
					TotalDays   int `json:"total_days"`
					Feasibility struct {
						Feasible bool     `json:"feasible"`
						Problems []string `json:"problems"`
					} `json:"feasibility"`
				} `json:"analysis"`
			}
			decode(t, rec, &resp)
			if !resp.Success || resp.Analysis.TotalDays == 0 {
				t.Errorf("Unexpected analysis: %s", rec.Body.String())
			}
			if resp.Analysis.Feasibility.Feasible != tt.wantFeasible {
				t.Errorf("feasible = %v, expected %v", resp.Analysis.Feasibility.Feasible, tt.wantFeasible)
			}
			if tt.wantProblem != "" && !strings.Contains(strings.Join(resp.Analysis.Feasibility.Problems, "\n"), tt.wantProblem) {
				t.Errorf("problems %v lack %q", resp.Analysis.Feasibility.Problems, tt.wantProblem)
			}
		})
	}
}

func TestStatsEndpoints(t *testing.T) {
	h := newTestRouter(t, false)
	body := withSchedule(fullRoster, fullSchedule)

	t.Run("公平性", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/stats/fairness",
			strings.TrimSuffix(body, "}")+`, "baseline": `+fullSchedule+"}")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		var resp FairnessResponse
		decode(t, rec, &resp)
		if resp.Data == nil || len(resp.Data.StaffStats) != 2 {
			t.Fatalf("Unexpected fairness data: %s", rec.Body.String())
		}
		if resp.Comparison["overall_score_diff"] != 0 {
			t.Errorf("identical schedules differ: %v", resp.Comparison)
		}
	})

	t.Run("覆盖率", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/stats/coverage", strings.TrimSuffix(body, "}")+`, "report": true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		var resp CoverageResponse
		decode(t, rec, &resp)
		if resp.Data == nil || resp.Data.OverallCoverage != 1 {
			t.Errorf("Expected full coverage: %s", rec.Body.String())
		}
		if !strings.Contains(resp.Report, "覆盖率分析报告") {
			t.Errorf("Expected a coverage report, got %q", resp.Report)
		}
	})

	t.Run("特征", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/stats/features", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		var resp FeaturesResponse
		decode(t, rec, &resp)
		if resp.Data.FillRate != 1 || resp.Data.TotalSlots != 6 {
			t.Errorf("Unexpected features: %+v", resp.Data)
		}
		if len(resp.Vector) != len(resp.Names) {
			t.Errorf("vector has %d entries, names %d", len(resp.Vector), len(resp.Names))
		}
	})

	t.Run("缺少值班表", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/stats/features", fullRoster)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, expected 400", rec.Code)
		}
	})
}

func TestConstraintLibrary(t *testing.T) {
	h := newTestRouter(t, false)
	tests := []struct {
		query string
		want  int
	}{
		{"", 8},
		{"?type=hard", 4},
		{"?type=score", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/v1/constraints/library"+tt.query, "")
			var resp struct {
				Library []json.RawMessage `json:"library"`
			}
			decode(t, rec, &resp)
			if len(resp.Library) != tt.want {
				t.Errorf("library size = %d, expected %d", len(resp.Library), tt.want)
			}
		})
	}
}

func TestRunsLifecycle(t *testing.T) {
	h := newTestRouter(t, true)

	rec := do(t, h, http.MethodPost, "/api/v1/schedule/run", fullRoster)
	var run RunResponse
	decode(t, rec, &run)
	if !run.Persisted || run.Result == nil {
		t.Fatalf("Expected the run to be persisted: %s", rec.Body.String())
	}
	id := run.Result.RunID

	// 不保存的运行
	noPersist := strings.Replace(fullRoster, `"max_consecutive_days": 3`, `"max_consecutive_days": 3, "persist": false`, 1)
	decode(t, do(t, h, http.MethodPost, "/api/v1/schedule/run", noPersist), &run)
	if run.Persisted {
		t.Error("Expected persist=false to skip saving")
	}

	// 不可行的运行同样保存
	decode(t, do(t, h, http.MethodPost, "/api/v1/schedule/run", faultRoster), &run)
	if !run.Persisted {
		t.Error("Expected the infeasible run to be persisted")
	}
	faultID := run.Result.RunID

	t.Run("列表", func(t *testing.T) {
		var list RunListResponse
		decode(t, do(t, h, http.MethodGet, "/api/v1/runs?limit=1", ""), &list)
		if list.Total != 2 || len(list.Data) != 1 {
			t.Errorf("total = %d, page = %d", list.Total, len(list.Data))
		}
		rec := do(t, h, http.MethodGet, "/api/v1/runs?limit=x", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("bad limit status = %d", rec.Code)
		}
	})

	t.Run("详情", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/runs/"+faultID, "")
		var detail RunDetailResponse
		decode(t, rec, &detail)
		if detail.Data == nil || detail.Data.Feasible || detail.Fault == nil {
			t.Errorf("Expected a stored fault: %s", rec.Body.String())
		}
		if rec := do(t, h, http.MethodGet, "/api/v1/runs/missing", ""); rec.Code != http.StatusNotFound {
			t.Errorf("missing run status = %d", rec.Code)
		}
	})

	t.Run("导出CSV", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/runs/"+id+"/candidates?format=csv", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
		if err != nil {
			t.Fatalf("parse csv failed: %v", err)
		}
		if len(rows) < 2 || rows[0][0] != "id" {
			t.Errorf("Unexpected csv: %v", rows)
		}
		if rec := do(t, h, http.MethodGet, "/api/v1/runs/"+id+"/candidates?format=xml", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("unknown format status = %d", rec.Code)
		}
	})

	t.Run("候选与祖先链", func(t *testing.T) {
		var detail RunDetailResponse
		decode(t, do(t, h, http.MethodGet, "/api/v1/runs/"+id, ""), &detail)
		cid := detail.Data.CandidateID

		rec := do(t, h, http.MethodGet, "/api/v1/runs/"+id+"/candidates/"+model.CandidateID(cid).String(), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Lineage []json.RawMessage `json:"lineage"`
		}
		decode(t, rec, &resp)
		if len(resp.Lineage) == 0 {
			t.Error("Expected a non-empty lineage")
		}
		if rec := do(t, h, http.MethodGet, "/api/v1/runs/"+id+"/candidates/abc", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("bad candidate id status = %d", rec.Code)
		}
	})

	t.Run("候选池分析", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/runs/"+id+"/pool?top=1", "")
		var resp PoolAnalysisResponse
		decode(t, rec, &resp)
		if resp.Diversity.PoolSize == 0 || len(resp.Top) != 1 || len(resp.Trajectories) == 0 {
			t.Errorf("Unexpected pool analysis: %s", rec.Body.String())
		}
	})

	t.Run("删除", func(t *testing.T) {
		if rec := do(t, h, http.MethodDelete, "/api/v1/runs/"+id, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("delete status = %d", rec.Code)
		}
		if rec := do(t, h, http.MethodGet, "/api/v1/runs/"+id, ""); rec.Code != http.StatusNotFound {
			t.Errorf("deleted run status = %d", rec.Code)
		}
		if rec := do(t, h, http.MethodDelete, "/api/v1/runs/"+id, ""); rec.Code != http.StatusNotFound {
			t.Errorf("second delete status = %d", rec.Code)
		}
	})
}

func TestRouter_WithoutDatabase(t *testing.T) {
	h := newTestRouter(t, false)
	if rec := do(t, h, http.MethodGet, "/api/v1/runs", ""); rec.Code != http.StatusNotFound {
		t.Errorf("runs without database status = %d, expected 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/", ""); rec.Code != http.StatusOK {
		t.Errorf("index status = %d", rec.Code)
	}
}

func TestSwapEndpoints(t *testing.T) {
	h := newTestRouter(t, false)
	roster := `{
	"start_date": "2025-08-04",
	"end_date": "2025-08-06",
	"staff": [
		{"id": "A1", "role": "attending", "weekday_quota": 5},
		{"id": "A2", "role": "attending", "weekday_quota": 5},
		{"id": "R1", "role": "resident", "weekday_quota": 5}
	],
	"options": {"max_consecutive_days": 3}
}`
	schedule := `[
	{"date": "2025-08-04", "attending": "A1", "resident": "R1"},
	{"date": "2025-08-05", "attending": "A1", "resident": "R1"},
	{"date": "2025-08-06", "attending": "A2", "resident": "R1"}
]`
	base := withSchedule(roster, schedule)
	with := func(extra string) string {
		return strings.TrimSuffix(base, "}") + ", " + extra + "}"
	}

	t.Run("评估换班", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/schedule/swap/evaluate", with(`"date": "2025-08-04", "role": "attending", "target": "A2"`))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		var body struct {
			Success    bool `json:"success"`
			Evaluation struct {
				Feasible bool   `json:"feasible"`
				SwapType string `json:"swap_type"`
				Source   string `json:"source"`
			} `json:"evaluation"`
			Schedule *model.Schedule `json:"schedule"`
		}
		decode(t, rec, &body)
		if !body.Success || !body.Evaluation.Feasible || body.Evaluation.SwapType != "take_over" || body.Evaluation.Source != "A1" {
			t.Errorf("Unexpected evaluation: %s", rec.Body.String())
		}
		if body.Schedule == nil || body.Schedule.Get("2025-08-04", model.RoleAttending).String() != "A2" {
			t.Errorf("Expected the swapped schedule: %s", rec.Body.String())
		}
	})

	t.Run("角色不符", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/schedule/swap/evaluate", with(`"date": "2025-08-04", "role": "attending", "target": "R1"`))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		var body struct {
			Success  bool            `json:"success"`
			Schedule *model.Schedule `json:"schedule"`
		}
		decode(t, rec, &body)
		if body.Success || body.Schedule != nil {
			t.Errorf("Expected an infeasible swap: %s", rec.Body.String())
		}
	})

	t.Run("推荐换班", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/schedule/swap/recommend", with(`"date": "2025-08-04", "staff_id": "A1"`))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
		}
		var body struct {
			Role            model.Role `json:"role"`
			Current         string     `json:"current"`
			Recommendations []struct {
				Rank     int    `json:"rank"`
				Target   string `json:"target"`
				SwapType string `json:"swap_type"`
			} `json:"recommendations"`
		}
		decode(t, rec, &body)
		if body.Role != model.RoleAttending || body.Current != "A1" {
			t.Errorf("Unexpected slot: %s", rec.Body.String())
		}
		// A2 接班，或与 A2 互换 08-06
		if len(body.Recommendations) != 2 || body.Recommendations[0].Rank != 1 {
			t.Fatalf("Unexpected recommendations: %s", rec.Body.String())
		}
		for _, r := range body.Recommendations {
			if r.Target != "A2" {
				t.Errorf("Unexpected target %s", r.Target)
			}
		}
	})

	errorCases := []struct {
		name  string
		path  string
		extra string
	}{
		{"缺少接班人员", "/api/v1/schedule/swap/evaluate", `"date": "2025-08-04", "role": "attending"`},
		{"未指定角色", "/api/v1/schedule/swap/recommend", `"date": "2025-08-04"`},
		{"人员当日无值班", "/api/v1/schedule/swap/recommend", `"date": "2025-08-04", "staff_id": "A2"`},
		{"日期不在表中", "/api/v1/schedule/swap/recommend", `"date": "2025-09-01", "role": "attending"`},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, with(tt.extra))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, expected 400\n%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSwapFill(t *testing.T) {
	h := newTestRouter(t, false)
	body := `{
	"start_date": "2025-08-04",
	"end_date": "2025-08-08",
	"staff": [
		{"id": "A1", "role": "attending", "weekday_quota": 2},
		{"id": "A2", "role": "attending", "weekday_quota": 2, "unavailable_dates": ["2025-08-08"]},
		{"id": "A3", "role": "attending", "weekday_quota": 1, "unavailable_dates": ["2025-08-08"]},
		{"id": "R1", "role": "resident", "weekday_quota": 5}
	],
	"schedule": [
		{"date": "2025-08-04", "attending": "A1", "resident": "R1"},
		{"date": "2025-08-05", "attending": "A2", "resident": "R1"},
		{"date": "2025-08-06", "attending": "A1", "resident": "R1"},
		{"date": "2025-08-07", "attending": "A2", "resident": "R1"},
		{"date": "2025-08-08", "attending": null, "resident": "R1"}
	],
	"chain": {"max_depth": 2}
}`
	rec := do(t, h, http.MethodPost, "/api/v1/schedule/swap/fill", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Gaps    []struct {
			Date      string   `json:"date"`
			OverQuota []string `json:"over_quota"`
		} `json:"gaps"`
		Report struct {
			Schedule *model.Schedule `json:"schedule"`
			Chains   []struct {
				Steps []struct {
					StaffID string `json:"staff_id"`
					From    string `json:"from"`
				} `json:"steps"`
			} `json:"chains"`
		} `json:"report"`
	}
	decode(t, rec, &resp)
	if !resp.Success || len(resp.Gaps) != 1 || resp.Gaps[0].Date != "2025-08-08" {
		t.Fatalf("Unexpected response: %s", rec.Body.String())
	}
	if len(resp.Report.Chains) != 1 || len(resp.Report.Chains[0].Steps) != 2 {
		t.Fatalf("Expected one two-step chain: %s", rec.Body.String())
	}
	if got := resp.Report.Schedule.Get("2025-08-08", model.RoleAttending).String(); got != "A1" {
		t.Errorf("2025-08-08 = %s, expected A1", got)
	}
}
