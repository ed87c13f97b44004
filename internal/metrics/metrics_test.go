package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// gathered 读取注册表中指定指标、标签匹配的样本值
func gathered(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func TestRecordScheduleRun(t *testing.T) {
	labels := map[string]string{"outcome": OutcomeComplete, "grade": "S"}
	before := gathered(t, "zhiban_schedule_runs_total", labels)
	RecordScheduleRun(RunObservation{
		Outcome:    OutcomeComplete,
		Grade:      "S",
		Duration:   120 * time.Millisecond,
		Score:      42,
		Candidates: 9,
	})
	if got := gathered(t, "zhiban_schedule_runs_total", labels); got != before+1 {
		t.Errorf("runs counter = %v, expected %v", got, before+1)
	}
	if got := gathered(t, "zhiban_solution_score", nil); got != 42 {
		t.Errorf("score gauge = %v, expected 42", got)
	}

	// 校验失败不更新分数
	RecordScheduleRun(RunObservation{Outcome: OutcomeInvalid, Score: -9999})
	if got := gathered(t, "zhiban_solution_score", nil); got != 42 {
		t.Errorf("score gauge changed on invalid run: %v", got)
	}
	invalid := map[string]string{"outcome": OutcomeInvalid, "grade": "none"}
	if got := gathered(t, "zhiban_schedule_runs_total", invalid); got < 1 {
		t.Errorf("invalid runs counter = %v", got)
	}
}

func TestRunStarted(t *testing.T) {
	done := RunStarted()
	if got := gathered(t, "zhiban_active_runs", nil); got != 1 {
		t.Errorf("active runs = %v, expected 1", got)
	}
	done()
	if got := gathered(t, "zhiban_active_runs", nil); got != 0 {
		t.Errorf("active runs = %v, expected 0", got)
	}
}

func TestHandler(t *testing.T) {
	RecordRequestMetrics(http.MethodPost, "/api/v1/schedule/run", http.StatusOK, 5*time.Millisecond)
	RecordScheduleRun(RunObservation{Outcome: OutcomeIncomplete, Grade: "C", Unfilled: 3})
	SetDBConnections(1, 2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"zhiban_http_requests_total",
		"zhiban_schedule_runs_total",
		"zhiban_unfilled_slots",
		"zhiban_db_connections",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
