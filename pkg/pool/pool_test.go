package pool

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paiban/zhiban/pkg/features"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
)

func createTestDomain(t *testing.T) *model.Domain {
	t.Helper()
	cs := model.DefaultConstraintSet([]string{"2025-08-04", "2025-08-05"}, nil)
	d, err := model.NewDomain([]*model.Staff{
		{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 2},
		{ID: "A2", Role: model.RoleAttending, WeekdayQuota: 2},
		{ID: "R1", Role: model.RoleResident, WeekdayQuota: 2},
	}, cs)
	if err != nil {
		t.Fatalf("NewDomain failed: %v", err)
	}
	return d
}

// fixedClock 每次调用前进一纳秒
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 8, 1, 9, 30, 0, 123456789, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Nanosecond)
		return t
	}
}

// buildPool 空表 -> 部分 -> 完整 的一条链，外加一个独立的根
func buildPool(t *testing.T) (*Pool, *model.Domain) {
	t.Helper()
	d := createTestDomain(t)
	sc := scorer.New(d)
	p := New(nil)
	p.now = fixedClock()
	rec := NewRecorder(p, features.NewExtractor(d, sc))

	empty := d.NewSchedule()
	_, b := sc.Score(empty)
	root := rec.Record(empty, b, model.MethodBeamSearch, 0, 0)

	partial := empty.Clone()
	_ = partial.Assign("2025-08-04", model.RoleAttending, "A1")
	_ = partial.Assign("2025-08-04", model.RoleResident, "R1")
	_, b = sc.Score(partial)
	mid := rec.Record(partial, b, model.MethodBeamSearch, 1, root)

	full := partial.Clone()
	_ = full.Assign("2025-08-05", model.RoleAttending, "A2")
	_ = full.Assign("2025-08-05", model.RoleResident, "R1")
	_, b = sc.Score(full)
	rec.Record(full, b, model.MethodCSPBackfill, 2, mid)

	other := empty.Clone()
	_ = other.Assign("2025-08-04", model.RoleAttending, "A2")
	_, b = sc.Score(other)
	rec.Record(other, b, model.MethodBeamSearch, 1, 0)

	return p, d
}

func TestPool_Record(t *testing.T) {
	p, _ := buildPool(t)

	if p.Len() != 4 {
		t.Fatalf("Len = %d, expected 4", p.Len())
	}
	for i, c := range p.All() {
		if c.ID != model.CandidateID(i+1) {
			t.Errorf("candidate %d has id %d, expected monotonic ids", i, c.ID)
		}
	}

	full, ok := p.Get(3)
	if !ok {
		t.Fatal("Expected candidate 3")
	}
	if full.Breakdown.Unfilled != 0 || full.Features.FillRate != 1 {
		t.Errorf("Unexpected full candidate: %+v", full.Breakdown)
	}
	if full.Grade != model.GradeFor(full.Score, full.Features.GradeFacts(), model.DefaultThresholds()) {
		t.Errorf("Grade %v does not match thresholds", full.Grade)
	}
	if full.Grade != model.GradeS {
		t.Errorf("Expected grade S for a complete schedule, got %v", full.Grade)
	}
}

func TestPool_RecordRejects(t *testing.T) {
	d := createTestDomain(t)
	s := d.NewSchedule()

	tests := []struct {
		name  string
		input RecordInput
	}{
		{"空值班表", RecordInput{Method: model.MethodBeamSearch}},
		{"未知生成方式", RecordInput{Schedule: s, Method: "annealing"}},
		{"父候选不存在", RecordInput{Schedule: s, Method: model.MethodCSPBackfill, ParentID: 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(nil)
			if _, err := p.Record(tt.input); err == nil {
				t.Error("Expected error")
			}
			if p.Len() != 0 {
				t.Errorf("Len = %d, expected nothing recorded", p.Len())
			}
		})
	}

	t.Run("封存后", func(t *testing.T) {
		p := New(nil)
		p.Finalize()
		if _, err := p.Record(RecordInput{Schedule: s, Method: model.MethodBeamSearch}); err == nil {
			t.Error("Expected error after Finalize")
		}
	})
}

func TestPool_RecordClonesSchedule(t *testing.T) {
	d := createTestDomain(t)
	s := d.NewSchedule()
	p := New(nil)

	id, err := p.Record(RecordInput{Schedule: s, Method: model.MethodBeamSearch})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	_ = s.Assign("2025-08-04", model.RoleAttending, "A1")

	c, _ := p.Get(id)
	if c.Schedule.Get("2025-08-04", model.RoleAttending).IsPresent() {
		t.Error("Recorded schedule changed after the caller mutated its copy")
	}
}

func TestPool_LineageAndBest(t *testing.T) {
	p, _ := buildPool(t)

	chain := p.Lineage(3)
	var ids []model.CandidateID
	for _, c := range chain {
		ids = append(ids, c.ID)
	}
	if !reflect.DeepEqual(ids, []model.CandidateID{3, 2, 1}) {
		t.Errorf("Lineage(3) = %v, expected [3 2 1]", ids)
	}
	if len(p.Lineage(99)) != 0 {
		t.Error("Expected empty lineage for unknown id")
	}

	best, ok := p.Best()
	if !ok || best.ID != 3 {
		t.Errorf("Best = %v, expected candidate 3", best)
	}

	top := p.TopN(2)
	if len(top) != 2 || top[0].ID != 3 || top[0].Score < top[1].Score {
		t.Errorf("Unexpected TopN: %d entries", len(top))
	}
}

func TestPool_ConcurrentRecord(t *testing.T) {
	d := createTestDomain(t)
	s := d.NewSchedule()
	p := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Record(RecordInput{Schedule: s, Method: model.MethodBeamSearch})
		}()
	}
	wg.Wait()

	seen := make(map[model.CandidateID]bool)
	for _, c := range p.All() {
		if seen[c.ID] {
			t.Fatalf("Duplicate id %d", c.ID)
		}
		seen[c.ID] = true
	}
	if len(seen) != 50 {
		t.Errorf("Recorded %d candidates, expected 50", len(seen))
	}
}

func TestPool_Analysis(t *testing.T) {
	p, _ := buildPool(t)

	dist := p.GradeDistribution()
	total := 0
	for _, n := range dist {
		total += n
	}
	if total != 4 {
		t.Errorf("GradeDistribution sums to %d, expected 4", total)
	}
	if len(p.ByGrade(model.GradeS)) != dist[model.GradeS] {
		t.Error("ByGrade disagrees with GradeDistribution")
	}
	if n := len(p.ByMethod(model.MethodCSPBackfill)); n != 1 {
		t.Errorf("ByMethod(csp-backfill) = %d, expected 1", n)
	}

	m := p.Diversity()
	if m.PoolSize != 4 || m.UniqueSchedules != 4 {
		t.Errorf("Unexpected diversity: %+v", m)
	}
	if m.MaxScore < m.MeanScore || m.MinScore > m.MeanScore {
		t.Errorf("Mean %v outside [%v, %v]", m.MeanScore, m.MinScore, m.MaxScore)
	}
	if m.MethodCounts["beam-search"] != 3 {
		t.Errorf("MethodCounts = %v", m.MethodCounts)
	}

	trajectories := p.Trajectories()
	if len(trajectories) != 2 {
		t.Fatalf("Trajectories = %d, expected 2", len(trajectories))
	}
	if !reflect.DeepEqual(trajectories[0].IDs, []model.CandidateID{1, 2, 3}) {
		t.Errorf("First trajectory = %v, expected [1 2 3]", trajectories[0].IDs)
	}
	if trajectories[0].Gain() <= 0 {
		t.Errorf("Expected positive gain along the fill trajectory, got %v", trajectories[0].Gain())
	}
}

func TestPool_ExportRoundTrip(t *testing.T) {
	p, _ := buildPool(t)
	p.Finalize()

	var buf bytes.Buffer
	if err := p.WriteJSON(&buf, true); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	records, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	want := p.Export(true)
	for i := range records {
		if !records[i].Schedule.Equal(want[i].Schedule) {
			t.Errorf("record %d: schedule differs after decoding", i)
		}
		records[i].Schedule, want[i].Schedule = nil, nil
	}
	if !reflect.DeepEqual(records, want) {
		t.Error("Decoded records differ from the export")
	}

	restored, err := FromExport(records, nil)
	if err != nil {
		t.Fatalf("FromExport failed: %v", err)
	}
	if !reflect.DeepEqual(restored.Export(false), p.Export(false)) {
		t.Error("Restored pool exports differently")
	}
	if !restored.Finalized() {
		t.Error("Restored pool should be finalized")
	}

	first := records[0]
	if first.ParentID != nil {
		t.Errorf("Root parent_id = %v, expected null", *first.ParentID)
	}
	if records[1].ParentID == nil || *records[1].ParentID != "1" {
		t.Error("Expected parent_id \"1\" on the second record")
	}
}

func TestFromExport_Invalid(t *testing.T) {
	parent := "7"
	tests := []struct {
		name    string
		records []ExportRecord
	}{
		{"标识格式错误", []ExportRecord{{ID: "x", Timestamp: "2025-08-01T00:00:00Z", GenerationMethod: "beam-search"}}},
		{"时间戳格式错误", []ExportRecord{{ID: "1", Timestamp: "yesterday", GenerationMethod: "beam-search"}}},
		{"未知生成方式", []ExportRecord{{ID: "1", Timestamp: "2025-08-01T00:00:00Z", GenerationMethod: "greedy"}}},
		{"父候选不存在", []ExportRecord{{ID: "1", Timestamp: "2025-08-01T00:00:00Z", GenerationMethod: "beam-search", ParentID: &parent}}},
		{"标识未递增", []ExportRecord{
			{ID: "2", Timestamp: "2025-08-01T00:00:00Z", GenerationMethod: "beam-search"},
			{ID: "1", Timestamp: "2025-08-01T00:00:00Z", GenerationMethod: "beam-search"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromExport(tt.records, nil); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestPool_WriteCSV(t *testing.T) {
	p, _ := buildPool(t)

	var buf bytes.Buffer
	if err := p.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("csv parse failed: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d, expected header + 4", len(rows))
	}
	if len(rows[0]) != len(csvHeader)+len(features.Names()) {
		t.Errorf("header has %d columns", len(rows[0]))
	}
	if rows[1][6] != "" || rows[2][6] != "1" {
		t.Errorf("Unexpected parent column: %q %q", rows[1][6], rows[2][6])
	}
}

func TestPool_SupervisedRows(t *testing.T) {
	p, _ := buildPool(t)

	rows := p.SupervisedRows()
	if len(rows) != 4 {
		t.Fatalf("rows = %d, expected 4", len(rows))
	}
	full := rows[2]
	if full.Efficiency != 1 {
		t.Errorf("Efficiency = %v, expected 1 for a complete schedule", full.Efficiency)
	}
	if full.GradeEncoded != model.GradeS.Encoded() {
		t.Errorf("GradeEncoded = %d", full.GradeEncoded)
	}
	for _, r := range rows {
		if r.BalanceScore <= 0 || r.BalanceScore > 1 {
			t.Errorf("BalanceScore %v outside (0, 1]", r.BalanceScore)
		}
		if r.QualityIndex < 0 || r.QualityIndex > 1 {
			t.Errorf("QualityIndex %v outside [0, 1]", r.QualityIndex)
		}
	}
}
