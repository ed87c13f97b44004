package repository

import (
	"context"
	"testing"
	"time"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/database"
	"github.com/paiban/zhiban/pkg/engine"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
)

var _ TxDB = (*database.DB)(nil)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(context.Background(), &config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func runEngine(t *testing.T, start, end string, staff []*model.Staff, roles []model.Role) *engine.ScheduleResult {
	t.Helper()
	dates, err := model.DateRange{StartDate: start, EndDate: end}.Dates()
	if err != nil {
		t.Fatalf("Dates failed: %v", err)
	}
	weekdays, holidays, err := model.SplitByWeekend(dates)
	if err != nil {
		t.Fatalf("SplitByWeekend failed: %v", err)
	}
	cs := model.DefaultConstraintSet(nil, nil)
	cs.MaxConsecutiveDays = 3
	if roles != nil {
		cs.RequiredRoles = roles
	}
	result, err := engine.RunScheduling(context.Background(), staff, cs, weekdays, holidays, nil)
	if result == nil {
		t.Fatalf("RunScheduling returned no result: %v", err)
	}
	return result
}

func fullResult(t *testing.T) *engine.ScheduleResult {
	return runEngine(t, "2025-08-04", "2025-08-06", []*model.Staff{
		{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 5, HolidayQuota: 2},
		{ID: "R1", Role: model.RoleResident, WeekdayQuota: 5, HolidayQuota: 2},
	}, nil)
}

func faultResult(t *testing.T) *engine.ScheduleResult {
	return runEngine(t, "2025-08-04", "2025-08-08", []*model.Staff{
		{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 1},
	}, []model.Role{model.RoleAttending})
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	ctx := context.Background()

	result := fullResult(t)
	saved, err := runs.Save(ctx, result)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := runs.GetByID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StartDate != "2025-08-04" || got.EndDate != "2025-08-06" {
		t.Errorf("Unexpected range %s..%s", got.StartDate, got.EndDate)
	}
	if got.Score != saved.Score || got.Grade != result.Grade.String() {
		t.Errorf("Score/grade mismatch: %+v", got)
	}
	if !got.Feasible || got.Incomplete || got.FillRate != 1.0 {
		t.Errorf("Unexpected flags: feasible=%v incomplete=%v fill=%v", got.Feasible, got.Incomplete, got.FillRate)
	}
	if got.CandidateID != int64(result.CandidateID) {
		t.Errorf("CandidateID = %d, expected %d", got.CandidateID, result.CandidateID)
	}

	schedule, err := got.DecodeSchedule()
	if err != nil {
		t.Fatalf("DecodeSchedule failed: %v", err)
	}
	if !schedule.Equal(result.Schedule) {
		t.Error("Stored schedule differs from the result")
	}
	if fault, err := got.DecodeFault(); err != nil || fault != nil {
		t.Errorf("Expected no fault, got %v (%v)", fault, err)
	}
}

func TestRunRepository_SaveFault(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	ctx := context.Background()

	result := faultResult(t)
	if result.Fault == nil {
		t.Fatal("Expected an infeasibility fault")
	}
	if _, err := runs.Save(ctx, result); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := runs.GetByID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	fault, err := got.DecodeFault()
	if err != nil || fault == nil {
		t.Fatalf("DecodeFault = %v, %v", fault, err)
	}
	if !fault.HasConstraint("quota") {
		t.Errorf("Expected quota in fault constraints, got %v", fault.Constraints)
	}
	if got.Feasible {
		t.Error("Fault run must not be feasible")
	}
}

func TestRunRepository_GetMissing(t *testing.T) {
	runs := NewRunRepository(openTestDB(t))
	_, err := runs.GetByID(context.Background(), "absent")
	if !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
	if _, err := runs.GetLatest(context.Background()); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND for latest, got %v", err)
	}
}

func TestRunRepository_ListAndDelete(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i, result := range []*engine.ScheduleResult{fullResult(t), faultResult(t), fullResult(t)} {
		ts := base.Add(time.Duration(i) * time.Hour)
		runs.now = func() time.Time { return ts }
		if _, err := runs.Save(ctx, result); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		ids = append(ids, result.RunID)
	}

	tests := []struct {
		name      string
		filter    ListFilter
		wantTotal int
		wantFirst string
	}{
		{"默认按时间倒序", DefaultListFilter(), 3, ids[2]},
		{"升序", ListFilter{OrderBy: "created_at", OrderDir: "asc"}, 3, ids[0]},
		{"非法排序列回退默认", ListFilter{OrderBy: "id; DROP TABLE runs", OrderDir: "sideways"}, 3, ids[2]},
		{"按结束日期过滤", DefaultListFilter().WithDateRange("", "2025-08-06"), 2, ids[2]},
		{"分页", DefaultListFilter().WithLimit(1).WithOffset(1), 3, ids[1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := runs.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, expected %d", total, tt.wantTotal)
			}
			if len(got) == 0 || got[0].ID != tt.wantFirst {
				t.Errorf("first = %v, expected %s", got, tt.wantFirst)
			}
		})
	}

	latest, err := runs.GetLatest(ctx)
	if err != nil || latest.ID != ids[2] {
		t.Errorf("GetLatest = %v, %v", latest, err)
	}

	if err := runs.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := runs.GetByID(ctx, ids[0]); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND after delete, got %v", err)
	}
	records, err := NewCandidateRepository(db).ListByRun(ctx, ids[0], false)
	if err != nil || len(records) != 0 {
		t.Errorf("Candidates should be deleted with the run, got %d (%v)", len(records), err)
	}
	if err := runs.Delete(ctx, ids[0]); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("Second delete should be NOT_FOUND, got %v", err)
	}
}

func TestCandidateRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	result := faultResult(t)
	if _, err := NewRunRepository(db).Save(ctx, result); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	candidates := NewCandidateRepository(db)

	records, err := candidates.ListByRun(ctx, result.RunID, false)
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if len(records) != result.Pool.Len() {
		t.Fatalf("Stored %d candidates, pool has %d", len(records), result.Pool.Len())
	}
	for i, rec := range records {
		if rec.Schedule != nil {
			t.Errorf("record %d: schedule should be omitted", i)
		}
		if len(rec.Features) == 0 {
			t.Errorf("record %d: features missing", i)
		}
	}

	final, err := candidates.GetByID(ctx, result.RunID, result.CandidateID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.GenerationMethod != string(model.MethodGreedyFill) || final.ParentID == nil {
		t.Errorf("Final candidate should be a greedy-fill child, got %+v", final)
	}
	if !final.Schedule.Equal(result.Schedule) {
		t.Error("Final candidate schedule differs from the result")
	}
	if _, err := candidates.GetByID(ctx, result.RunID, 99999); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}

	counts, err := candidates.CountByGrade(ctx, result.RunID)
	if err != nil {
		t.Fatalf("CountByGrade failed: %v", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total != result.Pool.Len() {
		t.Errorf("grade counts sum to %d, expected %d", total, result.Pool.Len())
	}

	restored, err := candidates.LoadPool(ctx, result.RunID, nil)
	if err != nil {
		t.Fatalf("LoadPool failed: %v", err)
	}
	if restored.Len() != result.Pool.Len() || !restored.Finalized() {
		t.Errorf("Restored pool: len=%d finalized=%v", restored.Len(), restored.Finalized())
	}
	lineage := restored.Lineage(result.CandidateID)
	if len(lineage) < 2 || lineage[len(lineage)-1].Method != model.MethodBeamSearch {
		t.Errorf("Lineage should end at a beam-search root, got %d entries", len(lineage))
	}

	if _, err := candidates.LoadPool(ctx, "absent", nil); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND for an unknown run, got %v", err)
	}
}
