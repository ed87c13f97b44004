package engine

import (
	"context"
	"testing"
	"time"

	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
)

func dateRange(t *testing.T, start, end string) (weekdays, holidays []string) {
	t.Helper()
	dates, err := model.DateRange{StartDate: start, EndDate: end}.Dates()
	if err != nil {
		t.Fatalf("Dates failed: %v", err)
	}
	weekdays, holidays, err = model.SplitByWeekend(dates)
	if err != nil {
		t.Fatalf("SplitByWeekend failed: %v", err)
	}
	return weekdays, holidays
}

// 两人三天，全部可用且配额充足
func TestRunScheduling_FillsEverySlotWhenQuotasSuffice(t *testing.T) {
	weekdays, holidays := dateRange(t, "2025-08-04", "2025-08-06")
	staff := []*model.Staff{
		{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 5, HolidayQuota: 2},
		{ID: "R1", Role: model.RoleResident, WeekdayQuota: 5, HolidayQuota: 2},
	}
	cs := model.DefaultConstraintSet(nil, nil)
	cs.MaxConsecutiveDays = 3

	result, err := RunScheduling(context.Background(), staff, cs, weekdays, holidays, nil)
	if err != nil {
		t.Fatalf("RunScheduling failed: %v", err)
	}
	if result.Summary.FillRate != 1.0 {
		t.Errorf("FillRate = %v, expected 1.0", result.Summary.FillRate)
	}
	if result.Breakdown.HardViolations != 0 || !result.Feasible {
		t.Errorf("Expected a feasible schedule, got %+v", result.Breakdown)
	}
	if result.Incomplete || len(result.Unfilled) != 0 {
		t.Errorf("Unexpected unfilled slots: %v", result.Unfilled)
	}
	if result.Summary.DutyCounts["A1"] != 3 || result.Summary.DutyCounts["R1"] != 3 {
		t.Errorf("Unexpected duty counts: %v", result.Summary.DutyCounts)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("Expected no conflicts, got %+v", result.Conflicts)
	}
	if result.RunID == "" {
		t.Error("Expected a run id")
	}
	if result.Analysis == nil || !result.Analysis.Feasibility.Feasible {
		t.Errorf("Expected a feasible pre-run analysis, got %+v", result.Analysis)
	}

	best, ok := result.Pool.Get(result.CandidateID)
	if !ok {
		t.Fatal("Final candidate missing from the pool")
	}
	if best.Method != model.MethodBeamSearch || !best.Schedule.Equal(result.Schedule) {
		t.Errorf("Final candidate %d does not match the returned schedule", best.ID)
	}
	if !result.Pool.Finalized() {
		t.Error("Pool should be finalized after the run")
	}
}

// 一人五天、配额 1，回填报告配额导致的无解
func TestRunScheduling_ReportsQuotaInfeasibility(t *testing.T) {
	weekdays, holidays := dateRange(t, "2025-08-04", "2025-08-08")
	staff := []*model.Staff{
		{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 1, HolidayQuota: 0},
	}
	cs := model.DefaultConstraintSet(nil, nil)
	cs.RequiredRoles = []model.Role{model.RoleAttending}

	result, err := RunScheduling(context.Background(), staff, cs, weekdays, holidays, nil)
	if err == nil {
		t.Fatal("Expected an infeasibility fault")
	}
	if !errors.Is(err, errors.CodeNoFeasibleSolution) {
		t.Errorf("Expected NO_FEASIBLE_SOLUTION, got %v", err)
	}
	var fault *errors.InfeasibilityFault
	if !errors.As(err, &fault) {
		t.Fatalf("Expected *InfeasibilityFault, got %T", err)
	}
	if !fault.HasConstraint("quota") {
		t.Errorf("Diagnosis should reference quota, got %v", fault.Constraints)
	}
	if len(fault.Variables) != 4 {
		t.Errorf("Expected 4 variables in the diagnosis, got %v", fault.Variables)
	}

	if result == nil {
		t.Fatal("Expected a best-effort result alongside the fault")
	}
	if len(result.Beam.Gaps) < 4 {
		t.Errorf("Beam search should leave at least 4 gaps, got %d", len(result.Beam.Gaps))
	}
	if len(result.Unfilled) != 4 || result.Feasible || result.Incomplete {
		t.Errorf("Unexpected result flags: unfilled=%d feasible=%v incomplete=%v", len(result.Unfilled), result.Feasible, result.Incomplete)
	}
	if result.Fault != fault {
		t.Error("Result should carry the same fault")
	}
	if result.Analysis == nil || result.Analysis.Feasibility.Feasible || len(result.Analysis.Feasibility.Shortages) != 1 {
		t.Errorf("Pre-run analysis should flag the attending shortage, got %+v", result.Analysis)
	}

	final, ok := result.Pool.Get(result.CandidateID)
	if !ok || final.Method != model.MethodGreedyFill || !final.HasParent() {
		t.Fatalf("Expected a greedy-fill candidate with a parent, got %+v", final)
	}
	if n := len(result.Pool.ByMethod(model.MethodCSPBackfill)); n != 0 {
		t.Errorf("A proven-infeasible backfill should not record csp-backfill candidates, got %d", n)
	}
	lineage := result.Pool.Lineage(final.ID)
	root := lineage[len(lineage)-1]
	if root.Method != model.MethodBeamSearch || root.HasParent() {
		t.Errorf("Lineage should end at a beam-search root, got %+v", root)
	}
	if len(result.Suggestions) == 0 || len(result.Suggestions[0].Candidates) != 0 {
		t.Errorf("Expected suggestions without candidates, got %+v", result.Suggestions)
	}
}

// 三人中一人全程不可用
func TestRunScheduling_NeverAssignsUnavailableStaff(t *testing.T) {
	weekdays, holidays := dateRange(t, "2025-08-04", "2025-08-05")
	staff := []*model.Staff{
		{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 5, HolidayQuota: 2},
		{ID: "A2", Role: model.RoleAttending, WeekdayQuota: 5, HolidayQuota: 2, UnavailableDates: weekdays},
		{ID: "R1", Role: model.RoleResident, WeekdayQuota: 5, HolidayQuota: 2},
	}

	result, err := RunScheduling(context.Background(), staff, model.DefaultConstraintSet(nil, nil), weekdays, holidays, nil)
	if err != nil {
		t.Fatalf("RunScheduling failed: %v", err)
	}
	if n := result.Summary.DutyCounts["A2"]; n != 0 {
		t.Errorf("A2 assigned %d duties, expected 0", n)
	}
	for _, c := range result.Pool.All() {
		if c.Method != model.MethodBeamSearch {
			continue
		}
		if c.Schedule.DutyCounts()["A2"] != 0 {
			t.Errorf("Beam candidate %d assigns the unavailable staff", c.ID)
		}
	}
	if result.Summary.FillRate != 1.0 {
		t.Errorf("FillRate = %v, expected 1.0", result.Summary.FillRate)
	}
}

func largeRoster() []*model.Staff {
	var staff []*model.Staff
	for _, id := range []string{"A1", "A2", "A3", "A4", "A5", "A6"} {
		staff = append(staff, &model.Staff{ID: id, Role: model.RoleAttending, WeekdayQuota: 30, HolidayQuota: 15})
	}
	for _, id := range []string{"R1", "R2", "R3", "R4", "R5", "R6"} {
		staff = append(staff, &model.Staff{ID: id, Role: model.RoleResident, WeekdayQuota: 30, HolidayQuota: 15})
	}
	return staff
}

// 预算过小，返回标记为不完整的结果且不报错
func TestRunScheduling_ExhaustedBudgetMarksIncomplete(t *testing.T) {
	weekdays, holidays := dateRange(t, "2025-01-01", "2025-03-31")
	cs := model.DefaultConstraintSet(nil, nil)
	cs.BeamTimeout = time.Nanosecond
	cs.CSPTimeout = time.Nanosecond

	result, err := RunScheduling(context.Background(), largeRoster(), cs, weekdays, holidays, nil)
	if err != nil {
		t.Fatalf("Budget exhaustion must not be an error, got %v", err)
	}
	if !result.Incomplete {
		t.Error("Expected the result to be flagged incomplete")
	}
	if len(result.Unfilled) == 0 {
		t.Error("Expected unfilled slots")
	}
	if result.Fault != nil {
		t.Errorf("Unexpected fault: %v", result.Fault)
	}
}

func TestRunScheduling_Cancelled(t *testing.T) {
	weekdays, holidays := dateRange(t, "2025-01-01", "2025-01-31")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := RunScheduling(ctx, largeRoster(), model.DefaultConstraintSet(nil, nil), weekdays, holidays, nil)
	if err != nil {
		t.Fatalf("Cancellation must not be an error, got %v", err)
	}
	if !result.Incomplete || len(result.Unfilled) != result.Summary.TotalSlots {
		t.Errorf("Expected an untouched incomplete schedule, got %d unfilled of %d", len(result.Unfilled), result.Summary.TotalSlots)
	}
}

func TestRunScheduling_ProgressDoesNotChangeOutcome(t *testing.T) {
	weekdays, holidays := dateRange(t, "2025-08-01", "2025-08-14")
	staff := largeRoster()
	cs := model.DefaultConstraintSet(nil, nil)

	quiet, err := RunScheduling(context.Background(), staff, cs, weekdays, holidays, nil)
	if err != nil {
		t.Fatalf("RunScheduling failed: %v", err)
	}

	t.Run("缓冲通道", func(t *testing.T) {
		ch := make(chan model.Progress, 1024)
		result, err := RunScheduling(context.Background(), staff, cs, weekdays, holidays, ch)
		if err != nil {
			t.Fatalf("RunScheduling failed: %v", err)
		}
		if !result.Schedule.Equal(quiet.Schedule) {
			t.Error("Listening to progress changed the schedule")
		}
		close(ch)
		beamEvents := 0
		for p := range ch {
			if p.Phase == model.PhaseBeam {
				beamEvents++
			}
		}
		if beamEvents != len(weekdays)+len(holidays) {
			t.Errorf("beam events = %d, expected one per date", beamEvents)
		}
	})

	t.Run("无人接收", func(t *testing.T) {
		ch := make(chan model.Progress)
		result, err := RunScheduling(context.Background(), staff, cs, weekdays, holidays, ch)
		if err != nil {
			t.Fatalf("RunScheduling failed: %v", err)
		}
		if !result.Schedule.Equal(quiet.Schedule) {
			t.Error("An unread progress channel changed the schedule")
		}
	})
}

func TestRunScheduling_ValidationFault(t *testing.T) {
	weekdays := []string{"2025-08-04", "2025-08-05"}
	holidays := []string{"2025-08-09"}
	valid := func() []*model.Staff {
		return []*model.Staff{
			{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 5, HolidayQuota: 2},
			{ID: "R1", Role: model.RoleResident, WeekdayQuota: 5, HolidayQuota: 2},
		}
	}

	tests := []struct {
		name     string
		staff    func() []*model.Staff
		mutate   func(cs *model.ConstraintSet)
		holidays []string
		field    string
	}{
		{
			name:  "人员为空",
			staff: func() []*model.Staff { return nil },
			field: "staff",
		},
		{
			name: "配额为负",
			staff: func() []*model.Staff {
				s := valid()
				s[0].WeekdayQuota = -1
				return s
			},
			field: "staff[0].weekday_quota",
		},
		{
			name: "标识重复",
			staff: func() []*model.Staff {
				s := valid()
				s[1].ID = "A1"
				return s
			},
			field: "staff[1].id",
		},
		{
			name: "日期超出范围",
			staff: func() []*model.Staff {
				s := valid()
				s[0].UnavailableDates = []string{"2025-09-01"}
				return s
			},
			field: "staff[0].unavailable_dates[0]",
		},
		{
			name: "未知角色",
			staff: func() []*model.Staff {
				s := valid()
				s[1].Role = model.Role(9)
				return s
			},
			field: "staff[1].role",
		},
		{
			name:     "平日假日重叠",
			staff:    valid,
			holidays: []string{"2025-08-05"},
			field:    "holidays[0]",
		},
		{
			name:   "束宽非法",
			staff:  valid,
			mutate: func(cs *model.ConstraintSet) { cs.BeamWidth = 0 },
			field:  "constraints.beam_width",
		},
		{
			name: "门槛顺序错误",
			staff: valid,
			mutate: func(cs *model.ConstraintSet) {
				cs.Thresholds = []model.GradeThreshold{
					{Grade: model.GradeA, MinScore: -100, MaxUnfilled: -1, MaxHardViolations: -1},
					{Grade: model.GradeS, MinScore: 0, MaxUnfilled: -1, MaxHardViolations: -1},
				}
			},
			field: "constraints.thresholds[1].grade",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := model.DefaultConstraintSet(nil, nil)
			if tt.mutate != nil {
				tt.mutate(&cs)
			}
			hs := holidays
			if tt.holidays != nil {
				hs = tt.holidays
			}

			result, err := RunScheduling(context.Background(), tt.staff(), cs, weekdays, hs, nil)
			if result != nil {
				t.Error("Expected no result for invalid input")
			}
			if errors.GetCode(err) != errors.CodeValidationFail {
				t.Fatalf("Expected VALIDATION_FAILED, got %v", err)
			}
			var appErr *errors.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Expected *AppError, got %T", err)
			}
			if _, ok := appErr.Fields[tt.field]; !ok {
				t.Errorf("Expected field %q in %v", tt.field, appErr.Fields)
			}
		})
	}
}
