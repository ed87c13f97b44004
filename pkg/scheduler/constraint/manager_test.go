package constraint

import (
	"testing"

	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
)

func newTestManager() *Manager {
	m := NewManager()
	m.SetLogger(logger.NewNopSchedulerLogger())
	return m
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	cs := model.DefaultConstraintSet([]string{"2025-08-01", "2025-08-04"}, []string{"2025-08-02", "2025-08-03"})
	domain, err := model.NewDomain([]*model.Staff{
		{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 5, HolidayQuota: 2},
		{ID: "R1", Role: model.RoleResident, WeekdayQuota: 5, HolidayQuota: 2},
	}, cs)
	if err != nil {
		t.Fatalf("NewDomain failed: %v", err)
	}
	return NewContext(domain, domain.NewSchedule())
}

func TestManager_Register(t *testing.T) {
	manager := newTestManager()

	c := &MockConstraint{
		name:     "test",
		typ:      Type("test_type"),
		category: CategoryHard,
	}
	manager.Register(c)
	manager.Register(&MockConstraint{name: "替换", typ: Type("test_type"), category: CategoryHard})

	constraints := manager.GetAll()
	if len(constraints) != 1 {
		t.Errorf("Expected 1 constraint, got %d", len(constraints))
	}
	if constraints[0].Name() != "替换" {
		t.Errorf("Expected same-type registration to replace, got %s", constraints[0].Name())
	}
}

func TestManager_OrderHardFirst(t *testing.T) {
	manager := newTestManager()

	manager.Register(&MockConstraint{name: "soft", typ: Type("soft"), category: CategorySoft, weight: 100})
	manager.Register(&MockConstraint{name: "hard-low", typ: Type("hard_low"), category: CategoryHard, weight: 10})
	manager.Register(&MockConstraint{name: "hard-high", typ: Type("hard_high"), category: CategoryHard, weight: 90})

	all := manager.GetAll()
	if all[0].Name() != "hard-high" || all[1].Name() != "hard-low" || all[2].Name() != "soft" {
		t.Errorf("Unexpected order: %s, %s, %s", all[0].Name(), all[1].Name(), all[2].Name())
	}
}

func TestManager_GetByCategory(t *testing.T) {
	manager := newTestManager()

	hard := &MockConstraint{name: "hard1", typ: Type("hard1"), category: CategoryHard}
	soft := &MockConstraint{name: "soft1", typ: Type("soft1"), category: CategorySoft}
	manager.Register(hard)
	manager.Register(soft)

	if len(manager.GetByCategory(CategoryHard)) != 1 {
		t.Errorf("Expected 1 hard constraint")
	}
	if len(manager.GetByCategory(CategorySoft)) != 1 {
		t.Errorf("Expected 1 soft constraint")
	}
}

func TestManager_Evaluate(t *testing.T) {
	ctx := newTestContext(t)

	tests := []struct {
		name      string
		mocks     []*MockConstraint
		wantValid bool
		wantHard  int
		wantSoft  int
	}{
		{
			name:      "全部通过",
			mocks:     []*MockConstraint{{name: "pass", typ: "pass", category: CategoryHard, pass: true}},
			wantValid: true,
		},
		{
			name: "硬约束违反",
			mocks: []*MockConstraint{
				{name: "fail", typ: "fail", category: CategoryHard, count: 2},
				{name: "soft", typ: "soft", category: CategorySoft, count: 1},
			},
			wantValid: false,
			wantHard:  2,
			wantSoft:  1,
		},
		{
			name:      "仅软约束违反",
			mocks:     []*MockConstraint{{name: "soft", typ: "soft", category: CategorySoft, count: 3}},
			wantValid: true,
			wantSoft:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newTestManager()
			for _, m := range tt.mocks {
				manager.Register(m)
			}

			result := manager.Evaluate(ctx)
			if result.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, expected %v", result.IsValid, tt.wantValid)
			}
			if result.HardCount != tt.wantHard {
				t.Errorf("HardCount = %d, expected %d", result.HardCount, tt.wantHard)
			}
			if result.SoftCount != tt.wantSoft {
				t.Errorf("SoftCount = %d, expected %d", result.SoftCount, tt.wantSoft)
			}
		})
	}
}

func TestManager_CanAssignAndBlocking(t *testing.T) {
	ctx := newTestContext(t)
	manager := newTestManager()
	manager.Register(&MockConstraint{name: "a", typ: "a", category: CategoryHard, pass: false})
	manager.Register(&MockConstraint{name: "b", typ: "b", category: CategoryHard, pass: false})
	manager.Register(&MockConstraint{name: "ok", typ: "ok", category: CategorySoft, pass: true})

	ok, typ := manager.CanAssign(ctx, 0, model.RoleAttending, 0)
	if ok {
		t.Fatal("Expected assignment to be rejected")
	}
	if typ != "a" {
		t.Errorf("Expected first blocking type a, got %s", typ)
	}

	blocking := manager.Blocking(ctx, 0, model.RoleAttending, 0)
	if len(blocking) != 2 {
		t.Errorf("Expected 2 blocking types, got %v", blocking)
	}

	if legal := manager.Legal(ctx, 0, model.RoleAttending); len(legal) != 0 {
		t.Errorf("Expected no legal staff, got %v", legal)
	}
}

func TestContext_RunAround(t *testing.T) {
	ctx := newTestContext(t)
	// A1 在 08-01、08-02、08-04 值班，08-03 为目标日
	ctx.Assign(0, model.RoleAttending, 0)
	ctx.Assign(1, model.RoleAttending, 0)
	ctx.Assign(3, model.RoleAttending, 0)

	before, after := ctx.RunAround(0, 2)
	if before != 2 || after != 1 {
		t.Errorf("RunAround = (%d, %d), expected (2, 1)", before, after)
	}
	if ctx.DutyCount(0, true) != 1 || ctx.DutyCount(0, false) != 2 {
		t.Errorf("Unexpected duty counts: holiday=%d weekday=%d", ctx.DutyCount(0, true), ctx.DutyCount(0, false))
	}
	if !ctx.OnDuty(0, 1) || ctx.OnDuty(1, 1) {
		t.Error("OnDuty returned wrong result")
	}
}

func TestManager_Clear(t *testing.T) {
	manager := newTestManager()

	manager.Register(&MockConstraint{name: "test", typ: Type("test"), category: CategoryHard})
	manager.Clear()

	if manager.Count() != 0 {
		t.Error("Expected 0 constraints after clear")
	}
}

// MockConstraint 用于测试的模拟约束
type MockConstraint struct {
	name     string
	typ      Type
	category Category
	weight   int
	pass     bool
	count    int
}

func (m *MockConstraint) Name() string       { return m.name }
func (m *MockConstraint) Type() Type         { return m.typ }
func (m *MockConstraint) Category() Category { return m.category }
func (m *MockConstraint) Weight() int {
	if m.weight == 0 {
		return 100
	}
	return m.weight
}

func (m *MockConstraint) Evaluate(ctx *Context) (bool, int, []ViolationDetail) {
	if m.pass {
		return true, 0, nil
	}
	return false, m.count, []ViolationDetail{
		{ConstraintType: m.typ, ConstraintName: m.name, Message: "违反约束", Count: m.count},
	}
}

func (m *MockConstraint) Check(ctx *Context, date int, role model.Role, staff int) bool {
	return m.pass
}
