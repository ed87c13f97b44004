package constraints

import (
	"testing"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint/builtin"
)

func TestLibraryCoversRegisteredConstraints(t *testing.T) {
	m := builtin.NewDutyManager(model.DefaultConstraintSet(nil, nil))
	defs := Registered(m)
	if len(defs) != m.Count() {
		t.Fatalf("library describes %d of %d registered constraints", len(defs), m.Count())
	}
	for i, c := range m.GetAll() {
		if defs[i].Name != string(c.Type()) {
			t.Errorf("definition %d = %s, expected %s", i, defs[i].Name, c.Type())
		}
		if defs[i].Type != string(c.Category()) {
			t.Errorf("%s: type %s, expected %s", c.Type(), defs[i].Type, c.Category())
		}
	}
}

func TestGetByName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"quota", true},
		{"fairness", true},
		{"max_hours_per_day", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := GetByName(tt.name); ok != tt.want {
				t.Errorf("GetByName(%q) = %v, expected %v", tt.name, ok, tt.want)
			}
		})
	}
}

func TestGetByType(t *testing.T) {
	if n := len(GetByType("hard")); n != 4 {
		t.Errorf("hard constraints = %d, expected 4", n)
	}
	if n := len(GetByType("soft")); n != 2 {
		t.Errorf("soft constraints = %d, expected 2", n)
	}
	def, _ := GetByName("unfilled")
	if def.Params[0].Default != "-1000" {
		t.Errorf("unfilled weight default = %q", def.Params[0].Default)
	}
}
