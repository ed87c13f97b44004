package roster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestInput_Dates(t *testing.T) {
	tests := []struct {
		name         string
		in           Input
		wantWeekdays []string
		wantHolidays []string
		wantCode     errors.Code
	}{
		{
			name:         "按周末拆分",
			in:           Input{StartDate: "2025-08-08", EndDate: "2025-08-11"},
			wantWeekdays: []string{"2025-08-08", "2025-08-11"},
			wantHolidays: []string{"2025-08-09", "2025-08-10"},
		},
		{
			name:         "额外假日",
			in:           Input{StartDate: "2025-08-08", EndDate: "2025-08-11", Holidays: []string{"2025-08-11"}},
			wantWeekdays: []string{"2025-08-08"},
			wantHolidays: []string{"2025-08-09", "2025-08-10", "2025-08-11"},
		},
		{
			name:         "显式日期",
			in:           Input{Weekdays: []string{"2025-08-04"}, Holidays: []string{"2025-08-09"}, StartDate: "2025-08-01", EndDate: "2025-08-31"},
			wantWeekdays: []string{"2025-08-04"},
			wantHolidays: []string{"2025-08-09"},
		},
		{
			name:     "结束早于开始",
			in:       Input{StartDate: "2025-08-11", EndDate: "2025-08-08"},
			wantCode: errors.CodeInvalidTimeRange,
		},
		{
			name:     "假日超出范围",
			in:       Input{StartDate: "2025-08-08", EndDate: "2025-08-11", Holidays: []string{"2025-08-15"}},
			wantCode: errors.CodeInvalidTimeRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weekdays, holidays, appErr := tt.in.dates()
			if tt.wantCode != "" {
				if appErr == nil || appErr.Code != tt.wantCode {
					t.Fatalf("error = %v, expected %s", appErr, tt.wantCode)
				}
				return
			}
			if appErr != nil {
				t.Fatalf("unexpected error: %v", appErr)
			}
			if !slices.Equal(weekdays, tt.wantWeekdays) {
				t.Errorf("weekdays = %v, expected %v", weekdays, tt.wantWeekdays)
			}
			if !slices.Equal(holidays, tt.wantHolidays) {
				t.Errorf("holidays = %v, expected %v", holidays, tt.wantHolidays)
			}
		})
	}
}

func TestInput_RequestOverrides(t *testing.T) {
	cfg := config.Default().Engine
	weights := model.Weights{Unfilled: -1}
	in := Input{
		StartDate: "2025-08-04",
		EndDate:   "2025-08-05",
		Options: &Options{
			MaxConsecutiveDays: intPtr(4),
			BeamWidth:          intPtr(9),
			BeamTimeoutMS:      int64Ptr(250),
			CSPTimeoutMS:       int64Ptr(0),
			RequiredRoles:      []model.Role{model.RoleResident},
			Weights:            &weights,
			StrictGrading:      boolPtr(true),
		},
	}
	req, appErr := in.Request(cfg)
	if appErr != nil {
		t.Fatalf("Request failed: %v", appErr)
	}
	cs := req.Constraints
	if cs.MaxConsecutiveDays != 4 || cs.BeamWidth != 9 {
		t.Errorf("Unexpected constraint set: %+v", cs)
	}
	if cs.BeamTimeout != 250*time.Millisecond || cs.CSPTimeout != 0 {
		t.Errorf("timeouts = %v/%v", cs.BeamTimeout, cs.CSPTimeout)
	}
	if !slices.Equal(cs.RequiredRoles, []model.Role{model.RoleResident}) {
		t.Errorf("required roles = %v", cs.RequiredRoles)
	}
	if cs.Weights != weights {
		t.Errorf("weights = %+v", cs.Weights)
	}
	if !slices.Equal(cs.Thresholds, model.StrictThresholds()) {
		t.Error("Expected strict thresholds")
	}
	if !slices.Equal(req.Weekdays, []string{"2025-08-04", "2025-08-05"}) {
		t.Errorf("weekdays = %v", req.Weekdays)
	}

	// 未覆盖时沿用配置
	plain, _ := Input{StartDate: "2025-08-04", EndDate: "2025-08-05"}.Request(cfg)
	if plain.Constraints.BeamWidth != cfg.BeamWidth || plain.Constraints.Weights != cfg.Weights {
		t.Errorf("Expected config defaults, got %+v", plain.Constraints)
	}
}

func TestInput_WeightsOverride(t *testing.T) {
	cfg := config.Default().Engine
	tests := []struct {
		name string
		body string
		want model.Weights
	}{
		{"省略时沿用配置", `{"start_date": "2025-08-04", "end_date": "2025-08-05"}`, cfg.Weights},
		{"显式全零", `{"start_date": "2025-08-04", "end_date": "2025-08-05", "options": {"weights": {}}}`, model.Weights{}},
		{"部分给出", `{"start_date": "2025-08-04", "end_date": "2025-08-05", "options": {"weights": {"unfilled": -7}}}`, model.Weights{Unfilled: -7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in Input
			if err := json.Unmarshal([]byte(tt.body), &in); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			req, appErr := in.Request(cfg)
			if appErr != nil {
				t.Fatalf("Request failed: %v", appErr)
			}
			if req.Constraints.Weights != tt.want {
				t.Errorf("weights = %+v, expected %+v", req.Constraints.Weights, tt.want)
			}
		})
	}
}

func TestInput_Persist(t *testing.T) {
	if !(Input{}).Persist(true) {
		t.Error("Expected default to apply")
	}
	if (Input{Options: &Options{Persist: boolPtr(false)}}).Persist(true) {
		t.Error("Expected explicit persist=false")
	}
}

func TestInput_Domain(t *testing.T) {
	cfg := config.Default().Engine
	_, appErr := Input{StartDate: "2025-08-04", EndDate: "2025-08-05"}.Domain(cfg)
	if appErr == nil || appErr.Code != errors.CodeValidationFail {
		t.Fatalf("Expected validation failure for empty staff, got %v", appErr)
	}

	in := Input{
		StartDate: "2025-08-04",
		EndDate:   "2025-08-05",
		Staff: []*model.Staff{
			{ID: "A1", Role: model.RoleAttending, WeekdayQuota: 2},
			{ID: "R1", Role: model.RoleResident, WeekdayQuota: 2},
		},
	}
	domain, appErr := in.Domain(cfg)
	if appErr != nil {
		t.Fatalf("Domain failed: %v", appErr)
	}
	if len(domain.Dates()) != 2 {
		t.Errorf("dates = %v", domain.Dates())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "roster.yaml")
	yamlData := `start_date: "2025-08-04"
end_date: "2025-08-06"
holidays: ["2025-08-06"]
staff:
  - id: A1
    name: 张医生
    role: attending
    weekday_quota: 5
    holiday_quota: 2
    preferred_dates: ["2025-08-04"]
  - id: R1
    role: 总医师
    weekday_quota: 5
    holiday_quota: 2
options:
  max_consecutive_days: 3
  persist: false
`
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "roster.json")
	jsonData := `{"start_date": "2025-08-04", "end_date": "2025-08-06", "holidays": ["2025-08-06"],
		"staff": [{"id": "A1", "role": "attending", "weekday_quota": 5, "holiday_quota": 2},
		          {"id": "R1", "role": "resident", "weekday_quota": 5, "holiday_quota": 2}],
		"options": {"max_consecutive_days": 3, "persist": false}}`
	if err := os.WriteFile(jsonPath, []byte(jsonData), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{yamlPath, jsonPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			in, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile failed: %v", err)
			}
			if len(in.Staff) != 2 || in.Staff[0].Role != model.RoleAttending || in.Staff[1].Role != model.RoleResident {
				t.Fatalf("Unexpected staff: %+v", in.Staff)
			}
			if in.Options == nil || *in.Options.MaxConsecutiveDays != 3 || in.Persist(true) {
				t.Errorf("Unexpected options: %+v", in.Options)
			}
			weekdays, holidays, appErr := in.dates()
			if appErr != nil {
				t.Fatalf("dates failed: %v", appErr)
			}
			if len(weekdays) != 2 || !slices.Equal(holidays, []string{"2025-08-06"}) {
				t.Errorf("weekdays %v, holidays %v", weekdays, holidays)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
