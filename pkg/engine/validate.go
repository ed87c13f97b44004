package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// 字段名使用 json 标签，便于调用方定位
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate 在搜索开始前校验输入，返回字段级错误；无错误时返回 nil
func Validate(staff []*model.Staff, cs model.ConstraintSet, weekdays, holidays []string) *errors.ValidationErrors {
	ve := &errors.ValidationErrors{}

	validateDates(ve, weekdays, holidays)
	horizon := make(map[string]bool, len(weekdays)+len(holidays))
	for _, d := range weekdays {
		horizon[d] = true
	}
	for _, d := range holidays {
		horizon[d] = true
	}

	validateConstraintSet(ve, cs)

	if len(staff) == 0 {
		ve.Add("staff", "人员名单不能为空")
	}
	seen := make(map[string]int, len(staff))
	for i, s := range staff {
		prefix := fmt.Sprintf("staff[%d]", i)
		if s == nil {
			ve.Add(prefix, "人员不能为空")
			continue
		}
		addStructErrors(ve, prefix, validate.Struct(s))
		if s.Role != 0 && !s.Role.Valid() {
			ve.Add(prefix+".role", fmt.Sprintf("未知角色: %d", int(s.Role)))
		}
		if s.ID != "" {
			if first, dup := seen[s.ID]; dup {
				ve.Add(prefix+".id", fmt.Sprintf("人员标识 %s 与 staff[%d] 重复", s.ID, first))
			} else {
				seen[s.ID] = i
			}
		}
		checkStaffDates(ve, prefix+".unavailable_dates", s.UnavailableDates, horizon)
		checkStaffDates(ve, prefix+".preferred_dates", s.PreferredDates, horizon)
	}

	if !ve.HasErrors() {
		return nil
	}
	return ve
}

func validateDates(ve *errors.ValidationErrors, weekdays, holidays []string) {
	if len(weekdays)+len(holidays) == 0 {
		ve.Add("dates", "排班日期不能为空")
	}
	kind := make(map[string]string, len(weekdays)+len(holidays))
	check := func(field string, dates []string) {
		for i, d := range dates {
			f := fmt.Sprintf("%s[%d]", field, i)
			if !model.IsValidDate(d) {
				ve.Add(f, fmt.Sprintf("日期格式错误: %q", d))
				continue
			}
			switch kind[d] {
			case "":
				kind[d] = field
			case field:
				ve.Add(f, fmt.Sprintf("日期 %s 重复", d))
			default:
				ve.Add(f, fmt.Sprintf("日期 %s 同时出现在平日与假日中", d))
			}
		}
	}
	check("weekdays", weekdays)
	check("holidays", holidays)
}

func validateConstraintSet(ve *errors.ValidationErrors, cs model.ConstraintSet) {
	addStructErrors(ve, "constraints", validate.Struct(cs))
	for i, r := range cs.RequiredRoles {
		if !r.Valid() {
			ve.Add(fmt.Sprintf("constraints.required_roles[%d]", i), fmt.Sprintf("未知角色: %d", int(r)))
		}
	}
	validateThresholds(ve, cs.Thresholds)
}

// validateThresholds 门槛须是从高到低、分数不增的等级带
func validateThresholds(ve *errors.ValidationErrors, thresholds []model.GradeThreshold) {
	seen := make(map[model.Grade]bool)
	for i, t := range thresholds {
		field := fmt.Sprintf("constraints.thresholds[%d]", i)
		if t.Grade <= model.GradeF || t.Grade > model.GradeS {
			ve.Add(field+".grade", "门槛等级须为 S 至 D")
			continue
		}
		if seen[t.Grade] {
			ve.Add(field+".grade", fmt.Sprintf("等级 %s 重复", t.Grade))
		}
		seen[t.Grade] = true
		if i > 0 {
			prev := thresholds[i-1]
			if prev.Grade <= t.Grade {
				ve.Add(field+".grade", "门槛须按等级从高到低排列")
			} else if prev.MinScore < t.MinScore {
				ve.Add(field+".min_score", "高等级的最低分不能低于低等级")
			}
		}
	}
}

func checkStaffDates(ve *errors.ValidationErrors, field string, dates []string, horizon map[string]bool) {
	for i, d := range dates {
		f := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case !model.IsValidDate(d):
			ve.Add(f, fmt.Sprintf("日期格式错误: %q", d))
		case !horizon[d]:
			ve.Add(f, fmt.Sprintf("日期 %s 不在排班范围内", d))
		}
	}
}

// addStructErrors 把 validator 的错误转为字段级错误
func addStructErrors(ve *errors.ValidationErrors, prefix string, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ve.Add(prefix, err.Error())
		return
	}
	for _, fe := range fieldErrs {
		ve.Add(prefix+"."+fe.Field(), describe(fe))
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "min":
		return fmt.Sprintf("不能小于 %s", fe.Param())
	case "max":
		return fmt.Sprintf("不能大于 %s", fe.Param())
	default:
		return fmt.Sprintf("校验失败: %s", fe.Tag())
	}
}
