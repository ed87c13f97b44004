// Package roster 解析排班输入：人员名单、日期与引擎参数覆盖
package roster

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/pkg/engine"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
	"gopkg.in/yaml.v3"
)

// Input 人员与日期输入
// 给出 weekdays 时按原样使用 weekdays/holidays；
// 否则由 start_date..end_date 生成，周六日为假日，holidays 中的日期另计为假日
type Input struct {
	StartDate string         `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   string         `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Weekdays  []string       `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	Holidays  []string       `json:"holidays,omitempty" yaml:"holidays,omitempty"`
	Staff     []*model.Staff `json:"staff" yaml:"staff"`
	Options   *Options       `json:"options,omitempty" yaml:"options,omitempty"`
}

// Options 覆盖默认的引擎参数
// weights 给出时整体替换配置中的系数，全零也原样生效；省略时沿用配置
type Options struct {
	MaxConsecutiveDays *int           `json:"max_consecutive_days,omitempty" yaml:"max_consecutive_days,omitempty"`
	BeamWidth          *int           `json:"beam_width,omitempty" yaml:"beam_width,omitempty"`
	BeamTimeoutMS      *int64         `json:"beam_timeout_ms,omitempty" yaml:"beam_timeout_ms,omitempty"`
	CSPTimeoutMS       *int64         `json:"csp_timeout_ms,omitempty" yaml:"csp_timeout_ms,omitempty"`
	NeighborExpansion  *int           `json:"neighbor_expansion,omitempty" yaml:"neighbor_expansion,omitempty"`
	RequiredRoles      []model.Role   `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`
	Weights            *model.Weights `json:"weights,omitempty" yaml:"weights,omitempty"`
	StrictGrading      *bool          `json:"strict_grading,omitempty" yaml:"strict_grading,omitempty"`
	Persist            *bool          `json:"persist,omitempty" yaml:"persist,omitempty"`
}

// LoadFile 读取 YAML 或 JSON 格式的排班输入
func LoadFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取排班输入失败: %w", err)
	}
	var in Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("解析排班输入失败: %w", err)
	}
	return &in, nil
}

// Request 构建引擎请求，只解析日期，不校验人员
func (in Input) Request(cfg config.EngineConfig) (engine.Request, *errors.AppError) {
	weekdays, holidays, appErr := in.dates()
	if appErr != nil {
		return engine.Request{}, appErr
	}
	return engine.Request{
		Staff:       in.Staff,
		Constraints: in.constraintSet(cfg, weekdays, holidays),
		Weekdays:    weekdays,
		Holidays:    holidays,
	}, nil
}

// Domain 校验输入并构建运行视图
func (in Input) Domain(cfg config.EngineConfig) (*model.Domain, *errors.AppError) {
	req, appErr := in.Request(cfg)
	if appErr != nil {
		return nil, appErr
	}
	if ve := engine.Validate(req.Staff, req.Constraints, req.Weekdays, req.Holidays); ve != nil {
		return nil, ve.ToAppError()
	}
	domain, err := model.NewDomain(req.Staff, req.Constraints)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationFail, "构建运行视图失败")
	}
	return domain, nil
}

// Persist 是否保存本次运行，未指定时为 def
func (in Input) Persist(def bool) bool {
	if in.Options != nil && in.Options.Persist != nil {
		return *in.Options.Persist
	}
	return def
}

func (in Input) constraintSet(cfg config.EngineConfig, weekdays, holidays []string) model.ConstraintSet {
	opts := in.Options
	if opts != nil {
		if opts.MaxConsecutiveDays != nil {
			cfg.MaxConsecutiveDays = *opts.MaxConsecutiveDays
		}
		if opts.BeamWidth != nil {
			cfg.BeamWidth = *opts.BeamWidth
		}
		if opts.BeamTimeoutMS != nil {
			cfg.BeamTimeout = time.Duration(*opts.BeamTimeoutMS) * time.Millisecond
		}
		if opts.CSPTimeoutMS != nil {
			cfg.CSPTimeout = time.Duration(*opts.CSPTimeoutMS) * time.Millisecond
		}
		if opts.NeighborExpansion != nil {
			cfg.NeighborExpansion = *opts.NeighborExpansion
		}
		if opts.Weights != nil {
			cfg.Weights = *opts.Weights
		}
		if opts.StrictGrading != nil {
			cfg.StrictGrading = *opts.StrictGrading
		}
	}
	cs := cfg.ToConstraintSet(weekdays, holidays)
	if opts != nil && len(opts.RequiredRoles) > 0 {
		cs.RequiredRoles = opts.RequiredRoles
	}
	return cs
}

// dates 解析平日与假日
func (in Input) dates() (weekdays, holidays []string, appErr *errors.AppError) {
	if len(in.Weekdays) > 0 || in.StartDate == "" {
		return in.Weekdays, in.Holidays, nil
	}

	dates, err := model.DateRange{StartDate: in.StartDate, EndDate: in.EndDate}.Dates()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeInvalidTimeRange, "日期范围无效")
	}
	weekdays, holidays, err = model.SplitByWeekend(dates)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeInvalidTimeRange, "日期范围无效")
	}

	extra := make(map[string]bool, len(in.Holidays))
	for _, d := range in.Holidays {
		if !slices.Contains(dates, d) {
			return nil, nil, errors.New(errors.CodeInvalidTimeRange, fmt.Sprintf("假日 %s 不在日期范围内", d))
		}
		extra[d] = true
	}
	kept := make([]string, 0, len(weekdays))
	for _, d := range weekdays {
		if extra[d] {
			holidays = append(holidays, d)
			continue
		}
		kept = append(kept, d)
	}
	return kept, model.SortDates(holidays), nil
}
