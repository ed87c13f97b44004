package model

// Staff 值班人员
type Staff struct {
	ID               string   `json:"id" yaml:"id" validate:"required"`
	Name             string   `json:"name,omitempty" yaml:"name,omitempty"`
	Role             Role     `json:"role" yaml:"role" validate:"required"`
	WeekdayQuota     int      `json:"weekday_quota" yaml:"weekday_quota" validate:"min=0"`
	HolidayQuota     int      `json:"holiday_quota" yaml:"holiday_quota" validate:"min=0"`
	UnavailableDates []string `json:"unavailable_dates,omitempty" yaml:"unavailable_dates,omitempty"`
	PreferredDates   []string `json:"preferred_dates,omitempty" yaml:"preferred_dates,omitempty"`
}

// Quota 返回指定日期类型的配额
func (s *Staff) Quota(holiday bool) int {
	if holiday {
		return s.HolidayQuota
	}
	return s.WeekdayQuota
}

// DisplayName 展示名称
func (s *Staff) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
