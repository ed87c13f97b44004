package model

import (
	"fmt"
	"sort"
)

// Domain 一次运行的只读视图：人员、日期与约束的预计算索引
// 构建后不再修改，可被多个协程并发读取
type Domain struct {
	staff       []*Staff
	constraints ConstraintSet
	roles       []Role

	dates        []string
	dateIndex    map[string]int
	holiday      []bool
	adjacentPrev []bool // dates[i-1] 是 dates[i] 的前一个日历日

	staffIndex  map[string]int
	byRole      map[Role][]int
	unavailable [][]bool // [staff][date]
	preferred   [][]bool
	prefTotal   int // 可兑现的偏好日期总数
}

// NewDomain 构建运行视图；输入应已通过校验
func NewDomain(staff []*Staff, cs ConstraintSet) (*Domain, error) {
	d := &Domain{
		constraints: cs,
		roles:       cs.Roles(),
		dates:       cs.Horizon(),
		staffIndex:  make(map[string]int, len(staff)),
		byRole:      make(map[Role][]int),
	}

	d.staff = make([]*Staff, len(staff))
	copy(d.staff, staff)
	sort.SliceStable(d.staff, func(i, j int) bool { return d.staff[i].ID < d.staff[j].ID })

	d.dateIndex = make(map[string]int, len(d.dates))
	holidays := make(map[string]bool, len(cs.Holidays))
	for _, h := range cs.Holidays {
		holidays[h] = true
	}
	d.holiday = make([]bool, len(d.dates))
	d.adjacentPrev = make([]bool, len(d.dates))
	for i, date := range d.dates {
		if !IsValidDate(date) {
			return nil, fmt.Errorf("日期格式错误: %q", date)
		}
		d.dateIndex[date] = i
		d.holiday[i] = holidays[date]
		if i > 0 {
			d.adjacentPrev[i] = IsNextDay(d.dates[i-1], date)
		}
	}

	d.unavailable = make([][]bool, len(d.staff))
	d.preferred = make([][]bool, len(d.staff))
	for si, s := range d.staff {
		if _, dup := d.staffIndex[s.ID]; dup {
			return nil, fmt.Errorf("重复的人员标识: %s", s.ID)
		}
		d.staffIndex[s.ID] = si
		d.byRole[s.Role] = append(d.byRole[s.Role], si)

		d.unavailable[si] = make([]bool, len(d.dates))
		d.preferred[si] = make([]bool, len(d.dates))
		for _, date := range s.UnavailableDates {
			if i, ok := d.dateIndex[date]; ok {
				d.unavailable[si][i] = true
			}
		}
		for _, date := range s.PreferredDates {
			if i, ok := d.dateIndex[date]; ok && !d.preferred[si][i] {
				d.preferred[si][i] = true
				if !d.unavailable[si][i] {
					d.prefTotal++
				}
			}
		}
	}
	return d, nil
}

// Constraints 约束集
func (d *Domain) Constraints() ConstraintSet {
	return d.constraints
}

// Roles 要求的角色（固定顺序）
func (d *Domain) Roles() []Role {
	return d.roles
}

// Dates 日期列表（时间顺序，只读）
func (d *Domain) Dates() []string {
	return d.dates
}

// DateCount 日期数
func (d *Domain) DateCount() int {
	return len(d.dates)
}

// Date 按位置取日期
func (d *Domain) Date(i int) string {
	return d.dates[i]
}

// DateIndex 日期位置
func (d *Domain) DateIndex(date string) (int, bool) {
	i, ok := d.dateIndex[date]
	return i, ok
}

// IsHoliday 是否假日
func (d *Domain) IsHoliday(i int) bool {
	return d.holiday[i]
}

// AdjacentPrev 前一个位置是否为前一日历日
func (d *Domain) AdjacentPrev(i int) bool {
	return i > 0 && d.adjacentPrev[i]
}

// AdjacentNext 后一个位置是否为后一日历日
func (d *Domain) AdjacentNext(i int) bool {
	return i+1 < len(d.dates) && d.adjacentPrev[i+1]
}

// StaffCount 人员数
func (d *Domain) StaffCount() int {
	return len(d.staff)
}

// StaffAt 按位置取人员（按标识排序）
func (d *Domain) StaffAt(i int) *Staff {
	return d.staff[i]
}

// StaffList 全部人员（只读）
func (d *Domain) StaffList() []*Staff {
	return d.staff
}

// StaffIndex 人员位置
func (d *Domain) StaffIndex(id string) (int, bool) {
	i, ok := d.staffIndex[id]
	return i, ok
}

// StaffByRole 某角色的人员位置列表（按标识排序）
func (d *Domain) StaffByRole(role Role) []int {
	return d.byRole[role]
}

// Unavailable 人员在某日是否不可值班
func (d *Domain) Unavailable(staff, date int) bool {
	return d.unavailable[staff][date]
}

// Preferred 人员在某日是否偏好值班
func (d *Domain) Preferred(staff, date int) bool {
	return d.preferred[staff][date]
}

// PreferenceTotal 可兑现的偏好日期总数（不含与不可值班冲突者）
func (d *Domain) PreferenceTotal() int {
	return d.prefTotal
}

// Quota 人员在某日期类型上的配额
func (d *Domain) Quota(staff int, holiday bool) int {
	return d.staff[staff].Quota(holiday)
}

// NewSchedule 按本次日期创建空值班表
func (d *Domain) NewSchedule() *Schedule {
	return NewSchedule(d.dates)
}

// TotalSlots 应填岗位总数
func (d *Domain) TotalSlots() int {
	return len(d.dates) * len(d.roles)
}
