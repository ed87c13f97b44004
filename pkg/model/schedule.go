package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Assignment 单个岗位的分配：要么是某位人员，要么显式空缺
type Assignment struct {
	staffID string
	present bool
}

// Assigned 创建指向人员的分配
func Assigned(staffID string) Assignment {
	return Assignment{staffID: staffID, present: true}
}

// Absent 显式空缺
func Absent() Assignment {
	return Assignment{}
}

// IsPresent 是否已分配人员
func (a Assignment) IsPresent() bool {
	return a.present
}

// StaffID 返回人员标识；空缺时 ok 为 false
func (a Assignment) StaffID() (string, bool) {
	return a.staffID, a.present
}

// String 实现 fmt.Stringer
func (a Assignment) String() string {
	if !a.present {
		return "<空缺>"
	}
	return a.staffID
}

// MarshalJSON 空缺编码为 null
func (a Assignment) MarshalJSON() ([]byte, error) {
	if !a.present {
		return []byte("null"), nil
	}
	return json.Marshal(a.staffID)
}

// UnmarshalJSON null 解码为空缺
func (a *Assignment) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Absent()
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*a = Assigned(id)
	return nil
}

// Slot 某一天的全部岗位
type Slot struct {
	Date  string
	roles [roleCount]Assignment
}

// Get 获取某角色的分配
func (s Slot) Get(role Role) Assignment {
	if !role.Valid() {
		return Absent()
	}
	return s.roles[role.index()]
}

// IsFilled 检查要求的角色是否全部已分配
func (s Slot) IsFilled(required []Role) bool {
	for _, r := range required {
		if !s.Get(r).IsPresent() {
			return false
		}
	}
	return true
}

// RoleOf 返回人员在当天担任的角色
func (s Slot) RoleOf(staffID string) (Role, bool) {
	for _, r := range AllRoles {
		if id, ok := s.Get(r).StaffID(); ok && id == staffID {
			return r, true
		}
	}
	return 0, false
}

// Schedule 值班表：日期按时间顺序排列，每个日期对应一个岗位槽
type Schedule struct {
	dates []string
	index map[string]int
	slots []Slot
}

// NewSchedule 创建空值班表，日期会排序去重
func NewSchedule(dates []string) *Schedule {
	sorted := SortDates(dates)
	s := &Schedule{
		dates: sorted,
		index: make(map[string]int, len(sorted)),
		slots: make([]Slot, len(sorted)),
	}
	for i, d := range sorted {
		s.index[d] = i
		s.slots[i].Date = d
	}
	return s
}

// Clone 复制值班表；日期索引只读共享
func (s *Schedule) Clone() *Schedule {
	slots := make([]Slot, len(s.slots))
	copy(slots, s.slots)
	return &Schedule{dates: s.dates, index: s.index, slots: slots}
}

// Len 日期数
func (s *Schedule) Len() int {
	return len(s.dates)
}

// Dates 返回日期列表副本
func (s *Schedule) Dates() []string {
	return append([]string(nil), s.dates...)
}

// IndexOf 返回日期在值班表中的位置
func (s *Schedule) IndexOf(date string) (int, bool) {
	i, ok := s.index[date]
	return i, ok
}

// SlotAt 按位置取岗位槽
func (s *Schedule) SlotAt(i int) Slot {
	return s.slots[i]
}

// Slot 按日期取岗位槽
func (s *Schedule) Slot(date string) (Slot, bool) {
	i, ok := s.index[date]
	if !ok {
		return Slot{}, false
	}
	return s.slots[i], true
}

// Get 取某日某角色的分配
func (s *Schedule) Get(date string, role Role) Assignment {
	slot, ok := s.Slot(date)
	if !ok {
		return Absent()
	}
	return slot.Get(role)
}

// GetAt 按位置取分配
func (s *Schedule) GetAt(i int, role Role) Assignment {
	return s.slots[i].Get(role)
}

// SetAt 按位置设置分配
func (s *Schedule) SetAt(i int, role Role, a Assignment) {
	if role.Valid() {
		s.slots[i].roles[role.index()] = a
	}
}

// Assign 按日期设置人员
func (s *Schedule) Assign(date string, role Role, staffID string) error {
	i, ok := s.index[date]
	if !ok {
		return fmt.Errorf("日期 %s 不在排班范围内", date)
	}
	if !role.Valid() {
		return fmt.Errorf("无效角色: %d", int(role))
	}
	s.slots[i].roles[role.index()] = Assigned(staffID)
	return nil
}

// Unassign 清空某日某角色
func (s *Schedule) Unassign(date string, role Role) {
	if i, ok := s.index[date]; ok && role.Valid() {
		s.slots[i].roles[role.index()] = Absent()
	}
}

// Unfilled 返回空缺岗位列表（按日期、角色顺序）
func (s *Schedule) Unfilled(required []Role) []SlotRef {
	var refs []SlotRef
	for i := range s.slots {
		for _, r := range required {
			if !s.slots[i].Get(r).IsPresent() {
				refs = append(refs, SlotRef{Date: s.dates[i], Role: r})
			}
		}
	}
	return refs
}

// DutyCounts 统计每位人员的值班次数
func (s *Schedule) DutyCounts() map[string]int {
	counts := make(map[string]int)
	for i := range s.slots {
		for _, r := range AllRoles {
			if id, ok := s.slots[i].Get(r).StaffID(); ok {
				counts[id]++
			}
		}
	}
	return counts
}

// Key 值班表的规范字符串，用于去重与比较
func (s *Schedule) Key() string {
	var b strings.Builder
	for i := range s.slots {
		b.WriteString(s.dates[i])
		for _, r := range AllRoles {
			b.WriteByte('|')
			if id, ok := s.slots[i].Get(r).StaffID(); ok {
				b.WriteString(id)
			} else {
				b.WriteByte('-')
			}
		}
		b.WriteByte(';')
	}
	return b.String()
}

// Equal 比较两个值班表
func (s *Schedule) Equal(other *Schedule) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Key() == other.Key()
}

// SlotRef 岗位引用
type SlotRef struct {
	Date string `json:"date"`
	Role Role   `json:"role"`
}

// String 形如 2025-08-01/attending
func (r SlotRef) String() string {
	return r.Date + "/" + r.Role.String()
}

type slotJSON struct {
	Date      string     `json:"date"`
	Attending Assignment `json:"attending"`
	Resident  Assignment `json:"resident"`
}

// MarshalJSON 按日期顺序编码
func (s *Schedule) MarshalJSON() ([]byte, error) {
	out := make([]slotJSON, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slotJSON{
			Date:      slot.Date,
			Attending: slot.Get(RoleAttending),
			Resident:  slot.Get(RoleResident),
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON 解码值班表
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var in []slotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	dates := make([]string, len(in))
	for i, slot := range in {
		dates[i] = slot.Date
	}
	*s = *NewSchedule(dates)
	for _, slot := range in {
		i := s.index[slot.Date]
		s.slots[i].roles[RoleAttending.index()] = slot.Attending
		s.slots[i].roles[RoleResident.index()] = slot.Resident
	}
	return nil
}
