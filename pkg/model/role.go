package model

import (
	"fmt"
	"strings"
)

// Role 值班角色
type Role int

const (
	RoleAttending Role = iota + 1 // 主治医师
	RoleResident                  // 总医师
)

// roleCount 角色数量，用于按角色索引的定长数组
const roleCount = 2

// AllRoles 全部角色（固定顺序）
var AllRoles = []Role{RoleAttending, RoleResident}

// String 返回角色标识
func (r Role) String() string {
	switch r {
	case RoleAttending:
		return "attending"
	case RoleResident:
		return "resident"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Label 返回中文名称
func (r Role) Label() string {
	switch r {
	case RoleAttending:
		return "主治"
	case RoleResident:
		return "总医师"
	default:
		return "未知"
	}
}

// Valid 检查角色是否合法
func (r Role) Valid() bool {
	return r == RoleAttending || r == RoleResident
}

func (r Role) index() int {
	return int(r) - 1
}

// ParseRole 解析角色，接受英文标识与中文名称
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attending", "主治", "主治医师", "主治醫師":
		return RoleAttending, nil
	case "resident", "总医师", "總醫師", "住院总":
		return RoleResident, nil
	}
	return 0, fmt.Errorf("未知角色: %q", s)
}

// MarshalText 实现 encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("无效角色: %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
