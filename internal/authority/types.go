package authority

import (
	"fmt"
	"sort"
	"strings"
)

// Kind 复核权限类型
type Kind string

const (
	KindView    Kind = "view"
	KindScore   Kind = "score"
	KindApprove Kind = "approve"
)

// ParseKind 解析权限类型
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindView:
		return KindView, nil
	case KindScore:
		return KindScore, nil
	case KindApprove:
		return KindApprove, nil
	}
	return "", fmt.Errorf("unknown authority kind %q", s)
}

// ModulePermission 模块权限
type ModulePermission struct {
	Module  string `json:"module" yaml:"module"`
	CanView bool   `json:"can_view" yaml:"can_view"`
	CanEdit bool   `json:"can_edit" yaml:"can_edit"`
}

// Authority 有向复核权限边: 所属角色 -> TargetRoleID
type Authority struct {
	TargetRoleID string `json:"target_role_id" yaml:"target_role_id"`
	CanView      bool   `json:"can_view" yaml:"can_view"`
	CanScore     bool   `json:"can_score" yaml:"can_score"`
	CanApprove   bool   `json:"can_approve" yaml:"can_approve"`
}

// Grants 判断边是否授予指定权限
func (a Authority) Grants(kind Kind) bool {
	switch kind {
	case KindView:
		return a.CanView
	case KindScore:
		return a.CanScore
	case KindApprove:
		return a.CanApprove
	}
	return false
}

// Role 归一化后的角色
type Role struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Modules     []ModulePermission `json:"modules"`
	Authorities []Authority        `json:"authorities"`
}

// RoleSet 解析后的可复核角色集合
type RoleSet struct {
	all bool
	ids map[string]struct{}
}

// AllRoles 管理员的全集
func AllRoles() RoleSet {
	return RoleSet{all: true}
}

// NewRoleSet 创建角色集合
func NewRoleSet(ids ...string) RoleSet {
	s := RoleSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *RoleSet) add(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// IsAll 是否为全集
func (s RoleSet) IsAll() bool { return s.all }

// IsEmpty 是否为空集
func (s RoleSet) IsEmpty() bool { return !s.all && len(s.ids) == 0 }

// Contains 判断角色是否在集合内
func (s RoleSet) Contains(id string) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// ContainsAny 只要有一个角色在集合内即返回 true
func (s RoleSet) ContainsAny(ids []string) bool {
	for _, id := range ids {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// IDs 返回排序后的角色 ID,全集返回 nil
func (s RoleSet) IDs() []string {
	if s.all {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
