package model

import "sort"

// RoleState maps actor -> role -> membership.
type RoleState map[string]map[string]bool

// Set records membership for an actor/role pair.
func (s RoleState) Set(actor, role string, member bool) {
	roles, ok := s[actor]
	if !ok {
		roles = make(map[string]bool)
		s[actor] = roles
	}
	roles[role] = member
}

// Has reports whether actor currently holds role.
func (s RoleState) Has(actor, role string) bool {
	return s[actor][role]
}

// Members returns the actors currently holding role, sorted.
func (s RoleState) Members(role string) []string {
	out := make([]string, 0)
	for actor, roles := range s {
		if roles[role] {
			out = append(out, actor)
		}
	}
	sort.Strings(out)
	return out
}

// RoleMember is a flattened RoleState entry.
type RoleMember struct {
	Actor  string `json:"actor"`
	Role   string `json:"role"`
	Member bool   `json:"member"`
}

// Flatten lists every actor/role pair ordered by actor then role.
func (s RoleState) Flatten() []RoleMember {
	out := make([]RoleMember, 0)
	for actor, roles := range s {
		for role, member := range roles {
			out = append(out, RoleMember{Actor: actor, Role: role, Member: member})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Actor != out[j].Actor {
			return out[i].Actor < out[j].Actor
		}
		return out[i].Role < out[j].Role
	})
	return out
}
