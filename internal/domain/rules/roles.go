package rules

import "github.com/MRamiBalles/tokenprofile/internal/domain/entity"

// RoleSettings exposes the minimum roles configured for the role gates.
// RoleNone disables the corresponding gate.
type RoleSettings interface {
	PlayersEditRole() entity.Role
	TooltipSeeRole() entity.Role
}

// CanEditProfiles reports whether u may change the profiles of e.
// Owners need to be GMs or meet the configured editing role.
func CanEditProfiles(u *entity.User, e *entity.Entity, s RoleSettings) bool {
	if !u.IsOwner(e) {
		return false
	}
	return u.IsGM() || meetsRole(u, s.PlayersEditRole())
}

// CanSeeDisplay reports whether u may see displayed profiles at all.
func CanSeeDisplay(u *entity.User, s RoleSettings) bool {
	return u.IsGM() || meetsRole(u, s.TooltipSeeRole())
}

func meetsRole(u *entity.User, required entity.Role) bool {
	if required == entity.RoleNone {
		return true
	}
	return u != nil && u.Role >= required
}
