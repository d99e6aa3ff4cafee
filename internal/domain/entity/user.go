package entity

import "strings"

// Role is a user's world role. Higher roles include lower ones.
type Role int

const (
	RoleNone Role = iota
	RolePlayer
	RoleTrusted
	RoleAssistant
	RoleGameMaster
)

// ParseRole maps a role name to a Role, defaulting to RolePlayer.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return RoleNone
	case "TRUSTED":
		return RoleTrusted
	case "ASSISTANT":
		return RoleAssistant
	case "GM", "GAMEMASTER":
		return RoleGameMaster
	default:
		return RolePlayer
	}
}

// User is the acting session user.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsGM reports whether the user has game master privileges.
// Assistants are treated as GMs.
func (u *User) IsGM() bool {
	return u != nil && u.Role >= RoleAssistant
}

// HasPermission tests whether the user holds at least level on e.
// GMs hold every permission.
func (u *User) HasPermission(e *Entity, level OwnershipLevel) bool {
	if u == nil || e == nil {
		return false
	}
	if u.IsGM() {
		return true
	}
	held := e.DefaultOwnership
	if l, ok := e.Ownership[u.ID]; ok && l > held {
		held = l
	}
	return held >= level
}

// IsOwner reports whether the user owns e.
func (u *User) IsOwner(e *Entity) bool {
	return u.HasPermission(e, OwnershipOwner)
}
