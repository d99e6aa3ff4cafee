// Package entity defines the game entities that own profiles and the users
// that act on them.
// This package is PURE and must NOT import any infrastructure packages (network, storage, platform).
package entity

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Disposition is an entity's stance classification.
type Disposition string

const (
	DispositionFriendly Disposition = "FRIENDLY"
	DispositionNeutral  Disposition = "NEUTRAL"
	DispositionHostile  Disposition = "HOSTILE"
	DispositionSecret   Disposition = "SECRET"
)

// ParseDisposition maps a case-insensitive name to a Disposition, defaulting to NEUTRAL.
func ParseDisposition(s string) Disposition {
	switch d := Disposition(strings.ToUpper(strings.TrimSpace(s))); d {
	case DispositionFriendly, DispositionHostile, DispositionSecret:
		return d
	default:
		return DispositionNeutral
	}
}

// OwnershipLevel is the permission a user holds on an entity.
type OwnershipLevel int

const (
	OwnershipNone OwnershipLevel = iota
	OwnershipLimited
	OwnershipObserver
	OwnershipOwner
)

// ParseOwnership maps a level name to an OwnershipLevel, defaulting to none.
func ParseOwnership(s string) OwnershipLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIMITED":
		return OwnershipLimited
	case "OBSERVER":
		return OwnershipObserver
	case "OWNER":
		return OwnershipOwner
	default:
		return OwnershipNone
	}
}

// Entity is a character or token that owns profiles.
type Entity struct {
	ID          string      `json:"id"`
	ActorID     string      `json:"actor_id,omitempty"` // Owning actor for token entities
	Name        string      `json:"name"`
	Disposition Disposition `json:"disposition"`

	// Visible is nil when the entity has no concept of being perceivable.
	Visible *bool `json:"visible,omitempty"`

	// Ownership maps user IDs to their permission level.
	Ownership        map[string]OwnershipLevel `json:"ownership,omitempty"`
	DefaultOwnership OwnershipLevel            `json:"default_ownership"`

	// Flags is the last fetched snapshot of the entity's flag document.
	Flags []byte `json:"-"`
}

// Flag reads a dotted path from the flag snapshot.
func (e *Entity) Flag(path string) gjson.Result {
	if e == nil || len(e.Flags) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(e.Flags, path)
}

// HasVisibility reports whether the entity exposes a "visible" concept.
func (e *Entity) HasVisibility() bool {
	return e != nil && e.Visible != nil
}

// IsVisible reports whether the entity is currently perceivable.
// Entities without a visibility concept are always perceivable.
func (e *Entity) IsVisible() bool {
	return !e.HasVisibility() || *e.Visible
}

// SeedID returns the identity used to seed per-entity random choices.
func (e *Entity) SeedID(fallback string) string {
	switch {
	case e == nil:
		return fallback
	case e.ID != "":
		return e.ID
	case e.ActorID != "":
		return e.ActorID
	default:
		return fallback
	}
}
