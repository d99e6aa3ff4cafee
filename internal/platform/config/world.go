package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
)

// World is the YAML world definition.
type World struct {
	Settings Settings     `yaml:"settings"`
	Users    []UserSpec   `yaml:"users"`
	Entities []EntitySpec `yaml:"entities"`
}

// Settings is the world settings store. It is immutable after load.
type Settings struct {
	DefaultVisibilityMode string            `yaml:"default_visibility"`
	PlayersEdit           string            `yaml:"players_edit"`
	TooltipPlayersSee     string            `yaml:"tooltip_players_see"`
	GMNotesInContent      bool              `yaml:"gm_notes_in_content"`
	Modules               map[string]Module `yaml:"modules"`
	VisionChannels        map[string]string `yaml:"vision_channels"` // channel id -> name
}

// Module switches an optional tag or channel provider.
type Module struct {
	Enabled *bool `yaml:"enabled"`
}

// DefaultVisibility returns the configured default mode; unknown or missing
// values fall back to not_secret.
func (s Settings) DefaultVisibility() profile.Visibility {
	v := profile.Visibility(strings.ToLower(strings.TrimSpace(s.DefaultVisibilityMode)))
	if v.IsDefault() || !v.Valid() {
		return profile.FallbackDefaultVisibility
	}
	return v
}

// PlayersEditRole is the minimum role that may edit owned profiles.
func (s Settings) PlayersEditRole() entity.Role {
	return roleOr(s.PlayersEdit, entity.RoleAssistant)
}

// TooltipSeeRole is the minimum role that may see displayed profiles.
func (s Settings) TooltipSeeRole() entity.Role {
	return roleOr(s.TooltipPlayersSee, entity.RolePlayer)
}

// ModuleEnabled reports whether a provider is switched on. Providers are
// enabled unless configured otherwise.
func (s Settings) ModuleEnabled(name string) bool {
	m, ok := s.Modules[name]
	return !ok || m.Enabled == nil || *m.Enabled
}

// GMNotesEnabled reports whether GM notes are appended to displayed content.
func (s Settings) GMNotesEnabled() bool {
	return s.GMNotesInContent
}

func roleOr(s string, def entity.Role) entity.Role {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return entity.ParseRole(s)
}

// UserSpec seeds a user.
type UserSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// User converts the spec to a domain user.
func (u UserSpec) User() entity.User {
	return entity.User{ID: u.ID, Name: u.Name, Role: entity.ParseRole(u.Role)}
}

// EntitySpec seeds an entity and its flag document.
type EntitySpec struct {
	ID               string            `yaml:"id"`
	ActorID          string            `yaml:"actor_id"`
	Name             string            `yaml:"name"`
	Disposition      string            `yaml:"disposition"`
	Visible          *bool             `yaml:"visible"`
	Ownership        map[string]string `yaml:"ownership"` // user id -> level
	DefaultOwnership string            `yaml:"default_ownership"`
	Flags            yaml.Node         `yaml:"flags"`
}

// Entity converts the spec to a domain entity without flags.
func (e EntitySpec) Entity() entity.Entity {
	out := entity.Entity{
		ID:               e.ID,
		ActorID:          e.ActorID,
		Name:             e.Name,
		Disposition:      entity.ParseDisposition(e.Disposition),
		Visible:          e.Visible,
		DefaultOwnership: entity.ParseOwnership(e.DefaultOwnership),
	}
	if len(e.Ownership) > 0 {
		out.Ownership = make(map[string]entity.OwnershipLevel, len(e.Ownership))
		for uid, lvl := range e.Ownership {
			out.Ownership[uid] = entity.ParseOwnership(lvl)
		}
	}
	return out
}

// FlagDocument renders the seeded flags as a JSON object, keeping the key
// order of the YAML file. Entities without flags get "{}".
func (e EntitySpec) FlagDocument() ([]byte, error) {
	if e.Flags.Kind == 0 {
		return []byte("{}"), nil
	}
	node := &e.Flags
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("flags of entity %s: expected a mapping", e.ID)
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, node); err != nil {
		return nil, fmt.Errorf("flags of entity %s: %w", e.ID, err)
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.AliasNode:
		return writeJSON(buf, n.Alias)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

// LoadWorld reads a world definition from path.
func LoadWorld(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}
	return ParseWorld(data)
}

// ParseWorld decodes a YAML world definition.
func ParseWorld(data []byte) (*World, error) {
	var w World
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse world: %w", err)
	}
	for i, u := range w.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("failed to parse world: user %d has no id", i)
		}
	}
	for i, e := range w.Entities {
		if e.ID == "" {
			return nil, fmt.Errorf("failed to parse world: entity %d has no id", i)
		}
	}
	return &w, nil
}
