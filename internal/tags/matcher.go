// Package tags resolves comma-separated tag expressions against entities by
// querying an ordered registry of pluggable tag and channel providers.
package tags

import (
	"slices"
	"strings"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
)

// Capabilities selects which channel directions count as a tag match.
type Capabilities struct {
	CheckEmit    bool
	CheckReceive bool
}

// TagProvider answers whether an entity carries a literal tag.
type TagProvider interface {
	Name() string
	HasTag(e *entity.Entity, tag string) bool
}

// ChannelProvider names the communication channels an entity emits or receives.
type ChannelProvider interface {
	Name() string
	ChannelNames(e *entity.Entity, emits, receives bool) []string
}

// ModuleSettings reports whether a provider is switched on.
type ModuleSettings interface {
	ModuleEnabled(name string) bool
}

// Matcher evaluates tag expressions. Providers are consulted in registration order.
type Matcher struct {
	settings ModuleSettings
	tags     []TagProvider
	channels []ChannelProvider
}

// NewMatcher creates a matcher with no providers. A nil settings enables every provider.
func NewMatcher(settings ModuleSettings) *Matcher {
	return &Matcher{settings: settings}
}

// RegisterTags appends a tag provider. Nil providers are ignored.
func (m *Matcher) RegisterTags(p TagProvider) *Matcher {
	if p != nil {
		m.tags = append(m.tags, p)
	}
	return m
}

// RegisterChannels appends a channel provider. Nil providers are ignored.
func (m *Matcher) RegisterChannels(p ChannelProvider) *Matcher {
	if p != nil {
		m.channels = append(m.channels, p)
	}
	return m
}

// HasTags reports whether e matches every token of expr.
// A blank expression always matches; a non-blank one never matches a nil entity.
func (m *Matcher) HasTags(e *entity.Entity, expr string, caps Capabilities) bool {
	if strings.TrimSpace(expr) == "" {
		return true
	}
	if e == nil {
		return false
	}

	var channels []string
	resolved := false
	for _, token := range profile.SplitTags(expr) {
		if m.hasTag(e, token) {
			continue
		}
		if !resolved {
			channels = m.channelNames(e, caps)
			resolved = true
		}
		if slices.Contains(channels, token) {
			continue
		}
		return false
	}
	return true
}

func (m *Matcher) hasTag(e *entity.Entity, tag string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.tags {
		if m.enabled(p.Name()) && p.HasTag(e, tag) {
			return true
		}
	}
	return false
}

func (m *Matcher) channelNames(e *entity.Entity, caps Capabilities) []string {
	if m == nil || (!caps.CheckEmit && !caps.CheckReceive) {
		return nil
	}
	var out []string
	for _, p := range m.channels {
		if m.enabled(p.Name()) {
			out = append(out, p.ChannelNames(e, caps.CheckEmit, caps.CheckReceive)...)
		}
	}
	return out
}

func (m *Matcher) enabled(name string) bool {
	return m.settings == nil || m.settings.ModuleEnabled(name)
}
