// Package profile defines profiles and their paragraphs, the named, ordered
// text blocks attached to an entity.
// This package is PURE and must NOT import any infrastructure packages.
package profile

import (
	"github.com/MRamiBalles/tokenprofile/internal/domain/ordered"
)

// DefaultName is given to profiles created without a name.
const DefaultName = "New Profile"

// Paragraphs is the ordered paragraph collection of a profile.
type Paragraphs = ordered.Map[string, Paragraph]

// Profile is a named, enableable container of ordered paragraphs.
type Profile struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Enabled    bool        `json:"enabled"`
	Paragraphs *Paragraphs `json:"paragraphs"`
}

// Paragraph is one visibility-gated unit of text within a profile.
type Paragraph struct {
	ID         string     `json:"id"`
	Visibility Visibility `json:"visibility"`
	TagsSelf   string     `json:"tags_self"`
	TagsViewer string     `json:"tags_viewer"`
	Text       string     `json:"text"`
}

// NewProfile returns a profile populated with defaults.
func NewProfile() Profile {
	return Profile{
		Name:       DefaultName,
		Enabled:    true,
		Paragraphs: ordered.New[string, Paragraph](),
	}
}

// NewParagraph returns a paragraph populated with defaults.
func NewParagraph() Paragraph {
	return Paragraph{Visibility: VisibilityDefault}
}

// ParagraphList returns the paragraphs in display order.
func (p *Profile) ParagraphList() []Paragraph {
	if p == nil {
		return nil
	}
	return p.Paragraphs.Values()
}

// HasContent reports whether any paragraph exists.
func (p *Profile) HasContent() bool {
	return p != nil && p.Paragraphs.Len() > 0
}

// ProfileUpdate is a partial profile. Nil fields are left unchanged.
type ProfileUpdate struct {
	ID         string      `json:"id,omitempty"`
	Name       *string     `json:"name,omitempty"`
	Enabled    *bool       `json:"enabled,omitempty"`
	Paragraphs *Paragraphs `json:"paragraphs,omitempty"`
}

// Apply merges u over p. The ID is not touched.
func (p Profile) Apply(u ProfileUpdate) Profile {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Enabled != nil {
		p.Enabled = *u.Enabled
	}
	if u.Paragraphs != nil {
		p.Paragraphs = u.Paragraphs.Clone()
	}
	if p.Paragraphs == nil {
		p.Paragraphs = ordered.New[string, Paragraph]()
	}
	return p
}

// ParagraphUpdate is a partial paragraph. Nil fields are left unchanged.
type ParagraphUpdate struct {
	ID         string      `json:"id,omitempty"`
	Visibility *Visibility `json:"visibility,omitempty"`
	TagsSelf   *string     `json:"tags_self,omitempty"`
	TagsViewer *string     `json:"tags_viewer,omitempty"`
	Text       *string     `json:"text,omitempty"`
}

// Apply merges u over p. The ID is not touched.
func (p Paragraph) Apply(u ParagraphUpdate) Paragraph {
	if u.Visibility != nil {
		p.Visibility = *u.Visibility
	}
	if u.TagsSelf != nil {
		p.TagsSelf = *u.TagsSelf
	}
	if u.TagsViewer != nil {
		p.TagsViewer = *u.TagsViewer
	}
	if u.Text != nil {
		p.Text = *u.Text
	}
	return p
}
