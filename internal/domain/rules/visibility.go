// Package rules contains the pure decision logic for profile visibility.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/tags"
)

// Settings exposes the world configuration the evaluator depends on.
type Settings interface {
	DefaultVisibility() profile.Visibility
}

// TagMatcher resolves tag expressions against an entity.
type TagMatcher interface {
	HasTags(e *entity.Entity, expr string, caps tags.Capabilities) bool
}

// Tracer receives the reason a paragraph failed its visibility test.
type Tracer func(subject *entity.Entity, p *profile.Paragraph, viewer *entity.Entity, reason string)

// Evaluator decides which paragraphs a user sees through a viewer.
type Evaluator struct {
	settings Settings
	tags     TagMatcher
	trace    Tracer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTracer installs a diagnostic tracer for failed checks.
func WithTracer(t Tracer) Option {
	return func(e *Evaluator) { e.trace = t }
}

// NewEvaluator creates an evaluator. Nil settings fall back to not_secret;
// a nil matcher only accepts blank tag expressions.
func NewEvaluator(settings Settings, matcher TagMatcher, opts ...Option) *Evaluator {
	ev := &Evaluator{settings: settings, tags: matcher}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// EffectiveVisibility resolves the default mode against the world setting.
func (ev *Evaluator) EffectiveVisibility(v profile.Visibility) profile.Visibility {
	if !v.IsDefault() {
		return v
	}
	if ev.settings != nil {
		if d := ev.settings.DefaultVisibility(); !d.IsDefault() {
			return d
		}
	}
	return profile.FallbackDefaultVisibility
}

// CanSeeParagraph applies the visibility cascade for user looking at subject
// through viewer. viewer may be nil, meaning no specific observer.
// The first failing rule wins.
func (ev *Evaluator) CanSeeParagraph(user *entity.User, subject *entity.Entity, p *profile.Paragraph, viewer *entity.Entity) bool {
	if p == nil || p.ID == "" || p.Text == "" {
		return ev.fail(subject, p, viewer, "empty")
	}

	switch ev.EffectiveVisibility(p.Visibility) {
	case profile.VisibilityShow:
	case profile.VisibilityHidden:
		return ev.fail(subject, p, viewer, "always hide")
	case profile.VisibilityShowIfFriendly:
		if subject == nil || subject.Disposition != entity.DispositionFriendly {
			return ev.fail(subject, p, viewer, "not friendly")
		}
	case profile.VisibilityShowIfGM:
		if !user.IsGM() {
			return ev.fail(subject, p, viewer, "not GM")
		}
	case profile.VisibilityShowIfLimited:
		if !user.HasPermission(subject, entity.OwnershipLimited) {
			return ev.fail(subject, p, viewer, "not LIMITED")
		}
	case profile.VisibilityShowIfNotSecret:
		if subject != nil && subject.Disposition == entity.DispositionSecret {
			return ev.fail(subject, p, viewer, "SECRET")
		}
	case profile.VisibilityShowIfObserver:
		if !user.HasPermission(subject, entity.OwnershipObserver) {
			return ev.fail(subject, p, viewer, "not OBSERVER")
		}
	case profile.VisibilityShowIfOwner:
		if !user.IsOwner(subject) {
			return ev.fail(subject, p, viewer, "not OWNER")
		}
	}

	if subject.HasVisibility() && !subject.IsVisible() && !user.IsOwner(subject) && !user.IsGM() {
		return ev.fail(subject, p, viewer, "subject hidden and neither owner nor GM")
	}

	if !ev.hasTags(subject, p.TagsSelf, tags.Capabilities{CheckEmit: true}) {
		return ev.fail(subject, p, viewer, "tags_self mismatch")
	}
	if !ev.hasTags(viewer, p.TagsViewer, tags.Capabilities{CheckReceive: true}) {
		if viewer != nil || !user.IsGM() {
			return ev.fail(subject, p, viewer, "tags_viewer mismatch")
		}
	}

	return true
}

// CanSeeProfile reports whether a profile is eligible for display.
// Paragraph rules are not consulted.
func CanSeeProfile(p *profile.Profile) bool {
	return p != nil && p.ID != "" && p.Enabled
}

func (ev *Evaluator) hasTags(e *entity.Entity, expr string, caps tags.Capabilities) bool {
	if ev.tags == nil {
		return tags.NewMatcher(nil).HasTags(e, expr, caps)
	}
	return ev.tags.HasTags(e, expr, caps)
}

func (ev *Evaluator) fail(subject *entity.Entity, p *profile.Paragraph, viewer *entity.Entity, reason string) bool {
	if ev.trace != nil {
		ev.trace(subject, p, viewer, reason)
	}
	return false
}
