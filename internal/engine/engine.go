// Package engine turns stored profiles into displayed content: it selects
// the profile to show for an entity, assembles the paragraphs a user may see
// and runs the display pipeline around them.
//
// ARCHITECTURAL RULE: The Engine never mutates profiles. It reads entity
// snapshots through a ProfileReader and only evaluates them.
package engine

import (
	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/domain/rules"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
	"github.com/MRamiBalles/tokenprofile/internal/platform/metrics"
)

// ProfileReader projects profile data from an entity's flag snapshot.
type ProfileReader interface {
	VisibleProfiles(e *entity.Entity) []profile.Profile
	Profile(e *entity.Entity, profileID string) (*profile.Profile, bool)
	Paragraph(e *entity.Entity, profileID, paragraphID string) (*profile.Paragraph, bool)
	CanSeeProfile(e *entity.Entity, profileID string) bool
	PreferredProfile(e *entity.Entity) string
	Randomize(e *entity.Entity) bool
}

// Settings is the world configuration the engine reads.
type Settings interface {
	rules.RoleSettings
	GMNotesEnabled() bool
}

// Engine is the central orchestrator for profile display.
type Engine struct {
	profiles  ProfileReader
	evaluator *rules.Evaluator
	settings  Settings
	enricher  *Enricher
	logger    *logger.Logger
	metrics   *metrics.Collector

	selectHook  SelectionHook
	displayHook DisplayHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelectionHook installs the observer that may override selection.
func WithSelectionHook(h SelectionHook) Option {
	return func(en *Engine) { en.selectHook = h }
}

// WithDisplayHook installs the observer that may rewrite displayed content.
func WithDisplayHook(h DisplayHook) Option {
	return func(en *Engine) { en.displayHook = h }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(en *Engine) { en.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(en *Engine) { en.metrics = m }
}

// NewEngine wires the engine over its collaborators.
func NewEngine(profiles ProfileReader, evaluator *rules.Evaluator, settings Settings, opts ...Option) *Engine {
	en := &Engine{
		profiles:  profiles,
		evaluator: evaluator,
		settings:  settings,
		enricher:  NewEnricher(),
		logger:    logger.NewNop(),
		metrics:   metrics.Get(),
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// Evaluator exposes the visibility evaluator.
func (en *Engine) Evaluator() *rules.Evaluator {
	return en.evaluator
}
