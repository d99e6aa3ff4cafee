// Package store implements the ProfileStore: ownership-gated CRUD over the
// profiles and paragraphs kept in an entity's flag document.
//
// Reads are synchronous projections of the entity's flag snapshot
// (entity.Flags) and never fail. Mutations authorize first, serialize per
// entity, write through the FlagStore, refresh the snapshot and append a
// change event.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/ordered"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/domain/rules"
	"github.com/MRamiBalles/tokenprofile/internal/events"
	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/platform/id"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
	"github.com/MRamiBalles/tokenprofile/internal/platform/metrics"
	"github.com/MRamiBalles/tokenprofile/internal/platform/tracing"
)

// Flag namespace and keys inside an entity's document.
const (
	Namespace    = "tokenprofile"
	profilesKey  = Namespace + ".profiles"
	preferKey    = Namespace + ".preferProfile"
	randomizeKey = Namespace + ".randomize"
)

var (
	// ErrNotOwner means the caller may not change the entity's profiles.
	ErrNotOwner = errors.New("not owner")
	// ErrIDCollision means a generated or supplied id is already taken.
	ErrIDCollision = errors.New("id collision")
	// ErrNotFound means the referenced profile or paragraph does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput means a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfirmRequired means a destructive delete needs explicit confirmation.
	ErrConfirmRequired = errors.New("confirmation required")
)

// Store is the ProfileStore.
type Store struct {
	flags   storage.FlagStore
	events  *events.EventLog
	log     *logger.Logger
	metrics *metrics.Collector
	roles   rules.RoleSettings
	newID   func() string
	locks   *keyedMutex
}

// Option configures a Store.
type Option func(*Store)

// WithEventLog records every successful mutation in log.
func WithEventLog(log *events.EventLog) Option {
	return func(s *Store) { s.events = log }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics sets the metrics collector. The default is the global one.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Store) { s.metrics = m }
}

// WithRoleGate additionally requires the editing role from settings.
// Without it ownership alone authorizes mutations.
func WithRoleGate(settings rules.RoleSettings) Option {
	return func(s *Store) { s.roles = settings }
}

// WithIDGenerator replaces the id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a Store over flags.
func New(flags storage.FlagStore, opts ...Option) *Store {
	s := &Store{
		flags:   flags,
		log:     logger.NewNop(),
		metrics: metrics.Get(),
		newID:   id.New,
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh loads the entity's current flag document into e.Flags.
func (s *Store) Refresh(ctx context.Context, e *entity.Entity) error {
	if e == nil || e.ID == "" {
		return ErrInvalidInput
	}
	doc, err := s.flags.Document(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("failed to refresh flags of %s: %w", e.ID, err)
	}
	e.Flags = doc
	return nil
}

// CanEdit reports whether u may mutate e's profiles.
func (s *Store) CanEdit(u *entity.User, e *entity.Entity) bool {
	if s.roles != nil {
		return rules.CanEditProfiles(u, e, s.roles)
	}
	return u.IsOwner(e)
}

// ---------------------------------------------------------
// Reads
// ---------------------------------------------------------

// Profiles returns the entity's profiles in stored order. Entries that do
// not decode as profiles are skipped.
func (s *Store) Profiles(e *entity.Entity) *ordered.Map[string, profile.Profile] {
	out := ordered.New[string, profile.Profile]()
	raw := e.Flag(profilesKey)
	if !raw.IsObject() {
		return out
	}
	raw.ForEach(func(key, value gjson.Result) bool {
		var p profile.Profile
		if err := json.Unmarshal([]byte(value.Raw), &p); err != nil {
			s.log.Debug("skipping malformed profile",
				logger.String("entity", e.ID), logger.String("profile", key.String()), logger.Error(err))
			return true
		}
		if p.Paragraphs == nil {
			p.Paragraphs = ordered.New[string, profile.Paragraph]()
		}
		out.Set(key.String(), p)
		return true
	})
	return out
}

// Profile returns one profile.
func (s *Store) Profile(e *entity.Entity, profileID string) (*profile.Profile, bool) {
	if profileID == "" {
		return nil, false
	}
	p, ok := s.Profiles(e).Get(profileID)
	if !ok {
		return nil, false
	}
	return &p, true
}

// Paragraphs returns a profile's paragraphs, empty when the profile is absent.
func (s *Store) Paragraphs(e *entity.Entity, profileID string) *profile.Paragraphs {
	p, ok := s.Profile(e, profileID)
	if !ok {
		return ordered.New[string, profile.Paragraph]()
	}
	return p.Paragraphs
}

// Paragraph returns one paragraph.
func (s *Store) Paragraph(e *entity.Entity, profileID, paragraphID string) (*profile.Paragraph, bool) {
	p, ok := s.Paragraphs(e, profileID).Get(paragraphID)
	if !ok {
		return nil, false
	}
	return &p, true
}

// VisibleProfiles returns the profiles eligible for display, in stored order.
func (s *Store) VisibleProfiles(e *entity.Entity) []profile.Profile {
	var out []profile.Profile
	for _, p := range s.Profiles(e).All() {
		if rules.CanSeeProfile(&p) {
			out = append(out, p)
		}
	}
	return out
}

// CanSeeProfile reports whether the profile exists and is enabled.
func (s *Store) CanSeeProfile(e *entity.Entity, profileID string) bool {
	p, ok := s.Profile(e, profileID)
	return ok && rules.CanSeeProfile(p)
}

// PreferredProfile returns the configured preferred profile name.
func (s *Store) PreferredProfile(e *entity.Entity) string {
	return e.Flag(preferKey).String()
}

// Randomize reports whether random profile selection is enabled.
func (s *Store) Randomize(e *entity.Entity) bool {
	return e.Flag(randomizeKey).Bool()
}

// ---------------------------------------------------------
// Mutation plumbing
// ---------------------------------------------------------

// mutate runs fn with authorization, the entity lock and a fresh snapshot.
func (s *Store) mutate(ctx context.Context, op string, u *entity.User, e *entity.Entity, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	entityID := ""
	if e != nil {
		entityID = e.ID
	}
	ctx, span := tracing.StartSpan(ctx, "store."+op, attribute.String("entity.id", entityID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.RecordStoreOp(op, resultLabel(err), time.Since(start))
	}()

	if entityID == "" {
		return ErrInvalidInput
	}
	if !s.CanEdit(u, e) {
		return ErrNotOwner
	}

	unlock := s.locks.lock(entityID)
	defer unlock()

	if err := s.Refresh(ctx, e); err != nil {
		return err
	}
	return fn(ctx)
}

func (s *Store) write(ctx context.Context, e *entity.Entity, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.flags.Set(ctx, e.ID, key, json.RawMessage(raw)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return s.Refresh(ctx, e)
}

func (s *Store) unset(ctx context.Context, e *entity.Entity, key string) error {
	if err := s.flags.Unset(ctx, e.ID, key); err != nil {
		return fmt.Errorf("failed to unset %s: %w", key, err)
	}
	return s.Refresh(ctx, e)
}

func (s *Store) emit(ctx context.Context, t events.EventType, u *entity.User, e *entity.Entity, target string, payload map[string]any) {
	if s.events == nil {
		return
	}
	actor := ""
	if u != nil {
		actor = u.ID
	}
	err := s.events.Append(ctx, events.New(t, e.ID, actor, target, payload))
	s.metrics.RecordEventWrite(err)
	if err != nil {
		s.log.Warn("failed to persist change event",
			logger.String("entity", e.ID), logger.String("type", string(t)), logger.Error(err))
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrIDCollision):
		return "id_collision"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func profileKey(profileID string) string {
	return profilesKey + "." + profileID
}

func paragraphsKey(profileID string) string {
	return profileKey(profileID) + ".paragraphs"
}

func paragraphKey(profileID, paragraphID string) string {
	return paragraphsKey(profileID) + "." + paragraphID
}
