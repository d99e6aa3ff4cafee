package store

import (
	"context"
	"strings"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/events"
)

// SetRandomize switches seeded random profile selection for e.
func (s *Store) SetRandomize(ctx context.Context, u *entity.User, e *entity.Entity, on bool) error {
	return s.mutate(ctx, "set_randomize", u, e, func(ctx context.Context) error {
		if err := s.write(ctx, e, randomizeKey, on); err != nil {
			return err
		}
		s.emit(ctx, events.EventTypePreferenceChanged, u, e, "", map[string]any{"randomize": on})
		return nil
	})
}

// SetPreferredProfile stores the name of the profile to prefer for display.
// A blank name clears the preference.
func (s *Store) SetPreferredProfile(ctx context.Context, u *entity.User, e *entity.Entity, name string) error {
	return s.mutate(ctx, "set_preferred_profile", u, e, func(ctx context.Context) error {
		var err error
		if strings.TrimSpace(name) == "" {
			err = s.unset(ctx, e, preferKey)
		} else {
			err = s.write(ctx, e, preferKey, name)
		}
		if err != nil {
			return err
		}
		s.emit(ctx, events.EventTypePreferenceChanged, u, e, "", map[string]any{"preferProfile": name})
		return nil
	})
}

// NeedsConfirmRemoveProfile reports whether removing the profile destroys
// content and so needs explicit confirmation.
func (s *Store) NeedsConfirmRemoveProfile(e *entity.Entity, profileID string) bool {
	p, ok := s.Profile(e, profileID)
	return ok && p.HasContent()
}

// NeedsConfirmRemoveParagraph reports whether the paragraph carries text.
func (s *Store) NeedsConfirmRemoveParagraph(e *entity.Entity, profileID, paragraphID string) bool {
	p, ok := s.Paragraph(e, profileID, paragraphID)
	return ok && p.Text != ""
}
