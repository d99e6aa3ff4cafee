package store

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/ordered"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/events"
	"github.com/MRamiBalles/tokenprofile/internal/platform/id"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
)

// AddParagraph appends a paragraph built from init merged over the
// paragraph defaults. A supplied id that already exists is a collision.
func (s *Store) AddParagraph(ctx context.Context, u *entity.User, e *entity.Entity, profileID string, init profile.ParagraphUpdate) (*profile.Paragraph, error) {
	return s.UpdateParagraph(ctx, u, e, profileID, init, SkipExisting())
}

// UpdateParagraph merges upd into the paragraph with upd.ID of profileID,
// creating it at the end when absent. Without an id a fresh one is generated.
func (s *Store) UpdateParagraph(ctx context.Context, u *entity.User, e *entity.Entity, profileID string, upd profile.ParagraphUpdate, opts ...UpdateOption) (*profile.Paragraph, error) {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	var out *profile.Paragraph
	err := s.mutate(ctx, "update_paragraph", u, e, func(ctx context.Context) error {
		paragraphs, ok := s.profileParagraphs(e, profileID)
		if !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
		}

		existing, exists := paragraphs.Get(upd.ID)
		switch {
		case upd.ID == "":
			upd.ID = s.newID()
			if paragraphs.Has(upd.ID) {
				s.log.Warn("id collision when creating paragraph",
					logger.String("entity", e.ID), logger.String("profile", profileID), logger.String("id", upd.ID))
				return fmt.Errorf("paragraph %s: %w", upd.ID, ErrIDCollision)
			}
		case !id.Valid(upd.ID):
			return fmt.Errorf("paragraph id %q: %w", upd.ID, ErrInvalidInput)
		case exists && o.skipExisting:
			return fmt.Errorf("paragraph %s: %w", upd.ID, ErrIDCollision)
		}

		base := profile.NewParagraph()
		if exists {
			base = existing
		}
		merged, err := normalizeParagraph(base.Apply(upd))
		if err != nil {
			return err
		}
		merged.ID = upd.ID

		if err := s.write(ctx, e, paragraphKey(profileID, merged.ID), merged); err != nil {
			return err
		}

		eventType := events.EventTypeParagraphUpdated
		if !exists {
			eventType = events.EventTypeParagraphAdded
		}
		s.emit(ctx, eventType, u, e, profileID, map[string]any{
			"paragraph":  merged.ID,
			"visibility": string(merged.Visibility),
		})

		stored, ok := s.Paragraph(e, profileID, merged.ID)
		if !ok {
			return fmt.Errorf("paragraph %s vanished after write: %w", merged.ID, ErrNotFound)
		}
		out = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveParagraph deletes one paragraph.
func (s *Store) RemoveParagraph(ctx context.Context, u *entity.User, e *entity.Entity, profileID, paragraphID string) (bool, error) {
	err := s.mutate(ctx, "remove_paragraph", u, e, func(ctx context.Context) error {
		paragraphs, ok := s.profileParagraphs(e, profileID)
		if !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
		}
		if !paragraphs.Has(paragraphID) {
			return fmt.Errorf("paragraph %q: %w", paragraphID, ErrNotFound)
		}
		if err := s.unset(ctx, e, paragraphKey(profileID, paragraphID)); err != nil {
			return err
		}
		s.emit(ctx, events.EventTypeParagraphRemoved, u, e, profileID, map[string]any{"paragraph": paragraphID})
		return nil
	})
	return err == nil, err
}

// OverwriteParagraphs replaces a profile's whole paragraph collection,
// typically after reordering.
func (s *Store) OverwriteParagraphs(ctx context.Context, u *entity.User, e *entity.Entity, profileID string, paragraphs *profile.Paragraphs) error {
	return s.mutate(ctx, "overwrite_paragraphs", u, e, func(ctx context.Context) error {
		return s.overwriteLocked(ctx, u, e, profileID, paragraphs)
	})
}

// MoveParagraphUp swaps a paragraph with its predecessor.
func (s *Store) MoveParagraphUp(ctx context.Context, u *entity.User, e *entity.Entity, profileID, paragraphID string) error {
	return s.move(ctx, "move_paragraph_up", u, e, profileID, paragraphID, (*profile.Paragraphs).MoveUp)
}

// MoveParagraphDown swaps a paragraph with its successor.
func (s *Store) MoveParagraphDown(ctx context.Context, u *entity.User, e *entity.Entity, profileID, paragraphID string) error {
	return s.move(ctx, "move_paragraph_down", u, e, profileID, paragraphID, (*profile.Paragraphs).MoveDown)
}

func (s *Store) move(ctx context.Context, op string, u *entity.User, e *entity.Entity, profileID, paragraphID string,
	reorder func(*profile.Paragraphs, string) (*profile.Paragraphs, bool)) error {
	return s.mutate(ctx, op, u, e, func(ctx context.Context) error {
		paragraphs, ok := s.profileParagraphs(e, profileID)
		if !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
		}
		moved, ok := reorder(paragraphs, paragraphID)
		if !ok {
			return fmt.Errorf("paragraph %q: %w", paragraphID, ErrNotFound)
		}
		return s.overwriteLocked(ctx, u, e, profileID, moved)
	})
}

func (s *Store) overwriteLocked(ctx context.Context, u *entity.User, e *entity.Entity, profileID string, paragraphs *profile.Paragraphs) error {
	if paragraphs == nil {
		return fmt.Errorf("paragraphs of %q: %w", profileID, ErrInvalidInput)
	}
	if _, ok := s.Profile(e, profileID); !ok {
		return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
	}
	normalized, err := normalizeParagraphs(paragraphs)
	if err != nil {
		return err
	}
	if err := s.write(ctx, e, paragraphsKey(profileID), normalized); err != nil {
		return err
	}
	s.emit(ctx, events.EventTypeParagraphsReordered, u, e, profileID, map[string]any{"order": normalized.Keys()})
	return nil
}

// profileParagraphs returns the paragraphs of an existing profile.
func (s *Store) profileParagraphs(e *entity.Entity, profileID string) (*profile.Paragraphs, bool) {
	p, ok := s.Profile(e, profileID)
	if !ok {
		return nil, false
	}
	return p.Paragraphs, true
}

// normalizeParagraph filters tag expressions and validates the mode.
func normalizeParagraph(p profile.Paragraph) (profile.Paragraph, error) {
	if p.Visibility == "" {
		p.Visibility = profile.VisibilityDefault
	}
	if !p.Visibility.Valid() {
		return p, fmt.Errorf("visibility %q: %w", p.Visibility, ErrInvalidInput)
	}
	p.TagsSelf = profile.SanitizeTags(p.TagsSelf)
	p.TagsViewer = profile.SanitizeTags(p.TagsViewer)
	return p, nil
}

// normalizeParagraphs normalizes every paragraph, keyed by its id.
func normalizeParagraphs(in *profile.Paragraphs) (*profile.Paragraphs, error) {
	out := ordered.New[string, profile.Paragraph]()
	for key, p := range in.All() {
		if p.ID == "" {
			p.ID = key
		}
		if p.ID != key || !id.Valid(key) {
			return nil, fmt.Errorf("paragraph key %q: %w", key, ErrInvalidInput)
		}
		np, err := normalizeParagraph(p)
		if err != nil {
			return nil, err
		}
		out.Set(key, np)
	}
	return out, nil
}
