package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/events"
	"github.com/MRamiBalles/tokenprofile/internal/platform/id"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
)

// UpdateOption adjusts an update.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	skipExisting bool
}

// SkipExisting refuses to touch a record whose supplied id already exists.
func SkipExisting() UpdateOption {
	return func(o *updateOptions) { o.skipExisting = true }
}

// AddProfile creates a profile from init merged over the profile defaults.
// A supplied id that already exists is a collision.
func (s *Store) AddProfile(ctx context.Context, u *entity.User, e *entity.Entity, init profile.ProfileUpdate) (*profile.Profile, error) {
	return s.UpdateProfile(ctx, u, e, init, SkipExisting())
}

// UpdateProfile merges upd into the profile with upd.ID, creating it when
// absent. Without an id a fresh one is generated. Names are sanitized;
// a name that sanitizes to nothing is ignored.
func (s *Store) UpdateProfile(ctx context.Context, u *entity.User, e *entity.Entity, upd profile.ProfileUpdate, opts ...UpdateOption) (*profile.Profile, error) {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	var out *profile.Profile
	err := s.mutate(ctx, "update_profile", u, e, func(ctx context.Context) error {
		p, err := s.updateProfileLocked(ctx, u, e, upd, o)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) updateProfileLocked(ctx context.Context, u *entity.User, e *entity.Entity, upd profile.ProfileUpdate, o updateOptions) (*profile.Profile, error) {
	if upd.Name != nil {
		name := profile.SanitizeName(*upd.Name)
		upd.Name = &name
		if name == "" {
			upd.Name = nil
		}
	}

	existing, exists := s.Profile(e, upd.ID)
	switch {
	case upd.ID == "":
		upd.ID = s.newID()
		if _, taken := s.Profile(e, upd.ID); taken {
			s.log.Warn("id collision when creating profile",
				logger.String("entity", e.ID), logger.String("id", upd.ID))
			return nil, fmt.Errorf("profile %s: %w", upd.ID, ErrIDCollision)
		}
	case !id.Valid(upd.ID):
		return nil, fmt.Errorf("profile id %q: %w", upd.ID, ErrInvalidInput)
	case exists && o.skipExisting:
		return nil, fmt.Errorf("profile %s: %w", upd.ID, ErrIDCollision)
	}

	base := profile.NewProfile()
	if exists {
		base = *existing
	}
	merged := base.Apply(upd)
	merged.ID = upd.ID
	if upd.Paragraphs != nil {
		paragraphs, err := normalizeParagraphs(merged.Paragraphs)
		if err != nil {
			return nil, err
		}
		merged.Paragraphs = paragraphs
	}

	if err := s.write(ctx, e, profileKey(merged.ID), merged); err != nil {
		return nil, err
	}

	eventType := events.EventTypeProfileUpdated
	if !exists {
		eventType = events.EventTypeProfileAdded
	}
	s.emit(ctx, eventType, u, e, merged.ID, map[string]any{"name": merged.Name, "enabled": merged.Enabled})

	stored, ok := s.Profile(e, merged.ID)
	if !ok {
		return nil, fmt.Errorf("profile %s vanished after write: %w", merged.ID, ErrNotFound)
	}
	return stored, nil
}

// RemoveProfile deletes a profile and all its paragraphs.
func (s *Store) RemoveProfile(ctx context.Context, u *entity.User, e *entity.Entity, profileID string) (bool, error) {
	err := s.mutate(ctx, "remove_profile", u, e, func(ctx context.Context) error {
		p, ok := s.Profile(e, profileID)
		if !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
		}
		if err := s.unset(ctx, e, profileKey(profileID)); err != nil {
			return err
		}
		s.emit(ctx, events.EventTypeProfileRemoved, u, e, profileID, map[string]any{
			"name":       p.Name,
			"paragraphs": p.Paragraphs.Len(),
		})
		return nil
	})
	return err == nil, err
}

// DisableProfiles disables every enabled profile of e, one update at a time.
// Each update is independent; it returns how many were disabled and the
// joined errors of the ones that failed.
func (s *Store) DisableProfiles(ctx context.Context, u *entity.User, e *entity.Entity) (int, error) {
	if e == nil || e.ID == "" {
		return 0, ErrInvalidInput
	}
	if !s.CanEdit(u, e) {
		return 0, ErrNotOwner
	}
	if err := s.Refresh(ctx, e); err != nil {
		return 0, err
	}

	off := false
	var (
		disabled int
		errs     []error
	)
	for pid, p := range s.Profiles(e).All() {
		if !p.Enabled {
			continue
		}
		if _, err := s.UpdateProfile(ctx, u, e, profile.ProfileUpdate{ID: pid, Enabled: &off}); err != nil {
			errs = append(errs, err)
			continue
		}
		disabled++
	}
	return disabled, errors.Join(errs...)
}

// CopyProfile adds a copy of profileID under a fresh id. An empty name
// keeps the source name.
func (s *Store) CopyProfile(ctx context.Context, u *entity.User, e *entity.Entity, profileID, name string) (*profile.Profile, error) {
	var out *profile.Profile
	err := s.mutate(ctx, "copy_profile", u, e, func(ctx context.Context) error {
		src, ok := s.Profile(e, profileID)
		if !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
		}
		if name == "" {
			name = src.Name
		}
		enabled := src.Enabled
		p, err := s.updateProfileLocked(ctx, u, e, profile.ProfileUpdate{
			Name:       &name,
			Enabled:    &enabled,
			Paragraphs: src.Paragraphs,
		}, updateOptions{skipExisting: true})
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RenameProfile changes a profile's name. It reports false without error
// when the new name is empty after sanitizing or equal to the current one.
func (s *Store) RenameProfile(ctx context.Context, u *entity.User, e *entity.Entity, profileID, name string) (bool, error) {
	changed := false
	err := s.mutate(ctx, "rename_profile", u, e, func(ctx context.Context) error {
		p, ok := s.Profile(e, profileID)
		if !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
		}
		name = profile.SanitizeName(name)
		if name == "" || name == p.Name {
			return nil
		}
		if _, err := s.updateProfileLocked(ctx, u, e, profile.ProfileUpdate{ID: profileID, Name: &name}, updateOptions{}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}
