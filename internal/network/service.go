// Package network exposes profiles over HTTP and websocket: a chi REST API
// for editing, a live display channel and the change feed.
package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/engine"
	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/store"
)

// ErrUnknownUser is returned when a request names a user that does not exist.
var ErrUnknownUser = errors.New("unknown user")

// Directory resolves the users and entities of the world.
type Directory interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
	GetEntity(ctx context.Context, id string) (*entity.Entity, error)
	ListEntities(ctx context.Context) ([]entity.Entity, error)
}

// Service binds the world directory, the profile store and the display
// engine for the transports.
type Service struct {
	world  Directory
	store  *store.Store
	engine *engine.Engine
}

// NewService creates the transport facing service.
func NewService(world Directory, st *store.Store, en *engine.Engine) *Service {
	return &Service{world: world, store: st, engine: en}
}

// Store returns the profile store.
func (s *Service) Store() *store.Store {
	return s.store
}

// User resolves a user id.
func (s *Service) User(ctx context.Context, userID string) (*entity.User, error) {
	if userID == "" {
		return nil, ErrUnknownUser
	}
	u, err := s.world.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return u, nil
}

// Entity resolves an entity id and loads its flag snapshot.
func (s *Service) Entity(ctx context.Context, entityID string) (*entity.Entity, error) {
	e, err := s.world.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Refresh(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Entities lists every entity without flag snapshots.
func (s *Service) Entities(ctx context.Context) ([]entity.Entity, error) {
	return s.world.ListEntities(ctx)
}

// Display renders the profile u sees on entityID through the optional viewer.
// It reports false when there is nothing to show.
func (s *Service) Display(ctx context.Context, u *entity.User, entityID, viewerID string) (*engine.DisplayResult, bool, error) {
	subject, err := s.Entity(ctx, entityID)
	if err != nil {
		return nil, false, err
	}
	var viewer *entity.Entity
	if viewerID != "" {
		if viewer, err = s.Entity(ctx, viewerID); err != nil {
			return nil, false, err
		}
	}
	res, ok := s.engine.Display(u, subject, viewer)
	return res, ok, nil
}
