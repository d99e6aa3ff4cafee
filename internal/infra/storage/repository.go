// Package storage provides the persistence layer for the profile server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
)

// ErrNotFound is returned when a world record does not exist.
var ErrNotFound = errors.New("record not found")

// FlagStore persists one JSON flag document per entity, addressed by dotted
// paths such as "tokenprofile.profiles.<id>". Setting a new key appends it to
// its parent object; setting an existing key keeps its position.
type FlagStore interface {
	// Document returns the entity's whole flag document, "{}" when empty.
	Document(ctx context.Context, entityID string) ([]byte, error)

	// Get returns the raw JSON stored at key, or nil when absent.
	Get(ctx context.Context, entityID, key string) ([]byte, error)

	// Set stores value at key. []byte and json.RawMessage values are stored raw.
	Set(ctx context.Context, entityID, key string, value any) error

	// Unset removes key. Removing an absent key is not an error.
	Unset(ctx context.Context, entityID, key string) error
}

// ChangeEvent mirrors the events.Event structure for persistence.
type ChangeEvent struct {
	ID        string         `json:"id" db:"id"`
	EntityID  string         `json:"entity_id" db:"entity_id"`
	Timestamp time.Time      `json:"timestamp" db:"timestamp"`
	EventType string         `json:"event_type" db:"event_type"`
	ActorID   string         `json:"actor_id" db:"actor_id"`
	TargetID  string         `json:"target_id" db:"target_id"`
	Payload   map[string]any `json:"payload" db:"payload"`
}

// EventRepository defines the interface for change event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event ChangeEvent) error

	// GetByEntityID retrieves the history of one entity, oldest first.
	GetByEntityID(ctx context.Context, entityID string) ([]ChangeEvent, error)

	// GetByActorID retrieves all events performed by a user.
	GetByActorID(ctx context.Context, actorID string) ([]ChangeEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, eventType string) ([]ChangeEvent, error)
}

// WorldRepository stores the users and entities of a world.
// Entity flag documents are kept by the FlagStore, not here.
type WorldRepository interface {
	UpsertUser(ctx context.Context, u entity.User) error
	GetUser(ctx context.Context, id string) (*entity.User, error)
	ListUsers(ctx context.Context) ([]entity.User, error)

	UpsertEntity(ctx context.Context, e entity.Entity) error
	GetEntity(ctx context.Context, id string) (*entity.Entity, error)
	ListEntities(ctx context.Context) ([]entity.Entity, error)
}
