// Package events provides the change log for profile mutations.
// Every successful write to an entity's profiles is recorded here, fanned out
// to subscribers and optionally persisted.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType defines the category of a change event.
type EventType string

const (
	EventTypeProfileAdded        EventType = "PROFILE_ADDED"
	EventTypeProfileUpdated      EventType = "PROFILE_UPDATED"
	EventTypeProfileRemoved      EventType = "PROFILE_REMOVED"
	EventTypeParagraphAdded      EventType = "PARAGRAPH_ADDED"
	EventTypeParagraphUpdated    EventType = "PARAGRAPH_UPDATED"
	EventTypeParagraphRemoved    EventType = "PARAGRAPH_REMOVED"
	EventTypeParagraphsReordered EventType = "PARAGRAPHS_REORDERED"
	EventTypePreferenceChanged   EventType = "PREFERENCE_CHANGED"
)

// Event is an immutable record of a change to an entity's profiles.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	EntityID  string         `json:"entity_id"`
	ActorID   string         `json:"actor_id"`  // User who made the change
	TargetID  string         `json:"target_id"` // Profile id (optional)
	Payload   map[string]any `json:"payload,omitempty"`
}

// New stamps a fresh event with an id and the current time.
func New(t EventType, entityID, actorID, targetID string, payload map[string]any) Event {
	return Event{
		ID:        GenerateEventID(),
		Timestamp: time.Now().UTC(),
		Type:      t,
		EntityID:  entityID,
		ActorID:   actorID,
		TargetID:  targetID,
		Payload:   payload,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(ctx context.Context, event Event) error
}

// Subscriber receives every appended event. It must not block.
type Subscriber func(Event)

// EventLog is the in-memory append-only log of change events.
type EventLog struct {
	mu          sync.RWMutex
	events      []Event
	persister   EventPersister
	subscribers []Subscriber
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]Event, 0),
		persister: persister,
	}
}

// Subscribe registers fn to be called after each append.
func (el *EventLog) Subscribe(fn Subscriber) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.subscribers = append(el.subscribers, fn)
}

// Append adds an event to the log. Events are immutable once appended.
// The event is kept in memory and delivered to subscribers even when
// persisting fails; the persistence error is returned.
func (el *EventLog) Append(ctx context.Context, event Event) error {
	el.mu.Lock()
	el.events = append(el.events, event)
	subs := append([]Subscriber(nil), el.subscribers...)
	el.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}

	if el.persister != nil {
		return el.persister.Append(ctx, event)
	}
	return nil
}

// GetByEntity returns the history of one entity in append order.
func (el *EventLog) GetByEntity(entityID string) []Event {
	return el.filter(func(e Event) bool { return e.EntityID == entityID })
}

// GetByActor returns all events caused by a specific user.
func (el *EventLog) GetByActor(actorID string) []Event {
	return el.filter(func(e Event) bool { return e.ActorID == actorID })
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return append([]Event(nil), el.events...)
}

func (el *EventLog) filter(keep func(Event) bool) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []Event
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// GenerateEventID creates a unique, time-sortable event identifier.
func GenerateEventID() string {
	return ulid.Make().String()
}
