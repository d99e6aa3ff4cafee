package storage

import (
	"context"

	"github.com/MRamiBalles/tokenprofile/internal/events"
)

// EventPersister adapts an EventRepository to events.EventPersister.
type EventPersister struct {
	repo EventRepository
}

var _ events.EventPersister = (*EventPersister)(nil)

func NewEventPersister(repo EventRepository) *EventPersister {
	return &EventPersister{repo: repo}
}

func (p *EventPersister) Append(ctx context.Context, e events.Event) error {
	return p.repo.Append(ctx, ToChangeEvent(e))
}

// ToChangeEvent converts a log event to its persisted form.
func ToChangeEvent(e events.Event) ChangeEvent {
	return ChangeEvent{
		ID:        e.ID,
		EntityID:  e.EntityID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Payload:   e.Payload,
	}
}

// FromChangeEvent converts a persisted event back to a log event.
func FromChangeEvent(c ChangeEvent) events.Event {
	return events.Event{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		Type:      events.EventType(c.EventType),
		EntityID:  c.EntityID,
		ActorID:   c.ActorID,
		TargetID:  c.TargetID,
		Payload:   c.Payload,
	}
}
