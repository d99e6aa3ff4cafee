package storage

import (
	"context"
	"fmt"
	"time"
)

// Reconstructor rebuilds state from the persisted change ledger.
// It is used for:
// 1. Activity recaps: what a user changed while others were offline
// 2. Auditing a profile roster against the live flag document
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new ledger reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RosterEntry is a profile as known from the ledger alone.
type RosterEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// RecapEvent is a simplified event for an activity recap.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	EntityID  string `json:"entity_id"`
	EventType string `json:"event_type"`
	TargetID  string `json:"target_id,omitempty"`
	Scope     string `json:"scope"` // "profile", "paragraph" or "preference"
}

// RebuildRoster replays the profile events of an entity and returns the
// surviving profiles in the order they were first added.
func (r *Reconstructor) RebuildRoster(ctx context.Context, entityID string) ([]RosterEntry, error) {
	history, err := r.eventRepo.GetByEntityID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for entity: %w", err)
	}

	var order []string
	roster := make(map[string]*RosterEntry)
	for _, e := range history {
		switch e.EventType {
		case "PROFILE_ADDED", "PROFILE_UPDATED":
			entry, ok := roster[e.TargetID]
			if !ok {
				entry = &RosterEntry{ID: e.TargetID}
				roster[e.TargetID] = entry
				order = append(order, e.TargetID)
			}
			if name, ok := e.Payload["name"].(string); ok {
				entry.Name = name
			}
			if enabled, ok := e.Payload["enabled"].(bool); ok {
				entry.Enabled = enabled
			}
		case "PROFILE_REMOVED":
			delete(roster, e.TargetID)
		}
	}

	out := make([]RosterEntry, 0, len(roster))
	for _, id := range order {
		if entry, ok := roster[id]; ok {
			out = append(out, *entry)
			// a re-added id appears once
			delete(roster, id)
		}
	}
	return out, nil
}

// GenerateRecap lists the changes a user made at or after since, oldest first.
func (r *Reconstructor) GenerateRecap(ctx context.Context, actorID string, since time.Time) ([]RecapEvent, error) {
	all, err := r.eventRepo.GetByActorID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for actor: %w", err)
	}

	recap := make([]RecapEvent, 0, len(all))
	for _, e := range all {
		if e.Timestamp.Before(since) {
			continue
		}
		recap = append(recap, RecapEvent{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			EntityID:  e.EntityID,
			EventType: e.EventType,
			TargetID:  e.TargetID,
			Scope:     scopeOf(e.EventType),
		})
	}
	return recap, nil
}

func scopeOf(eventType string) string {
	switch eventType {
	case "PROFILE_ADDED", "PROFILE_UPDATED", "PROFILE_REMOVED":
		return "profile"
	case "PREFERENCE_CHANGED":
		return "preference"
	default:
		return "paragraph"
	}
}
