package network

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MRamiBalles/tokenprofile/internal/events"
	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
)

// HistoryHandler replays the change history of entities.
type HistoryHandler struct {
	eventLog *events.EventLog
	repo     storage.EventRepository
	recon    *storage.Reconstructor
	logger   *logger.Logger
}

// NewHistoryHandler creates a history handler. When repo is non-nil the
// persisted ledger is served, otherwise the in-memory log.
func NewHistoryHandler(el *events.EventLog, repo storage.EventRepository, log *logger.Logger) *HistoryHandler {
	hh := &HistoryHandler{eventLog: el, repo: repo, logger: log}
	if repo != nil {
		hh.recon = storage.NewReconstructor(repo)
	}
	return hh
}

// HistoryEvent is one change as served to clients.
type HistoryEvent struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	ActorID   string         `json:"actor_id"`
	TargetID  string         `json:"target_id,omitempty"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details,omitempty"`
}

// HistoryResponse is the API response for an entity's history.
type HistoryResponse struct {
	EntityID    string         `json:"entity_id"`
	TotalEvents int            `json:"total_events"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []HistoryEvent `json:"events"`
}

// HandleHistory returns the history of one entity, oldest first.
// GET /api/entities/{entityID}/history?type=PROFILE_ADDED&actor=u1
func (hh *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	eventType := r.URL.Query().Get("type")
	actorID := r.URL.Query().Get("actor")

	all, err := hh.entityEvents(r, entityID)
	if err != nil {
		hh.logger.Error("Failed to load history", logger.String("entity_id", entityID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	filterDesc := ""
	if eventType != "" {
		filterDesc = "type=" + eventType
	}
	if actorID != "" {
		if filterDesc != "" {
			filterDesc += " "
		}
		filterDesc += "actor=" + actorID
	}

	out := make([]HistoryEvent, 0, len(all))
	for _, e := range all {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if actorID != "" && e.ActorID != actorID {
			continue
		}
		out = append(out, toHistoryEvent(e))
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		EntityID:    entityID,
		TotalEvents: len(out),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Events:      out,
	})
}

// HandleStats counts changes per event type across all entities.
// GET /api/history/stats
func (hh *HistoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]int{"total_events": 0}
	for _, e := range hh.eventLog.Replay() {
		stats["total_events"]++
		stats[string(e.Type)]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"stats":        stats,
	})
}

// HandleRoster rebuilds an entity's profile roster from the ledger.
// GET /api/entities/{entityID}/roster
func (hh *HistoryHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	if hh.recon == nil {
		writeError(w, http.StatusNotImplemented, "no persisted ledger")
		return
	}
	entityID := chi.URLParam(r, "entityID")
	roster, err := hh.recon.RebuildRoster(r.Context(), entityID)
	if err != nil {
		hh.logger.Error("Failed to rebuild roster", logger.String("entity_id", entityID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to rebuild roster")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"profiles":  roster,
	})
}

// HandleActivity recaps the changes made by the requesting user.
// GET /api/activity?since=2026-01-02T15:04:05Z
func (hh *HistoryHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if hh.recon == nil {
		writeError(w, http.StatusNotImplemented, "no persisted ledger")
		return
	}
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}
	u := userFrom(r)
	recap, err := hh.recon.GenerateRecap(r.Context(), u.ID, since)
	if err != nil {
		hh.logger.Error("Failed to build recap", logger.String("user_id", u.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build recap")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": u.ID,
		"events":  recap,
	})
}

func (hh *HistoryHandler) entityEvents(r *http.Request, entityID string) ([]events.Event, error) {
	if hh.repo == nil {
		return hh.eventLog.GetByEntity(entityID), nil
	}
	stored, err := hh.repo.GetByEntityID(r.Context(), entityID)
	if err != nil {
		return nil, err
	}
	out := make([]events.Event, len(stored))
	for i, ce := range stored {
		out[i] = storage.FromChangeEvent(ce)
	}
	return out, nil
}

func toHistoryEvent(e events.Event) HistoryEvent {
	return HistoryEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Type:      string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Summary:   summarizeEvent(e),
		Details:   e.Payload,
	}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e events.Event) string {
	switch e.Type {
	case events.EventTypeProfileAdded:
		return "A profile was added."
	case events.EventTypeProfileUpdated:
		return "A profile was updated."
	case events.EventTypeProfileRemoved:
		return "A profile was removed."
	case events.EventTypeParagraphAdded:
		return "A paragraph was added."
	case events.EventTypeParagraphUpdated:
		return "A paragraph was updated."
	case events.EventTypeParagraphRemoved:
		return "A paragraph was removed."
	case events.EventTypeParagraphsReordered:
		return "Paragraphs were reordered."
	case events.EventTypePreferenceChanged:
		return "Display preferences changed."
	default:
		return "Something changed."
	}
}
