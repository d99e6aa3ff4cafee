package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
	"github.com/MRamiBalles/tokenprofile/internal/platform/metrics"
	"github.com/MRamiBalles/tokenprofile/internal/store"
)

// UserHeader names the acting user of a REST request.
const UserHeader = "X-User-ID"

type ctxKey int

const (
	userKey ctxKey = iota
	entityKey
)

// API serves profile editing and display over REST.
type API struct {
	service *Service
	history *HistoryHandler
	hub     *Hub
	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewAPI creates the REST API. hub may be nil to disable the websocket route.
func NewAPI(service *Service, history *HistoryHandler, hub *Hub, m *metrics.Collector, log *logger.Logger) *API {
	return &API{service: service, history: history, hub: hub, metrics: m, logger: log}
}

// Routes builds the router.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Handle("/metrics", a.metrics.Handler())
	if a.hub != nil {
		r.Get("/ws", a.hub.ServeWS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(a.requireUser)
		r.Get("/entities", a.listEntities)
		r.Get("/history/stats", a.history.HandleStats)
		r.Get("/activity", a.history.HandleActivity)

		r.Route("/entities/{entityID}", func(r chi.Router) {
			r.Use(a.loadEntity)
			r.Get("/display", a.display)
			r.Get("/history", a.history.HandleHistory)
			r.Get("/roster", a.history.HandleRoster)
			r.Put("/preferences", a.setPreferences)

			r.Get("/profiles", a.listProfiles)
			r.Post("/profiles", a.addProfile)
			r.Post("/profiles/disable", a.disableProfiles)

			r.Route("/profiles/{profileID}", func(r chi.Router) {
				r.Get("/", a.getProfile)
				r.Patch("/", a.updateProfile)
				r.Delete("/", a.removeProfile)
				r.Post("/copy", a.copyProfile)
				r.Post("/rename", a.renameProfile)

				r.Get("/paragraphs", a.listParagraphs)
				r.Post("/paragraphs", a.addParagraph)
				r.Put("/paragraphs", a.overwriteParagraphs)

				r.Route("/paragraphs/{paragraphID}", func(r chi.Router) {
					r.Get("/", a.getParagraph)
					r.Patch("/", a.updateParagraph)
					r.Delete("/", a.removeParagraph)
					r.Post("/up", a.moveParagraphUp)
					r.Post("/down", a.moveParagraphDown)
				})
			})
		})
	})
	return r
}

// ---------------------------------------------------------
// Middleware
// ---------------------------------------------------------

func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.service.User(r.Context(), r.Header.Get(UserHeader))
		if err != nil {
			if !errors.Is(err, ErrUnknownUser) {
				a.logger.Error("Failed to resolve user", logger.Error(err))
			}
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func (a *API) loadEntity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, err := a.service.Entity(r.Context(), chi.URLParam(r, "entityID"))
		if err != nil {
			a.fail(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), entityKey, e)))
	})
}

func userFrom(r *http.Request) *entity.User {
	u, _ := r.Context().Value(userKey).(*entity.User)
	return u
}

func entityFrom(r *http.Request) *entity.Entity {
	e, _ := r.Context().Value(entityKey).(*entity.Entity)
	return e
}

// ---------------------------------------------------------
// Entities and display
// ---------------------------------------------------------

func (a *API) listEntities(w http.ResponseWriter, r *http.Request) {
	list, err := a.service.Entities(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) display(w http.ResponseWriter, r *http.Request) {
	res, ok, err := a.service.Display(r.Context(), userFrom(r), entityFrom(r).ID, r.URL.Query().Get("viewer"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type preferencesRequest struct {
	PreferredProfile *string `json:"preferred_profile"`
	Randomize        *bool   `json:"randomize"`
}

func (a *API) setPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decode(w, r, &req) {
		return
	}
	st, u, e := a.service.Store(), userFrom(r), entityFrom(r)
	if req.PreferredProfile != nil {
		if err := st.SetPreferredProfile(r.Context(), u, e, *req.PreferredProfile); err != nil {
			a.fail(w, err)
			return
		}
	}
	if req.Randomize != nil {
		if err := st.SetRandomize(r.Context(), u, e, *req.Randomize); err != nil {
			a.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preferred_profile": st.PreferredProfile(e),
		"randomize":         st.Randomize(e),
	})
}

// ---------------------------------------------------------
// Profiles
// ---------------------------------------------------------

func (a *API) listProfiles(w http.ResponseWriter, r *http.Request) {
	st, e := a.service.Store(), entityFrom(r)
	if r.URL.Query().Get("visible") == "true" {
		writeJSON(w, http.StatusOK, st.VisibleProfiles(e))
		return
	}
	writeJSON(w, http.StatusOK, st.Profiles(e))
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := a.service.Store().Profile(entityFrom(r), chi.URLParam(r, "profileID"))
	if !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) addProfile(w http.ResponseWriter, r *http.Request) {
	var upd profile.ProfileUpdate
	if !decode(w, r, &upd) {
		return
	}
	p, err := a.service.Store().AddProfile(r.Context(), userFrom(r), entityFrom(r), upd)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var upd profile.ProfileUpdate
	if !decode(w, r, &upd) {
		return
	}
	upd.ID = chi.URLParam(r, "profileID")
	p, err := a.service.Store().UpdateProfile(r.Context(), userFrom(r), entityFrom(r), upd)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) removeProfile(w http.ResponseWriter, r *http.Request) {
	st, u, e := a.service.Store(), userFrom(r), entityFrom(r)
	profileID := chi.URLParam(r, "profileID")
	if !st.CanEdit(u, e) {
		a.fail(w, store.ErrNotOwner)
		return
	}
	if st.NeedsConfirmRemoveProfile(e, profileID) && !confirmed(r) {
		a.fail(w, store.ErrConfirmRequired)
		return
	}
	if _, err := st.RemoveProfile(r.Context(), u, e, profileID); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) disableProfiles(w http.ResponseWriter, r *http.Request) {
	n, err := a.service.Store().DisableProfiles(r.Context(), userFrom(r), entityFrom(r))
	if err != nil && n == 0 {
		a.fail(w, err)
		return
	}
	if err != nil {
		a.logger.Warn("Some profiles could not be disabled", logger.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]int{"disabled": n})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (a *API) copyProfile(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := a.service.Store().CopyProfile(r.Context(), userFrom(r), entityFrom(r), chi.URLParam(r, "profileID"), req.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) renameProfile(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	changed, err := a.service.Store().RenameProfile(r.Context(), userFrom(r), entityFrom(r), chi.URLParam(r, "profileID"), req.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// ---------------------------------------------------------
// Paragraphs
// ---------------------------------------------------------

func (a *API) listParagraphs(w http.ResponseWriter, r *http.Request) {
	st, e := a.service.Store(), entityFrom(r)
	profileID := chi.URLParam(r, "profileID")
	if _, ok := st.Profile(e, profileID); !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, st.Paragraphs(e, profileID))
}

func (a *API) getParagraph(w http.ResponseWriter, r *http.Request) {
	p, ok := a.service.Store().Paragraph(entityFrom(r), chi.URLParam(r, "profileID"), chi.URLParam(r, "paragraphID"))
	if !ok {
		writeError(w, http.StatusNotFound, "paragraph not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) addParagraph(w http.ResponseWriter, r *http.Request) {
	var upd profile.ParagraphUpdate
	if !decode(w, r, &upd) {
		return
	}
	p, err := a.service.Store().AddParagraph(r.Context(), userFrom(r), entityFrom(r), chi.URLParam(r, "profileID"), upd)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateParagraph(w http.ResponseWriter, r *http.Request) {
	var upd profile.ParagraphUpdate
	if !decode(w, r, &upd) {
		return
	}
	upd.ID = chi.URLParam(r, "paragraphID")
	p, err := a.service.Store().UpdateParagraph(r.Context(), userFrom(r), entityFrom(r), chi.URLParam(r, "profileID"), upd)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) removeParagraph(w http.ResponseWriter, r *http.Request) {
	st, u, e := a.service.Store(), userFrom(r), entityFrom(r)
	profileID, paragraphID := chi.URLParam(r, "profileID"), chi.URLParam(r, "paragraphID")
	if !st.CanEdit(u, e) {
		a.fail(w, store.ErrNotOwner)
		return
	}
	if st.NeedsConfirmRemoveParagraph(e, profileID, paragraphID) && !confirmed(r) {
		a.fail(w, store.ErrConfirmRequired)
		return
	}
	if _, err := st.RemoveParagraph(r.Context(), u, e, profileID, paragraphID); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) overwriteParagraphs(w http.ResponseWriter, r *http.Request) {
	paragraphs := new(profile.Paragraphs)
	if !decode(w, r, paragraphs) {
		return
	}
	st, e := a.service.Store(), entityFrom(r)
	profileID := chi.URLParam(r, "profileID")
	if err := st.OverwriteParagraphs(r.Context(), userFrom(r), e, profileID, paragraphs); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Paragraphs(e, profileID))
}

func (a *API) moveParagraphUp(w http.ResponseWriter, r *http.Request) {
	a.moveParagraph(w, r, a.service.Store().MoveParagraphUp)
}

func (a *API) moveParagraphDown(w http.ResponseWriter, r *http.Request) {
	a.moveParagraph(w, r, a.service.Store().MoveParagraphDown)
}

func (a *API) moveParagraph(w http.ResponseWriter, r *http.Request,
	move func(ctx context.Context, u *entity.User, e *entity.Entity, profileID, paragraphID string) error) {
	e := entityFrom(r)
	profileID := chi.URLParam(r, "profileID")
	if err := move(r.Context(), userFrom(r), e, profileID, chi.URLParam(r, "paragraphID")); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Store().Paragraphs(e, profileID).Keys())
}

// ---------------------------------------------------------
// Helpers
// ---------------------------------------------------------

func confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}

// fail maps domain errors to HTTP statuses.
func (a *API) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrIDCollision), errors.Is(err, store.ErrConfirmRequired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("Request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeError sends an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON sends a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
