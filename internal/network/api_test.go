package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/domain/rules"
	"github.com/MRamiBalles/tokenprofile/internal/engine"
	"github.com/MRamiBalles/tokenprofile/internal/events"
	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/platform/config"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
	"github.com/MRamiBalles/tokenprofile/internal/platform/metrics"
	"github.com/MRamiBalles/tokenprofile/internal/store"
	"github.com/MRamiBalles/tokenprofile/internal/tags"
)

type memDirectory struct {
	users    map[string]entity.User
	entities map[string]entity.Entity
}

func (d *memDirectory) GetUser(_ context.Context, id string) (*entity.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (d *memDirectory) GetEntity(_ context.Context, id string) (*entity.Entity, error) {
	e, ok := d.entities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (d *memDirectory) ListEntities(_ context.Context) ([]entity.Entity, error) {
	out := make([]entity.Entity, 0, len(d.entities))
	for _, e := range d.entities {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b entity.Entity) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

var (
	ownerUser  = entity.User{ID: "u-owner", Name: "Owner", Role: entity.RolePlayer}
	playerUser = entity.User{ID: "u-player", Name: "Player", Role: entity.RolePlayer}
	gmUser     = entity.User{ID: "u-gm", Name: "GM", Role: entity.RoleGameMaster}
)

type fixture struct {
	service *Service
	hub     *Hub
	log     *events.EventLog
	router  http.Handler
}

// newFixture builds the full stack over in-memory storage. The entity E1,
// owned by u-owner, carries the profile "day" with the paragraph "intro".
func newFixture(t *testing.T, cfg HubConfig) *fixture {
	t.Helper()
	dir := &memDirectory{
		users: map[string]entity.User{ownerUser.ID: ownerUser, playerUser.ID: playerUser, gmUser.ID: gmUser},
		entities: map[string]entity.Entity{
			"E1": {
				ID:          "E1",
				Name:        "Guard",
				Disposition: entity.DispositionFriendly,
				Ownership:   map[string]entity.OwnershipLevel{ownerUser.ID: entity.OwnershipOwner},
			},
			"E2": {ID: "E2", Name: "Thief", Disposition: entity.DispositionHostile},
		},
	}
	settings := config.Settings{PlayersEdit: "PLAYER"}
	log := events.NewEventLog(nil)
	m := metrics.NewCollector()
	nop := logger.NewNop()

	st := store.New(storage.NewMemoryFlagStore(),
		store.WithEventLog(log), store.WithMetrics(m), store.WithRoleGate(settings))
	matcher := tags.NewMatcher(settings).RegisterTags(tags.NewFlagTagProvider())
	en := engine.NewEngine(st, rules.NewEvaluator(settings, matcher), settings, engine.WithMetrics(m))
	svc := NewService(dir, st, en)

	ctx := context.Background()
	e, err := svc.Entity(ctx, "E1")
	require.NoError(t, err)
	name, text, show := "Day", "Hello there", profile.VisibilityShow
	_, err = st.AddProfile(ctx, &ownerUser, e, profile.ProfileUpdate{ID: "day", Name: &name})
	require.NoError(t, err)
	_, err = st.AddParagraph(ctx, &ownerUser, e, "day", profile.ParagraphUpdate{ID: "intro", Visibility: &show, Text: &text})
	require.NoError(t, err)

	hub := NewHub(svc, cfg, nop, m)
	hub.Follow(log)
	api := NewAPI(svc, NewHistoryHandler(log, nil, nop), hub, m, nop)
	return &fixture{service: svc, hub: hub, log: log, router: api.Routes()}
}

func (f *fixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPIRequiresKnownUser(t *testing.T) {
	f := newFixture(t, HubConfig{})
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/entities", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/entities", "nobody", nil).Code)

	rec := f.do(t, http.MethodGet, "/api/entities", ownerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]entity.Entity](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "E1", list[0].ID)
}

func TestAPIUnknownEntity(t *testing.T) {
	f := newFixture(t, HubConfig{})
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/entities/nope/profiles", ownerUser.ID, nil).Code)
}

func TestAPIProfileCRUD(t *testing.T) {
	f := newFixture(t, HubConfig{})

	rec := f.do(t, http.MethodPost, "/api/entities/E1/profiles", ownerUser.ID, map[string]any{"name": "Night"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[profile.Profile](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Night", created.Name)
	assert.True(t, created.Enabled)

	rec = f.do(t, http.MethodPost, "/api/entities/E1/profiles", ownerUser.ID, map[string]any{"id": "day"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/entities/E1/profiles", playerUser.ID, map[string]any{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/entities/E1/profiles/"+created.ID, ownerUser.ID, map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[profile.Profile](t, rec).Enabled)

	rec = f.do(t, http.MethodGet, "/api/entities/E1/profiles", playerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Index(rec.Body.String(), `"day"`) < strings.Index(rec.Body.String(), `"`+created.ID+`"`),
		"profiles keep insertion order")

	rec = f.do(t, http.MethodGet, "/api/entities/E1/profiles?visible=true", playerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	visible := decodeBody[[]profile.Profile](t, rec)
	require.Len(t, visible, 1)
	assert.Equal(t, "day", visible[0].ID)

	rec = f.do(t, http.MethodPost, "/api/entities/E1/profiles/day/rename", ownerUser.ID, map[string]any{"name": "Morning"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"changed": true}, decodeBody[map[string]bool](t, rec))

	rec = f.do(t, http.MethodPost, "/api/entities/E1/profiles/day/copy", ownerUser.ID, map[string]any{"name": "Dusk"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cp := decodeBody[profile.Profile](t, rec)
	assert.Equal(t, "Dusk", cp.Name)
	assert.Equal(t, []string{"intro"}, cp.Paragraphs.Keys())

	rec = f.do(t, http.MethodPost, "/api/entities/E1/profiles/disable", ownerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"disabled": 2}, decodeBody[map[string]int](t, rec))

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/entities/E1/profiles/missing", ownerUser.ID, nil).Code)
}

func TestAPIInvalidBody(t *testing.T) {
	f := newFixture(t, HubConfig{})
	req := httptest.NewRequest(http.MethodPost, "/api/entities/E1/profiles", strings.NewReader("{"))
	req.Header.Set(UserHeader, ownerUser.ID)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/entities/E1/profiles/day/paragraphs", ownerUser.ID, map[string]any{"visibility": "sometimes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIDestructiveDeleteNeedsConfirm(t *testing.T) {
	f := newFixture(t, HubConfig{})

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/api/entities/E1/profiles/day", playerUser.ID, nil).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodDelete, "/api/entities/E1/profiles/day/paragraphs/intro", ownerUser.ID, nil).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodDelete, "/api/entities/E1/profiles/day", ownerUser.ID, nil).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/entities/E1/profiles/day?confirm=true", ownerUser.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/entities/E1/profiles/day", ownerUser.ID, nil).Code)

	// empty profiles go without confirmation
	rec := f.do(t, http.MethodPost, "/api/entities/E1/profiles", ownerUser.ID, map[string]any{"id": "empty"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/entities/E1/profiles/empty", ownerUser.ID, nil).Code)
}

func TestAPIParagraphs(t *testing.T) {
	f := newFixture(t, HubConfig{})
	base := "/api/entities/E1/profiles/day/paragraphs"

	for _, id := range []string{"a", "b"} {
		rec := f.do(t, http.MethodPost, base, ownerUser.ID, map[string]any{"id": id, "text": "text " + id, "tags_self": "Guard, Elf!"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodGet, base+"/a", playerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "guard,elf", decodeBody[profile.Paragraph](t, rec).TagsSelf)

	rec = f.do(t, http.MethodPost, base+"/b/up", ownerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"intro", "b", "a"}, decodeBody[[]string](t, rec))

	rec = f.do(t, http.MethodPost, base+"/intro/down", ownerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"b", "intro", "a"}, decodeBody[[]string](t, rec))

	rec = f.do(t, http.MethodPatch, base+"/a", ownerUser.ID, map[string]any{"text": "changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "changed", decodeBody[profile.Paragraph](t, rec).Text)

	rec = f.do(t, http.MethodPut, base, ownerUser.ID, json.RawMessage(`{"a":{"id":"a","text":"only"}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, base+"/intro", ownerUser.ID, nil).Code)

	rec = f.do(t, http.MethodGet, base, ownerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"a":{"id":"a","visibility":"default","tags_self":"","tags_viewer":"","text":"only"}}`, rec.Body.String())
}

func TestAPIDisplay(t *testing.T) {
	f := newFixture(t, HubConfig{})

	rec := f.do(t, http.MethodGet, "/api/entities/E1/display", playerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[engine.DisplayResult](t, rec)
	assert.Equal(t, "day", res.ProfileID)
	assert.Equal(t, "tokenprofile-tooltip tpt-actor-e1", res.CSSClass)
	assert.Contains(t, res.Content, "Hello there")

	rec = f.do(t, http.MethodGet, "/api/entities/E1/display?viewer=E2", playerUser.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/entities/E1/display?viewer=ghost", playerUser.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/entities/E2/display", playerUser.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIPreferences(t *testing.T) {
	f := newFixture(t, HubConfig{})

	rec := f.do(t, http.MethodPut, "/api/entities/E1/preferences", ownerUser.ID, map[string]any{"preferred_profile": "Day", "randomize": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"preferred_profile": "Day", "randomize": true}, decodeBody[map[string]any](t, rec))

	rec = f.do(t, http.MethodPut, "/api/entities/E1/preferences", playerUser.ID, map[string]any{"randomize": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPIHistory(t *testing.T) {
	f := newFixture(t, HubConfig{})

	rec := f.do(t, http.MethodGet, "/api/entities/E1/history", playerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decodeBody[HistoryResponse](t, rec)
	assert.Equal(t, "E1", h.EntityID)
	require.Equal(t, 2, h.TotalEvents)
	assert.Equal(t, string(events.EventTypeProfileAdded), h.Events[0].Type)
	assert.Equal(t, string(events.EventTypeParagraphAdded), h.Events[1].Type)
	assert.Equal(t, "A paragraph was added.", h.Events[1].Summary)

	rec = f.do(t, http.MethodGet, "/api/entities/E1/history?type=PROFILE_ADDED", playerUser.ID, nil)
	h = decodeBody[HistoryResponse](t, rec)
	assert.Equal(t, 1, h.TotalEvents)
	assert.Equal(t, "type=PROFILE_ADDED", h.FilteredBy)

	rec = f.do(t, http.MethodGet, "/api/history/stats", playerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_events":2`)

	// roster and activity need the persisted ledger
	rec = f.do(t, http.MethodGet, "/api/entities/E1/roster", playerUser.ID, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/activity", playerUser.ID, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAPILedgerViews(t *testing.T) {
	f := newFixture(t, HubConfig{})
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := storage.NewSQLiteEventRepository(db)
	for _, e := range f.log.Replay() {
		require.NoError(t, repo.Append(context.Background(), storage.ToChangeEvent(e)))
	}
	nop := logger.NewNop()
	f.router = NewAPI(f.service, NewHistoryHandler(f.log, repo, nop), nil, metrics.NewCollector(), nop).Routes()

	rec := f.do(t, http.MethodGet, "/api/entities/E1/roster", playerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entity_id":"E1","profiles":[{"id":"day","name":"Day","enabled":true}]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/activity", ownerUser.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	act := decodeBody[struct {
		UserID string               `json:"user_id"`
		Events []storage.RecapEvent `json:"events"`
	}](t, rec)
	assert.Equal(t, ownerUser.ID, act.UserID)
	require.Len(t, act.Events, 2)
	assert.Equal(t, "profile", act.Events[0].Scope)
	assert.Equal(t, "paragraph", act.Events[1].Scope)

	rec = f.do(t, http.MethodGet, "/api/activity?since=yesterday", ownerUser.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIMetrics(t *testing.T) {
	f := newFixture(t, HubConfig{})
	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tokenprofile_store_operations_total")
}
