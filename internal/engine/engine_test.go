package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/domain/rules"
	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/platform/metrics"
	"github.com/MRamiBalles/tokenprofile/internal/store"
	"github.com/MRamiBalles/tokenprofile/internal/tags"
)

type testSettings struct {
	see   entity.Role
	notes bool
}

func (s testSettings) DefaultVisibility() profile.Visibility { return profile.FallbackDefaultVisibility }
func (s testSettings) PlayersEditRole() entity.Role          { return entity.RoleNone }
func (s testSettings) TooltipSeeRole() entity.Role           { return s.see }
func (s testSettings) GMNotesEnabled() bool                  { return s.notes }

var (
	player = &entity.User{ID: "u-player", Role: entity.RolePlayer}
	owner  = &entity.User{ID: "u-owner", Role: entity.RolePlayer}
	gm     = &entity.User{ID: "u-gm", Role: entity.RoleGameMaster}
)

func newTestEngine(settings testSettings, opts ...Option) *Engine {
	matcher := tags.NewMatcher(nil).RegisterTags(tags.NewFlagTagProvider())
	ev := rules.NewEvaluator(settings, matcher)
	reader := store.New(storage.NewMemoryFlagStore(), store.WithMetrics(metrics.NewCollector()))
	opts = append([]Option{WithMetrics(metrics.NewCollector())}, opts...)
	return NewEngine(reader, ev, settings, opts...)
}

func subjectWith(id, flags string) *entity.Entity {
	return &entity.Entity{
		ID:          id,
		Name:        "Guard",
		Disposition: entity.DispositionFriendly,
		Ownership:   map[string]entity.OwnershipLevel{"u-owner": entity.OwnershipOwner},
		Flags:       []byte(flags),
	}
}

func profileJSON(id, name string, enabled bool, text string) string {
	return fmt.Sprintf(`"%s":{"id":"%s","name":"%s","enabled":%t,"paragraphs":{"%s-a":{"id":"%s-a","visibility":"show","text":"%s"}}}`,
		id, id, name, enabled, id, id, text)
}

func profilesDoc(extra string, profiles ...string) string {
	doc := `{"tokenprofile":{"profiles":{` + strings.Join(profiles, ",") + `}`
	if extra != "" {
		doc += "," + extra
	}
	return doc + "}}"
}

func TestSelectPreferredByName(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	e := subjectWith("E1", profilesDoc(`"preferProfile":"  NIGHT "`,
		profileJSON("p1", "Day", true, "sunny"),
		profileJSON("p2", "Night", true, "dark"),
	))

	p, strategy := en.SelectProfileForDisplay(player, e, nil, nil)
	require.NotNil(t, p)
	assert.Equal(t, "p2", p.ID)
	assert.Equal(t, StrategyPreferred, strategy)
}

func TestSelectFirstWhenNoPreference(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	e := subjectWith("E1", profilesDoc(`"preferProfile":"Dusk"`,
		profileJSON("p1", "Day", true, "sunny"),
		profileJSON("p2", "Night", true, "dark"),
	))

	p, strategy := en.SelectProfileForDisplay(player, e, nil, nil)
	require.NotNil(t, p)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, StrategyFirst, strategy)
}

func TestSelectSingleIgnoresPreferences(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	e := subjectWith("E1", profilesDoc(`"preferProfile":"Night","randomize":true`,
		profileJSON("p1", "Day", true, "sunny"),
		profileJSON("p2", "Night", false, "dark"),
	))

	p, strategy := en.SelectProfileForDisplay(player, e, nil, nil)
	require.NotNil(t, p)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, StrategySingle, strategy)
}

func TestSelectNoneWhenNothingEnabled(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	e := subjectWith("E1", profilesDoc("", profileJSON("p1", "Day", false, "sunny")))

	p, strategy := en.SelectProfileForDisplay(player, e, nil, nil)
	assert.Nil(t, p)
	assert.Equal(t, StrategyNone, strategy)

	p, _ = en.SelectProfileForDisplay(player, subjectWith("E2", ""), nil, nil)
	assert.Nil(t, p)
}

func TestSelectRandomIsStablePerEntity(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	doc := profilesDoc(`"randomize":true`,
		profileJSON("p1", "A", true, "a"),
		profileJSON("p2", "B", true, "b"),
		profileJSON("p3", "C", true, "c"),
	)

	picks := make(map[string]bool)
	for i := 0; i < 32; i++ {
		e := subjectWith(fmt.Sprintf("token-%d", i), doc)
		first, strategy := en.SelectProfileForDisplay(player, e, nil, nil)
		require.NotNil(t, first)
		assert.Equal(t, StrategyRandom, strategy)
		for j := 0; j < 5; j++ {
			again, _ := en.SelectProfileForDisplay(player, e, nil, nil)
			assert.Equal(t, first.ID, again.ID)
		}
		picks[first.ID] = true
	}
	assert.Greater(t, len(picks), 1, "different entities should not all pick the same profile")
}

func TestSelectRandomSeedFallsBackToActor(t *testing.T) {
	assert.Equal(t, PickIndex("actor-7", 5), PickIndex((&entity.Entity{ActorID: "actor-7"}).SeedID(SeedFallback), 5))
	assert.Equal(t, PickIndex(SeedFallback, 5), PickIndex((&entity.Entity{}).SeedID(SeedFallback), 5))
}

func TestPickIndexBounds(t *testing.T) {
	assert.Equal(t, -1, PickIndex("x", 0))
	for i := 0; i < 100; i++ {
		got := PickIndex(fmt.Sprintf("seed-%d", i), 4)
		assert.GreaterOrEqual(t, got, 0)
		assert.Less(t, got, 4)
	}
	assert.Equal(t, NewSeededRand("abc").Uint64(), NewSeededRand("abc").Uint64())
}

func TestSelectionHookOverrides(t *testing.T) {
	outsider := &profile.Profile{ID: "ext", Name: "External"}
	var seen *Selection
	hook := func(s *Selection) {
		seen = s
		s.Selected = outsider
	}
	en := newTestEngine(testSettings{see: entity.RolePlayer}, WithSelectionHook(hook))
	e := subjectWith("E1", profilesDoc("", profileJSON("p1", "Day", true, "sunny")))

	p, strategy := en.SelectProfileForDisplay(player, e, nil, nil)
	assert.Same(t, outsider, p)
	assert.Equal(t, StrategyOverride, strategy)
	require.NotNil(t, seen)
	assert.Len(t, seen.Visible, 1)
	assert.Same(t, e, seen.Subject)

	// a per-call hook that declines falls through to the default rules
	p, strategy = en.SelectProfileForDisplay(player, e, nil, func(*Selection) {})
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, StrategySingle, strategy)
}

func TestAssembleSkipsHiddenParagraphs(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	e := subjectWith("E1", `{"tokenprofile":{"profiles":{"p":{"id":"p","name":"Day","enabled":true,"paragraphs":{
		"p1":{"id":"p1","visibility":"show","text":"one"},
		"p2":{"id":"p2","visibility":"hidden","text":"two"},
		"p3":{"id":"p3","visibility":"show","text":"three"}}}}}}`)

	got := en.AssembleProfileContent(player, e, "p", nil)
	assert.Equal(t, `<div class="tpt-p" id="p1">one</div><div class="tpt-p" id="p3">three</div>`, got)
}

func TestAssembleInvisibleProfile(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	e := subjectWith("E1", profilesDoc("", profileJSON("p1", "Day", false, "sunny")))

	assert.Empty(t, en.AssembleProfileContent(gm, e, "p1", nil))
	assert.Empty(t, en.AssembleProfileContent(gm, e, "missing", nil))
	assert.Empty(t, en.AssembleProfileContent(gm, e, "", nil))
}

func TestParagraphContent(t *testing.T) {
	en := newTestEngine(testSettings{see: entity.RolePlayer})
	e := subjectWith("E1", profilesDoc("", profileJSON("p1", "Day", true, "sunny")))

	assert.Equal(t, `<div class="tpt-p" id="p1-a">sunny</div>`, en.ParagraphContent(player, e, "p1", "p1-a", nil))
	assert.Empty(t, en.ParagraphContent(player, e, "p1", "nope", nil))
}

func TestParagraphClasses(t *testing.T) {
	p := &profile.Paragraph{ID: "Intro", TagsSelf: "guard,elf", TagsViewer: ",Night Vision,"}
	assert.Equal(t, `class="tpt-p tpt-ts-guard tpt-ts-elf tpt-tv-nightvision" id="Intro"`, ParagraphClasses(p))
}

func TestSafeCSS(t *testing.T) {
	cases := map[string]string{
		"Big Guard.1": "bigguard1",
		"a(b)!~*'_-":  "a(b)!~*'_-",
		"élan":        "lan",
		"x<y>&z":      "xyz",
		"":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeCSS(in), "SafeCSS(%q)", in)
	}
}

func TestStripSecrets(t *testing.T) {
	in := `<p>public</p><section class="secret">hidden <b>bits</b></section><div><section class="note secret">deep</section>kept</div>`
	out := StripSecrets(in)
	assert.Contains(t, out, "public")
	assert.Contains(t, out, "kept")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "deep")

	plain := `<section class="notes">visible</section>`
	assert.Equal(t, plain, StripSecrets(plain))
}

func TestEnrichSanitises(t *testing.T) {
	out := NewEnricher().Enrich(`<div class="tpt-p">hi<script>alert(1)</script></div>`, true)
	assert.Contains(t, out, `class="tpt-p"`)
	assert.Contains(t, out, "hi")
	assert.NotContains(t, out, "script")
}

func TestDisplay(t *testing.T) {
	flags := `{"tokenprofile":{"profiles":{"p1":{"id":"p1","name":"Day","enabled":true,"paragraphs":{
		"a":{"id":"a","visibility":"show","text":"Hello <section class=\"secret\">owner only</section>"}}}}},
		"gm-notes":{"notes":"watch him"}}`

	t.Run("player", func(t *testing.T) {
		en := newTestEngine(testSettings{see: entity.RolePlayer, notes: true})
		res, ok := en.Display(player, subjectWith("E1", flags), nil)
		require.True(t, ok)
		assert.Equal(t, "p1", res.ProfileID)
		assert.Equal(t, "Day", res.ProfileName)
		assert.Equal(t, "tokenprofile-tooltip tpt-actor-e1", res.CSSClass)
		assert.Contains(t, res.Content, `class="tpt-container"`)
		assert.Contains(t, res.Content, "Hello")
		assert.NotContains(t, res.Content, "owner only")
		assert.NotContains(t, res.Content, "watch him")
	})

	t.Run("owner sees secrets", func(t *testing.T) {
		en := newTestEngine(testSettings{see: entity.RolePlayer})
		res, ok := en.Display(owner, subjectWith("E1", flags), nil)
		require.True(t, ok)
		assert.Contains(t, res.Content, "owner only")
	})

	t.Run("gm notes", func(t *testing.T) {
		en := newTestEngine(testSettings{see: entity.RolePlayer, notes: true})
		res, ok := en.Display(gm, subjectWith("E1", flags), nil)
		require.True(t, ok)
		assert.Contains(t, res.Content, `class="tp-gm-notes"`)
		assert.Contains(t, res.Content, "watch him")

		en = newTestEngine(testSettings{see: entity.RolePlayer})
		res, ok = en.Display(gm, subjectWith("E1", flags), nil)
		require.True(t, ok)
		assert.NotContains(t, res.Content, "watch him")
	})

	t.Run("role gate", func(t *testing.T) {
		en := newTestEngine(testSettings{see: entity.RoleTrusted})
		_, ok := en.Display(player, subjectWith("E1", flags), nil)
		assert.False(t, ok)
		_, ok = en.Display(gm, subjectWith("E1", flags), nil)
		assert.True(t, ok)
	})

	t.Run("nothing visible", func(t *testing.T) {
		en := newTestEngine(testSettings{see: entity.RolePlayer})
		hiddenOnly := `{"tokenprofile":{"profiles":{"p1":{"id":"p1","name":"Day","enabled":true,"paragraphs":{
			"a":{"id":"a","visibility":"gm","text":"Hello"}}}}}}`
		_, ok := en.Display(player, subjectWith("E1", hiddenOnly), nil)
		assert.False(t, ok)
		_, ok = en.Display(player, subjectWith("E1", `{}`), nil)
		assert.False(t, ok)
	})

	t.Run("display hook", func(t *testing.T) {
		en := newTestEngine(testSettings{see: entity.RolePlayer}, WithDisplayHook(func(dc *DisplayContent) {
			dc.Content = strings.ToUpper(dc.Content)
		}))
		res, ok := en.Display(player, subjectWith("E1", flags), nil)
		require.True(t, ok)
		assert.Contains(t, res.Content, "HELLO")

		en = newTestEngine(testSettings{see: entity.RolePlayer}, WithDisplayHook(func(dc *DisplayContent) {
			dc.Content = ""
		}))
		_, ok = en.Display(player, subjectWith("E1", flags), nil)
		assert.False(t, ok)
	})
}
