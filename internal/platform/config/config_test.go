package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
)

const worldYAML = `
settings:
  default_visibility: friendly
  players_edit: player
  gm_notes_in_content: true
  modules:
    perceptive:
      enabled: false
  vision_channels:
    ch1: Ethereal
users:
  - id: gm
    name: Game Master
    role: GM
  - id: alice
    name: Alice
entities:
  - id: E1
    name: Guard
    disposition: hostile
    visible: false
    ownership:
      alice: owner
    default_ownership: limited
    flags:
      tokenprofile:
        randomize: true
        profiles:
          zz:
            id: zz
            name: Night
          aa:
            id: aa
            name: Day
      tagger:
        tags: [guard, elf]
  - id: E2
    name: Crate
`

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"TOKENPROFILE_ADDR", "TOKENPROFILE_CACHE_SIZE", "TOKENPROFILE_LOG_DEV"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 512, cfg.CacheSize)
	assert.False(t, cfg.LogDev)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TOKENPROFILE_ADDR", ":9999")
	t.Setenv("TOKENPROFILE_DEBUG_VISIBILITY", "true")
	t.Setenv("TOKENPROFILE_CACHE_SIZE", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.True(t, cfg.DebugVisibility)
	assert.Equal(t, 8, cfg.CacheSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TOKENPROFILE_CACHE_SIZE", "lots")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TOKENPROFILE_CACHE_SIZE", "-1")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseWorldSettings(t *testing.T) {
	w, err := ParseWorld([]byte(worldYAML))
	require.NoError(t, err)

	s := w.Settings
	assert.Equal(t, profile.VisibilityShowIfFriendly, s.DefaultVisibility())
	assert.Equal(t, entity.RolePlayer, s.PlayersEditRole())
	assert.Equal(t, entity.RolePlayer, s.TooltipSeeRole())
	assert.True(t, s.GMNotesEnabled())
	assert.False(t, s.ModuleEnabled("perceptive"))
	assert.True(t, s.ModuleEnabled("tagger"))
	assert.Equal(t, "Ethereal", s.VisionChannels["ch1"])
}

func TestSettingsDefaults(t *testing.T) {
	var s Settings
	assert.Equal(t, profile.VisibilityShowIfNotSecret, s.DefaultVisibility())
	assert.Equal(t, entity.RoleAssistant, s.PlayersEditRole())
	assert.Equal(t, entity.RolePlayer, s.TooltipSeeRole())
	assert.True(t, s.ModuleEnabled("perceptive"))
	assert.False(t, s.GMNotesEnabled())

	s.DefaultVisibilityMode = "sometimes"
	assert.Equal(t, profile.VisibilityShowIfNotSecret, s.DefaultVisibility())
}

func TestParseWorldEntities(t *testing.T) {
	w, err := ParseWorld([]byte(worldYAML))
	require.NoError(t, err)
	require.Len(t, w.Users, 2)
	require.Len(t, w.Entities, 2)

	assert.Equal(t, entity.RoleGameMaster, w.Users[0].User().Role)
	assert.Equal(t, entity.RolePlayer, w.Users[1].User().Role)

	e := w.Entities[0].Entity()
	assert.Equal(t, entity.DispositionHostile, e.Disposition)
	require.NotNil(t, e.Visible)
	assert.False(t, *e.Visible)
	assert.Equal(t, entity.OwnershipOwner, e.Ownership["alice"])
	assert.Equal(t, entity.OwnershipLimited, e.DefaultOwnership)

	doc, err := w.Entities[0].FlagDocument()
	require.NoError(t, err)
	assert.Equal(t,
		`{"tokenprofile":{"randomize":true,"profiles":{"zz":{"id":"zz","name":"Night"},"aa":{"id":"aa","name":"Day"}}},"tagger":{"tags":["guard","elf"]}}`,
		string(doc))

	empty, err := w.Entities[1].FlagDocument()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
	assert.Equal(t, entity.DispositionNeutral, w.Entities[1].Entity().Disposition)
}

func TestParseWorldRequiresIDs(t *testing.T) {
	_, err := ParseWorld([]byte("users:\n  - name: nobody\n"))
	assert.Error(t, err)
	_, err = ParseWorld([]byte("entities:\n  - name: nothing\n"))
	assert.Error(t, err)
}

func TestLoadWorldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(worldYAML), 0o644))

	w, err := LoadWorld(path)
	require.NoError(t, err)
	assert.Len(t, w.Entities, 2)

	_, err = LoadWorld(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
