package entity

import "testing"

func TestHasPermission(t *testing.T) {
	e := &Entity{
		ID:               "E1",
		Ownership:        map[string]OwnershipLevel{"alice": OwnershipOwner, "bob": OwnershipLimited},
		DefaultOwnership: OwnershipNone,
	}
	alice := &User{ID: "alice", Role: RolePlayer}
	bob := &User{ID: "bob", Role: RolePlayer}
	carol := &User{ID: "carol", Role: RolePlayer}
	gm := &User{ID: "gm", Role: RoleGameMaster}

	if !alice.IsOwner(e) {
		t.Error("alice should own E1")
	}
	if bob.IsOwner(e) || !bob.HasPermission(e, OwnershipLimited) || bob.HasPermission(e, OwnershipObserver) {
		t.Error("bob should hold exactly LIMITED")
	}
	if carol.HasPermission(e, OwnershipLimited) {
		t.Error("carol should hold nothing")
	}
	if !gm.IsOwner(e) {
		t.Error("GM should own every entity")
	}

	e.DefaultOwnership = OwnershipObserver
	if !carol.HasPermission(e, OwnershipObserver) {
		t.Error("default ownership should apply to carol")
	}
	if !bob.HasPermission(e, OwnershipObserver) {
		t.Error("default ownership should lift bob above his explicit LIMITED")
	}

	var nobody *User
	if nobody.HasPermission(e, OwnershipLimited) || nobody.IsGM() {
		t.Error("nil user must hold nothing")
	}
}

func TestIsGM(t *testing.T) {
	if (&User{Role: RoleTrusted}).IsGM() {
		t.Error("trusted is not GM")
	}
	if !(&User{Role: RoleAssistant}).IsGM() {
		t.Error("assistant counts as GM")
	}
}

func TestVisibility(t *testing.T) {
	e := &Entity{ID: "E1"}
	if e.HasVisibility() || !e.IsVisible() {
		t.Error("entity without visibility concept is always visible")
	}
	hidden := false
	e.Visible = &hidden
	if !e.HasVisibility() || e.IsVisible() {
		t.Error("hidden entity should report not visible")
	}
}

func TestSeedID(t *testing.T) {
	if got := (&Entity{ID: "tok", ActorID: "act"}).SeedID("fb"); got != "tok" {
		t.Errorf("SeedID = %q, want tok", got)
	}
	if got := (&Entity{ActorID: "act"}).SeedID("fb"); got != "act" {
		t.Errorf("SeedID = %q, want act", got)
	}
	if got := (&Entity{}).SeedID("fb"); got != "fb" {
		t.Errorf("SeedID = %q, want fb", got)
	}
}

func TestFlag(t *testing.T) {
	e := &Entity{Flags: []byte(`{"tagger":{"tags":["guard","elf"]}}`)}
	if got := e.Flag("tagger.tags.1").String(); got != "elf" {
		t.Errorf("Flag = %q, want elf", got)
	}
	if (&Entity{}).Flag("tagger.tags").Exists() {
		t.Error("empty snapshot should not resolve flags")
	}
}

func TestParseDisposition(t *testing.T) {
	cases := map[string]Disposition{
		"friendly": DispositionFriendly,
		" SECRET ": DispositionSecret,
		"hostile":  DispositionHostile,
		"":         DispositionNeutral,
		"weird":    DispositionNeutral,
	}
	for in, want := range cases {
		if got := ParseDisposition(in); got != want {
			t.Errorf("ParseDisposition(%q) = %s, want %s", in, got, want)
		}
	}
}
