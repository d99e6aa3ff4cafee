package engine

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
)

// Strategy names the rule that decided a selection.
type Strategy string

const (
	StrategyNone      Strategy = "none"
	StrategyOverride  Strategy = "override"
	StrategySingle    Strategy = "single"
	StrategyPreferred Strategy = "preferred"
	StrategyRandom    Strategy = "random"
	StrategyFirst     Strategy = "first"
)

// Selection is handed to a SelectionHook before the default rules run.
// Setting Selected overrides the choice; it is used verbatim.
type Selection struct {
	User     *entity.User
	Subject  *entity.Entity
	Viewer   *entity.Entity
	Visible  []profile.Profile
	Selected *profile.Profile
}

// SelectionHook observes and may override a selection.
type SelectionHook func(*Selection)

// SelectProfileForDisplay picks the profile to display for subject as seen
// through viewer. It returns nil and StrategyNone when no profile is visible.
// hook, when non-nil, runs instead of the engine's configured hook.
func (en *Engine) SelectProfileForDisplay(u *entity.User, subject, viewer *entity.Entity, hook SelectionHook) (*profile.Profile, Strategy) {
	p, strategy := en.selectProfile(u, subject, viewer, hook)
	en.metrics.RecordSelection(string(strategy))
	return p, strategy
}

func (en *Engine) selectProfile(u *entity.User, subject, viewer *entity.Entity, hook SelectionHook) (*profile.Profile, Strategy) {
	visible := en.profiles.VisibleProfiles(subject)
	if len(visible) == 0 {
		return nil, StrategyNone
	}

	if hook == nil {
		hook = en.selectHook
	}
	if hook != nil {
		sel := &Selection{User: u, Subject: subject, Viewer: viewer, Visible: visible}
		hook(sel)
		if sel.Selected != nil {
			return sel.Selected, StrategyOverride
		}
	}

	if len(visible) == 1 {
		return &visible[0], StrategySingle
	}

	if preferred := strings.TrimSpace(en.profiles.PreferredProfile(subject)); preferred != "" {
		fold := cases.Fold()
		want := fold.String(preferred)
		for i := range visible {
			if fold.String(strings.TrimSpace(visible[i].Name)) == want {
				return &visible[i], StrategyPreferred
			}
		}
	}

	if en.profiles.Randomize(subject) {
		i := PickIndex(subject.SeedID(SeedFallback), len(visible))
		return &visible[i], StrategyRandom
	}

	return &visible[0], StrategyFirst
}
