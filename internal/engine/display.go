package engine

import (
	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/rules"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
)

// GMNotesFlag is the flag path holding an entity's GM notes.
const GMNotesFlag = "gm-notes.notes"

// DisplayContent is handed to a DisplayHook after assembly and before
// enrichment. The hook may rewrite Content.
type DisplayContent struct {
	User      *entity.User
	Subject   *entity.Entity
	Viewer    *entity.Entity
	ProfileID string
	Content   string
}

// DisplayHook observes and may rewrite assembled content.
type DisplayHook func(*DisplayContent)

// DisplayResult is the rendered profile shown for an entity.
type DisplayResult struct {
	EntityID    string   `json:"entity_id"`
	ProfileID   string   `json:"profile_id"`
	ProfileName string   `json:"profile_name"`
	Strategy    Strategy `json:"strategy"`
	CSSClass    string   `json:"css_class"`
	Content     string   `json:"content"`
}

// Display runs the full pipeline for u looking at subject through viewer.
// It reports false when there is nothing u may see.
func (en *Engine) Display(u *entity.User, subject, viewer *entity.Entity) (*DisplayResult, bool) {
	if subject == nil || !rules.CanSeeDisplay(u, en.settings) {
		return nil, false
	}

	selected, strategy := en.SelectProfileForDisplay(u, subject, viewer, nil)
	if selected == nil {
		return nil, false
	}

	content := en.AssembleProfileContent(u, subject, selected.ID, viewer)
	if u.IsGM() && en.settings.GMNotesEnabled() {
		if notes := subject.Flag(GMNotesFlag).String(); notes != "" {
			content += `<div class="tp-gm-notes">` + notes + `</div>`
		}
	}

	if en.displayHook != nil {
		dc := &DisplayContent{User: u, Subject: subject, Viewer: viewer, ProfileID: selected.ID, Content: content}
		en.displayHook(dc)
		content = dc.Content
	}
	if content == "" {
		return nil, false
	}

	content = en.enricher.Enrich(`<div class="tpt-container">`+content+`</div>`, u.IsOwner(subject))

	en.logger.Debug("profile displayed",
		logger.String("entity_id", subject.ID),
		logger.String("profile_id", selected.ID),
		logger.String("strategy", string(strategy)),
	)

	return &DisplayResult{
		EntityID:    subject.ID,
		ProfileID:   selected.ID,
		ProfileName: selected.Name,
		Strategy:    strategy,
		CSSClass:    "tokenprofile-tooltip tpt-actor-" + SafeCSS(subject.SeedID("")),
		Content:     content,
	}, true
}
