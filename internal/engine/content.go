package engine

import (
	"strings"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
)

// AssembleProfileContent concatenates the wrapped text of every paragraph of
// profileID that u may see on subject through viewer, in stored order.
// It returns "" when the profile is not visible.
func (en *Engine) AssembleProfileContent(u *entity.User, subject *entity.Entity, profileID string, viewer *entity.Entity) string {
	if profileID == "" || !en.profiles.CanSeeProfile(subject, profileID) {
		return ""
	}
	p, ok := en.profiles.Profile(subject, profileID)
	if !ok || p.ID == "" {
		return ""
	}

	var b strings.Builder
	for _, para := range p.ParagraphList() {
		b.WriteString(en.paragraphContent(u, subject, &para, viewer))
	}
	return b.String()
}

// ParagraphContent returns one wrapped paragraph, or "" when it is hidden.
func (en *Engine) ParagraphContent(u *entity.User, subject *entity.Entity, profileID, paragraphID string, viewer *entity.Entity) string {
	p, ok := en.profiles.Paragraph(subject, profileID, paragraphID)
	if !ok {
		return ""
	}
	return en.paragraphContent(u, subject, p, viewer)
}

func (en *Engine) paragraphContent(u *entity.User, subject *entity.Entity, p *profile.Paragraph, viewer *entity.Entity) string {
	if p == nil || p.ID == "" {
		return ""
	}
	visible := en.evaluator.CanSeeParagraph(u, subject, p, viewer)
	en.metrics.RecordVisibility(visible)
	if !visible {
		return ""
	}
	return `<div ` + ParagraphClasses(p) + `>` + p.Text + `</div>`
}

// ParagraphClasses renders the class and id attributes of a paragraph
// wrapper: "tpt-p" plus one "tpt-ts-<tag>" per self tag and one
// "tpt-tv-<tag>" per viewer tag.
func ParagraphClasses(p *profile.Paragraph) string {
	var b strings.Builder
	b.WriteString(`class="tpt-p`)
	for _, t := range strings.Split(p.TagsSelf, ",") {
		if t = SafeCSS(t); t != "" {
			b.WriteString(" tpt-ts-" + t)
		}
	}
	for _, t := range strings.Split(p.TagsViewer, ",") {
		if t = SafeCSS(t); t != "" {
			b.WriteString(" tpt-tv-" + t)
		}
	}
	b.WriteString(`" id="` + p.ID + `"`)
	return b.String()
}

// SafeCSS reduces s to a lower-case token usable in a class name, keeping
// only ASCII letters, digits and the marks - _ ! ~ * ' ( ).
func SafeCSS(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case strings.ContainsRune("-_!~*'()", r):
			return r
		default:
			return -1
		}
	}, s)
}
