package engine

import (
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Enricher sanitises displayed HTML and removes secret blocks.
type Enricher struct {
	policy *bluemonday.Policy
}

// NewEnricher builds an Enricher on the user-generated-content policy,
// extended with the class attribute the paragraph wrappers rely on.
func NewEnricher() *Enricher {
	p := bluemonday.UGCPolicy()
	p.AllowElements("div", "section", "span")
	p.AllowAttrs("class").Globally()
	return &Enricher{policy: p}
}

// Enrich sanitises content. Unless secrets is true, every
// <section class="secret"> block is removed together with its children.
func (en *Enricher) Enrich(content string, secrets bool) string {
	if !secrets {
		content = StripSecrets(content)
	}
	return en.policy.Sanitize(content)
}

// StripSecrets removes <section> elements carrying the "secret" class.
// Input that cannot be parsed is returned unchanged.
func StripSecrets(content string) string {
	if !strings.Contains(content, "secret") {
		return content
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return content
	}

	var b strings.Builder
	for _, n := range nodes {
		if isSecret(n) {
			continue
		}
		removeSecrets(n)
		if err := html.Render(&b, n); err != nil {
			return content
		}
	}
	return b.String()
}

func removeSecrets(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if isSecret(c) {
			n.RemoveChild(c)
		} else {
			removeSecrets(c)
		}
		c = next
	}
}

func isSecret(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Section {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "class" && slices.Contains(strings.Fields(a.Val), "secret") {
			return true
		}
	}
	return false
}
