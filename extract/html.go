package extract

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/orbitshell/sidecar"
)

// contentRootSelectors is the cascade tried in order when picking the content
// root of a page.
var contentRootSelectors = []string{"article", "main", "[role=main]"}

// noiseSelector matches the elements stripped from the content root before
// reading its text.
const noiseSelector = "script, style, nav, footer, header, aside, " +
	".ad, .ads, .advertisement, .sidebar, [role=comment], .comments"

var stripPolicy = bluemonday.StrictPolicy()

// NormalizeWhitespace collapses consecutive whitespace into single spaces and
// trims the result.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FromHTML builds a PageContext from raw page HTML, applying the same
// algorithm the content script runs in-page: pick the content root via the
// selector cascade, drop noise elements, and collapse the remaining visible
// text. The url and title arguments come from platform state; an empty title
// is recovered from the document itself.
func FromHTML(url, title, rawHTML string) (sidecar.PageContext, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return sidecar.PageContext{}, fmt.Errorf("failed to parse page: %w", err)
	}

	root := doc.Find("body")
	for _, selector := range contentRootSelectors {
		if match := doc.Find(selector); match.Length() > 0 {
			root = match.First()
			break
		}
	}

	clone := root.Clone()
	clone.Find(noiseSelector).Remove()

	fragment, err := goquery.OuterHtml(clone)
	if err != nil {
		return sidecar.PageContext{}, fmt.Errorf("failed to render content root: %w", err)
	}

	// StrictPolicy drops every tag (and script/style bodies) leaving escaped
	// text only.
	text := html.UnescapeString(stripPolicy.Sanitize(fragment))

	if title == "" {
		title = strings.TrimSpace(doc.Find("title").Text())
		if title == "" {
			title = doc.Find("meta[property='og:title']").AttrOr("content", "")
		}
	}

	return sidecar.PageContext{
		URL:         url,
		Title:       title,
		PageContent: NormalizeWhitespace(text),
	}, nil
}
