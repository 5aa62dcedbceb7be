package sidecar

import "strings"

const (
	// systemPromptFraming opens every synthesized system prompt.
	systemPromptFraming = "You are a helpful assistant embedded in the Orbit browser. " +
		"Answer the user's questions about the page they are currently viewing."

	// truncationMarker is appended to page content cut at the character
	// budget.
	truncationMarker = "\n[content truncated]"

	// charsPerToken approximates the character cost of one token when
	// converting the token budget into a character budget.
	charsPerToken = 4
)

// truncateContent cuts s to at most budget characters, appending the
// truncation marker when anything was dropped.
func truncateContent(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	return s[:budget] + truncationMarker
}

// systemPromptFromContext synthesizes the system message for a page snapshot.
// Sections appear in fixed order: framing, URL, title, quoted selection,
// quoted page content. Empty fields are skipped entirely; the content block is
// truncated to charBudget characters.
func systemPromptFromContext(page PageContext, charBudget int) string {
	var b strings.Builder
	b.WriteString(systemPromptFraming)

	if page.URL != "" {
		b.WriteString("\n\nPage URL: ")
		b.WriteString(page.URL)
	}
	if page.Title != "" {
		b.WriteString("\nPage title: ")
		b.WriteString(page.Title)
	}
	if page.SelectedText != "" {
		b.WriteString("\n\nThe user has selected the following text:\n\"\"\"\n")
		b.WriteString(page.SelectedText)
		b.WriteString("\n\"\"\"")
	}
	if page.PageContent != "" {
		b.WriteString("\n\nPage content:\n\"\"\"\n")
		b.WriteString(truncateContent(page.PageContent, charBudget))
		b.WriteString("\n\"\"\"")
	}

	return b.String()
}
