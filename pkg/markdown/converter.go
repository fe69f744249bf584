package markdown

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	tagPattern      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	multiNewline    = regexp.MustCompile(`\n{3,}`)
	listItemPattern = regexp.MustCompile(`<li>`)
)

// ToHTML renders markdown as HTML for the admin catalog view.
func ToHTML(markdown string) string {
	if markdown == "" {
		return ""
	}
	return string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))
}

// ToPlainText flattens markdown to plain text suitable for a system prompt.
// Persona files written in markdown keep their wording and list structure
// but lose headings markup, emphasis, and links.
func ToPlainText(markdown string) string {
	if markdown == "" {
		return ""
	}

	rendered := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	// Keep list bullets readable, then strip every remaining tag.
	rendered = listItemPattern.ReplaceAllString(rendered, "- ")
	rendered = strings.ReplaceAll(rendered, "</p>", "\n")
	rendered = strings.ReplaceAll(rendered, "</li>", "\n")
	rendered = strings.ReplaceAll(rendered, "</h1>", "\n")
	rendered = strings.ReplaceAll(rendered, "</h2>", "\n")
	rendered = strings.ReplaceAll(rendered, "</h3>", "\n")
	rendered = tagPattern.ReplaceAllString(rendered, "")

	rendered = html.UnescapeString(rendered)
	rendered = multiNewline.ReplaceAllString(rendered, "\n\n")

	return strings.TrimSpace(rendered)
}
