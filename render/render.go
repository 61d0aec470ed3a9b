// Package render turns user-typed message text into safe HTML for web clients and
// into plain text for notification bodies.
package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

const extensions = blackfriday.NoIntraEmphasis |
	blackfriday.Strikethrough |
	blackfriday.Autolink |
	blackfriday.HardLineBreak

var (
	// [label](url) keeps only the label in plain text
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	spaceRegex        = regexp.MustCompile(`\s+`)

	ugc    = bluemonday.UGCPolicy().RequireNoFollowOnLinks(true).AddTargetBlankToFullyQualifiedLinks(true)
	strict = bluemonday.StrictPolicy()
)

// HTML renders markdown text to sanitized HTML.
func HTML(text string) string {
	unsafe := blackfriday.Run([]byte(text), blackfriday.WithExtensions(extensions))
	return strings.TrimSpace(string(ugc.SanitizeBytes(unsafe)))
}

// Plain strips markup and collapses whitespace, for single-line previews.
func Plain(text string) string {
	text = markdownLinkRegex.ReplaceAllString(text, "$1")
	out := blackfriday.Run([]byte(text), blackfriday.WithExtensions(extensions))
	plain := html.UnescapeString(strict.Sanitize(string(out)))
	return strings.TrimSpace(spaceRegex.ReplaceAllString(plain, " "))
}

// Truncate shortens text to at most max runes, ending with an ellipsis when cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	if max == 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
