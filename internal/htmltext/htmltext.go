// Package htmltext turns provider-supplied HTML fragments into plain text.
package htmltext

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy = bluemonday.StrictPolicy()
	// block-level tags become line breaks before the markup is stripped
	blockTags = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6])\s*/?>`)
	spaces    = regexp.MustCompile(`[ \t\x{00a0}]+`)
	newlines  = regexp.MustCompile(`\s*\n\s*`)
)

// Clean strips all markup from s, decodes entities and collapses whitespace.
// Paragraph and line breaks are kept as single newlines.
func Clean(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = blockTags.ReplaceAllString(s, "\n")
	s = policy.Sanitize(s)
	s = html.UnescapeString(s)
	s = spaces.ReplaceAllString(s, " ")
	s = newlines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
