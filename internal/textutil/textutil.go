// Package textutil holds shared text cleanup helpers for feed and scraper output.
package textutil

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanHTML strips markup and entities from a fragment and collapses whitespace.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "<br>", " ")
	s = strings.ReplaceAll(s, "<br/>", " ")
	s = strings.ReplaceAll(s, "<br />", " ")
	s = strings.ReplaceAll(s, "</p>", "\n")

	// Remove remaining tags
	inTag := false
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			b.WriteRune(r)
		}
	}

	return CollapseWhitespace(html.UnescapeString(b.String()))
}

// CollapseWhitespace folds runs of whitespace into single spaces and drops
// control characters.
func CollapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}

// TruncateAtWord cuts s to at most max runes, ending on a word boundary.
func TruncateAtWord(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	trimmed := string(runes[:max])
	if idx := strings.LastIndexFunc(trimmed, unicode.IsSpace); idx > 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
