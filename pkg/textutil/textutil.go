// Package textutil provides text helpers shared by the migration tools.
package textutil

import (
	"regexp"
	"strings"
)

var (
	nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	dashRunPattern = regexp.MustCompile(`[-\s]+`)
)

// Slugify converts a title into a URL/filename-safe identifier:
// lowercased, punctuation stripped, whitespace runs collapsed to dashes.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonWordPattern.ReplaceAllString(s, "")
	s = dashRunPattern.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// UniqueSlug returns a slug for title that does not collide with existing,
// prefixing the date on collision. The caller owns the existing set and is
// expected to add the returned slug to it.
func UniqueSlug(title, date string, existing map[string]bool) string {
	base := Slugify(title)
	if base == "" {
		base = "untitled"
	}

	if existing[base] {
		return date + "-" + base
	}

	return base
}

// CleanTitle flattens a title to a single line with single spaces.
func CleanTitle(title string) string {
	return NormalizeWhitespace(title)
}

// NormalizeWhitespace replaces whitespace runs with a single space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most max bytes, appending an ellipsis marker.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
