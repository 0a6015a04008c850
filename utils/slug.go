package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a name and collapses everything that is not a letter or
// digit down to single hyphens.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = strings.Trim(slug[:80], "-")
	}
	return slug
}

// DisambiguateSlug appends a suffix derived from the record's own id, so a
// rename that collides resolves to the same slug every time it is retried.
func DisambiguateSlug(slug string, id uint) string {
	return fmt.Sprintf("%s-%d", slug, id)
}
