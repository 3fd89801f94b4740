package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTagLength is the longest tag name stored.
const MaxTagLength = 50

// NormalizeTag trims a proposed tag, strips a leading '#', lowercases it and
// collapses inner whitespace. It reports false for names that cannot be stored.
func NormalizeTag(name string) (string, bool) {
	name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "#"))
	name = strings.ToLower(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || utf8.RuneCountInString(name) > MaxTagLength {
		return "", false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", false
		}
	}
	return name, true
}

// NormalizeTags applies NormalizeTag to each name, dropping invalid ones and
// repeats. First occurrence wins.
func NormalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		tag, ok := NormalizeTag(n)
		if !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
