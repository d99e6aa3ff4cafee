package profile

import (
	"strings"
	"unicode/utf8"
)

// NameMaxLen is the maximum profile name length in characters.
const NameMaxLen = 16

// nameExtra holds the characters allowed in names beyond letters, digits and '_'.
const nameExtra = `-()!*.^,|°~%&§/=?#öÖäÄüÜßẞ@×÷½¼¾²³$€¥©®™ `

// SanitizeName trims s, strips characters outside the name alphabet and
// truncates the result to NameMaxLen characters.
func SanitizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if isNameRune(r) {
			return r
		}
		return -1
	}, s)
	if utf8.RuneCountInString(s) > NameMaxLen {
		s = string([]rune(s)[:NameMaxLen])
	}
	return strings.TrimSpace(s)
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	default:
		return strings.ContainsRune(nameExtra, r)
	}
}

// SanitizeTags filters a tag expression to [a-z0-9,_-], lower-casing letters.
func SanitizeTags(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ',', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, s)
}

// SplitTags splits a comma list into trimmed, non-empty tokens.
func SplitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
