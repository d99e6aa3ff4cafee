// Package id generates identifiers for profiles and paragraphs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Length is the size of generated identifiers.
const Length = 16

// New returns a random 16 character alphanumeric identifier.
func New() string {
	for {
		v := strings.ReplaceAll(uuid.NewString(), "-", "")[:Length]
		if Valid(v) {
			return v
		}
	}
}

// Valid reports whether s can be used as a profile or paragraph key.
// Keys become segments of dotted flag paths, so path metacharacters are refused,
// and all-digit keys are refused because path syntax reads them as array indexes.
func Valid(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	digits := true
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
			digits = false
		default:
			return false
		}
	}
	return !digits
}
