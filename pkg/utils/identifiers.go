package utils

import "strings"

// SanitizeIdentifier turns a display name into an identifier made of
// letters, digits and underscores, usable as a diagram alias or file stem.
// Every other rune becomes an underscore; an empty result becomes "_".
func SanitizeIdentifier(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// IsSimpleIdentifier reports whether id is already a bare identifier.
func IsSimpleIdentifier(id string) bool {
	return id != "" && SanitizeIdentifier(id) == id
}
