package clipboard

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var urlPrefixes = []string{"http://", "https://", "www."}

// Validate reports whether clipboard text is worth capturing: non-blank,
// within the length bounds, not a bare number and not a link.
func Validate(text string, minLength, maxLength int) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	n := utf8.RuneCountInString(text)
	if n < minLength || n > maxLength {
		return false
	}

	if isDigits(trimmed) {
		return false
	}

	for _, p := range urlPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
