package dedupe

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// Normalize folds away whitespace differences that do not change what the
// text says, so copies from different sources share a fingerprint.
func Normalize(text string) string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	t = strings.TrimSpace(t)
	t = spaceRun.ReplaceAllString(t, " ")
	t = newlineRun.ReplaceAllString(t, "\n\n")
	return t
}

// Fingerprint is the hex SHA-1 of the normalized text.
func Fingerprint(text string) string {
	sum := sha1.Sum([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
