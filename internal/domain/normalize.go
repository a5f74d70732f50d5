package domain

import (
	"regexp"
	"strings"
	"unicode"
)

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for agent names and submolt display names typed by the user.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var submoltSeparators = regexp.MustCompile(`[-_]`)

// SubmoltDisplayName derives a display name from a submolt slug:
// "rust-help_desk" becomes "Rust Help Desk".
func SubmoltDisplayName(name string) string {
	words := strings.Fields(submoltSeparators.ReplaceAllString(name, " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
