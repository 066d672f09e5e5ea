package grading

import (
	"strings"
)

// normalizeText trims surrounding whitespace and folds case.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseBool normalizes a submitted boolean. Only "true" and "false" are
// accepted, in any case and with surrounding whitespace.
func ParseBool(s string) (bool, bool) {
	switch normalizeText(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// CanonicalBool renders a parsed boolean the way answer keys are stored.
func CanonicalBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// NormalizeType maps accepted spellings of an answer type to its canonical
// name. Unknown names are returned lower-cased so callers can reject them.
func NormalizeType(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	switch t {
	case "single_choice", "single-choice", "singlechoice", "mcq_single", "multiple_choice":
		return TypeSingleChoice
	case "boolean", "bool", "true_false", "true-false":
		return TypeBoolean
	case "free_text", "free-text", "freetext", "short_word", "text":
		return TypeFreeText
	}
	return t
}
