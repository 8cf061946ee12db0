package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	referenceRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-/]{0,127}$`)
)

// ValidateMinLength checks that the trimmed text has at least min characters
func ValidateMinLength(field, text string, min int) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < min {
		return fmt.Errorf("%s must be at least %d characters", field, min)
	}
	return nil
}

// ValidateClientReference checks an external order reference
func ValidateClientReference(ref string) error {
	if !referenceRegex.MatchString(ref) {
		return fmt.Errorf("invalid client reference: %q", ref)
	}
	return nil
}

// SanitizeString strips control characters (newlines and tabs are kept) and trims
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
