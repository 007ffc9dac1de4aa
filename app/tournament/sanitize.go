package tournament

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	scriptBlockPattern  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptTagPattern    = regexp.MustCompile(`(?i)</?script\b[^>]*>?`)
	javascriptPattern   = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

func checkLength(name, s string) error {
	if n := utf8.RuneCountInString(s); n > MaxInputLength {
		return fmt.Errorf("%w: %s has %d characters (limit %d)", ErrInputTooLarge, name, n, MaxInputLength)
	}
	return nil
}

// sanitize repairs invalid UTF-8, folds full-width and half-width forms, applies
// NFC, and strips script blocks, javascript: and inline event handlers until the
// text no longer changes. It never fails.
func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")

	t := transform.Chain(width.Fold, norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return stripUnsafe(s)
}

// stripUnsafe removes script blocks, javascript: and inline event handlers until
// the text no longer changes. Every effective pass shortens the text.
func stripUnsafe(s string) string {
	for {
		next := scriptBlockPattern.ReplaceAllString(s, "")
		next = scriptTagPattern.ReplaceAllString(next, "")
		next = javascriptPattern.ReplaceAllString(next, "")
		next = eventHandlerPattern.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}
	return s
}
