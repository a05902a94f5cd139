package normalization

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Conservative allow-list: word characters, whitespace, common punctuation,
	// currency/percent symbols, brackets. Everything else becomes a space.
	disallowedRe = regexp.MustCompile("[^\\w\\s.,;:!?'\"()\\[\\]{}<>@#&*+=/\\\\|~^%$€£¥-]")
	whitespaceRe = regexp.MustCompile(`\s+`)

	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeExtracted cleans raw extracted document text: decomposes unicode
// and drops combining diacritical marks, replaces characters outside the
// allow-list with spaces, and collapses whitespace runs. Total on any input;
// empty in, empty out.
func NormalizeExtracted(text string) string {
	if text == "" {
		return ""
	}
	if stripped, _, err := transform.String(stripMarks, text); err == nil {
		text = stripped
	}
	text = disallowedRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SanitizeContent strips embedded null bytes and non-whitespace control
// characters before a chunk is persisted.
func SanitizeContent(text string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return -1
		}
		return r
	}, text)
}
