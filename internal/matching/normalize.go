// Package matching resolves noisy names extracted from announcement documents
// to canonical advisors, projects and candidates.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks folds OCR-shaped variants (ligatures, ordinal indicators,
// full-width digits) into plain letters and drops combining marks.
// Chained transformers keep state, so each call builds its own.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Key turns free text into a comparison key: no diacritics, no punctuation,
// uppercase, single spaces. Key(Key(s)) == Key(s).
func Key(text string) string {
	if text == "" {
		return ""
	}

	plain, _, err := transform.String(stripMarks(), text)
	if err != nil {
		return ""
	}
	// uppercasing can yield decomposed forms again (e.g. U+01F0), so strip twice
	plain, _, err = transform.String(stripMarks(), cases.Upper(language.Und).String(plain))
	if err != nil {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == ':' || r == '(' || r == ')':
			// structural punctuation separates words
			return ' '
		case isWordRune(r) || unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, plain)

	return strings.Join(strings.Fields(cleaned), " ")
}

// DisplayName is the storage form of a name: uppercase with collapsed whitespace, accents kept.
func DisplayName(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(cases.Upper(language.Und).String(text)), " ")
}

// NormalizeProfile pads a profile number to two digits ("1" -> "01"). Empty stays empty.
func NormalizeProfile(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return ""
	}
	if n := len([]rune(profile)); n < 2 {
		return strings.Repeat("0", 2-n) + profile
	}
	return profile
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
