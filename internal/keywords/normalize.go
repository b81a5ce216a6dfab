package keywords

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s and strips diacritics by decomposing to NFD and
// dropping nonspacing marks.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(cases.Lower(language.Und), norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		// Transformers above never fail on valid input; fall back to the cheap path.
		return strings.ToLower(s)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
