package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxGap is the number of arbitrary words allowed between consecutive tokens
// of a multi-token keyword.
const MaxGap = 3

// Matcher holds a prepared keyword list. The zero value scores nothing.
type Matcher struct {
	keywords []keyword
}

type keyword struct {
	label  string
	tokens []string
}

// NewMatcher trims and normalizes keywords once so the same list can score
// many transcripts. Labels keep the trimmed caller spelling.
func NewMatcher(keywords []string) *Matcher {
	m := &Matcher{keywords: make([]keyword, 0, len(keywords))}
	for _, raw := range keywords {
		label := strings.TrimSpace(raw)
		m.keywords = append(m.keywords, keyword{
			label:  label,
			tokens: strings.Fields(Normalize(label)),
		})
	}
	return m
}

// Labels returns the trimmed keywords in input order, duplicates included.
func (m *Matcher) Labels() []string {
	out := make([]string, 0, len(m.keywords))
	for _, kw := range m.keywords {
		out = append(out, kw.label)
	}
	return out
}

// Score returns the occurrence count of every keyword in transcript, keyed by
// the trimmed keyword. Duplicate keywords collapse into one entry.
func (m *Matcher) Score(transcript string) map[string]int {
	scores := make(map[string]int, len(m.keywords))
	text := Normalize(transcript)
	for _, kw := range m.keywords {
		scores[kw.label] = countKeyword(text, kw.tokens)
	}
	return scores
}

// Score is a convenience wrapper around NewMatcher(keywords).Score(transcript).
func Score(transcript string, keywords []string) map[string]int {
	return NewMatcher(keywords).Score(transcript)
}

func countKeyword(text string, tokens []string) int {
	switch {
	case text == "" || len(tokens) == 0:
		return 0
	case len(tokens) == 1:
		return countWord(text, tokens[0])
	}

	if n := countProximity(text, tokens); n > 0 {
		return n
	}

	required := max(1, len(tokens)/2)
	found := 0
	for _, token := range tokens {
		if countWord(text, token) > 0 {
			found++
		}
	}
	if found >= required {
		return 1
	}
	return 0
}

// countWord counts non-overlapping whole-word occurrences of word in text.
func countWord(text, word string) int {
	count := 0
	for pos := 0; pos < len(text); {
		idx := strings.Index(text[pos:], word)
		if idx < 0 {
			break
		}
		start := pos + idx
		if end, ok := wordAt(text, start, word); ok {
			count++
			pos = end
			continue
		}
		pos = nextRune(text, start)
	}
	return count
}

// countProximity counts non-overlapping ordered matches of tokens, scanning
// left to right and resuming after each match end.
func countProximity(text string, tokens []string) int {
	count := 0
	for pos := 0; pos < len(text); {
		idx := strings.Index(text[pos:], tokens[0])
		if idx < 0 {
			break
		}
		start := pos + idx
		if end, ok := matchSequence(text, start, tokens); ok {
			count++
			pos = end
			continue
		}
		pos = nextRune(text, start)
	}
	return count
}

// matchSequence matches tokens[0] at start, then each following token after
// a whitespace run and up to MaxGap intervening words. Larger gaps are
// preferred first, mirroring greedy regular expression semantics.
func matchSequence(text string, start int, tokens []string) (int, bool) {
	end, ok := wordAt(text, start, tokens[0])
	if !ok {
		return 0, false
	}
	if len(tokens) == 1 {
		return end, true
	}

	pos := skipSpace(text, end)
	if pos == end {
		return 0, false
	}
	starts := []int{pos}
	for gap := 0; gap < MaxGap; gap++ {
		wordEnd := skipNonSpace(text, pos)
		next := skipSpace(text, wordEnd)
		if wordEnd == pos || next == wordEnd {
			break
		}
		pos = next
		starts = append(starts, pos)
	}
	for i := len(starts) - 1; i >= 0; i-- {
		if end, ok := matchSequence(text, starts[i], tokens[1:]); ok {
			return end, true
		}
	}
	return 0, false
}

// wordAt reports whether word occurs at start with word boundaries on both sides.
func wordAt(text string, start int, word string) (int, bool) {
	if !strings.HasPrefix(text[start:], word) {
		return 0, false
	}
	end := start + len(word)
	if !isBoundary(text, start) || !isBoundary(text, end) {
		return 0, false
	}
	return end, true
}

func isBoundary(text string, pos int) bool {
	before, after := false, false
	if pos > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:pos])
		before = isWordRune(r)
	}
	if pos < len(text) {
		r, _ := utf8.DecodeRuneInString(text[pos:])
		after = isWordRune(r)
	}
	return before != after
}

func skipSpace(text string, pos int) int {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}

func skipNonSpace(text string, pos int) int {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}

func nextRune(text string, pos int) int {
	_, size := utf8.DecodeRuneInString(text[pos:])
	if size == 0 {
		size = 1
	}
	return pos + size
}
