package keywords

import (
	"strings"
	"testing"
)

func TestScoreSingleTokenUsesWordBoundaries(t *testing.T) {
	tests := []struct {
		transcript string
		want       int
	}{
		{"the quick brown fox", 1},
		{"foxes like foxholes", 0},
		{"fox, fox and FOX!", 3},
		{"", 0},
	}
	for _, tt := range tests {
		got := Score(tt.transcript, []string{"fox"})
		if got["fox"] != tt.want {
			t.Fatalf("Score(%q) = %d, want %d", tt.transcript, got["fox"], tt.want)
		}
	}
}

func TestProximityAllowsUpToThreeInterveningWords(t *testing.T) {
	tokens := []string{"gambit", "dame"}
	fillers := []string{"of", "the", "immortal", "queen"}
	for gap := 0; gap <= 4; gap++ {
		text := "gambit " + strings.Join(append(append([]string{}, fillers[:gap]...), "dame"), " ")
		got := countProximity(text, tokens)
		want := 1
		if gap > MaxGap {
			want = 0
		}
		if got != want {
			t.Fatalf("gap %d: countProximity(%q) = %d, want %d", gap, text, got, want)
		}
	}
}

func TestScoreProximityCountsEachOrderedMatch(t *testing.T) {
	transcript := "Gambit dame opens. Later the gambit of the dame returns; dame gambit does not count."
	got := Score(transcript, []string{"gambit dame"})
	if got["gambit dame"] != 2 {
		t.Fatalf("expected 2 proximity matches, got %d", got["gambit dame"])
	}
}

func TestProximityBacktracksToShorterGap(t *testing.T) {
	if got := countProximity("gambit x dame dames", []string{"gambit", "dame"}); got != 1 {
		t.Fatalf("expected shorter gap to match, got %d", got)
	}
}

func TestScorePartialFallbackThreshold(t *testing.T) {
	keyword := "alpha bravo charlie delta"
	two := "bravo appears early and much later delta shows up far away from it in this long sentence"
	if got := Score(two, []string{keyword})[keyword]; got != 1 {
		t.Fatalf("two of four tokens: expected 1, got %d", got)
	}
	one := "only bravo is here"
	if got := Score(one, []string{keyword})[keyword]; got != 0 {
		t.Fatalf("one of four tokens: expected 0, got %d", got)
	}
}

func TestScoreIgnoresDiacriticsAndCase(t *testing.T) {
	got := Score("Gambit d'Âme", []string{"gambit dame"})
	if got["gambit dame"] < 1 {
		t.Fatalf("expected diacritic-insensitive match, got %d", got["gambit dame"])
	}
	got = Score("Le CAFÉ est fermé", []string{"cafe", "Fermé"})
	if got["cafe"] != 1 || got["Fermé"] != 1 {
		t.Fatalf("unexpected scores: %v", got)
	}
}

func TestScoreBlankKeywordsScoreZero(t *testing.T) {
	got := Score("anything at all", []string{"", "   ", "́"})
	for label, count := range got {
		if count != 0 {
			t.Fatalf("expected zero for blank keyword %q, got %d", label, count)
		}
	}
}

func TestScoreTrimsAndCollapsesDuplicates(t *testing.T) {
	m := NewMatcher([]string{" fox ", "fox", "dog"})
	got := m.Score("fox and dog and fox")
	if len(got) != 2 {
		t.Fatalf("expected duplicates to collapse, got %v", got)
	}
	if got["fox"] != 2 || got["dog"] != 1 {
		t.Fatalf("unexpected scores: %v", got)
	}
	labels := m.Labels()
	if len(labels) != 3 || labels[0] != "fox" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Âme":      "ame",
		"ÉCOLE":    "ecole",
		"naïve":    "naive",
		"":         "",
		"straße":   "straße",
		"Ångström": "angstrom",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWordBoundariesAreUnicodeAware(t *testing.T) {
	if got := countWord("мир миру мир", "мир"); got != 2 {
		t.Fatalf("expected 2 cyrillic matches, got %d", got)
	}
}
