package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto selects whisper's built-in language detection.
const Auto = ""

type entry struct {
	code2 string   // ISO 639-1
	alt   []string // ISO 639-2 forms and spelled-out names
}

var languages = []entry{
	{"en", []string{"eng", "english", "anglais"}},
	{"fr", []string{"fra", "fre", "french", "francais", "français"}},
	{"es", []string{"spa", "spanish", "espanol", "español"}},
	{"de", []string{"deu", "ger", "german", "deutsch"}},
	{"it", []string{"ita", "italian", "italiano"}},
	{"pt", []string{"por", "portuguese", "portugues", "português"}},
	{"nl", []string{"nld", "dut", "dutch"}},
	{"ja", []string{"jpn", "japanese"}},
	{"zh", []string{"zho", "chi", "chinese"}},
	{"ru", []string{"rus", "russian"}},
	{"ar", []string{"ara", "arabic"}},
}

var byAlias map[string]string

func init() {
	byAlias = make(map[string]string, len(languages)*4)
	for _, e := range languages {
		byAlias[e.code2] = e.code2
		for _, alias := range e.alt {
			byAlias[alias] = e.code2
		}
	}
}

// ToISO2 normalizes code to ISO 639-1. Empty input and "auto" return Auto;
// unrecognized input returns Auto and false.
func ToISO2(code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "auto" {
		return Auto, true
	}
	if mapped, ok := byAlias[code]; ok {
		return mapped, true
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return Auto, false
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return Auto, false
	}
	iso := base.String()
	if len(iso) != 2 {
		return Auto, false
	}
	return iso, true
}

// DisplayName returns an English name for code, "Auto-detect" for Auto, or
// the uppercased input when unknown.
func DisplayName(code string) string {
	iso, ok := ToISO2(code)
	if !ok {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if iso == Auto {
		return "Auto-detect"
	}
	if name := display.English.Languages().Name(xlang.Make(iso)); name != "" {
		return name
	}
	return strings.ToUpper(iso)
}
